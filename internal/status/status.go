// Package status reports which analysis artifacts exist in an export
// directory.
package status

import (
	"os"
	"path/filepath"

	"github.com/dusk-indust/cofounder/internal/export"
	"github.com/dusk-indust/cofounder/internal/orchestrator"
)

// SectionInfo describes one exported section.
type SectionInfo struct {
	Key      orchestrator.Key
	Name     string // human-readable name (e.g. "business strategy")
	File     string // file name (e.g. "strategy_analysis.md")
	Complete bool
	Size     int64
	FilePath string // absolute path when complete, empty otherwise
}

// Status is the state of one export directory.
type Status struct {
	Dir      string
	Idea     string // from result.json, empty if it is missing
	Sections []SectionInfo
	HasJSON  bool
	HasHTML  bool
	// Step is the furthest pipeline step the exported sections prove.
	Step orchestrator.Step
}

// Complete reports whether every section, including the final report, was
// exported.
func (s Status) Complete() bool {
	for _, sec := range s.Sections {
		if !sec.Complete {
			return false
		}
	}
	return len(s.Sections) > 0
}

// Next returns the first section still missing, or "" when complete.
func (s Status) Next() orchestrator.Key {
	for _, sec := range s.Sections {
		if !sec.Complete {
			return sec.Key
		}
	}
	return ""
}

// Scan inspects dir. A missing directory yields a status with nothing
// complete. When result.json is present it is authoritative: a section file
// the document does not list is ignored, and the final report of a document
// not marked complete never counts.
func Scan(dir string) Status {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}

	st := Status{Dir: abs, Step: orchestrator.StepNotStarted}
	doc, err := export.ReadDocument(abs)
	if err != nil {
		doc = nil
	}
	if doc != nil {
		st.Idea = doc.Idea
	}

	contiguous := true
	for _, k := range orchestrator.Keys() {
		info := SectionInfo{
			Key:  k,
			Name: orchestrator.StepLabel(k),
			File: export.MarkdownFile(k),
		}
		path := filepath.Join(abs, info.File)
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() && listed(doc, k) {
			info.Complete = true
			info.Size = fi.Size()
			info.FilePath = path
		}
		if info.Complete && contiguous {
			st.Step = orchestrator.DoneStep(k)
		} else {
			contiguous = false
		}
		st.Sections = append(st.Sections, info)
	}

	st.HasJSON = doc != nil
	st.HasHTML = exists(filepath.Join(abs, export.HTMLFile)) && listed(doc, orchestrator.KeyFinal)
	return st
}

// listed reports whether doc vouches for section k. Without a document the
// files on disk are trusted.
func listed(doc *export.Document, k orchestrator.Key) bool {
	if doc == nil {
		return true
	}
	if k == orchestrator.KeyFinal && !doc.Complete {
		return false
	}
	_, ok := doc.Sections[k.ResultName()]
	return ok
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
