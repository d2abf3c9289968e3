// Package export writes analysis results to disk as downloadable artifacts.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dusk-indust/cofounder/internal/orchestrator"
)

// Format selects which artifacts WriteArtifacts produces.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
)

// AllFormats returns every supported format.
func AllFormats() []Format {
	return []Format{FormatMarkdown, FormatJSON, FormatHTML}
}

// ParseFormats parses a comma-separated format list such as "md,html".
// An empty string selects every format.
func ParseFormats(s string) ([]Format, error) {
	if strings.TrimSpace(s) == "" {
		return AllFormats(), nil
	}
	var out []Format
	seen := make(map[Format]bool)
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		switch f {
		case FormatMarkdown, FormatJSON, FormatHTML:
		case "markdown":
			f = FormatMarkdown
		default:
			return nil, fmt.Errorf("unknown export format %q (want md, json or html)", part)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// File names written by WriteArtifacts.
const (
	ResultFile = "result.json"
	HTMLFile   = "final_report.html"
)

// MarkdownFile returns the markdown file name for a record key.
func MarkdownFile(k orchestrator.Key) string {
	return k.ResultName() + ".md"
}

// Document is what gets exported for one run. Sections is keyed by result
// name; a failed run exports only the sections it completed.
type Document struct {
	Idea       string            `json:"idea"`
	ExportedAt string            `json:"exportedAt"`
	Complete   bool              `json:"complete"`
	Sections   map[string]string `json:"sections"`
}

// NewDocument builds the document for a successful run.
func NewDocument(idea string, res *orchestrator.Result) Document {
	return Document{
		Idea:       idea,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Complete:   true,
		Sections:   res.Map(),
	}
}

// PartialDocument builds the document for a run that failed after
// completing the given sections.
func PartialDocument(idea string, partial map[string]string) Document {
	sections := make(map[string]string, len(partial))
	for k, v := range partial {
		sections[k] = v
	}
	return Document{
		Idea:       idea,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Sections:   sections,
	}
}

// WriteArtifacts writes doc into dir, creating it if needed, and returns the
// paths written in order. Markdown files hold each section verbatim;
// result.json holds the whole document; final_report.html is written only
// when the document has a final report. Artifacts left in dir by an earlier
// export that doc does not produce are removed.
func WriteArtifacts(dir string, doc Document, formats []Format) ([]string, error) {
	for _, f := range formats {
		switch f {
		case FormatMarkdown, FormatJSON, FormatHTML:
		default:
			return nil, fmt.Errorf("unknown export format %q", f)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	if err := removeStale(dir, plannedFiles(doc, formats)); err != nil {
		return nil, err
	}

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	for _, f := range formats {
		switch f {
		case FormatMarkdown:
			for _, k := range orchestrator.Keys() {
				text, ok := doc.Sections[k.ResultName()]
				if !ok {
					continue
				}
				if err := write(MarkdownFile(k), []byte(text)); err != nil {
					return written, err
				}
			}

		case FormatJSON:
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return written, fmt.Errorf("marshal %s: %w", ResultFile, err)
			}
			if err := write(ResultFile, append(data, '\n')); err != nil {
				return written, err
			}

		case FormatHTML:
			report, ok := doc.Sections[orchestrator.ResultFinal]
			if !ok {
				continue
			}
			page, err := RenderHTML(report)
			if err != nil {
				return written, err
			}
			if err := write(HTMLFile, page); err != nil {
				return written, err
			}

		}
	}
	return written, nil
}

// ArtifactFiles lists every file name WriteArtifacts can produce.
func ArtifactFiles() []string {
	var names []string
	for _, k := range orchestrator.Keys() {
		names = append(names, MarkdownFile(k))
	}
	return append(names, ResultFile, HTMLFile)
}

// plannedFiles returns the file names WriteArtifacts will write for doc.
func plannedFiles(doc Document, formats []Format) map[string]bool {
	planned := make(map[string]bool)
	for _, f := range formats {
		switch f {
		case FormatMarkdown:
			for _, k := range orchestrator.Keys() {
				if _, ok := doc.Sections[k.ResultName()]; ok {
					planned[MarkdownFile(k)] = true
				}
			}
		case FormatJSON:
			planned[ResultFile] = true
		case FormatHTML:
			if _, ok := doc.Sections[orchestrator.ResultFinal]; ok {
				planned[HTMLFile] = true
			}
		}
	}
	return planned
}

func removeStale(dir string, keep map[string]bool) error {
	for _, name := range ArtifactFiles() {
		if keep[name] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale %s: %w", name, err)
		}
	}
	return nil
}

// ReadDocument loads result.json from dir.
func ReadDocument(dir string) (*Document, error) {
	data, err := os.ReadFile(filepath.Join(dir, ResultFile))
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ResultFile, err)
	}
	return &doc, nil
}
