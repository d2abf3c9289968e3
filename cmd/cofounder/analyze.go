package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/cofounder/internal/export"
	"github.com/dusk-indust/cofounder/internal/orchestrator"
)

type analyzeFlags struct {
	outputDir string
	formats   string
	ideasFile string
	asJSON    bool
	quiet     bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze [idea]",
		Short: "Run the full strategy, technical and marketing analysis",
		Long: `Runs the three agents in order over the idea and compiles the final report.

Artifacts (one markdown file per section, result.json, final_report.html) are
written to the output directory. The final report is printed to stdout.

With --file, every non-empty line of the file is analysed as a separate idea,
up to "concurrency" ideas at a time, each into its own subdirectory.

Examples:
  cofounder analyze "A marketplace for renting camera gear between photographers"
  cofounder analyze --file ideas.txt --formats md,json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formats, err := export.ParseFormats(f.formats)
			if err != nil {
				return err
			}
			if f.outputDir == "" {
				f.outputDir = a.cfg.OutputDir
			}

			ctx := cmd.Context()
			if d := time.Duration(a.cfg.Timeout); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			if f.ideasFile != "" {
				if len(args) > 0 {
					return errors.New("pass either an idea or --file, not both")
				}
				ideas, err := readIdeas(f.ideasFile)
				if err != nil {
					return err
				}
				return a.analyzeBatch(ctx, cmd, ideas, formats, f)
			}

			if len(args) == 0 {
				return errors.New("an idea is required (or use --file)")
			}
			return a.analyzeOne(ctx, cmd, strings.Join(args, " "), formats, f)
		},
	}

	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "directory for exported artifacts (default from config)")
	cmd.Flags().StringVar(&f.formats, "formats", "", "comma-separated export formats: md, json, html (default all)")
	cmd.Flags().StringVarP(&f.ideasFile, "file", "f", "", "analyse every line of this file as a separate idea")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the result as JSON instead of the final report")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

func (a *app) analyzeOne(ctx context.Context, cmd *cobra.Command, idea string, formats []export.Format, f analyzeFlags) error {
	p, _, err := a.pipeline()
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	var header bool
	progress := func(ev orchestrator.ProgressEvent) {
		if f.quiet {
			return
		}
		if !header {
			fmt.Fprintln(stderr, orchestrator.FormatRunHeader(ev.RunID, idea))
			header = true
		}
		if ev.Status != orchestrator.ProgressPending {
			fmt.Fprintln(stderr, orchestrator.FormatProgress(ev))
		}
	}

	res, runErr := p.RunWithProgress(ctx, idea, progress)
	if runErr != nil {
		var re *orchestrator.RunError
		if errors.As(runErr, &re) && len(re.Partial) > 0 {
			written, err := export.WriteArtifacts(f.outputDir, export.PartialDocument(idea, re.Partial), formats)
			if err != nil {
				fmt.Fprintf(stderr, "could not write partial results to %s: %v\n", f.outputDir, err)
			} else {
				fmt.Fprintf(stderr, "partial results written to %s (%d files)\n", f.outputDir, len(written))
			}
		}
		return runErr
	}

	written, err := export.WriteArtifacts(f.outputDir, export.NewDocument(idea, res), formats)
	if err != nil {
		return err
	}
	if !f.quiet {
		for _, path := range written {
			fmt.Fprintf(stderr, "  wrote %s\n", path)
		}
	}
	return printResult(cmd.OutOrStdout(), res, f.asJSON)
}

func (a *app) analyzeBatch(ctx context.Context, cmd *cobra.Command, ideas []string, formats []export.Format, f analyzeFlags) error {
	pr := orchestrator.NewProgressReporter()
	p, _, err := a.pipeline(orchestrator.WithProgress(pr))
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for ev := range pr.Subscribe() {
			if f.quiet || ev.Status == orchestrator.ProgressPending {
				continue
			}
			fmt.Fprintf(stderr, "[%.8s]%s\n", ev.RunID, orchestrator.FormatProgress(ev))
		}
	}()

	items := p.RunBatch(ctx, ideas, a.cfg.Concurrency)
	pr.Close()
	<-printed

	out := cmd.OutOrStdout()
	for i, it := range items {
		dir := filepath.Join(f.outputDir, fmt.Sprintf("%02d-%s", i+1, slug(it.Idea)))
		var doc export.Document
		if it.Err != nil {
			var re *orchestrator.RunError
			if !errors.As(it.Err, &re) || len(re.Partial) == 0 {
				fmt.Fprintf(out, "✗ %s: %v\n", it.Idea, it.Err)
				continue
			}
			doc = export.PartialDocument(it.Idea, re.Partial)
		} else {
			doc = export.NewDocument(it.Idea, it.Result)
		}
		if _, err := export.WriteArtifacts(dir, doc, formats); err != nil {
			return err
		}
		if it.Err != nil {
			fmt.Fprintf(out, "✗ %s: %v (partial results in %s)\n", it.Idea, it.Err, dir)
		} else {
			fmt.Fprintf(out, "✓ %s → %s\n", it.Idea, dir)
		}
	}

	if failed := orchestrator.Failed(items); len(failed) > 0 {
		return fmt.Errorf("%d of %d analyses failed", len(failed), len(items))
	}
	return nil
}

func printResult(w io.Writer, res *orchestrator.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err := io.WriteString(w, res.FinalReport)
	return err
}

// readIdeas returns the non-empty lines of path. Lines starting with # are
// comments.
func readIdeas(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var ideas []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ideas = append(ideas, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(ideas) == 0 {
		return nil, fmt.Errorf("%s contains no ideas", path)
	}
	return ideas, nil
}

// slug turns an idea into a short directory name.
func slug(idea string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(idea) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			dash = false
		case !dash && sb.Len() > 0:
			sb.WriteByte('-')
			dash = true
		}
		if sb.Len() >= 40 {
			break
		}
	}
	s := strings.TrimSuffix(sb.String(), "-")
	if s == "" {
		return "idea"
	}
	return s
}
