package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/cofounder/internal/export"
	"github.com/dusk-indust/cofounder/internal/orchestrator"
	"github.com/dusk-indust/cofounder/internal/status"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [dir]",
		Short: "Show which analysis artifacts exist in an output directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.OutputDir
			if len(args) == 1 {
				dir = args[0]
			}
			printStatus(cmd.OutOrStdout(), status.Scan(dir))
			return nil
		},
	}
}

func printStatus(w io.Writer, st status.Status) {
	fmt.Fprintf(w, "Output: %s\n", st.Dir)
	if st.Idea != "" {
		fmt.Fprintf(w, "Idea:   %s\n", st.Idea)
	}
	fmt.Fprintln(w)

	next := st.Next()
	for _, sec := range st.Sections {
		marker := "  "
		label := "pending"
		if sec.Complete {
			label = "complete"
		}
		if sec.Key == next {
			marker = "->"
			label = "next"
		}
		fmt.Fprintf(w, "  %s %-22s %-20s [%s]\n", marker, sec.Name, sec.File, label)
	}

	fmt.Fprintf(w, "\n  step: %s  json: %s  html: %s\n", st.Step, yesNo(st.HasJSON), yesNo(st.HasHTML))
	if st.Complete() {
		fmt.Fprintln(w, "  All sections complete.")
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newDiagramCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diagram [dir]",
		Short: "Print the analysis pipeline as a Mermaid flowchart",
		Long: `Prints the pipeline state machine as a Mermaid flowchart. When an output
directory is given, the step its artifacts have reached is highlighted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var current orchestrator.Step
			if len(args) == 1 {
				current = status.Scan(args[0]).Step
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), export.PipelineMermaid(current))
			return err
		},
	}
}
