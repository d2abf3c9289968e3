package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/cofounder/internal/mcptools"
)

func newQuickCmd(a *app) *cobra.Command {
	var launchDate string

	cmd := &cobra.Command{
		Use:   "quick <strategy|technical|launch> <idea>",
		Short: "Get a short answer from a single agent",
		Long: `Asks one agent for a quick take instead of running the full pipeline:

  strategy   three or four sentences of strategic feedback (CEO)
  technical  a short feasibility and stack assessment (CTO)
  launch     a launch campaign plan (CMO); see --launch-date`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			svc := mcptools.NewAnalysisService(nil, reg, a.logger)

			_, out, err := svc.QuickFeedback(cmd.Context(), nil, mcptools.QuickFeedbackInput{
				Kind:       args[0],
				Idea:       strings.Join(args[1:], " "),
				LaunchDate: launchDate,
			})
			if err != nil {
				return err
			}
			if out.Status != "completed" {
				return fmt.Errorf("%s feedback failed: %s", out.Kind, out.Message)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out.Text)
			return err
		},
	}

	cmd.Flags().StringVar(&launchDate, "launch-date", "", `target launch date for "launch" (default "in 3 months")`)
	return cmd
}
