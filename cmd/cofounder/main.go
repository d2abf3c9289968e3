package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/cofounder/internal/agent"
	"github.com/dusk-indust/cofounder/internal/config"
	"github.com/dusk-indust/cofounder/internal/generator"
	"github.com/dusk-indust/cofounder/internal/logging"
	"github.com/dusk-indust/cofounder/internal/orchestrator"
)

// version is set by goreleaser at build time.
var version = "dev"

// app holds the global flags and what PersistentPreRunE derives from them.
type app struct {
	projectRoot string
	provider    string
	model       string
	verbose     bool
	dryRun      bool

	cfg    *config.ProjectConfig
	logger *zap.Logger
	gen    generator.Generator
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "cofounder",
		Short: "AI co-founder team: strategy, technical and marketing analysis of a startup idea",
		Long: `cofounder runs three specialist agents over a startup idea, in order:

  1. Strategy (CEO)   business strategy analysis
  2. Technical (CTO)  technical plan built on the strategy
  3. Marketing (CMO)  go-to-market plan built on both

and compiles their outputs into one final report.

Settings are read from cofounder.yml in the project root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.projectRoot, "project-root", "C", ".", "directory holding cofounder.yml")
	flags.StringVar(&a.provider, "provider", "", "LLM provider: openai, groq, deepseek, compatible, gemini, a2a, echo (overrides config)")
	flags.StringVar(&a.model, "model", "", "model name (overrides config)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&a.dryRun, "dry-run", false, "use the offline echo generator instead of a real LLM")

	root.AddCommand(
		newAnalyzeCmd(a),
		newQuickCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newInitCmd(a),
		newStatusCmd(a),
		newDiagramCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the config, applies flag overrides and builds the logger.
func (a *app) setup() error {
	cfg, err := config.Load(a.projectRoot)
	if err != nil {
		return err
	}
	if a.provider != "" {
		cfg.LLM.Provider = a.provider
	}
	if a.model != "" {
		cfg.LLM.Model = a.model
	}
	if a.dryRun {
		cfg.LLM.Provider = "echo"
	}
	a.cfg = cfg

	logger, err := logging.New(a.verbose || cfg.Verbose)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// generator returns the configured generator, building it on first use.
func (a *app) generator() (generator.Generator, error) {
	if a.gen == nil {
		gen, err := generator.New(a.cfg.LLM)
		if err != nil {
			return nil, err
		}
		a.gen = gen
	}
	return a.gen, nil
}

// registry builds the stage registry for the configured generator.
func (a *app) registry() (*agent.Registry, error) {
	gen, err := a.generator()
	if err != nil {
		return nil, err
	}
	return agent.NewRegistry(gen, agent.TemperaturesFrom(a.cfg.Temperatures))
}

// pipeline builds the registry and a pipeline over it.
func (a *app) pipeline(opts ...orchestrator.Option) (*orchestrator.Pipeline, *agent.Registry, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, nil, err
	}
	p, err := orchestrator.FromRegistry(reg, append([]orchestrator.Option{orchestrator.WithLogger(a.logger)}, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	return p, reg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}
