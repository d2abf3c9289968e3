package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/cofounder/internal/a2a"
	"github.com/dusk-indust/cofounder/internal/mcptools"
	"github.com/dusk-indust/cofounder/internal/service"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, publicURL string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analyses as an A2A agent over HTTP",
		Long: `Starts an Agent2Agent JSON-RPC server. Each message/send is one analysis:
the message text is the idea and the task's artifacts are the four result
sections. message/stream reports every pipeline step as it happens.

The server also offers the "generate" skill: one model call with the role and
temperature sent by another cofounder configured with provider "a2a".

The agent card is served at /.well-known/agent-card.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, err := a.pipeline()
			if err != nil {
				return err
			}
			gen, err := a.generator()
			if err != nil {
				return err
			}
			svc, err := service.New(p,
				service.WithGenerator(gen),
				service.WithLogger(a.logger),
				service.WithTimeout(time.Duration(a.cfg.Timeout)),
			)
			if err != nil {
				return err
			}

			srv := a2a.NewServer(svc.Card(publicURL, version), svc)
			if err := srv.Start(cmd.Context(), addr); err != nil {
				return err
			}
			a.logger.Info("a2a server listening", zap.String("addr", srv.Addr()), zap.String("provider", a.cfg.LLM.Provider))
			fmt.Fprintf(cmd.ErrOrStderr(), "serving on http://%s\n", srv.Addr())

			<-cmd.Context().Done()

			shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdown)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&publicURL, "url", "", "public URL advertised in the agent card")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run as an MCP server (stdio by default)",
		Long: `Exposes the analyze_idea, run_stage and quick_feedback tools over the Model
Context Protocol. Uses stdio unless --http is given, in which case the
streamable HTTP transport is served on that address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, reg, err := a.pipeline()
			if err != nil {
				return err
			}
			server := mcptools.NewServer(mcptools.NewAnalysisService(p, reg, a.logger))

			if httpAddr != "" {
				a.logger.Info("mcp server listening", zap.String("addr", httpAddr))
				return mcptools.RunHTTP(cmd.Context(), server, httpAddr)
			}
			return mcptools.RunStdio(cmd.Context(), server)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}
