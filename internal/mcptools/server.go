package mcptools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with the analyze_idea, run_stage and
// quick_feedback tools registered.
func NewServer(svc *AnalysisService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "cofounder",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_idea",
		Description: "Run the full co-founder analysis of a startup idea: business strategy, then technical plan, then marketing strategy, then a compiled final report. Each stage builds on the previous ones.",
	}, svc.AnalyzeIdea)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_stage",
		Description: "Run a single analysis stage (strategy, technical or marketing). Optionally pass earlier strategy and technical outputs as context.",
	}, svc.RunStage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "quick_feedback",
		Description: "Get a short answer from one agent: kind=strategy for strategic feedback, kind=technical for a feasibility assessment, kind=launch for a launch campaign plan.",
	}, svc.QuickFeedback)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves the MCP server over the streamable HTTP transport.
func HTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)
}

// RunHTTP serves the MCP server on addr until ctx is cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: HTTPHandler(server),
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
