package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dusk-indust/cofounder/internal/agent"
	"github.com/dusk-indust/cofounder/internal/logging"
	"github.com/dusk-indust/cofounder/internal/orchestrator"
)

const (
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// Quick feedback kinds.
const (
	KindStrategy  = "strategy"
	KindTechnical = "technical"
	KindLaunch    = "launch"
)

// Analyzer runs a full analysis. *orchestrator.Pipeline satisfies it.
type Analyzer interface {
	Run(ctx context.Context, idea string) (*orchestrator.Result, error)
}

// AnalysisService handles MCP tool calls. Pipeline failures are reported in
// the tool output with status "failed"; malformed input is a tool error.
type AnalysisService struct {
	analyzer Analyzer
	registry *agent.Registry
	logger   *zap.Logger
}

// NewAnalysisService creates an AnalysisService. The registry backs run_stage
// and quick_feedback; the analyzer backs analyze_idea.
func NewAnalysisService(analyzer Analyzer, registry *agent.Registry, logger *zap.Logger) *AnalysisService {
	return &AnalysisService{
		analyzer: analyzer,
		registry: registry,
		logger:   logging.OrNop(logger),
	}
}

// AnalyzeIdea runs the full pipeline.
func (s *AnalysisService) AnalyzeIdea(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnalyzeIdeaInput,
) (*mcp.CallToolResult, AnalyzeIdeaOutput, error) {
	res, err := s.analyzer.Run(ctx, input.Idea)
	if errors.Is(err, orchestrator.ErrInvalidInput) {
		return nil, AnalyzeIdeaOutput{}, err
	}
	if err != nil {
		s.logger.Warn("analyze_idea failed", zap.Error(err))
		out := AnalyzeIdeaOutput{Status: statusFailed, Message: err.Error()}
		var runErr *orchestrator.RunError
		if errors.As(err, &runErr) {
			out.FailedStage = string(runErr.Key)
			out.StrategyAnalysis = runErr.Partial[orchestrator.ResultStrategy]
			out.TechnicalAnalysis = runErr.Partial[orchestrator.ResultTechnical]
			out.MarketingStrategy = runErr.Partial[orchestrator.ResultMarketing]
		}
		return nil, out, nil
	}

	return nil, AnalyzeIdeaOutput{
		Status:            statusCompleted,
		StrategyAnalysis:  res.StrategyAnalysis,
		TechnicalAnalysis: res.TechnicalAnalysis,
		MarketingStrategy: res.MarketingStrategy,
		FinalReport:       res.FinalReport,
	}, nil
}

// RunStage runs one stage on its own with whatever prior outputs the caller
// supplies. The stage picks its instruction template from the priors given.
func (s *AnalysisService) RunStage(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunStageInput,
) (*mcp.CallToolResult, RunStageOutput, error) {
	role := agent.Role(strings.ToLower(strings.TrimSpace(input.Stage)))
	stage, err := s.registry.Stage(role)
	if err != nil {
		return nil, RunStageOutput{
			Stage:   input.Stage,
			Status:  statusFailed,
			Message: fmt.Sprintf("stage must be strategy, technical or marketing, got %q", input.Stage),
		}, fmt.Errorf("invalid stage: %q", input.Stage)
	}

	var prior []agent.Context
	if input.Strategy != "" {
		prior = append(prior, agent.Context{Role: agent.RoleStrategy, Text: input.Strategy})
	}
	if input.Technical != "" {
		prior = append(prior, agent.Context{Role: agent.RoleTechnical, Text: input.Technical})
	}
	if _, err := stage.Instruction(input.Idea, prior); err != nil {
		return nil, RunStageOutput{Stage: string(role), Status: statusFailed, Message: err.Error()}, err
	}

	text, err := stage.Run(ctx, input.Idea, prior)
	if err != nil {
		s.logger.Warn("run_stage failed", zap.String("stage", string(role)), zap.Error(err))
		return nil, RunStageOutput{Stage: string(role), Status: statusFailed, Message: err.Error()}, nil
	}
	return nil, RunStageOutput{Stage: string(role), Status: statusCompleted, Text: text}, nil
}

// QuickFeedback runs one of the single-call helpers.
func (s *AnalysisService) QuickFeedback(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QuickFeedbackInput,
) (*mcp.CallToolResult, QuickFeedbackOutput, error) {
	kind := strings.ToLower(strings.TrimSpace(input.Kind))

	var run func(*agent.Stage) (string, error)
	var role agent.Role
	switch kind {
	case KindStrategy:
		role = agent.RoleStrategy
		run = func(st *agent.Stage) (string, error) { return st.QuickFeedback(ctx, input.Idea) }
	case KindTechnical:
		role = agent.RoleTechnical
		run = func(st *agent.Stage) (string, error) { return st.QuickTechAssessment(ctx, input.Idea) }
	case KindLaunch:
		role = agent.RoleMarketing
		run = func(st *agent.Stage) (string, error) { return st.LaunchCampaign(ctx, input.Idea, input.LaunchDate) }
	default:
		return nil, QuickFeedbackOutput{
			Kind:    input.Kind,
			Status:  statusFailed,
			Message: fmt.Sprintf("kind must be strategy, technical or launch, got %q", input.Kind),
		}, fmt.Errorf("invalid kind: %q", input.Kind)
	}

	stage, err := s.registry.Stage(role)
	if err != nil {
		return nil, QuickFeedbackOutput{}, err
	}
	text, err := run(stage)
	if err != nil {
		s.logger.Warn("quick_feedback failed", zap.String("kind", kind), zap.Error(err))
		return nil, QuickFeedbackOutput{Kind: kind, Status: statusFailed, Message: err.Error()}, nil
	}
	return nil, QuickFeedbackOutput{Kind: kind, Status: statusCompleted, Text: text}, nil
}
