package mcptools

// --- MCP tool types ---
// These tools are exposed when the binary runs as an MCP server
// (cofounder mcp) so an assistant can call the analysis pipeline directly.

// AnalyzeIdeaInput is the input for the analyze_idea MCP tool.
type AnalyzeIdeaInput struct {
	Idea string `json:"idea" jsonschema:"the startup idea to analyze"`
}

// AnalyzeIdeaOutput is the result of the analyze_idea MCP tool. On failure
// only the sections completed before the failing stage are set.
type AnalyzeIdeaOutput struct {
	Status            string `json:"status"` // "completed" or "failed"
	Message           string `json:"message,omitempty"`
	FailedStage       string `json:"failedStage,omitempty"`
	StrategyAnalysis  string `json:"strategy_analysis,omitempty"`
	TechnicalAnalysis string `json:"technical_analysis,omitempty"`
	MarketingStrategy string `json:"marketing_strategy,omitempty"`
	FinalReport       string `json:"final_report,omitempty"`
}

// RunStageInput is the input for the run_stage MCP tool.
type RunStageInput struct {
	Stage     string `json:"stage" jsonschema:"stage to run: strategy, technical or marketing"`
	Idea      string `json:"idea" jsonschema:"the startup idea"`
	Strategy  string `json:"strategy,omitempty" jsonschema:"prior business strategy analysis (technical and marketing stages)"`
	Technical string `json:"technical,omitempty" jsonschema:"prior technical plan (marketing stage only)"`
}

// RunStageOutput is the result of the run_stage MCP tool.
type RunStageOutput struct {
	Stage   string `json:"stage"`
	Status  string `json:"status"` // "completed" or "failed"
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// QuickFeedbackInput is the input for the quick_feedback MCP tool.
type QuickFeedbackInput struct {
	Kind       string `json:"kind" jsonschema:"feedback kind: strategy, technical or launch"`
	Idea       string `json:"idea" jsonschema:"the startup idea"`
	LaunchDate string `json:"launchDate,omitempty" jsonschema:"target launch date for kind=launch (default: in 3 months)"`
}

// QuickFeedbackOutput is the result of the quick_feedback MCP tool.
type QuickFeedbackOutput struct {
	Kind    string `json:"kind"`
	Status  string `json:"status"` // "completed" or "failed"
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}
