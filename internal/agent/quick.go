package agent

import (
	"context"
	"fmt"

	"github.com/dusk-indust/cofounder/internal/prompts"
)

// DefaultLaunchDate is used by LaunchCampaign when no date is given.
const DefaultLaunchDate = "in 3 months"

// QuickFeedback asks the strategy persona for a few sentences on viability,
// opportunity and the main risk. It requires a strategy stage.
func (s *Stage) QuickFeedback(ctx context.Context, idea string) (string, error) {
	return s.quick(ctx, RoleStrategy, prompts.QuickFeedback, prompts.Data{Idea: idea})
}

// QuickTechAssessment asks the technical persona for a short stack and
// timeline assessment. It requires a technical stage.
func (s *Stage) QuickTechAssessment(ctx context.Context, idea string) (string, error) {
	return s.quick(ctx, RoleTechnical, prompts.QuickTechAssessment, prompts.Data{Idea: idea})
}

// LaunchCampaign asks the marketing persona for a launch campaign plan. An
// empty launchDate means DefaultLaunchDate. It requires a marketing stage.
func (s *Stage) LaunchCampaign(ctx context.Context, idea, launchDate string) (string, error) {
	if launchDate == "" {
		launchDate = DefaultLaunchDate
	}
	return s.quick(ctx, RoleMarketing, prompts.QuickLaunchCampaign, prompts.Data{Idea: idea, LaunchDate: launchDate})
}

func (s *Stage) quick(ctx context.Context, want Role, template string, data prompts.Data) (string, error) {
	if s.role != want {
		return "", fmt.Errorf("%s stage cannot run %s", s.role, template)
	}
	instruction, err := prompts.Render(template, data)
	if err != nil {
		return "", err
	}
	return s.generate(ctx, instruction)
}
