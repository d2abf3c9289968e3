package agent

import (
	"context"
	"fmt"
	"slices"

	"github.com/dusk-indust/cofounder/internal/generator"
	"github.com/dusk-indust/cofounder/internal/prompts"
)

// Stage is one analysis step bound to a generator.
type Stage struct {
	role        Role
	persona     string
	gen         generator.Generator
	temperature float64
}

// reads lists the prior roles each stage consumes.
var reads = map[Role][]Role{
	RoleStrategy:  nil,
	RoleTechnical: {RoleStrategy},
	RoleMarketing: {RoleStrategy, RoleTechnical},
}

// NewStage creates the stage for role.
func NewStage(role Role, gen generator.Generator, temperature float64) (*Stage, error) {
	if _, ok := reads[role]; !ok {
		return nil, fmt.Errorf("unknown stage role %q", role)
	}
	if gen == nil {
		return nil, fmt.Errorf("stage %s: generator is nil", role)
	}
	persona, err := prompts.Persona(string(role))
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", role, err)
	}
	return &Stage{
		role:        role,
		persona:     persona,
		gen:         gen,
		temperature: temperature,
	}, nil
}

// Role returns the stage's role.
func (s *Stage) Role() Role { return s.role }

// Temperature returns the sampling temperature the stage requests.
func (s *Stage) Temperature() float64 { return s.temperature }

// Instruction builds the user instruction for idea and the given prior
// outputs. The template is chosen by which prior roles are present.
func (s *Stage) Instruction(idea string, prior []Context) (string, error) {
	have := make(map[Role]string, len(prior))
	for _, c := range prior {
		if !slices.Contains(reads[s.role], c.Role) {
			return "", fmt.Errorf("%w: %s stage does not read %q output", ErrUnexpectedContext, s.role, c.Role)
		}
		if _, dup := have[c.Role]; dup {
			return "", fmt.Errorf("%w: %q output given twice", ErrUnexpectedContext, c.Role)
		}
		have[c.Role] = c.Text
	}

	strategy, hasStrategy := have[RoleStrategy]
	technical, hasTechnical := have[RoleTechnical]

	var name string
	switch s.role {
	case RoleStrategy:
		name = prompts.StrategyStandalone
	case RoleTechnical:
		name = prompts.TechnicalStandalone
		if hasStrategy {
			name = prompts.TechnicalCollaborative
		}
	case RoleMarketing:
		switch {
		case hasStrategy && hasTechnical:
			name = prompts.MarketingFull
		case hasStrategy:
			name = prompts.MarketingStrategyOnly
		case hasTechnical:
			name = prompts.MarketingTechnicalOnly
		default:
			name = prompts.MarketingStandalone
		}
	}

	return prompts.Render(name, prompts.Data{
		Idea:      idea,
		Strategy:  strategy,
		Technical: technical,
	})
}

// Run builds the instruction and makes one generator call. The generated
// text is returned unmodified. The idea is not validated here.
func (s *Stage) Run(ctx context.Context, idea string, prior []Context) (string, error) {
	instruction, err := s.Instruction(idea, prior)
	if err != nil {
		return "", fmt.Errorf("%s stage: %w", s.role, err)
	}
	return s.generate(ctx, instruction)
}

func (s *Stage) generate(ctx context.Context, instruction string) (string, error) {
	text, err := s.gen.Generate(ctx, generator.Request{
		Role:        s.persona,
		Instruction: instruction,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s stage: %w", s.role, err)
	}
	return text, nil
}
