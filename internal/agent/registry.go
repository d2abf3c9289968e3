package agent

import (
	"fmt"

	"github.com/dusk-indust/cofounder/internal/config"
	"github.com/dusk-indust/cofounder/internal/generator"
)

// Temperatures are the per-stage sampling temperatures.
type Temperatures struct {
	Strategy  float64
	Technical float64
	Marketing float64
}

// DefaultTemperatures returns 0.7 for strategy and technical, 0.8 for
// marketing.
func DefaultTemperatures() Temperatures {
	return Temperatures{
		Strategy:  config.DefaultStrategyTemperature,
		Technical: config.DefaultTechnicalTemperature,
		Marketing: config.DefaultMarketingTemperature,
	}
}

// TemperaturesFrom resolves configured temperatures, filling in defaults.
func TemperaturesFrom(cfg config.Temperatures) Temperatures {
	s, t, m := cfg.Resolved()
	return Temperatures{Strategy: s, Technical: t, Marketing: m}
}

func (t Temperatures) forRole(role Role) float64 {
	switch role {
	case RoleTechnical:
		return t.Technical
	case RoleMarketing:
		return t.Marketing
	default:
		return t.Strategy
	}
}

// Registry builds stages bound to one generator and one set of temperatures.
// Stages are stateless, so a Registry and its stages may be shared by
// concurrent runs.
type Registry struct {
	gen   generator.Generator
	temps Temperatures
}

// NewRegistry creates a Registry.
func NewRegistry(gen generator.Generator, temps Temperatures) (*Registry, error) {
	if gen == nil {
		return nil, fmt.Errorf("registry: generator is nil")
	}
	return &Registry{gen: gen, temps: temps}, nil
}

// Stage builds the stage for role.
func (r *Registry) Stage(role Role) (*Stage, error) {
	return NewStage(role, r.gen, r.temps.forRole(role))
}

// Stages returns the strategy, technical and marketing stages in pipeline
// order.
func (r *Registry) Stages() (strategy, technical, marketing *Stage, err error) {
	if strategy, err = r.Stage(RoleStrategy); err != nil {
		return nil, nil, nil, err
	}
	if technical, err = r.Stage(RoleTechnical); err != nil {
		return nil, nil, nil, err
	}
	if marketing, err = r.Stage(RoleMarketing); err != nil {
		return nil, nil, nil, err
	}
	return strategy, technical, marketing, nil
}
