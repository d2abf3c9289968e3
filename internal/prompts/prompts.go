// Package prompts embeds the stage personas and instruction templates.
// Personas live in personas/<name>.md; instruction templates are named
// "<stage>/<variant>" blocks inside templates/*.tmpl.
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed personas/*.md
var personaFS embed.FS

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("prompts").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl"))

// Persona names.
const (
	PersonaStrategy  = "strategy"
	PersonaTechnical = "technical"
	PersonaMarketing = "marketing"
)

// Instruction template names.
const (
	StrategyStandalone     = "strategy/standalone"
	TechnicalCollaborative = "technical/collaborative"
	TechnicalStandalone    = "technical/standalone"
	MarketingFull          = "marketing/full"
	MarketingStrategyOnly  = "marketing/strategy-only"
	MarketingTechnicalOnly = "marketing/technical-only"
	MarketingStandalone    = "marketing/standalone"
	QuickFeedback          = "quick/feedback"
	QuickTechAssessment    = "quick/tech-assessment"
	QuickLaunchCampaign    = "quick/launch-campaign"
)

// Data is the input to an instruction template. Fields a template does not
// reference are ignored.
type Data struct {
	Idea       string
	Strategy   string
	Technical  string
	LaunchDate string
}

// Persona returns the system role description for name.
func Persona(name string) (string, error) {
	b, err := personaFS.ReadFile("personas/" + name + ".md")
	if err != nil {
		return "", fmt.Errorf("unknown persona %q", name)
	}
	return strings.TrimSpace(string(b)), nil
}

// Render executes the named instruction template.
func Render(name string, data Data) (string, error) {
	t := templates.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("unknown instruction template %q", name)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}

// Names returns every instruction template name.
func Names() []string {
	return []string{
		StrategyStandalone,
		TechnicalCollaborative,
		TechnicalStandalone,
		MarketingFull,
		MarketingStrategyOnly,
		MarketingTechnicalOnly,
		MarketingStandalone,
		QuickFeedback,
		QuickTechAssessment,
		QuickLaunchCampaign,
	}
}
