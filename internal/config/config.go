package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the config file.
const (
	EnvProvider = "COFOUNDER_PROVIDER"
	EnvModel    = "COFOUNDER_MODEL"
)

// Default per-stage creativity settings. Strategy and technical analysis run
// cooler than the marketing plan.
const (
	DefaultStrategyTemperature  = 0.7
	DefaultTechnicalTemperature = 0.7
	DefaultMarketingTemperature = 0.8
)

// ProjectConfig holds settings loaded from cofounder.yml.
type ProjectConfig struct {
	LLM          LLMConfig    `yaml:"llm,omitempty"`
	Temperatures Temperatures `yaml:"temperatures,omitempty"`
	OutputDir    string       `yaml:"outputDir,omitempty"`
	Timeout      Duration     `yaml:"timeout,omitempty"`
	Concurrency  int          `yaml:"concurrency,omitempty"`
	Verbose      bool         `yaml:"verbose,omitempty"`
}

// LLMConfig selects and configures the text generator.
type LLMConfig struct {
	Provider  string `yaml:"provider,omitempty"`
	Model     string `yaml:"model,omitempty"`
	APIKeyEnv string `yaml:"apiKeyEnv,omitempty"`
	BaseURL   string `yaml:"baseURL,omitempty"`
	// Endpoint is the remote agent URL used by the "a2a" provider.
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Temperatures are the per-stage sampling temperatures. A nil field means
// "use the default".
type Temperatures struct {
	Strategy  *float64 `yaml:"strategy,omitempty"`
	Technical *float64 `yaml:"technical,omitempty"`
	Marketing *float64 `yaml:"marketing,omitempty"`
}

// Duration is a time.Duration that unmarshals from strings like "90s".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the configuration used when no config file exists.
func Default() *ProjectConfig {
	return &ProjectConfig{
		LLM: LLMConfig{
			Provider: "groq",
			Model:    "llama-3.3-70b-versatile",
		},
		OutputDir:   "cofounder-output",
		Timeout:     Duration(5 * time.Minute),
		Concurrency: 2,
	}
}

// Load attempts to read cofounder.yml or cofounder.yaml from the given
// directory and overlays it on Default. Returns the defaults (not an error) if
// no config file exists. Environment overrides are applied last.
func Load(dir string) (*ProjectConfig, error) {
	cfg := Default()
	for _, name := range []string{"cofounder.yml", "cofounder.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		break
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *ProjectConfig) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvProvider)); v != "" {
		c.LLM.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		c.LLM.Model = v
	}
}

// Resolved returns the per-stage temperatures with defaults filled in.
func (t Temperatures) Resolved() (strategy, technical, marketing float64) {
	strategy, technical, marketing = DefaultStrategyTemperature, DefaultTechnicalTemperature, DefaultMarketingTemperature
	if t.Strategy != nil {
		strategy = *t.Strategy
	}
	if t.Technical != nil {
		technical = *t.Technical
	}
	if t.Marketing != nil {
		marketing = *t.Marketing
	}
	return strategy, technical, marketing
}

// APIKey resolves the credential for the configured provider from the
// environment. The variable name defaults per provider.
func (l LLMConfig) APIKey() string {
	name := l.KeyEnv()
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// KeyEnv returns the name of the environment variable holding the API key.
func (l LLMConfig) KeyEnv() string {
	if l.APIKeyEnv != "" {
		return l.APIKeyEnv
	}
	return defaultKeyEnv(l.Provider)
}

func defaultKeyEnv(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return "OPENAI_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	case "deepseek":
		return "DEEPSEEK_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// Marshal renders the config as YAML, used by "cofounder init".
func (c *ProjectConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
