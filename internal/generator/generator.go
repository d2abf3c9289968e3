// Package generator provides the text generators the analysis stages call:
// OpenAI-compatible chat completions, Gemini, a remote A2A agent, and an
// offline echo generator.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/cofounder/internal/a2a"
	"github.com/dusk-indust/cofounder/internal/config"
)

// Request is one text generation call.
type Request struct {
	// Role is the system role description the model answers as.
	Role string
	// Instruction is the user instruction.
	Instruction string
	// Temperature is the sampling temperature forwarded to the model.
	Temperature float64
}

// Generator produces text for a request. Implementations are safe for
// concurrent use. The generated text is returned as the provider sent it,
// empty text included; only a response with no result at all (no choices,
// no candidates, no artifacts) is a failure.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Sentinel errors.
var (
	// ErrGeneration matches every failure returned by a Generator.
	ErrGeneration = errors.New("generation failed")
	// ErrConfig is returned by New for unusable provider settings.
	ErrConfig = errors.New("invalid generator configuration")
)

// Error is a generation failure annotated with the provider and model.
type Error struct {
	Provider string
	Model    string
	Err      error
}

func (e *Error) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Model, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is ErrGeneration.
func (e *Error) Is(target error) bool { return target == ErrGeneration }

// Base URLs of the OpenAI-compatible providers.
const (
	GroqBaseURL     = "https://api.groq.com/openai/v1"
	DeepSeekBaseURL = "https://api.deepseek.com"
)

// New builds the generator selected by cfg.Provider: openai, groq, deepseek,
// compatible (any OpenAI-compatible endpoint at cfg.BaseURL), gemini, a2a or
// echo.
func New(cfg config.LLMConfig) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	switch provider {
	case "echo":
		return Echo{}, nil

	case "a2a":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("%w: provider a2a requires llm.endpoint", ErrConfig)
		}
		return NewRemote(a2a.NewHTTPClient(), cfg.Endpoint), nil

	case "openai", "groq", "deepseek", "compatible":
		if cfg.Model == "" {
			return nil, fmt.Errorf("%w: provider %s requires llm.model", ErrConfig, provider)
		}
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("%w: no API key for provider %s (set %s)", ErrConfig, provider, keyEnvHint(cfg))
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			switch provider {
			case "groq":
				baseURL = GroqBaseURL
			case "deepseek":
				baseURL = DeepSeekBaseURL
			case "compatible":
				return nil, fmt.Errorf("%w: provider compatible requires llm.baseURL", ErrConfig)
			}
		}
		return NewOpenAI(provider, key, cfg.Model, baseURL), nil

	case "gemini":
		if cfg.Model == "" {
			return nil, fmt.Errorf("%w: provider gemini requires llm.model", ErrConfig)
		}
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("%w: no API key for provider gemini (set %s)", ErrConfig, keyEnvHint(cfg))
		}
		return NewGemini(context.Background(), key, cfg.Model)

	case "":
		return nil, fmt.Errorf("%w: llm.provider is required", ErrConfig)

	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrConfig, cfg.Provider)
	}
}

func keyEnvHint(cfg config.LLMConfig) string {
	if name := cfg.KeyEnv(); name != "" {
		return name
	}
	return "llm.apiKeyEnv"
}
