package generator

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Gemini generates text with Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator. httpOpts overrides the transport
// settings, such as the base URL.
func NewGemini(ctx context.Context, apiKey, model string, httpOpts ...genai.HTTPOptions) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is required", ErrConfig)
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if len(httpOpts) > 0 {
		cfg.HTTPOptions = httpOpts[0]
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate sends the instruction with the role as system instruction and
// returns the first candidate's text verbatim.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(req.Instruction),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.Role, genai.RoleUser),
			Temperature:       genai.Ptr(float32(req.Temperature)),
		},
	)
	if err != nil {
		return "", g.fail(err)
	}
	if len(resp.Candidates) == 0 {
		return "", g.fail(errors.New("no candidates"))
	}
	return resp.Text(), nil
}

func (g *Gemini) fail(err error) error {
	return &Error{Provider: "gemini", Model: g.model, Err: err}
}
