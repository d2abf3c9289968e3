package generator

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI generates text through the chat completions API of OpenAI or any
// OpenAI-compatible provider.
type OpenAI struct {
	provider string
	model    string
	client   openai.Client
}

// NewOpenAI creates a chat completions generator. An empty baseURL targets
// api.openai.com. The SDK's automatic retries are disabled so failures
// surface on the first attempt.
func NewOpenAI(provider, apiKey, model, baseURL string, extra ...option.RequestOption) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	return &OpenAI{
		provider: provider,
		model:    model,
		client:   openai.NewClient(opts...),
	}
}

// Generate sends the role as the system message and the instruction as the
// user message and returns the first choice verbatim.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.Role),
			openai.UserMessage(req.Instruction),
		},
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return "", o.fail(err)
	}
	if len(resp.Choices) == 0 {
		return "", o.fail(errors.New("empty choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) fail(err error) error {
	return &Error{Provider: o.provider, Model: o.model, Err: err}
}
