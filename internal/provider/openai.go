package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// xaiBaseURL is the Grok endpoint; it speaks the OpenAI chat-completions
// protocol, so the same client serves both vendors.
const xaiBaseURL = "https://api.x.ai/v1"

// Compile-time check.
var _ Provider = (*OpenAI)(nil)

// OpenAI calls a chat-completions endpoint. The xai variant reuses this
// implementation with a different base URL and vendor name.
type OpenAI struct {
	name   string
	client openai.Client
}

// NewOpenAI creates an OpenAI provider using the given API key.
func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		name:   VendorOpenAI,
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}
}

// NewXAI creates an xAI (Grok) provider speaking the OpenAI-compatible
// protocol against the x.ai endpoint.
func NewXAI(apiKey string) *OpenAI {
	return &OpenAI{
		name: VendorXAI,
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(xaiBaseURL),
		),
	}
}

func (o *OpenAI) Name() string { return o.name }

// Generate sends a system + user message pair and returns the first choice.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return "", classifyStatus(o.name, apierr.StatusCode, err)
		}
		return "", classifyNetwork(o.name, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &PermanentError{Vendor: o.name, Err: fmt.Errorf("empty completion")}
	}
	return resp.Choices[0].Message.Content, nil
}
