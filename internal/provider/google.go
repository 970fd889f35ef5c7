package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Compile-time check.
var _ Provider = (*Google)(nil)

// Google calls the Gemini API. The client is created per call because the
// genai SDK binds its transport to a context at construction time.
type Google struct {
	apiKey string
}

// NewGoogle creates a Google (Gemini) provider using the given API key.
func NewGoogle(apiKey string) *Google {
	return &Google{apiKey: apiKey}
}

func (g *Google) Name() string { return VendorGoogle }

func (g *Google) Generate(ctx context.Context, req Request) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", classifyNetwork(VendorGoogle, err)
	}
	defer client.Close()

	model := client.GenerativeModel(req.Model)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	model.SetTemperature(float32(req.Temperature))
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return "", classifyStatus(VendorGoogle, gerr.Code, err)
		}
		return "", classifyNetwork(VendorGoogle, err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	if b.Len() == 0 {
		return "", &PermanentError{Vendor: VendorGoogle, Err: fmt.Errorf("empty completion")}
	}
	return b.String(), nil
}
