// Package anthropic provides a Responder backed by the Anthropic Claude API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/daisydq74/multi-agent-customer-service/model"
)

const systemPrompt = "You are a customer service assistant. Rewrite the " +
	"draft reply you are given into a short, polite customer-facing " +
	"message. Preserve every fact, id, and ticket reference exactly."

// Options configures the Anthropic responder (model id, max tokens, API
// key). Extend via functional options to preserve stability.
type Options struct {
	Model     anthropic.Model
	MaxTokens int64
	APIKey    string
}

// Responder wraps the Anthropic Messages API behind the model.Responder
// interface.
type Responder struct {
	client *anthropic.Client
	opts   Options
}

// NewResponder creates a new Anthropic responder using the official client.
func NewResponder(optFns ...func(o *Options)) *Responder {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 1024,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Responder{client: &client, opts: opts}
}

// Respond implements model.Responder.
func (r *Responder) Respond(ctx context.Context, draft string) (string, error) {
	resp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     r.opts.Model,
		MaxTokens: r.opts.MaxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(draft)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text content")
	}
	return b.String(), nil
}

// Info implements model.Responder.
func (r *Responder) Info() model.Info {
	return model.Info{Name: string(r.opts.Model), Provider: "anthropic"}
}
