// Package openai provides a Responder backed by the OpenAI Chat Completions
// API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/daisydq74/multi-agent-customer-service/model"
)

const systemPrompt = "You are a customer service assistant. Rewrite the " +
	"draft reply you are given into a short, polite customer-facing " +
	"message. Preserve every fact, id, and ticket reference exactly."

// Options configures the OpenAI responder.
type Options struct {
	Model  openai.ChatModel
	APIKey string
}

// Responder wraps the OpenAI Chat Completions API behind the
// model.Responder interface.
type Responder struct {
	client *openai.Client
	opts   Options
}

// NewResponder creates a new OpenAI responder using the official client.
func NewResponder(optFns ...func(o *Options)) *Responder {
	opts := Options{
		Model: openai.ChatModelGPT4o,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)

	return &Responder{client: &client, opts: opts}
}

// Respond implements model.Responder.
func (r *Responder) Respond(ctx context.Context, draft string) (string, error) {
	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: r.opts.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(draft),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai returned no text content")
	}
	return resp.Choices[0].Message.Content, nil
}

// Info implements model.Responder.
func (r *Responder) Info() model.Info {
	return model.Info{Name: string(r.opts.Model), Provider: "openai"}
}
