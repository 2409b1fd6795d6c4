// Package model abstracts customer-facing response phrasing. Specialists
// assemble a fully-formed draft reply from structured facts; a Responder may
// pass it through verbatim (deterministic, test-friendly) or hand it to an
// LLM provider for rephrasing. Coordination logic never depends on which.
package model

import (
	"context"
	"fmt"
)

// Info contains metadata about a responder implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "local", "anthropic", "openai"
}

// Responder turns a draft customer reply into the final wording.
type Responder interface {
	Respond(ctx context.Context, draft string) (string, error)

	// Info returns information about the responder implementation.
	Info() Info
}

// TemplateResponder returns drafts unchanged. It is the default responder:
// specialists already produce complete sentences, so pass-through keeps
// responses deterministic for tests and offline demos.
type TemplateResponder struct{}

// Respond implements Responder.
func (TemplateResponder) Respond(_ context.Context, draft string) (string, error) {
	return draft, nil
}

// Info implements Responder.
func (TemplateResponder) Info() Info {
	return Info{Name: "template", Provider: "local"}
}

// MockResponder maps drafts to canned replies, useful in tests that assert
// the responder was consulted.
type MockResponder struct {
	responses map[string]string
}

// NewMockResponder constructs an empty MockResponder.
func NewMockResponder() *MockResponder {
	return &MockResponder{responses: make(map[string]string)}
}

// AddResponse registers a deterministic canned reply for a draft.
func (m *MockResponder) AddResponse(draft, reply string) { m.responses[draft] = reply }

// Respond implements Responder; unknown drafts are an error so tests catch
// unexpected prompts.
func (m *MockResponder) Respond(_ context.Context, draft string) (string, error) {
	reply, ok := m.responses[draft]
	if !ok {
		return "", fmt.Errorf("no canned response for draft %q", draft)
	}
	return reply, nil
}

// Info implements Responder.
func (m *MockResponder) Info() Info {
	return Info{Name: "mock", Provider: "local"}
}
