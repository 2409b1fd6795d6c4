package a2a

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Status is the terminal disposition of a message exchange.
type Status string

const (
	// StatusOK marks a successful result carrying a payload.
	StatusOK Status = "ok"
	// StatusError marks a failed result carrying an error code and detail.
	StatusError Status = "error"
)

// ErrorCode classifies every way a coordination call can fail. Specialist
// validation failures and transport faults alike travel as codes on a
// MessageResult, never as raw transport errors.
type ErrorCode string

const (
	// CodeUnknownAgent means no card is registered under the requested name.
	CodeUnknownAgent ErrorCode = "UnknownAgent"
	// CodeCapabilityMismatch means the action is absent from the target
	// card's capability set; the call is never attempted over the network.
	CodeCapabilityMismatch ErrorCode = "CapabilityMismatch"
	// CodeTimeout means the per-hop deadline elapsed before a response.
	CodeTimeout ErrorCode = "Timeout"
	// CodeUnreachable means the endpoint could not be reached or answered
	// with a non-success transport status.
	CodeUnreachable ErrorCode = "Unreachable"
	// CodeProtocolError means the response was malformed or violated the
	// wire contract (bad JSON, id mismatch, JSON-RPC error member).
	CodeProtocolError ErrorCode = "ProtocolError"
	// CodeValidationError means a specialist rejected the arguments before
	// touching its downstream tool surface.
	CodeValidationError ErrorCode = "ValidationError"
	// CodeNotFound means the downstream tool surface has no such record.
	CodeNotFound ErrorCode = "NotFound"
	// CodeUnknownAction means the target agent does not implement the
	// requested action even though its card advertised it.
	CodeUnknownAction ErrorCode = "UnknownAction"
	// CodeNegotiationExhausted means a task hit the negotiation retry bound
	// without reaching a usable result.
	CodeNegotiationExhausted ErrorCode = "NegotiationExhausted"
	// CodeQueryTimeout means the whole-query wall-clock ceiling elapsed.
	CodeQueryTimeout ErrorCode = "QueryTimeout"
	// CodePartialFailure means a non-critical task failed and the response
	// was degraded rather than the query failed.
	CodePartialFailure ErrorCode = "PartialFailure"
)

// ErrUnknownAgent is returned by Registry.Resolve for unregistered names.
var ErrUnknownAgent = fmt.Errorf("a2a: unknown agent")

// Message is one typed request between two agents. ID is unique per call and
// correlates the eventual MessageResult.
type Message struct {
	ID        string         `json:"id"`
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient"`
	Action    string         `json:"action"`
	Args      map[string]any `json:"args,omitempty"`
}

// NewMessage constructs a message with a fresh correlation ID.
func NewMessage(sender, recipient, action string, args map[string]any) Message {
	return Message{
		ID:        uuid.New().String(),
		Sender:    sender,
		Recipient: recipient,
		Action:    action,
		Args:      args,
	}
}

// MessageResult is the single terminal value every Message produces. A timed
// out or failed transport call yields a synthetic error result with the
// matching code; the ID always equals the originating message's ID.
type MessageResult struct {
	ID          string         `json:"id"`
	Status      Status         `json:"status"`
	Payload     map[string]any `json:"payload,omitempty"`
	ErrorCode   ErrorCode      `json:"error_code,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// OK reports whether the result completed successfully.
func (r MessageResult) OK() bool { return r.Status == StatusOK }

// OkResult builds a successful result correlated to msg.
func OkResult(msg Message, payload map[string]any) MessageResult {
	return MessageResult{ID: msg.ID, Status: StatusOK, Payload: payload}
}

// ErrorResult builds a failed result correlated to msg.
func ErrorResult(msg Message, code ErrorCode, detail string) MessageResult {
	return MessageResult{ID: msg.ID, Status: StatusError, ErrorCode: code, ErrorDetail: detail}
}

// Summary renders a short, stable description of the result for the
// conversation log. Payloads are reduced to sorted keys plus a text preview
// so log entries stay one line.
func (r MessageResult) Summary() string {
	if r.Status == StatusError {
		return fmt.Sprintf("%s: %s", r.ErrorCode, r.ErrorDetail)
	}
	if len(r.Payload) == 0 {
		return "ok"
	}
	if text, ok := r.Payload["text"].(string); ok && len(r.Payload) == 1 {
		return truncate(text, 120)
	}
	keys := make([]string, 0, len(r.Payload))
	for k := range r.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "ok keys=[" + strings.Join(keys, ",") + "]"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// NeedsContext is the structured negotiation signal a specialist attaches to
// an otherwise-ok result when it cannot finish alone. It names the missing
// fact, the agent/action able to supply it, and the argument key the
// orchestrator should merge the fact under before re-dispatching.
type NeedsContext struct {
	Fact   string         `json:"fact"`
	Agent  string         `json:"agent"`
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
	Into   string         `json:"into"`
}

const needsContextKey = "needs_context"

// WithNeedsContext attaches the negotiation signal to a payload.
func WithNeedsContext(payload map[string]any, nc NeedsContext) map[string]any {
	if payload == nil {
		payload = map[string]any{}
	}
	payload[needsContextKey] = nc
	return payload
}

// NeedsContextFrom extracts a negotiation signal from a result, handling
// both in-process typed values and JSON-decoded maps.
func NeedsContextFrom(r MessageResult) (NeedsContext, bool) {
	raw, ok := r.Payload[needsContextKey]
	if !ok {
		return NeedsContext{}, false
	}
	switch v := raw.(type) {
	case NeedsContext:
		return v, true
	case *NeedsContext:
		return *v, true
	case map[string]any:
		// Round-trip through JSON to cope with results that crossed the
		// wire.
		b, err := json.Marshal(v)
		if err != nil {
			return NeedsContext{}, false
		}
		var nc NeedsContext
		if err := json.Unmarshal(b, &nc); err != nil {
			return NeedsContext{}, false
		}
		return nc, nc.Fact != ""
	default:
		return NeedsContext{}, false
	}
}
