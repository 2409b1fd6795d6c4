package a2a

import (
	"context"
	"sync"
	"time"

	"github.com/daisydq74/multi-agent-customer-service/trace"
)

// InMemoryCaller routes calls to handlers registered in the same process.
// It satisfies the exact same contract as the HTTP caller (capability
// fail-fast, per-hop timeout, two log entries per call) so orchestration
// logic is identical whether agents share a process or not. Used by tests
// and the in-process façade.
type InMemoryCaller struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewInMemoryCaller creates an empty in-process transport.
func NewInMemoryCaller() *InMemoryCaller {
	return &InMemoryCaller{handlers: make(map[string]Handler)}
}

// Bind attaches a handler under its card name.
func (c *InMemoryCaller) Bind(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[h.Card().Name] = h
}

// Call implements Caller.
func (c *InMemoryCaller) Call(ctx context.Context, log *trace.Log, sender string, card AgentCard, action string, args map[string]any, timeout time.Duration) MessageResult {
	return execute(ctx, log, sender, card, action, args, timeout, func(callCtx context.Context, msg Message) (MessageResult, error) {
		c.mu.RLock()
		h, ok := c.handlers[card.Name]
		c.mu.RUnlock()
		if !ok {
			return MessageResult{}, &dialError{name: card.Name}
		}

		// Run the handler in its own goroutine so a stuck handler cannot
		// outlive the hop deadline or block sibling concurrent calls.
		done := make(chan MessageResult, 1)
		go func() {
			done <- h.Handle(callCtx, log, msg)
		}()

		select {
		case res := <-done:
			return res, nil
		case <-callCtx.Done():
			return MessageResult{}, callCtx.Err()
		}
	})
}

type dialError struct {
	name string
}

func (e *dialError) Error() string { return "no handler bound for agent " + e.name }
