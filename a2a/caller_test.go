package a2a

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/daisydq74/multi-agent-customer-service/trace"
)

// testHandler is a scriptable agent for transport tests.
type testHandler struct {
	card     AgentCard
	handleFn func(ctx context.Context, msg Message) MessageResult
	calls    int
	mu       sync.Mutex
}

func newTestHandler(name string, capabilities []string, fn func(ctx context.Context, msg Message) MessageResult) *testHandler {
	if fn == nil {
		fn = func(_ context.Context, msg Message) MessageResult {
			return OkResult(msg, map[string]any{"text": "done"})
		}
	}
	return &testHandler{
		card:     AgentCard{Name: name, Version: "1.0", Capabilities: capabilities},
		handleFn: fn,
	}
}

func (h *testHandler) Card() AgentCard { return h.card }

func (h *testHandler) Handle(ctx context.Context, _ *trace.Log, msg Message) MessageResult {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	return h.handleFn(ctx, msg)
}

func (h *testHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func TestInMemoryCaller_Success(t *testing.T) {
	h := newTestHandler("CustomerData", []string{"fetchCustomer"}, nil)
	c := NewInMemoryCaller()
	c.Bind(h)
	log := trace.NewLog()

	res := c.Call(context.Background(), log, "Router", h.Card(), "fetchCustomer", map[string]any{"customer_id": 1}, time.Second)

	assert.True(t, res.OK())
	assert.Equal(t, 1, h.callCount())

	// Exactly two log entries per call: request at send, result at receipt.
	entries := log.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, trace.KindRequest, entries[0].Kind)
	assert.Equal(t, "Router", entries[0].From)
	assert.Equal(t, "CustomerData", entries[0].To)
	assert.Equal(t, trace.KindResult, entries[1].Kind)
	assert.Equal(t, "CustomerData", entries[1].From)
	assert.Equal(t, "Router", entries[1].To)
	assert.Equal(t, entries[0].MessageID, entries[1].MessageID)
	assert.Equal(t, res.ID, entries[0].MessageID)
}

func TestInMemoryCaller_CapabilityMismatchFailsFast(t *testing.T) {
	h := newTestHandler("CustomerData", []string{"fetchCustomer"}, nil)
	c := NewInMemoryCaller()
	c.Bind(h)
	log := trace.NewLog()

	res := c.Call(context.Background(), log, "Router", h.Card(), "craftResponse", nil, time.Second)

	assert.False(t, res.OK())
	assert.Equal(t, CodeCapabilityMismatch, res.ErrorCode)
	// The handler is never invoked; the failure is still fully logged.
	assert.Equal(t, 0, h.callCount())
	assert.Equal(t, 2, log.Len())
}

func TestInMemoryCaller_Timeout(t *testing.T) {
	h := newTestHandler("CustomerData", []string{"fetchCustomer"}, func(ctx context.Context, msg Message) MessageResult {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return OkResult(msg, nil)
	})
	c := NewInMemoryCaller()
	c.Bind(h)
	log := trace.NewLog()

	start := time.Now()
	res := c.Call(context.Background(), log, "Router", h.Card(), "fetchCustomer", nil, 30*time.Millisecond)

	assert.False(t, res.OK())
	assert.Equal(t, CodeTimeout, res.ErrorCode)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 2, log.Len())
}

func TestInMemoryCaller_TimeoutDoesNotBlockSiblings(t *testing.T) {
	slow := newTestHandler("Slow", []string{"act"}, func(ctx context.Context, msg Message) MessageResult {
		<-ctx.Done()
		return OkResult(msg, nil)
	})
	fast := newTestHandler("Fast", []string{"act"}, nil)
	c := NewInMemoryCaller()
	c.Bind(slow)
	c.Bind(fast)
	log := trace.NewLog()

	var wg sync.WaitGroup
	var slowRes, fastRes MessageResult
	wg.Add(2)
	go func() {
		defer wg.Done()
		slowRes = c.Call(context.Background(), log, "Router", slow.Card(), "act", nil, 50*time.Millisecond)
	}()
	var fastDur time.Duration
	go func() {
		defer wg.Done()
		start := time.Now()
		fastRes = c.Call(context.Background(), log, "Router", fast.Card(), "act", nil, time.Second)
		fastDur = time.Since(start)
	}()
	wg.Wait()

	assert.Equal(t, CodeTimeout, slowRes.ErrorCode)
	assert.True(t, fastRes.OK())
	// The fast call completes without waiting for the slow one's deadline.
	assert.Less(t, fastDur, 50*time.Millisecond)
	assert.Equal(t, 4, log.Len())
}

func TestInMemoryCaller_UnboundHandler(t *testing.T) {
	c := NewInMemoryCaller()
	log := trace.NewLog()
	card := AgentCard{Name: "Ghost", Capabilities: []string{"act"}}

	res := c.Call(context.Background(), log, "Router", card, "act", nil, time.Second)

	assert.Equal(t, CodeUnreachable, res.ErrorCode)
	assert.Equal(t, 2, log.Len())
}

func TestInMemoryCaller_IDMismatchIsProtocolError(t *testing.T) {
	h := newTestHandler("CustomerData", []string{"fetchCustomer"}, func(_ context.Context, msg Message) MessageResult {
		return MessageResult{ID: "bogus", Status: StatusOK}
	})
	c := NewInMemoryCaller()
	c.Bind(h)
	log := trace.NewLog()

	res := c.Call(context.Background(), log, "Router", h.Card(), "fetchCustomer", nil, time.Second)

	assert.Equal(t, CodeProtocolError, res.ErrorCode)
	assert.Equal(t, 2, log.Len())
}
