package router

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daisydq74/multi-agent-customer-service/a2a"
	"github.com/daisydq74/multi-agent-customer-service/agent"
	"github.com/daisydq74/multi-agent-customer-service/logging"
	"github.com/daisydq74/multi-agent-customer-service/trace"
)

// stubHandler is a scriptable agent for dispatch tests.
type stubHandler struct {
	card     a2a.AgentCard
	handleFn func(ctx context.Context, msg a2a.Message) a2a.MessageResult
	mu       sync.Mutex
	calls    int
}

func newStubHandler(name string, capabilities []string, fn func(ctx context.Context, msg a2a.Message) a2a.MessageResult) *stubHandler {
	if fn == nil {
		fn = func(_ context.Context, msg a2a.Message) a2a.MessageResult {
			return a2a.OkResult(msg, map[string]any{"text": "done"})
		}
	}
	return &stubHandler{
		card:     a2a.AgentCard{Name: name, Version: "1.0", Capabilities: capabilities},
		handleFn: fn,
	}
}

func (h *stubHandler) Card() a2a.AgentCard { return h.card }

func (h *stubHandler) Handle(ctx context.Context, _ *trace.Log, msg a2a.Message) a2a.MessageResult {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	return h.handleFn(ctx, msg)
}

func (h *stubHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// runPlan drives an execution over stub handlers and reconciles the outcome.
func runPlan(r *Router, p *plan) (*Outcome, *trace.Log) {
	log := trace.NewLog()
	exec := newExecution(r, logging.NoOpLogger{}, log, p)
	ctx := context.Background()
	exec.run(ctx)
	outcome := &Outcome{State: StateReconciling}
	r.reconcile(ctx, exec, outcome)
	outcome.Log = log.Entries()
	return outcome, log
}

func stubRouter(handlers ...*stubHandler) *Router {
	registry := a2a.NewRegistry()
	caller := a2a.NewInMemoryCaller()
	for _, h := range handlers {
		registry.Register(h.Card())
		caller.Bind(h)
	}
	return New(registry, caller)
}

func TestDispatch_DependentGatedOnFailedDependency(t *testing.T) {
	failing := newStubHandler(agent.NameData, []string{"a"},
		func(_ context.Context, msg a2a.Message) a2a.MessageResult {
			return a2a.ErrorResult(msg, a2a.CodeNotFound, "no such record")
		})
	dependent := newStubHandler(agent.NameSupport, []string{"b"}, nil)
	r := stubRouter(failing, dependent)

	p := &plan{
		tasks: []*Task{
			{ID: "t1", Agent: agent.NameData, Action: "a", Critical: false},
			{ID: "t2", Agent: agent.NameSupport, Action: "b", DependsOn: []string{"t1"}, Critical: true},
		},
		compose: func(map[string]a2a.MessageResult) string { return "unused" },
	}
	out, log := runPlan(r, p)

	// The dependent task never reaches the transport; it inherits the
	// dependency's error code.
	assert.Equal(t, 0, dependent.callCount())
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, a2a.CodeNotFound, out.FailureCode)
	assert.Equal(t, 2, log.Len())
}

func TestDispatch_IndependentTasksRunConcurrently(t *testing.T) {
	// Both handlers block until the other has been entered; the barrier
	// round must run them in parallel or this deadlocks past the hop
	// timeout and fails.
	entered := make(chan struct{}, 2)
	proceed := make(chan struct{})
	var once sync.Once

	blockUntilBoth := func(_ context.Context, msg a2a.Message) a2a.MessageResult {
		entered <- struct{}{}
		once.Do(func() {
			go func() {
				<-entered
				<-entered
				close(proceed)
			}()
		})
		<-proceed
		return a2a.OkResult(msg, map[string]any{"text": "done"})
	}

	h1 := newStubHandler(agent.NameData, []string{"a"}, blockUntilBoth)
	h2 := newStubHandler(agent.NameSupport, []string{"b"}, blockUntilBoth)
	r := stubRouter(h1, h2)

	p := &plan{
		tasks: []*Task{
			{ID: "t1", Agent: agent.NameData, Action: "a", Critical: true},
			{ID: "t2", Agent: agent.NameSupport, Action: "b", Critical: true},
		},
		compose: func(map[string]a2a.MessageResult) string { return "both done" },
	}
	out, _ := runPlan(r, p)

	assert.Equal(t, StateCompleted, out.State)
	assert.Equal(t, "both done", out.Response)
}

func TestDispatch_NonCriticalFailureDegrades(t *testing.T) {
	okHandler := newStubHandler(agent.NameData, []string{"a"}, nil)
	failHandler := newStubHandler(agent.NameSupport, []string{"b"},
		func(_ context.Context, msg a2a.Message) a2a.MessageResult {
			return a2a.ErrorResult(msg, a2a.CodeTimeout, "too slow")
		})
	r := stubRouter(okHandler, failHandler)

	p := &plan{
		tasks: []*Task{
			{ID: "main", Agent: agent.NameData, Action: "a", Critical: true},
			{ID: "extra", Agent: agent.NameSupport, Action: "b", Critical: false},
		},
		compose: func(results map[string]a2a.MessageResult) string {
			return results["main"].Payload["text"].(string)
		},
	}
	out, _ := runPlan(r, p)

	assert.Equal(t, StateCompleted, out.State)
	assert.Equal(t, a2a.CodePartialFailure, out.FailureCode)
	assert.Contains(t, out.Response, "done")
	assert.Contains(t, out.Response, "Some information was unavailable (extra).")
}

func TestDispatch_EnrichFoldsDependencyResults(t *testing.T) {
	producer := newStubHandler(agent.NameData, []string{"produce"},
		func(_ context.Context, msg a2a.Message) a2a.MessageResult {
			return a2a.OkResult(msg, map[string]any{"value": 41})
		})
	var got any
	consumer := newStubHandler(agent.NameSupport, []string{"consume"},
		func(_ context.Context, msg a2a.Message) a2a.MessageResult {
			got = msg.Args["input"]
			return a2a.OkResult(msg, map[string]any{"text": "consumed"})
		})
	r := stubRouter(producer, consumer)

	p := &plan{
		tasks: []*Task{
			{ID: "p", Agent: agent.NameData, Action: "produce", Critical: true},
			{
				ID: "c", Agent: agent.NameSupport, Action: "consume",
				Args:      map[string]any{},
				DependsOn: []string{"p"},
				Critical:  true,
				Enrich: func(deps map[string]a2a.MessageResult, args map[string]any) error {
					args["input"] = deps["p"].Payload["value"]
					return nil
				},
			},
		},
		compose: func(map[string]a2a.MessageResult) string { return "ok" },
	}
	out, _ := runPlan(r, p)

	assert.Equal(t, StateCompleted, out.State)
	assert.Equal(t, 41, got)
}

func TestDispatch_NegotiationRoundTrip(t *testing.T) {
	history := []map[string]any{{"id": 1, "issue": "outage"}}
	data := newStubHandler(agent.NameData, []string{agent.ActionFetchHistory},
		func(_ context.Context, msg a2a.Message) a2a.MessageResult {
			return a2a.OkResult(msg, map[string]any{"tickets": history})
		})
	support := newStubHandler(agent.NameSupport, []string{agent.ActionCraftResponse},
		func(_ context.Context, msg a2a.Message) a2a.MessageResult {
			if msg.Args["history"] == nil {
				return a2a.OkResult(msg, a2a.WithNeedsContext(nil, a2a.NeedsContext{
					Fact:   agent.FactTicketHistory,
					Agent:  agent.NameData,
					Action: agent.ActionFetchHistory,
					Args:   map[string]any{"customer_id": int64(2)},
					Into:   "history",
				}))
			}
			return a2a.OkResult(msg, map[string]any{"text": "with context"})
		})
	r := stubRouter(data, support)

	p := &plan{
		tasks: []*Task{{
			ID: "craft", Agent: agent.NameSupport, Action: agent.ActionCraftResponse,
			Args: map[string]any{"issue": "refund"}, Critical: true,
		}},
		compose: func(results map[string]a2a.MessageResult) string {
			return results["craft"].Payload["text"].(string)
		},
	}
	out, log := runPlan(r, p)

	assert.Equal(t, StateCompleted, out.State)
	assert.Equal(t, "with context", out.Response)
	// Signal dispatch, context hop, re-dispatch: three hops, six entries.
	assert.Equal(t, 2, support.callCount())
	assert.Equal(t, 1, data.callCount())
	assert.Equal(t, 6, log.Len())
}

func TestDispatch_NegotiationMergesSolePayloadValue(t *testing.T) {
	data := newStubHandler(agent.NameData, []string{agent.ActionFetchHistory},
		func(_ context.Context, msg a2a.Message) a2a.MessageResult {
			return a2a.OkResult(msg, map[string]any{"tickets": []any{"t"}})
		})
	var merged any
	support := newStubHandler(agent.NameSupport, []string{agent.ActionCraftResponse},
		func(_ context.Context, msg a2a.Message) a2a.MessageResult {
			if msg.Args["history"] == nil {
				return a2a.OkResult(msg, a2a.WithNeedsContext(nil, a2a.NeedsContext{
					Fact: agent.FactTicketHistory, Agent: agent.NameData,
					Action: agent.ActionFetchHistory, Into: "history",
				}))
			}
			merged = msg.Args["history"]
			return a2a.OkResult(msg, map[string]any{"text": "ok"})
		})
	r := stubRouter(data, support)

	p := &plan{
		tasks: []*Task{{
			ID: "craft", Agent: agent.NameSupport, Action: agent.ActionCraftResponse,
			Args: map[string]any{}, Critical: true,
		}},
		compose: func(map[string]a2a.MessageResult) string { return "ok" },
	}
	out, _ := runPlan(r, p)

	assert.Equal(t, StateCompleted, out.State)
	// A single-key context payload merges as its value, not the whole map.
	assert.Equal(t, []any{"t"}, merged)
}

func TestDispatch_NegotiationExhaustedFailsQuery(t *testing.T) {
	data := newStubHandler(agent.NameData, []string{agent.ActionFetchHistory}, nil)
	stubborn := newStubHandler(agent.NameSupport, []string{agent.ActionCraftResponse},
		func(_ context.Context, msg a2a.Message) a2a.MessageResult {
			// Always asks for more context, regardless of enrichment.
			return a2a.OkResult(msg, a2a.WithNeedsContext(nil, a2a.NeedsContext{
				Fact: agent.FactTicketHistory, Agent: agent.NameData,
				Action: agent.ActionFetchHistory, Into: "history",
			}))
		})
	r := stubRouter(data, stubborn)

	p := &plan{
		tasks: []*Task{{
			ID: "craft", Agent: agent.NameSupport, Action: agent.ActionCraftResponse,
			Args: map[string]any{}, Critical: true,
		}},
		compose: func(map[string]a2a.MessageResult) string { return "unused" },
	}
	out, _ := runPlan(r, p)

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, a2a.CodeNegotiationExhausted, out.FailureCode)
	// The budget bounds dispatches of the original task.
	assert.Equal(t, DefaultMaxNegotiations, stubborn.callCount())
}

func TestDispatch_ContextHopFailureSettlesTask(t *testing.T) {
	data := newStubHandler(agent.NameData, []string{agent.ActionFetchHistory},
		func(_ context.Context, msg a2a.Message) a2a.MessageResult {
			return a2a.ErrorResult(msg, a2a.CodeNotFound, "customer 999")
		})
	support := newStubHandler(agent.NameSupport, []string{agent.ActionCraftResponse},
		func(_ context.Context, msg a2a.Message) a2a.MessageResult {
			return a2a.OkResult(msg, a2a.WithNeedsContext(nil, a2a.NeedsContext{
				Fact: agent.FactTicketHistory, Agent: agent.NameData,
				Action: agent.ActionFetchHistory, Into: "history",
			}))
		})
	r := stubRouter(data, support)

	p := &plan{
		tasks: []*Task{{
			ID: "craft", Agent: agent.NameSupport, Action: agent.ActionCraftResponse,
			Args: map[string]any{}, Critical: true,
		}},
		compose: func(map[string]a2a.MessageResult) string { return "unused" },
	}
	out, _ := runPlan(r, p)

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, a2a.CodeNotFound, out.FailureCode)
	assert.Equal(t, 1, support.callCount())
}
