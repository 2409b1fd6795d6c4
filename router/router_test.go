package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/daisydq74/multi-agent-customer-service/a2a"
	"github.com/daisydq74/multi-agent-customer-service/agent"
	"github.com/daisydq74/multi-agent-customer-service/store"
	"github.com/daisydq74/multi-agent-customer-service/trace"
)

// newRouterFixture wires real agents over the in-process transport and
// returns a router with default bounds.
func newRouterFixture(optFns ...func(o *Options)) *Router {
	st := store.NewSeededInMemoryStore()
	data := agent.NewDataAgent(st)

	registry := a2a.NewRegistry()
	caller := a2a.NewInMemoryCaller()
	registry.Register(data.Card())
	caller.Bind(data)

	support := agent.NewSupportAgent(func(o *agent.SupportAgentOptions) {
		o.Caller = caller
		o.Registry = registry
	})
	registry.Register(support.Card())
	caller.Bind(support)

	return New(registry, caller, optFns...)
}

func TestRouter_LookupScenario(t *testing.T) {
	r := newRouterFixture()

	out := r.Handle(context.Background(), "Get customer information for customer 5")

	assert.Equal(t, StateCompleted, out.State)
	assert.Empty(t, out.FailureCode)
	assert.Equal(t, []Intent{IntentLookup}, out.Intents)
	assert.Equal(t, "Customer 5: name=Dana Whitfield, email=dana@example.com, phone=555-0105, status=active", out.Response)
	assert.NotEmpty(t, out.QueryID)

	// One hop, two log entries.
	assert.Len(t, out.Log, 2)
	assert.Equal(t, "Router", out.Log[0].From)
	assert.Equal(t, "CustomerData", out.Log[0].To)
}

func TestRouter_SupportScenario(t *testing.T) {
	r := newRouterFixture()

	out := r.Handle(context.Background(), "I need help upgrading my plan")

	assert.Equal(t, StateCompleted, out.State)
	assert.Equal(t, "Support response for Ana Martinez (id=1): Upgrade request.", out.Response)
	// fetch-customer and craft-response, two entries each.
	assert.Len(t, out.Log, 4)
}

func TestRouter_EscalationScenario(t *testing.T) {
	r := newRouterFixture()

	out := r.Handle(context.Background(), "I was charged twice for customer id 2 and I want a refund immediately!")

	assert.Equal(t, StateCompleted, out.State)
	assert.Equal(t, []Intent{IntentEscalation}, out.Intents)
	assert.Contains(t, out.Response, "URGENT: ")
	assert.Contains(t, out.Response, "Brian Lee (id=2)")
	assert.Contains(t, out.Response, "Ticket created: #")

	// fetch-customer (2) + ensure-ticket with nested createTicket (4) +
	// craft-response with nested fetchHistory (4).
	assert.Len(t, out.Log, 10)

	// Every request entry has a matching result entry.
	pending := map[string]bool{}
	for _, e := range out.Log {
		if e.Kind == trace.KindRequest {
			pending[e.MessageID] = true
		} else {
			assert.True(t, pending[e.MessageID], "result without request")
			delete(pending, e.MessageID)
		}
	}
	assert.Empty(t, pending)
}

func TestRouter_UpdateAndReportScenario(t *testing.T) {
	r := newRouterFixture()

	out := r.Handle(context.Background(), "Please update my email to new.address@example.com for customer 1 and show my ticket history")

	assert.Equal(t, StateCompleted, out.State)
	assert.Equal(t, []Intent{IntentUpdate, IntentReport}, out.Intents)
	assert.Contains(t, out.Response, "Email updated to new.address@example.com.")
	assert.Contains(t, out.Response, "History: No ticket history yet.")
	// The two tasks are independent and dispatch in the same round.
	assert.Len(t, out.Log, 4)
}

func TestRouter_PremiumReportScenario(t *testing.T) {
	r := newRouterFixture()

	out := r.Handle(context.Background(), "Show me a report of high-priority tickets for premium customers")

	assert.Equal(t, StateCompleted, out.State)
	assert.Contains(t, out.Response, "Ticket 1 for customer 12345: Service outage reported on premium account (open)")
	// list-customers then the gated high-priority sweep.
	assert.Len(t, out.Log, 4)
	assert.Equal(t, agent.ActionListCustomers, out.Log[0].Action)
}

func TestRouter_OpenTicketsReportScenario(t *testing.T) {
	r := newRouterFixture()

	out := r.Handle(context.Background(), "Show me all active customers who have open tickets")

	assert.Equal(t, StateCompleted, out.State)
	assert.Equal(t, []Intent{IntentReport}, out.Intents)
	// Only the seeded outage for customer 12345 is open across the active
	// fleet.
	assert.Equal(t, "customer_id=12345, ticket_id=1, issue=Service outage reported on premium account, priority=high, status=open", out.Response)
	// list-customers then the gated open-ticket sweep.
	assert.Len(t, out.Log, 4)
	assert.Equal(t, agent.ActionListCustomers, out.Log[0].Action)
	assert.Equal(t, agent.ActionOpenTickets, out.Log[2].Action)
}

func TestRouter_OpenTicketsReportSkipsResolved(t *testing.T) {
	st := store.NewSeededInMemoryStore()
	st.AddTicket(store.Ticket{CustomerID: 5, Issue: "Password reset", Priority: "low", Status: "resolved"})
	data := agent.NewDataAgent(st)

	registry := a2a.NewRegistry()
	caller := a2a.NewInMemoryCaller()
	registry.Register(data.Card())
	caller.Bind(data)
	r := New(registry, caller)

	out := r.Handle(context.Background(), "Show me all active customers who have open tickets")

	assert.Equal(t, StateCompleted, out.State)
	assert.NotContains(t, out.Response, "Password reset")
	assert.Contains(t, out.Response, "customer_id=12345")
}

func TestRouter_UnclassifiableFallsBackToSupport(t *testing.T) {
	r := newRouterFixture()

	out := r.Handle(context.Background(), "zzz qqq")

	assert.Equal(t, StateCompleted, out.State)
	assert.Empty(t, out.Intents)
	assert.Contains(t, out.Response, "Support response for Ana Martinez (id=1): General inquiry.")
}

func TestRouter_CriticalFailureFailsQuery(t *testing.T) {
	r := newRouterFixture()

	out := r.Handle(context.Background(), "Get customer information for customer 999")

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, a2a.CodeNotFound, out.FailureCode)
	assert.Contains(t, out.Response, "Unable to complete the request")
	// The failed hop is still fully logged.
	assert.Len(t, out.Log, 2)
}

func TestRouter_UnknownAgentFailsQuery(t *testing.T) {
	// Empty registry: no card resolves.
	r := New(a2a.NewRegistry(), a2a.NewInMemoryCaller())

	out := r.Handle(context.Background(), "Get customer information for customer 5")

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, a2a.CodeUnknownAgent, out.FailureCode)
	// Resolution happens before any message is sent.
	assert.Empty(t, out.Log)
}

func TestRouter_QueryTimeout(t *testing.T) {
	registry := a2a.NewRegistry()
	caller := a2a.NewInMemoryCaller()
	slow := newStubHandler(agent.NameData, []string{agent.ActionFetchCustomer},
		func(ctx context.Context, msg a2a.Message) a2a.MessageResult {
			<-ctx.Done()
			return a2a.OkResult(msg, nil)
		})
	registry.Register(slow.Card())
	caller.Bind(slow)

	r := New(registry, caller, func(o *Options) {
		o.QueryTimeout = 50 * time.Millisecond
		o.HopTimeout = time.Second
	})

	start := time.Now()
	out := r.Handle(context.Background(), "Get customer information for customer 5")

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, a2a.CodeQueryTimeout, out.FailureCode)
	assert.Less(t, time.Since(start), time.Second)
	// The abandoned hop still produced its pair of entries.
	assert.Len(t, out.Log, 2)
}

func TestRouter_CanceledContextFailsCleanly(t *testing.T) {
	r := newRouterFixture()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := r.Handle(ctx, "Get customer information for customer 5")

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, a2a.CodeQueryTimeout, out.FailureCode)
	assert.Contains(t, out.Response, "canceled")
	// Cancellation never reaches the per-task scan, so no empty-code
	// failure text can leak out.
	assert.NotContains(t, out.Response, "Unable to complete the request: .")
	assert.Empty(t, out.Log)
}

func TestRouter_HandleIsConcurrencySafe(t *testing.T) {
	r := newRouterFixture()

	done := make(chan *Outcome, 4)
	queries := []string{
		"Get customer information for customer 5",
		"I need help upgrading my plan",
		"Show me a report of high-priority tickets for premium customers",
		"Get customer information for customer 3",
	}
	for _, q := range queries {
		q := q
		go func() { done <- r.Handle(context.Background(), q) }()
	}
	seen := map[string]bool{}
	for range queries {
		out := <-done
		assert.Equal(t, StateCompleted, out.State)
		assert.False(t, seen[out.QueryID], "query ids must be unique")
		seen[out.QueryID] = true
	}
}
