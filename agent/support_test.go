package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daisydq74/multi-agent-customer-service/a2a"
	"github.com/daisydq74/multi-agent-customer-service/store"
	"github.com/daisydq74/multi-agent-customer-service/trace"
)

var _ a2a.Handler = (*SupportAgent)(nil)

// newMeshFixture wires a data agent and a support agent over the in-process
// transport, mirroring the production in-process deployment.
func newMeshFixture() (*SupportAgent, *DataAgent, *a2a.InMemoryCaller) {
	st := store.NewSeededInMemoryStore()
	data := NewDataAgent(st)

	registry := a2a.NewRegistry()
	caller := a2a.NewInMemoryCaller()
	registry.Register(data.Card())
	caller.Bind(data)

	support := NewSupportAgent(func(o *SupportAgentOptions) {
		o.Caller = caller
		o.Registry = registry
	})
	caller.Bind(support)
	registry.Register(support.Card())

	return support, data, caller
}

func supportCall(t *testing.T, a *SupportAgent, log *trace.Log, action string, args map[string]any) a2a.MessageResult {
	t.Helper()
	if log == nil {
		log = trace.NewLog()
	}
	msg := a2a.NewMessage(NameRouter, NameSupport, action, args)
	return a.Handle(context.Background(), log, msg)
}

func TestSupportAgent_HandleGeneralQuery(t *testing.T) {
	support, _, _ := newMeshFixture()

	res := supportCall(t, support, nil, ActionHandleGeneralQuery, map[string]any{"text": "How do I reset my password?"})
	assert.True(t, res.OK())
	assert.Contains(t, res.Payload["text"], "How do I reset my password?")

	res = supportCall(t, support, nil, ActionHandleGeneralQuery, map[string]any{"text": ""})
	assert.Equal(t, a2a.CodeValidationError, res.ErrorCode)
}

func TestSupportAgent_CraftResponse_Basic(t *testing.T) {
	support, _, _ := newMeshFixture()

	res := supportCall(t, support, nil, ActionCraftResponse, map[string]any{
		"issue":    "Upgrade request",
		"customer": store.Customer{ID: 5, Name: "Dana Whitfield", Status: "active"},
	})
	assert.True(t, res.OK())
	text := res.Payload["text"].(string)
	assert.Equal(t, "Support response for Dana Whitfield (id=5): Upgrade request.", text)
}

func TestSupportAgent_CraftResponse_UrgentPrefix(t *testing.T) {
	support, _, _ := newMeshFixture()

	res := supportCall(t, support, nil, ActionCraftResponse, map[string]any{
		"issue":  "Billing refund",
		"urgent": true,
	})
	assert.True(t, res.OK())
	text := res.Payload["text"].(string)
	assert.Contains(t, text, "URGENT: ")
	assert.Contains(t, text, "Support response for customer: Billing refund.")
}

func TestSupportAgent_CraftResponse_NestedHistoryHop(t *testing.T) {
	support, _, _ := newMeshFixture()
	log := trace.NewLog()

	res := supportCall(t, support, log, ActionCraftResponse, map[string]any{
		"issue":         "Billing refund",
		"urgent":        true,
		"needs_context": true,
		"customer":      store.Customer{ID: 12345, Name: "Priya Raman", Status: "active"},
	})
	assert.True(t, res.OK())
	text := res.Payload["text"].(string)
	assert.Contains(t, text, "Context: ")
	assert.Contains(t, text, "Service outage reported on premium account")

	// The nested data hop lands on the same conversation log.
	entries := log.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, NameSupport, entries[0].From)
	assert.Equal(t, NameData, entries[0].To)
	assert.Equal(t, ActionFetchHistory, entries[0].Action)
}

func TestSupportAgent_CraftResponse_NoPriorTickets(t *testing.T) {
	support, _, _ := newMeshFixture()

	res := supportCall(t, support, nil, ActionCraftResponse, map[string]any{
		"issue":         "Billing refund",
		"needs_context": true,
		"customer":      store.Customer{ID: 1, Name: "Ana Martinez", Status: "active"},
	})
	assert.True(t, res.OK())
	assert.Contains(t, res.Payload["text"], "No prior tickets.")
}

func TestSupportAgent_CraftResponse_EnrichedHistoryArg(t *testing.T) {
	// With an enriched "history" argument the agent needs no transport at all.
	support := NewSupportAgent()

	res := supportCall(t, support, nil, ActionCraftResponse, map[string]any{
		"issue":         "Billing refund",
		"needs_context": true,
		"customer":      store.Customer{ID: 2, Name: "Brian Lee", Status: "delinquent"},
		"history": []store.Ticket{
			{ID: 7, CustomerID: 2, Issue: "Late fee dispute", Priority: "medium", Status: "closed", CreatedAt: "2026-08-01 10:00:00"},
		},
	})
	assert.True(t, res.OK())
	assert.Contains(t, res.Payload["text"], "[2026-08-01 10:00:00] Late fee dispute (closed, medium)")
}

func TestSupportAgent_CraftResponse_SignalsWithoutTransport(t *testing.T) {
	// No caller configured: the agent cannot fetch context itself and hands
	// the orchestrator a structured needs-context signal instead.
	support := NewSupportAgent()

	res := supportCall(t, support, nil, ActionCraftResponse, map[string]any{
		"issue":         "Billing refund",
		"needs_context": true,
		"customer":      store.Customer{ID: 2, Name: "Brian Lee", Status: "delinquent"},
	})
	assert.True(t, res.OK())

	nc, ok := a2a.NeedsContextFrom(res)
	assert.True(t, ok)
	assert.Equal(t, FactTicketHistory, nc.Fact)
	assert.Equal(t, NameData, nc.Agent)
	assert.Equal(t, ActionFetchHistory, nc.Action)
	assert.Equal(t, "history", nc.Into)
	assert.Equal(t, int64(2), nc.Args["customer_id"])
}

func TestSupportAgent_CraftResponse_SignalsForCustomerRecord(t *testing.T) {
	support := NewSupportAgent()

	res := supportCall(t, support, nil, ActionCraftResponse, map[string]any{
		"issue":         "Billing refund",
		"needs_context": true,
		"customer_id":   2,
	})
	assert.True(t, res.OK())

	nc, ok := a2a.NeedsContextFrom(res)
	assert.True(t, ok)
	assert.Equal(t, FactCustomerRecord, nc.Fact)
	assert.Equal(t, ActionFetchCustomer, nc.Action)
	assert.Equal(t, "customer", nc.Into)
}

func TestSupportAgent_CraftResponse_NeedsContextWithoutIdentity(t *testing.T) {
	support := NewSupportAgent()

	res := supportCall(t, support, nil, ActionCraftResponse, map[string]any{
		"issue":         "Billing refund",
		"needs_context": true,
	})
	assert.Equal(t, a2a.CodeValidationError, res.ErrorCode)
}

func TestSupportAgent_SummarizeForEscalation(t *testing.T) {
	support, _, _ := newMeshFixture()

	res := supportCall(t, support, nil, ActionSummarizeForEscalation, map[string]any{"customer_id": 12345})
	assert.True(t, res.OK())
	assert.Contains(t, res.Payload["text"], "Service outage reported on premium account (open, high)")

	res = supportCall(t, support, nil, ActionSummarizeForEscalation, map[string]any{"customer_id": 1})
	assert.True(t, res.OK())
	assert.Equal(t, "No ticket history yet.", res.Payload["text"])
}

func TestSupportAgent_EnsureTicket(t *testing.T) {
	support, _, _ := newMeshFixture()
	log := trace.NewLog()

	res := supportCall(t, support, log, ActionEnsureTicket, map[string]any{
		"customer_id": 2,
		"issue":       "Billing refund request (duplicate charge)",
		"priority":    "high",
	})
	assert.True(t, res.OK())
	tk, err := store.TicketFromPayload(res.Payload["ticket"])
	assert.NoError(t, err)
	assert.Equal(t, int64(2), tk.CustomerID)
	assert.Equal(t, "high", tk.Priority)

	// One nested createTicket hop on the shared log.
	entries := log.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, ActionCreateTicket, entries[0].Action)
}

func TestSupportAgent_EnsureTicket_PropagatesDataFailure(t *testing.T) {
	support, _, _ := newMeshFixture()

	res := supportCall(t, support, nil, ActionEnsureTicket, map[string]any{
		"customer_id": 999,
		"issue":       "anything",
	})
	assert.False(t, res.OK())
	assert.Equal(t, a2a.CodeNotFound, res.ErrorCode)
}

func TestSupportAgent_EnsureTicket_NoTransport(t *testing.T) {
	support := NewSupportAgent()

	res := supportCall(t, support, nil, ActionEnsureTicket, map[string]any{
		"customer_id": 2,
		"issue":       "anything",
	})
	assert.Equal(t, a2a.CodeUnreachable, res.ErrorCode)
}

func TestSupportAgent_UnknownAction(t *testing.T) {
	support := NewSupportAgent()
	res := supportCall(t, support, nil, "mindRead", nil)
	assert.Equal(t, a2a.CodeUnknownAction, res.ErrorCode)
}
