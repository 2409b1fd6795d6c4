package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/daisydq74/multi-agent-customer-service/a2a"
	"github.com/daisydq74/multi-agent-customer-service/internal/util"
	"github.com/daisydq74/multi-agent-customer-service/logging"
	"github.com/daisydq74/multi-agent-customer-service/model"
	"github.com/daisydq74/multi-agent-customer-service/store"
	"github.com/daisydq74/multi-agent-customer-service/trace"
)

// SupportAgent produces customer-facing resolutions. It does not own
// customer data: when an action needs context the agent lacks, it either
// fetches it itself with a nested hop to the data agent (when a transport is
// configured) or returns a structured needs-context signal so the
// orchestrator can run the negotiation sub-protocol. Nested hops land on the
// same per-query log as every other hop.
type SupportAgent struct {
	card       a2a.AgentCard
	responder  model.Responder
	caller     a2a.Caller
	registry   *a2a.Registry
	hopTimeout time.Duration
	logger     logging.Logger
}

// SupportAgentOptions configures a SupportAgent.
type SupportAgentOptions struct {
	// Endpoint is the network address published on the agent card.
	Endpoint string
	// Responder phrases final replies. Defaults to the deterministic
	// pass-through template.
	Responder model.Responder
	// Caller + Registry enable nested hops to the data agent. Leaving them
	// nil makes the agent fall back to needs-context signals instead.
	Caller   a2a.Caller
	Registry *a2a.Registry
	// HopTimeout bounds nested hops. Defaults to the transport default.
	HopTimeout time.Duration
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// NewSupportAgent constructs the support specialist.
func NewSupportAgent(optFns ...func(o *SupportAgentOptions)) *SupportAgent {
	opts := SupportAgentOptions{
		Responder: model.TemplateResponder{},
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &SupportAgent{
		card: a2a.AgentCard{
			Name:        NameSupport,
			Description: "Handles support reasoning, escalations, and ticketing.",
			Version:     "1.0",
			Endpoint:    opts.Endpoint,
			Capabilities: []string{
				ActionHandleGeneralQuery,
				ActionCraftResponse,
				ActionSummarizeForEscalation,
				ActionEnsureTicket,
			},
		},
		responder:  opts.Responder,
		caller:     opts.Caller,
		registry:   opts.Registry,
		hopTimeout: opts.HopTimeout,
		logger:     opts.Logger,
	}
}

// Card implements a2a.Handler.
func (a *SupportAgent) Card() a2a.AgentCard { return a.card }

// Handle implements a2a.Handler.
func (a *SupportAgent) Handle(ctx context.Context, log *trace.Log, msg a2a.Message) a2a.MessageResult {
	switch msg.Action {
	case ActionHandleGeneralQuery:
		return a.handleGeneralQuery(ctx, msg)
	case ActionCraftResponse:
		return a.craftResponse(ctx, log, msg)
	case ActionSummarizeForEscalation:
		return a.summarizeForEscalation(ctx, log, msg)
	case ActionEnsureTicket:
		return a.ensureTicket(ctx, log, msg)
	default:
		return unknownActionResult(msg, NameSupport)
	}
}

func (a *SupportAgent) handleGeneralQuery(ctx context.Context, msg a2a.Message) a2a.MessageResult {
	text, err := util.StringArg(msg.Args, "text")
	if err != nil {
		return validationResult(msg, err)
	}
	if text == "" {
		return validationResult(msg, &util.ValidationError{Field: "text", Message: "must not be empty"})
	}

	draft := fmt.Sprintf("Support response for customer: %s.", text)
	return a.respond(ctx, msg, draft)
}

// craftResponse builds the customer-facing reply for an identified issue.
// With urgent=true the reply is prefixed; with needs_context=true the agent
// requires the customer's ticket history, obtained by nested hop, from an
// enriched "history" argument, or via the negotiation signal.
func (a *SupportAgent) craftResponse(ctx context.Context, log *trace.Log, msg a2a.Message) a2a.MessageResult {
	issue, err := util.OptionalStringArg(msg.Args, "issue", "General inquiry")
	if err != nil {
		return validationResult(msg, err)
	}
	urgent, err := util.BoolArg(msg.Args, "urgent")
	if err != nil {
		return validationResult(msg, err)
	}
	needsContext, err := util.BoolArg(msg.Args, "needs_context")
	if err != nil {
		return validationResult(msg, err)
	}

	var customer *store.Customer
	if raw, ok := msg.Args["customer"]; ok && raw != nil {
		customer, err = store.CustomerFromPayload(raw)
		if err != nil {
			return validationResult(msg, &util.ValidationError{Field: "customer", Message: err.Error()})
		}
	}

	contextNote := ""
	if needsContext {
		switch {
		case msg.Args["history"] != nil:
			tickets, err := store.TicketsFromPayload(msg.Args["history"])
			if err != nil {
				return validationResult(msg, &util.ValidationError{Field: "history", Message: err.Error()})
			}
			contextNote = historyNote(tickets)

		case customer != nil && a.caller != nil:
			tickets, res := a.nestedHistory(ctx, log, msg, customer.ID)
			if res != nil {
				return *res
			}
			contextNote = historyNote(tickets)

		case customer != nil:
			// No transport of our own: hand the orchestrator a precise
			// request for the missing fact.
			return a2a.OkResult(msg, a2a.WithNeedsContext(nil, a2a.NeedsContext{
				Fact:   FactTicketHistory,
				Agent:  NameData,
				Action: ActionFetchHistory,
				Args:   map[string]any{"customer_id": customer.ID},
				Into:   "history",
			}))

		default:
			id, err := util.Int64Arg(msg.Args, "customer_id")
			if err != nil {
				return validationResult(msg, &util.ValidationError{
					Field: "customer", Message: "needs_context requires a customer record or customer_id",
				})
			}
			return a2a.OkResult(msg, a2a.WithNeedsContext(nil, a2a.NeedsContext{
				Fact:   FactCustomerRecord,
				Agent:  NameData,
				Action: ActionFetchCustomer,
				Args:   map[string]any{"customer_id": id},
				Into:   "customer",
			}))
		}
	}

	prefix := ""
	if urgent {
		prefix = "URGENT: "
	}
	label := "customer"
	if customer != nil {
		label = fmt.Sprintf("%s (id=%d)", customer.Name, customer.ID)
	}
	draft := fmt.Sprintf("%sSupport response for %s: %s.%s", prefix, label, issue, contextNote)

	return a.respond(ctx, msg, draft)
}

// summarizeForEscalation condenses a customer's ticket history into one
// line for a human escalation handoff.
func (a *SupportAgent) summarizeForEscalation(ctx context.Context, log *trace.Log, msg a2a.Message) a2a.MessageResult {
	if msg.Args["history"] != nil {
		tickets, err := store.TicketsFromPayload(msg.Args["history"])
		if err != nil {
			return validationResult(msg, &util.ValidationError{Field: "history", Message: err.Error()})
		}
		return a.respond(ctx, msg, summarizeTickets(tickets))
	}

	id, err := util.Int64Arg(msg.Args, "customer_id")
	if err != nil {
		return validationResult(msg, err)
	}

	if a.caller == nil {
		return a2a.OkResult(msg, a2a.WithNeedsContext(nil, a2a.NeedsContext{
			Fact:   FactTicketHistory,
			Agent:  NameData,
			Action: ActionFetchHistory,
			Args:   map[string]any{"customer_id": id},
			Into:   "history",
		}))
	}

	tickets, res := a.nestedHistory(ctx, log, msg, id)
	if res != nil {
		return *res
	}
	return a.respond(ctx, msg, summarizeTickets(tickets))
}

// ensureTicket opens a ticket on the customer's behalf via the data agent.
func (a *SupportAgent) ensureTicket(ctx context.Context, log *trace.Log, msg a2a.Message) a2a.MessageResult {
	id, err := util.Int64Arg(msg.Args, "customer_id")
	if err != nil {
		return validationResult(msg, err)
	}
	issue, err := util.StringArg(msg.Args, "issue")
	if err != nil {
		return validationResult(msg, err)
	}
	priority, err := util.OptionalStringArg(msg.Args, "priority", "medium")
	if err != nil {
		return validationResult(msg, err)
	}
	if err := requireOneOf("priority", priority, store.AllowedTicketPriorities); err != nil {
		return validationResult(msg, err)
	}

	card, res := a.resolveData(msg)
	if res != nil {
		return *res
	}
	nested := a.caller.Call(ctx, log, NameSupport, card, ActionCreateTicket, map[string]any{
		"customer_id": id,
		"issue":       issue,
		"priority":    priority,
	}, a.hopTimeout)
	if !nested.OK() {
		return a2a.MessageResult{
			ID:          msg.ID,
			Status:      a2a.StatusError,
			ErrorCode:   nested.ErrorCode,
			ErrorDetail: nested.ErrorDetail,
		}
	}
	return a2a.OkResult(msg, nested.Payload)
}

// nestedHistory performs the specialist-to-specialist hop for ticket
// history. On failure it returns a terminal error result for the original
// message (second return value non-nil).
func (a *SupportAgent) nestedHistory(ctx context.Context, log *trace.Log, msg a2a.Message, customerID int64) ([]store.Ticket, *a2a.MessageResult) {
	card, res := a.resolveData(msg)
	if res != nil {
		return nil, res
	}
	nested := a.caller.Call(ctx, log, NameSupport, card, ActionFetchHistory, map[string]any{
		"customer_id": customerID,
	}, a.hopTimeout)
	if !nested.OK() {
		out := a2a.MessageResult{
			ID:          msg.ID,
			Status:      a2a.StatusError,
			ErrorCode:   nested.ErrorCode,
			ErrorDetail: nested.ErrorDetail,
		}
		return nil, &out
	}
	tickets, err := store.TicketsFromPayload(nested.Payload["tickets"])
	if err != nil {
		out := a2a.ErrorResult(msg, a2a.CodeProtocolError, err.Error())
		return nil, &out
	}
	return tickets, nil
}

func (a *SupportAgent) resolveData(msg a2a.Message) (a2a.AgentCard, *a2a.MessageResult) {
	if a.caller == nil || a.registry == nil {
		res := a2a.ErrorResult(msg, a2a.CodeUnreachable, "support agent has no transport configured")
		return a2a.AgentCard{}, &res
	}
	card, err := a.registry.Resolve(NameData)
	if err != nil {
		res := a2a.ErrorResult(msg, a2a.CodeUnknownAgent, err.Error())
		return a2a.AgentCard{}, &res
	}
	return card, nil
}

func (a *SupportAgent) respond(ctx context.Context, msg a2a.Message, draft string) a2a.MessageResult {
	text, err := a.responder.Respond(ctx, draft)
	if err != nil {
		a.logger.Warn("responder failed, falling back to draft", "error", err.Error())
		text = draft
	}
	return a2a.OkResult(msg, map[string]any{"text": text})
}

// historyNote renders the context fragment appended to a reply once ticket
// history is in hand.
func historyNote(tickets []store.Ticket) string {
	if len(tickets) == 0 {
		return " No prior tickets."
	}
	return " Context: " + summarizeTickets(tickets)
}

// summarizeTickets formats history as "[created] issue (status, priority)"
// lines joined by semicolons.
func summarizeTickets(tickets []store.Ticket) string {
	if len(tickets) == 0 {
		return "No ticket history yet."
	}
	parts := make([]string, len(tickets))
	for i, t := range tickets {
		parts[i] = fmt.Sprintf("[%s] %s (%s, %s)", t.CreatedAt, t.Issue, t.Status, t.Priority)
	}
	return strings.Join(parts, "; ")
}
