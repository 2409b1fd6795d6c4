package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/daisydq74/multi-agent-customer-service/a2a"
	"github.com/daisydq74/multi-agent-customer-service/internal/util"
	"github.com/daisydq74/multi-agent-customer-service/logging"
	"github.com/daisydq74/multi-agent-customer-service/store"
	"github.com/daisydq74/multi-agent-customer-service/trace"
)

// DataAgent owns authoritative customer and ticket data. Every action
// validates its arguments locally and fails with a ValidationError result
// before the downstream tool surface is touched; tool-surface outcomes are
// wrapped into MessageResults, never surfaced as transport faults.
type DataAgent struct {
	store  store.Store
	card   a2a.AgentCard
	logger logging.Logger
}

// DataAgentOptions configures a DataAgent.
type DataAgentOptions struct {
	// Endpoint is the network address published on the agent card. Empty is
	// fine for in-process deployments.
	Endpoint string
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// NewDataAgent wraps the given tool surface.
func NewDataAgent(st store.Store, optFns ...func(o *DataAgentOptions)) *DataAgent {
	opts := DataAgentOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &DataAgent{
		store: st,
		card: a2a.AgentCard{
			Name:        NameData,
			Description: "Owns customer and ticket records; wraps the persistence tool surface.",
			Version:     "1.0",
			Endpoint:    opts.Endpoint,
			Capabilities: []string{
				ActionFetchCustomer,
				ActionListCustomers,
				ActionUpdateCustomer,
				ActionCreateTicket,
				ActionFetchHistory,
				ActionHighPriorityTickets,
				ActionOpenTickets,
			},
		},
		logger: opts.Logger,
	}
}

// Card implements a2a.Handler.
func (a *DataAgent) Card() a2a.AgentCard { return a.card }

// Handle implements a2a.Handler.
func (a *DataAgent) Handle(ctx context.Context, _ *trace.Log, msg a2a.Message) a2a.MessageResult {
	switch msg.Action {
	case ActionFetchCustomer:
		return a.fetchCustomer(ctx, msg)
	case ActionListCustomers:
		return a.listCustomers(ctx, msg)
	case ActionUpdateCustomer:
		return a.updateCustomer(ctx, msg)
	case ActionCreateTicket:
		return a.createTicket(ctx, msg)
	case ActionFetchHistory:
		return a.fetchHistory(ctx, msg)
	case ActionHighPriorityTickets:
		return a.highPriorityTickets(ctx, msg)
	case ActionOpenTickets:
		return a.openTickets(ctx, msg)
	default:
		return unknownActionResult(msg, NameData)
	}
}

func (a *DataAgent) fetchCustomer(ctx context.Context, msg a2a.Message) a2a.MessageResult {
	id, err := util.Int64Arg(msg.Args, "customer_id")
	if err != nil {
		return validationResult(msg, err)
	}
	if id <= 0 {
		return validationResult(msg, &util.ValidationError{Field: "customer_id", Value: id, Message: "must be a positive integer"})
	}

	c, err := a.store.FetchCustomer(ctx, id)
	if err != nil {
		return a.storeError(msg, err)
	}
	return a2a.OkResult(msg, map[string]any{"customer": c})
}

func (a *DataAgent) listCustomers(ctx context.Context, msg a2a.Message) a2a.MessageResult {
	status, err := util.OptionalStringArg(msg.Args, "status", "")
	if err != nil {
		return validationResult(msg, err)
	}
	if status != "" {
		if err := requireOneOf("status", status, store.AllowedCustomerStatuses); err != nil {
			return validationResult(msg, err)
		}
	}
	limit, err := util.OptionalIntArg(msg.Args, "limit", 10)
	if err != nil {
		return validationResult(msg, err)
	}
	if limit <= 0 || limit > store.MaxListLimit {
		return validationResult(msg, &util.ValidationError{
			Field: "limit", Value: limit,
			Message: fmt.Sprintf("must be between 1 and %d", store.MaxListLimit),
		})
	}

	cs, err := a.store.ListCustomers(ctx, status, limit)
	if err != nil {
		return a.storeError(msg, err)
	}
	return a2a.OkResult(msg, map[string]any{"customers": cs})
}

func (a *DataAgent) updateCustomer(ctx context.Context, msg a2a.Message) a2a.MessageResult {
	id, err := util.Int64Arg(msg.Args, "customer_id")
	if err != nil {
		return validationResult(msg, err)
	}
	if id <= 0 {
		return validationResult(msg, &util.ValidationError{Field: "customer_id", Value: id, Message: "must be a positive integer"})
	}
	fields, err := util.StringMapArg(msg.Args, "fields")
	if err != nil {
		return validationResult(msg, err)
	}
	if len(fields) == 0 {
		return validationResult(msg, &util.ValidationError{Field: "fields", Message: "no fields to update"})
	}
	for f := range fields {
		if !util.OneOf(f, store.AllowedUpdateFields) {
			return validationResult(msg, &util.ValidationError{
				Field: "fields." + f, Message: fmt.Sprintf("updatable fields are %v", store.AllowedUpdateFields),
			})
		}
	}
	if status, ok := fields["status"]; ok {
		if err := requireOneOf("fields.status", status, store.AllowedCustomerStatuses); err != nil {
			return validationResult(msg, err)
		}
	}

	c, err := a.store.UpdateCustomer(ctx, id, fields)
	if err != nil {
		return a.storeError(msg, err)
	}
	return a2a.OkResult(msg, map[string]any{"customer": c})
}

func (a *DataAgent) createTicket(ctx context.Context, msg a2a.Message) a2a.MessageResult {
	id, err := util.Int64Arg(msg.Args, "customer_id")
	if err != nil {
		return validationResult(msg, err)
	}
	if id <= 0 {
		return validationResult(msg, &util.ValidationError{Field: "customer_id", Value: id, Message: "must be a positive integer"})
	}
	issue, err := util.StringArg(msg.Args, "issue")
	if err != nil {
		return validationResult(msg, err)
	}
	if issue == "" {
		return validationResult(msg, &util.ValidationError{Field: "issue", Message: "must not be empty"})
	}
	priority, err := util.OptionalStringArg(msg.Args, "priority", "medium")
	if err != nil {
		return validationResult(msg, err)
	}
	if err := requireOneOf("priority", priority, store.AllowedTicketPriorities); err != nil {
		return validationResult(msg, err)
	}

	t, err := a.store.CreateTicket(ctx, id, issue, priority)
	if err != nil {
		return a.storeError(msg, err)
	}
	return a2a.OkResult(msg, map[string]any{"ticket": t})
}

func (a *DataAgent) fetchHistory(ctx context.Context, msg a2a.Message) a2a.MessageResult {
	id, err := util.Int64Arg(msg.Args, "customer_id")
	if err != nil {
		return validationResult(msg, err)
	}
	if id <= 0 {
		return validationResult(msg, &util.ValidationError{Field: "customer_id", Value: id, Message: "must be a positive integer"})
	}

	ts, err := a.store.FetchHistory(ctx, id)
	if err != nil {
		return a.storeError(msg, err)
	}
	return a2a.OkResult(msg, map[string]any{"tickets": ts})
}

// highPriorityTickets collects the high-priority tickets of a customer set
// in one action so callers need a single hop for report scenarios.
func (a *DataAgent) highPriorityTickets(ctx context.Context, msg a2a.Message) a2a.MessageResult {
	ids, err := util.Int64SliceArg(msg.Args, "customer_ids")
	if err != nil {
		return validationResult(msg, err)
	}

	var out []store.Ticket
	for _, id := range ids {
		ts, err := a.store.FetchHistory(ctx, id)
		if err != nil {
			return a.storeError(msg, err)
		}
		for _, t := range ts {
			if t.Priority == "high" {
				out = append(out, t)
			}
		}
	}
	return a2a.OkResult(msg, map[string]any{"tickets": out})
}

// openTickets collects the unresolved tickets of a customer set in one
// action, mirroring the high-priority sweep.
func (a *DataAgent) openTickets(ctx context.Context, msg a2a.Message) a2a.MessageResult {
	ids, err := util.Int64SliceArg(msg.Args, "customer_ids")
	if err != nil {
		return validationResult(msg, err)
	}

	var out []store.Ticket
	for _, id := range ids {
		ts, err := a.store.FetchHistory(ctx, id)
		if err != nil {
			return a.storeError(msg, err)
		}
		for _, t := range ts {
			if t.Status != "resolved" {
				out = append(out, t)
			}
		}
	}
	return a2a.OkResult(msg, map[string]any{"tickets": out})
}

// storeError maps tool-surface failures onto the result taxonomy.
func (a *DataAgent) storeError(msg a2a.Message, err error) a2a.MessageResult {
	a.logger.Warn("data store call failed", "action", msg.Action, "error", err.Error())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return a2a.ErrorResult(msg, a2a.CodeNotFound, err.Error())
	case errors.Is(err, store.ErrValidation):
		return a2a.ErrorResult(msg, a2a.CodeValidationError, err.Error())
	default:
		return a2a.ErrorResult(msg, a2a.CodeUnreachable, "data store: "+err.Error())
	}
}
