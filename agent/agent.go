// Package agent implements the specialist agents of the customer-service
// mesh: the customer-data agent wrapping the persistence tool surface and
// the support agent producing customer-facing resolutions. Both satisfy the
// a2a.Handler contract, validate arguments locally before any downstream
// call, and record every hop they originate on the query's conversation log.
package agent

import (
	"fmt"

	"github.com/daisydq74/multi-agent-customer-service/a2a"
	"github.com/daisydq74/multi-agent-customer-service/internal/util"
)

// Well-known agent names used for cards, log entries, and task targets.
const (
	// NameRouter identifies the orchestrator in log entries.
	NameRouter = "Router"
	// NameData identifies the customer-data agent.
	NameData = "CustomerData"
	// NameSupport identifies the support agent.
	NameSupport = "Support"
)

// Actions exposed by the customer-data agent.
const (
	ActionFetchCustomer       = "fetchCustomer"
	ActionListCustomers       = "listCustomers"
	ActionUpdateCustomer      = "updateCustomer"
	ActionCreateTicket        = "createTicket"
	ActionFetchHistory        = "fetchHistory"
	ActionHighPriorityTickets = "highPriorityTickets"
	ActionOpenTickets         = "openTickets"
)

// Actions exposed by the support agent.
const (
	ActionHandleGeneralQuery     = "handleGeneralQuery"
	ActionCraftResponse          = "craftResponse"
	ActionSummarizeForEscalation = "summarizeForEscalation"
	ActionEnsureTicket           = "ensureTicket"
)

// Facts a specialist may request via the negotiation sub-protocol.
const (
	// FactTicketHistory names the customer's ticket history.
	FactTicketHistory = "ticketHistory"
	// FactCustomerRecord names the customer record itself.
	FactCustomerRecord = "customerRecord"
)

// validationResult folds a local argument validation failure into the
// structured result the orchestrator expects. Validation errors never travel
// as transport faults.
func validationResult(msg a2a.Message, err error) a2a.MessageResult {
	return a2a.ErrorResult(msg, a2a.CodeValidationError, err.Error())
}

// unknownActionResult is returned when a message names an action the agent
// does not implement. With a truthful card this is unreachable through the
// transport client, which fails fast on capability mismatch.
func unknownActionResult(msg a2a.Message, agentName string) a2a.MessageResult {
	return a2a.ErrorResult(msg, a2a.CodeUnknownAction,
		fmt.Sprintf("agent %s does not implement action %s", agentName, msg.Action))
}

// requireOneOf validates an enum-style argument value.
func requireOneOf(field, value string, allowed []string) error {
	if !util.OneOf(value, allowed) {
		return &util.ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("must be one of %v", allowed),
		}
	}
	return nil
}
