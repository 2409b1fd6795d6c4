package router

import (
	"fmt"
	"strings"

	"github.com/daisydq74/multi-agent-customer-service/a2a"
	"github.com/daisydq74/multi-agent-customer-service/agent"
	"github.com/daisydq74/multi-agent-customer-service/store"
)

// Task IDs used by the decomposition plans.
const (
	taskFetchCustomer  = "fetch-customer"
	taskCraftResponse  = "craft-response"
	taskEnsureTicket   = "ensure-ticket"
	taskUpdateCustomer = "update-customer"
	taskFetchHistory   = "fetch-history"
	taskListCustomers  = "list-customers"
	taskPremiumTickets = "premium-tickets"
	taskOpenTickets    = "open-tickets"
)

// decompose turns a classified query into the task DAG and its composition
// rule. Escalation preempts every other shape; update and report tasks are
// independent and merge additively; support and lookup each stand alone.
func decompose(query string, intents []Intent) *plan {
	customerID, _ := parseCustomerID(query)
	if customerID == 0 {
		customerID = 1
	}

	has := map[Intent]bool{}
	for _, i := range intents {
		has[i] = true
	}

	switch {
	case has[IntentEscalation]:
		return escalationPlan(query, customerID)
	case has[IntentUpdate] || has[IntentReport]:
		return updateReportPlan(query, customerID, has)
	case has[IntentSupport]:
		return supportPlan(query, customerID)
	case has[IntentLookup]:
		return lookupPlan(customerID)
	default:
		// Unclassifiable queries get a general support reply rather than a
		// refusal.
		return supportPlan(query, customerID)
	}
}

// lookupPlan: a single hop to the data agent.
func lookupPlan(customerID int64) *plan {
	return &plan{
		tasks: []*Task{{
			ID:       taskFetchCustomer,
			Agent:    agent.NameData,
			Action:   agent.ActionFetchCustomer,
			Args:     map[string]any{"customer_id": customerID},
			Critical: true,
		}},
		compose: func(results map[string]a2a.MessageResult) string {
			c, err := store.CustomerFromPayload(results[taskFetchCustomer].Payload["customer"])
			if err != nil {
				return "Customer record unavailable."
			}
			return fmt.Sprintf("Customer %d: name=%s, email=%s, phone=%s, status=%s",
				c.ID, c.Name, c.Email, c.Phone, c.Status)
		},
	}
}

// supportPlan: fetch the customer, then have the support agent craft the
// reply with the record passed along the dependency edge.
func supportPlan(query string, customerID int64) *plan {
	issue := "General inquiry"
	if strings.Contains(strings.ToLower(query), "upgrad") {
		issue = "Upgrade request"
	}

	return &plan{
		tasks: []*Task{
			{
				ID:       taskFetchCustomer,
				Agent:    agent.NameData,
				Action:   agent.ActionFetchCustomer,
				Args:     map[string]any{"customer_id": customerID},
				Critical: true,
			},
			{
				ID:        taskCraftResponse,
				Agent:     agent.NameSupport,
				Action:    agent.ActionCraftResponse,
				Args:      map[string]any{"issue": issue, "urgent": false},
				DependsOn: []string{taskFetchCustomer},
				Critical:  true,
				Enrich:    passCustomer(taskFetchCustomer),
			},
		},
		compose: func(results map[string]a2a.MessageResult) string {
			return textPayload(results[taskCraftResponse])
		},
	}
}

// escalationIssues derives the ticket and reply wording from the escalation
// language used: cancellations get their own issue text, everything else is
// treated as a billing refund.
func escalationIssues(query string) (ticketIssue, replyIssue string) {
	if strings.Contains(strings.ToLower(query), "cancel") {
		return "Cancel subscription with billing issues", "Cancel subscription with billing issues"
	}
	return "Billing refund request (duplicate charge)", "Billing refund"
}

// escalationPlan: fetch the customer, open a high-priority ticket through
// the support agent, and craft an urgent reply that requires ticket-history
// context (obtained by nested hop or negotiation).
func escalationPlan(query string, customerID int64) *plan {
	ticketIssue, replyIssue := escalationIssues(query)
	return &plan{
		tasks: []*Task{
			{
				ID:       taskFetchCustomer,
				Agent:    agent.NameData,
				Action:   agent.ActionFetchCustomer,
				Args:     map[string]any{"customer_id": customerID},
				Critical: true,
			},
			{
				ID:     taskEnsureTicket,
				Agent:  agent.NameSupport,
				Action: agent.ActionEnsureTicket,
				Args: map[string]any{
					"customer_id": customerID,
					"issue":       ticketIssue,
					"priority":    "high",
				},
				DependsOn: []string{taskFetchCustomer},
				Critical:  true,
			},
			{
				ID:     taskCraftResponse,
				Agent:  agent.NameSupport,
				Action: agent.ActionCraftResponse,
				Args: map[string]any{
					"issue":         replyIssue,
					"urgent":        true,
					"needs_context": true,
					"customer_id":   customerID,
				},
				DependsOn: []string{taskFetchCustomer},
				Critical:  true,
				Enrich:    passCustomer(taskFetchCustomer),
			},
		},
		compose: func(results map[string]a2a.MessageResult) string {
			reply := textPayload(results[taskCraftResponse])
			if t, err := store.TicketFromPayload(results[taskEnsureTicket].Payload["ticket"]); err == nil {
				return fmt.Sprintf("%s Ticket created: #%d.", reply, t.ID)
			}
			return reply
		},
	}
}

// updateReportPlan merges the independent update and report tasks. For the
// combined shape the history fetch is a non-critical enrichment: the update
// must land, the history may degrade.
func updateReportPlan(query string, customerID int64, has map[Intent]bool) *plan {
	var tasks []*Task

	doUpdate := false
	if has[IntentUpdate] {
		if email, ok := parseEmail(query); ok {
			doUpdate = true
			tasks = append(tasks, &Task{
				ID:       taskUpdateCustomer,
				Agent:    agent.NameData,
				Action:   agent.ActionUpdateCustomer,
				Args:     map[string]any{"customer_id": customerID, "fields": map[string]any{"email": email}},
				Critical: true,
			})
		}
	}

	premium := false
	openTickets := false
	if has[IntentReport] {
		switch {
		case wantsPremiumReport(query):
			premium = true
			tasks = append(tasks,
				&Task{
					ID:       taskListCustomers,
					Agent:    agent.NameData,
					Action:   agent.ActionListCustomers,
					Args:     map[string]any{"status": "active", "limit": 50},
					Critical: true,
				},
				&Task{
					ID:        taskPremiumTickets,
					Agent:     agent.NameData,
					Action:    agent.ActionHighPriorityTickets,
					Args:      map[string]any{},
					DependsOn: []string{taskListCustomers},
					Critical:  true,
					Enrich:    premiumIDs(taskListCustomers),
				},
			)
		case wantsOpenTicketsReport(query):
			openTickets = true
			tasks = append(tasks,
				&Task{
					ID:       taskListCustomers,
					Agent:    agent.NameData,
					Action:   agent.ActionListCustomers,
					Args:     map[string]any{"status": "active", "limit": 50},
					Critical: true,
				},
				&Task{
					ID:        taskOpenTickets,
					Agent:     agent.NameData,
					Action:    agent.ActionOpenTickets,
					Args:      map[string]any{},
					DependsOn: []string{taskListCustomers},
					Critical:  true,
					Enrich:    allCustomerIDs(taskListCustomers),
				},
			)
		default:
			tasks = append(tasks, &Task{
				ID:       taskFetchHistory,
				Agent:    agent.NameData,
				Action:   agent.ActionFetchHistory,
				Args:     map[string]any{"customer_id": customerID},
				Critical: !doUpdate,
			})
		}
	}

	if len(tasks) == 0 {
		// Update intent without a parsable email has nothing to dispatch.
		return supportPlan(query, customerID)
	}

	return &plan{
		tasks: tasks,
		compose: func(results map[string]a2a.MessageResult) string {
			var parts []string
			if res, ok := results[taskUpdateCustomer]; ok && res.OK() {
				if c, err := store.CustomerFromPayload(res.Payload["customer"]); err == nil {
					parts = append(parts, fmt.Sprintf("Email updated to %s.", c.Email))
				}
			}
			if res, ok := results[taskFetchHistory]; ok && res.OK() {
				tickets, err := store.TicketsFromPayload(res.Payload["tickets"])
				if err == nil {
					parts = append(parts, "History: "+summarizeHistory(tickets))
				}
			}
			if premium {
				if res, ok := results[taskPremiumTickets]; ok && res.OK() {
					parts = append(parts, premiumReport(res))
				}
			}
			if openTickets {
				if res, ok := results[taskOpenTickets]; ok && res.OK() {
					parts = append(parts, openTicketsReport(res))
				}
			}
			return strings.Join(parts, " ")
		},
	}
}

// passCustomer forwards the customer record fetched by dep into the task's
// arguments.
func passCustomer(dep string) func(deps map[string]a2a.MessageResult, args map[string]any) error {
	return func(deps map[string]a2a.MessageResult, args map[string]any) error {
		res, ok := deps[dep]
		if !ok {
			return fmt.Errorf("dependency %s has no result", dep)
		}
		customer, ok := res.Payload["customer"]
		if !ok {
			return fmt.Errorf("dependency %s carried no customer record", dep)
		}
		args["customer"] = customer
		return nil
	}
}

// premiumIDs computes the premium customer set from a list-customers result.
// Premium means the flagship account id 12345 or vip status; the rule is
// deliberately simple and lives in exactly one place.
func premiumIDs(dep string) func(deps map[string]a2a.MessageResult, args map[string]any) error {
	return func(deps map[string]a2a.MessageResult, args map[string]any) error {
		res, ok := deps[dep]
		if !ok {
			return fmt.Errorf("dependency %s has no result", dep)
		}
		customers, err := store.CustomersFromPayload(res.Payload["customers"])
		if err != nil {
			return err
		}
		var ids []int64
		seen := map[int64]bool{}
		for _, c := range customers {
			if (c.ID == 12345 || c.Status == "vip") && !seen[c.ID] {
				seen[c.ID] = true
				ids = append(ids, c.ID)
			}
		}
		args["customer_ids"] = ids
		return nil
	}
}

// allCustomerIDs forwards every listed customer id into the sweep task's
// arguments.
func allCustomerIDs(dep string) func(deps map[string]a2a.MessageResult, args map[string]any) error {
	return func(deps map[string]a2a.MessageResult, args map[string]any) error {
		res, ok := deps[dep]
		if !ok {
			return fmt.Errorf("dependency %s has no result", dep)
		}
		customers, err := store.CustomersFromPayload(res.Payload["customers"])
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(customers))
		for _, c := range customers {
			ids = append(ids, c.ID)
		}
		args["customer_ids"] = ids
		return nil
	}
}

func textPayload(res a2a.MessageResult) string {
	if text, ok := res.Payload["text"].(string); ok {
		return text
	}
	return ""
}

func summarizeHistory(tickets []store.Ticket) string {
	if len(tickets) == 0 {
		return "No ticket history yet."
	}
	parts := make([]string, len(tickets))
	for i, t := range tickets {
		parts[i] = fmt.Sprintf("[%s] %s (%s, %s)", t.CreatedAt, t.Issue, t.Status, t.Priority)
	}
	return strings.Join(parts, "; ")
}

func openTicketsReport(res a2a.MessageResult) string {
	tickets, err := store.TicketsFromPayload(res.Payload["tickets"])
	if err != nil || len(tickets) == 0 {
		return "No open tickets for active customers."
	}
	lines := make([]string, len(tickets))
	for i, t := range tickets {
		lines[i] = fmt.Sprintf("customer_id=%d, ticket_id=%d, issue=%s, priority=%s, status=%s",
			t.CustomerID, t.ID, t.Issue, t.Priority, t.Status)
	}
	return strings.Join(lines, "\n")
}

func premiumReport(res a2a.MessageResult) string {
	tickets, err := store.TicketsFromPayload(res.Payload["tickets"])
	if err != nil || len(tickets) == 0 {
		return "No high-priority tickets found."
	}
	lines := make([]string, len(tickets))
	for i, t := range tickets {
		lines[i] = fmt.Sprintf("Ticket %d for customer %d: %s (%s)", t.ID, t.CustomerID, t.Issue, t.Status)
	}
	return strings.Join(lines, "\n")
}
