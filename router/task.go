package router

import (
	"github.com/daisydq74/multi-agent-customer-service/a2a"
)

// Task is the router's unit of dispatchable work: one action against one
// specialist, with explicit dependencies on sibling tasks. Tasks with no
// unmet dependency run concurrently; a dependent task stays gated until
// every dependency's result arrives with ok status. A task is dispatched at
// most once unless the negotiation sub-protocol explicitly re-dispatches it.
type Task struct {
	// ID names the task within its query's plan.
	ID string
	// Agent is the target agent name, resolved through the card registry at
	// dispatch time.
	Agent string
	// Action is the capability invoked on the target.
	Action string
	// Args are the call arguments. The negotiation loop may enrich them
	// between attempts.
	Args map[string]any
	// DependsOn lists task IDs whose ok results gate this task.
	DependsOn []string
	// Critical marks tasks the final answer structurally depends on: their
	// failure fails the whole query instead of degrading the response.
	Critical bool
	// Enrich, when set, folds dependency results into Args just before
	// dispatch (e.g. passing a fetched customer record onward).
	Enrich func(deps map[string]a2a.MessageResult, args map[string]any) error
}

// plan is one query's decomposition: the task DAG plus the composition rule
// that merges successful payloads into the customer-facing response.
// Degrade notes collected from failed non-critical tasks are appended by
// reconcile.
type plan struct {
	tasks   []*Task
	compose func(results map[string]a2a.MessageResult) string
}

// taskByID returns the plan's task with the given id, or nil.
func (p *plan) taskByID(id string) *Task {
	for _, t := range p.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}
