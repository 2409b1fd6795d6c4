package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/daisydq74/multi-agent-customer-service/a2a"
	"github.com/daisydq74/multi-agent-customer-service/logging"
	"github.com/daisydq74/multi-agent-customer-service/trace"
)

// execution drives one plan to completion. Dispatch proceeds in barrier
// rounds: every task whose dependencies are all satisfied runs concurrently,
// then the round joins before the next ready set is computed. A task whose
// dependency failed is settled without dispatch, carrying the dependency's
// error code forward.
type execution struct {
	router *Router
	logger logging.Logger
	log    *trace.Log
	plan   *plan

	mu      sync.Mutex
	results map[string]a2a.MessageResult
	settled map[string]bool

	// exhausted is set when any task burns through its negotiation budget.
	// It fails the whole query regardless of other results.
	exhausted bool
}

func newExecution(r *Router, logger logging.Logger, log *trace.Log, p *plan) *execution {
	return &execution{
		router:  r,
		logger:  logger,
		log:     log,
		plan:    p,
		results: make(map[string]a2a.MessageResult, len(p.tasks)),
		settled: make(map[string]bool, len(p.tasks)),
	}
}

// run executes barrier rounds until every task is settled or the query
// context expires.
func (e *execution) run(ctx context.Context) {
	for len(e.settled) < len(e.plan.tasks) {
		if ctx.Err() != nil {
			return
		}

		ready, blocked := e.partition()
		if len(ready) == 0 && len(blocked) == 0 {
			// Remaining tasks wait on tasks that can never settle, which
			// means the plan carries a cycle. Settle them as protocol errors
			// rather than spinning.
			e.settleRemaining(a2a.CodeProtocolError, "task dependency cycle")
			return
		}

		// Tasks gated on a failed dependency are settled without a dispatch;
		// the transport never sees them.
		for _, t := range blocked {
			dep := e.failedDependency(t)
			e.settle(t.ID, a2a.MessageResult{
				Status:      a2a.StatusError,
				ErrorCode:   e.results[dep].ErrorCode,
				ErrorDetail: fmt.Sprintf("dependency %s failed: %s", dep, e.results[dep].ErrorDetail),
			})
		}

		var wg sync.WaitGroup
		for _, t := range ready {
			wg.Add(1)
			go func(t *Task) {
				defer wg.Done()
				e.settle(t.ID, e.runTask(ctx, t))
			}(t)
		}
		wg.Wait()
	}
}

// partition splits unsettled tasks into those ready to dispatch (all
// dependencies settled ok) and those gated on a failed dependency. Tasks
// with pending dependencies stay out of both sets until a later round.
func (e *execution) partition() (ready, blocked []*Task) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, t := range e.plan.tasks {
		if e.settled[t.ID] {
			continue
		}
		allOK, anyFailed, anyPending := true, false, false
		for _, dep := range t.DependsOn {
			if !e.settled[dep] {
				anyPending = true
				allOK = false
				continue
			}
			if !e.results[dep].OK() {
				anyFailed = true
				allOK = false
			}
		}
		switch {
		case anyFailed:
			blocked = append(blocked, t)
		case allOK && !anyPending:
			ready = append(ready, t)
		}
	}
	return ready, blocked
}

// failedDependency returns the first settled dependency of t that failed.
func (e *execution) failedDependency(t *Task) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, dep := range t.DependsOn {
		if e.settled[dep] && !e.results[dep].OK() {
			return dep
		}
	}
	return ""
}

func (e *execution) settle(id string, res a2a.MessageResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[id] = res
	e.settled[id] = true
}

// settleRemaining marks every unsettled task failed with the given code.
func (e *execution) settleRemaining(code a2a.ErrorCode, detail string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.plan.tasks {
		if !e.settled[t.ID] {
			e.results[t.ID] = a2a.MessageResult{Status: a2a.StatusError, ErrorCode: code, ErrorDetail: detail}
			e.settled[t.ID] = true
		}
	}
}

// depResults snapshots the settled results a task's enrichment may read.
func (e *execution) depResults(t *Task) map[string]a2a.MessageResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	deps := make(map[string]a2a.MessageResult, len(t.DependsOn))
	for _, dep := range t.DependsOn {
		if e.settled[dep] {
			deps[dep] = e.results[dep]
		}
	}
	return deps
}

// runTask dispatches one task, running the negotiation loop when the
// specialist answers with a needs-context signal instead of a final payload.
// Each signal costs one context hop plus one re-dispatch, bounded by the
// router's negotiation budget.
func (e *execution) runTask(ctx context.Context, t *Task) a2a.MessageResult {
	if t.Enrich != nil {
		if err := t.Enrich(e.depResults(t), t.Args); err != nil {
			return a2a.MessageResult{
				Status:      a2a.StatusError,
				ErrorCode:   a2a.CodeProtocolError,
				ErrorDetail: fmt.Sprintf("enriching %s: %s", t.ID, err.Error()),
			}
		}
	}

	for attempt := 0; ; attempt++ {
		card, errRes := e.router.resolve(t.Agent)
		if errRes != nil {
			return *errRes
		}

		res := e.router.caller.Call(ctx, e.log, callerName, card, t.Action, t.Args, e.router.hopTimeout)
		if !res.OK() {
			return res
		}

		nc, ok := a2a.NeedsContextFrom(res)
		if !ok {
			return res
		}

		if attempt+1 >= e.router.maxNegotiations {
			e.mu.Lock()
			e.exhausted = true
			e.mu.Unlock()
			return a2a.MessageResult{
				Status:      a2a.StatusError,
				ErrorCode:   a2a.CodeNegotiationExhausted,
				ErrorDetail: fmt.Sprintf("task %s still needs %s after %d attempts", t.ID, nc.Fact, attempt+1),
			}
		}

		fetched, errRes2 := e.fetchContext(ctx, nc)
		if errRes2 != nil {
			return *errRes2
		}
		t.Args[nc.Into] = fetched
		e.logger.Debug("negotiation round", "task", t.ID, "fact", nc.Fact, "attempt", attempt+1)
	}
}

// fetchContext performs the router-mediated context hop for a needs-context
// signal and reduces the payload to the value merged into the task's
// arguments: the sole payload value when there is exactly one key, the
// whole map otherwise.
func (e *execution) fetchContext(ctx context.Context, nc a2a.NeedsContext) (any, *a2a.MessageResult) {
	card, errRes := e.router.resolve(nc.Agent)
	if errRes != nil {
		return nil, errRes
	}

	res := e.router.caller.Call(ctx, e.log, callerName, card, nc.Action, nc.Args, e.router.hopTimeout)
	if !res.OK() {
		return nil, &res
	}

	if len(res.Payload) == 1 {
		for _, v := range res.Payload {
			return v, nil
		}
	}
	return res.Payload, nil
}
