// Package router implements the orchestrator: the only component that talks
// to the customer. It classifies the query, decomposes it into a task DAG,
// dispatches tasks to specialists over the transport client (concurrently
// where dependencies allow), runs the bounded negotiation sub-protocol, and
// reconciles results into one customer-facing response plus the full
// conversation log.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/daisydq74/multi-agent-customer-service/a2a"
	"github.com/daisydq74/multi-agent-customer-service/agent"
	"github.com/daisydq74/multi-agent-customer-service/logging"
	"github.com/daisydq74/multi-agent-customer-service/trace"
)

// State is one stage of the router's per-query state machine.
type State string

const (
	// StateReceived is the initial state on query arrival.
	StateReceived State = "Received"
	// StateClassified follows intent classification.
	StateClassified State = "Classified"
	// StateDecomposed follows task DAG construction.
	StateDecomposed State = "Decomposed"
	// StateDispatching covers concurrent task execution.
	StateDispatching State = "Dispatching"
	// StateReconciling covers merging terminal task results.
	StateReconciling State = "Reconciling"
	// StateCompleted is the successful terminal state.
	StateCompleted State = "Completed"
	// StateFailed is the failed terminal state, reachable from any other.
	StateFailed State = "Failed"
)

// Defaults for the router's timing and negotiation bounds.
const (
	// DefaultHopTimeout bounds each transport call.
	DefaultHopTimeout = 3 * time.Second
	// DefaultQueryTimeout is the whole-query wall-clock ceiling, enforced
	// independently of per-hop timeouts.
	DefaultQueryTimeout = 15 * time.Second
	// DefaultMaxNegotiations bounds needs-context re-dispatches per task.
	// Without this bound the state machine has no termination guarantee.
	DefaultMaxNegotiations = 3
)

// Outcome is what the caller receives for every query: a response (or
// failure explanation), the terminal state, and the complete conversation
// log for debugging, even on failure.
type Outcome struct {
	QueryID     string        `json:"query_id"`
	State       State         `json:"state"`
	Intents     []Intent      `json:"intents"`
	Response    string        `json:"response"`
	FailureCode a2a.ErrorCode `json:"failure_code,omitempty"`
	Log         []trace.Entry `json:"log"`
}

// Failed reports whether the query reached the failed terminal state.
func (o *Outcome) Failed() bool { return o.State == StateFailed }

// Router coordinates one query at a time per Handle call; a single Router
// may serve many queries concurrently since all per-query state lives in
// the call frame.
type Router struct {
	registry        *a2a.Registry
	caller          a2a.Caller
	hopTimeout      time.Duration
	queryTimeout    time.Duration
	maxNegotiations int
	logger          logging.Logger
	sink            trace.Sink
}

// Options configures a Router.
type Options struct {
	// HopTimeout bounds each transport call. Defaults to 3 seconds.
	HopTimeout time.Duration
	// QueryTimeout is the whole-query ceiling. Defaults to 15 seconds.
	QueryTimeout time.Duration
	// MaxNegotiations bounds needs-context retries per task. Defaults to 3.
	MaxNegotiations int
	// Logger defaults to NoOp.
	Logger logging.Logger
	// Sink, when set, receives the finished conversation log of every
	// query.
	Sink trace.Sink
}

// New constructs a Router over the given card registry and transport.
func New(registry *a2a.Registry, caller a2a.Caller, optFns ...func(o *Options)) *Router {
	opts := Options{
		HopTimeout:      DefaultHopTimeout,
		QueryTimeout:    DefaultQueryTimeout,
		MaxNegotiations: DefaultMaxNegotiations,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Router{
		registry:        registry,
		caller:          caller,
		hopTimeout:      opts.HopTimeout,
		queryTimeout:    opts.QueryTimeout,
		maxNegotiations: opts.MaxNegotiations,
		logger:          opts.Logger,
		sink:            opts.Sink,
	}
}

// Handle processes one customer query end to end. It never returns an
// error: failures surface as a Failed outcome carrying a textual
// explanation and the (possibly partial) conversation log.
func (r *Router) Handle(ctx context.Context, query string) *Outcome {
	queryID := uuid.New().String()
	log := trace.NewLog()
	logger := r.logger
	if ml, ok := logger.(*logging.MeshLogger); ok {
		logger = ml.WithQuery(queryID)
	}

	outcome := &Outcome{QueryID: queryID, State: StateReceived}
	defer func() {
		outcome.Log = log.Entries()
		if r.sink != nil {
			if err := r.sink.Flush(outcome.Log); err != nil {
				logger.Warn("transcript flush failed", "error", err.Error())
			}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	intents := Classify(query)
	outcome.Intents = intents
	outcome.State = StateClassified
	logger.Info("query classified", "intents", fmt.Sprintf("%v", intents))

	p := decompose(query, intents)
	outcome.State = StateDecomposed
	logger.Info("query decomposed", "tasks", len(p.tasks))

	outcome.State = StateDispatching
	exec := newExecution(r, logger, log, p)
	exec.run(ctx)

	outcome.State = StateReconciling
	r.reconcile(ctx, exec, outcome)

	logger.Info("query finished", "state", string(outcome.State), "failure_code", string(outcome.FailureCode))
	return outcome
}

// reconcile applies the critical/non-critical partial-failure policy and
// fills the outcome's terminal state and response.
func (r *Router) reconcile(ctx context.Context, exec *execution, outcome *Outcome) {
	if err := ctx.Err(); err != nil {
		// Cancellation and deadline both leave unsettled tasks with
		// zero-value results, so neither may fall through to the per-task
		// failure scan.
		outcome.State = StateFailed
		outcome.FailureCode = a2a.CodeQueryTimeout
		if errors.Is(err, context.Canceled) {
			outcome.Response = "The request was canceled before it could be completed."
		} else {
			outcome.Response = "The request could not be completed in time. Please try again."
		}
		return
	}

	if exec.exhausted {
		outcome.State = StateFailed
		outcome.FailureCode = a2a.CodeNegotiationExhausted
		outcome.Response = "The request could not be completed: the agents could not agree on the required context."
		return
	}

	var notes []string
	for _, t := range exec.plan.tasks {
		res := exec.results[t.ID]
		if res.OK() {
			continue
		}
		if t.Critical {
			outcome.State = StateFailed
			outcome.FailureCode = res.ErrorCode
			outcome.Response = fmt.Sprintf("Unable to complete the request: %s.", res.ErrorDetail)
			return
		}
		notes = append(notes, fmt.Sprintf("Some information was unavailable (%s).", t.ID))
	}

	response := exec.plan.compose(exec.results)
	for _, n := range notes {
		response += " " + n
	}
	if len(notes) > 0 {
		outcome.FailureCode = a2a.CodePartialFailure
	}

	outcome.State = StateCompleted
	outcome.Response = response
}

// resolve looks up a card, folding registry misses into the result taxonomy
// so dispatch always ends with a terminal MessageResult per task.
func (r *Router) resolve(name string) (a2a.AgentCard, *a2a.MessageResult) {
	card, err := r.registry.Resolve(name)
	if err != nil {
		res := a2a.MessageResult{
			Status:      a2a.StatusError,
			ErrorCode:   a2a.CodeUnknownAgent,
			ErrorDetail: err.Error(),
		}
		return a2a.AgentCard{}, &res
	}
	return card, nil
}

// callerName is how the router identifies itself in messages and log
// entries.
const callerName = agent.NameRouter
