// Package customerservice provides a high-level façade over the router,
// specialist agents, and transport abstractions enabling quick construction
// of a complete customer-service mesh. Most applications interact with this
// package by:
//  1. Creating a Mesh via New() (optionally overriding the store, responder
//     or timing defaults)
//  2. Submitting customer queries via HandleQuery
//  3. Inspecting the returned outcome's response and conversation log
//
// The façade wires the data and support agents over the in-process
// transport while keeping setup ergonomics concise. All defaults are safe
// for local development and testing; networked deployments run the agents
// as separate processes via cmd/csmesh and talk to them over HTTP instead.
package customerservice

import (
	"context"
	"time"

	"github.com/daisydq74/multi-agent-customer-service/a2a"
	"github.com/daisydq74/multi-agent-customer-service/agent"
	"github.com/daisydq74/multi-agent-customer-service/logging"
	"github.com/daisydq74/multi-agent-customer-service/model"
	"github.com/daisydq74/multi-agent-customer-service/router"
	"github.com/daisydq74/multi-agent-customer-service/store"
	"github.com/daisydq74/multi-agent-customer-service/trace"
)

// Options configures the Mesh instance.
type Options struct {
	// Store backs the data agent. Defaults to the seeded in-memory store.
	Store store.Store

	// Responder phrases the support agent's replies. Defaults to the
	// deterministic pass-through template; supply the anthropic or openai
	// implementation for model-phrased replies.
	Responder model.Responder

	// HopTimeout bounds each agent-to-agent call.
	HopTimeout time.Duration
	// QueryTimeout is the whole-query wall-clock ceiling.
	QueryTimeout time.Duration
	// MaxNegotiations bounds needs-context retries per task.
	MaxNegotiations int

	// Sink, when set, receives each query's finished conversation log.
	Sink trace.Sink

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Mesh is the high-level façade aggregating the router, the specialist
// agents, and their shared registry and transport.
type Mesh struct {
	opts     Options
	store    store.Store
	registry *a2a.Registry
	router   *router.Router
}

// New creates a new Mesh with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Mesh {
	opts := Options{
		Responder:       model.TemplateResponder{},
		HopTimeout:      router.DefaultHopTimeout,
		QueryTimeout:    router.DefaultQueryTimeout,
		MaxNegotiations: router.DefaultMaxNegotiations,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = store.NewSeededInMemoryStore()
	}

	registry := a2a.NewRegistry()
	caller := a2a.NewInMemoryCaller()

	data := agent.NewDataAgent(opts.Store, func(o *agent.DataAgentOptions) {
		o.Logger = opts.Logger
	})
	support := agent.NewSupportAgent(func(o *agent.SupportAgentOptions) {
		o.Responder = opts.Responder
		o.Caller = caller
		o.Registry = registry
		o.HopTimeout = opts.HopTimeout
		o.Logger = opts.Logger
	})

	registry.Register(data.Card())
	registry.Register(support.Card())
	caller.Bind(data)
	caller.Bind(support)

	r := router.New(registry, caller, func(o *router.Options) {
		o.HopTimeout = opts.HopTimeout
		o.QueryTimeout = opts.QueryTimeout
		o.MaxNegotiations = opts.MaxNegotiations
		o.Logger = opts.Logger
		o.Sink = opts.Sink
	})

	return &Mesh{opts: opts, store: opts.Store, registry: registry, router: r}
}

// HandleQuery processes one customer query end to end and returns the
// outcome: response text, terminal state, and the full conversation log.
// Failures never surface as errors; they are reported in the outcome.
func (m *Mesh) HandleQuery(ctx context.Context, query string) *router.Outcome {
	return m.router.Handle(ctx, query)
}

// Registry exposes the mesh's agent card registry, mainly for inspection.
func (m *Mesh) Registry() *a2a.Registry { return m.registry }

// Close releases the underlying store.
func (m *Mesh) Close() error { return m.store.Close() }
