// Command csmesh runs the customer-service mesh.
//
// Usage:
//
//	csmesh query "I was charged twice, I want a refund immediately"
//	csmesh demo
//	csmesh data --config config.yaml
//	csmesh support
//	csmesh router --listen :8080
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	openaisdk "github.com/openai/openai-go"

	customerservice "github.com/daisydq74/multi-agent-customer-service"
	"github.com/daisydq74/multi-agent-customer-service/a2a"
	"github.com/daisydq74/multi-agent-customer-service/agent"
	"github.com/daisydq74/multi-agent-customer-service/config"
	"github.com/daisydq74/multi-agent-customer-service/logging"
	"github.com/daisydq74/multi-agent-customer-service/model"
	modelanthropic "github.com/daisydq74/multi-agent-customer-service/model/anthropic"
	modelopenai "github.com/daisydq74/multi-agent-customer-service/model/openai"
	"github.com/daisydq74/multi-agent-customer-service/router"
	"github.com/daisydq74/multi-agent-customer-service/store"
	"github.com/daisydq74/multi-agent-customer-service/trace"
)

// CLI defines the command-line interface.
type CLI struct {
	Query   QueryCmd   `cmd:"" help:"Run one query through an in-process mesh and print the outcome."`
	Demo    DemoCmd    `cmd:"" help:"Run the canonical scenario queries through an in-process mesh."`
	Data    DataCmd    `cmd:"" help:"Serve the customer data agent over HTTP."`
	Support SupportCmd `cmd:"" help:"Serve the support agent over HTTP."`
	Router  RouterCmd  `cmd:"" help:"Serve the router over HTTP against remote agents."`

	Config string `short:"c" help:"Path to config file." type:"path"`
}

func (c *CLI) load() (config.Config, *logging.MeshLogger, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return cfg, nil, err
	}
	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, false)
	return cfg, logger, nil
}

// openStore builds the store named by the config.
func openStore(cfg config.Config) (store.Store, error) {
	if cfg.Store.Driver == "sqlite" {
		return store.OpenSQLite(cfg.Store.Path, func(o *store.SQLiteOptions) {
			o.Seed = cfg.Store.Seed
		})
	}
	if cfg.Store.Seed {
		return store.NewSeededInMemoryStore(), nil
	}
	return store.NewInMemoryStore(), nil
}

// buildResponder builds the reply-phrasing backend named by the config.
func buildResponder(cfg config.Config) model.Responder {
	switch cfg.Model.Provider {
	case "anthropic":
		return modelanthropic.NewResponder(func(o *modelanthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Model.Name)
			}
		})
	case "openai":
		return modelopenai.NewResponder(func(o *modelopenai.Options) {
			if cfg.Model.Name != "" {
				o.Model = openaisdk.ChatModel(cfg.Model.Name)
			}
		})
	default:
		return model.TemplateResponder{}
	}
}

// QueryCmd runs a single query against an in-process mesh.
type QueryCmd struct {
	Text    string `arg:"" help:"The customer query."`
	ShowLog bool   `help:"Print the conversation log after the response." default:"true" negatable:""`
}

func (c *QueryCmd) Run(cli *CLI) error {
	cfg, logger, err := cli.load()
	if err != nil {
		return err
	}
	mesh, err := buildMesh(cfg, logger)
	if err != nil {
		return err
	}
	defer mesh.Close()

	printOutcome(mesh.HandleQuery(context.Background(), c.Text), c.ShowLog)
	return nil
}

// DemoCmd walks the canonical scenarios against the seeded fixture data.
type DemoCmd struct{}

func (c *DemoCmd) Run(cli *CLI) error {
	cfg, logger, err := cli.load()
	if err != nil {
		return err
	}
	mesh, err := buildMesh(cfg, logger)
	if err != nil {
		return err
	}
	defer mesh.Close()

	queries := []string{
		"Get customer information for ID 5",
		"I'm customer 12345 and need help upgrading my account",
		"Show me all active customers who have open tickets",
		"I've been charged twice, please refund immediately!",
		"Update my email to new@email.com and show my ticket history",
		"What's the status of all high-priority tickets for premium customers?",
	}
	for i, q := range queries {
		fmt.Printf("=== Scenario %d: %s\n", i+1, q)
		printOutcome(mesh.HandleQuery(context.Background(), q), true)
		fmt.Println()
	}
	return nil
}

func buildMesh(cfg config.Config, logger *logging.MeshLogger) (*customerservice.Mesh, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	return customerservice.New(func(o *customerservice.Options) {
		o.Store = st
		o.Responder = buildResponder(cfg)
		o.HopTimeout = cfg.Router.HopTimeout.Duration()
		o.QueryTimeout = cfg.Router.QueryTimeout.Duration()
		o.MaxNegotiations = cfg.Router.MaxNegotiations
		o.Logger = logger.WithComponent("mesh")
	}), nil
}

func printOutcome(out *router.Outcome, showLog bool) {
	fmt.Printf("state: %s", out.State)
	if out.FailureCode != "" {
		fmt.Printf(" (%s)", out.FailureCode)
	}
	fmt.Printf("\nresponse: %s\n", out.Response)
	if showLog {
		fmt.Println("conversation log:")
		for _, e := range out.Log {
			fmt.Println("  " + e.Format())
		}
	}
}

// DataCmd serves the data agent.
type DataCmd struct {
	Listen string `help:"Listen address (overrides config)."`
}

func (c *DataCmd) Run(cli *CLI) error {
	cfg, logger, err := cli.load()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	listen := cfg.Agents.DataListen
	if c.Listen != "" {
		listen = c.Listen
	}
	data := agent.NewDataAgent(st, func(o *agent.DataAgentOptions) {
		o.Endpoint = cfg.Agents.DataEndpoint
		o.Logger = logger.WithComponent("agent.data")
	})
	return serveAgent(data, listen, logger)
}

// SupportCmd serves the support agent. It discovers the data agent so
// nested hops work across the network.
type SupportCmd struct {
	Listen string `help:"Listen address (overrides config)."`
}

func (c *SupportCmd) Run(cli *CLI) error {
	cfg, logger, err := cli.load()
	if err != nil {
		return err
	}

	registry := a2a.NewRegistry()
	caller := a2a.NewHTTPCaller()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := registry.WaitUntilReady(ctx, cfg.Agents.DataEndpoint, 30, time.Second); err != nil {
		return fmt.Errorf("discover data agent: %w", err)
	}

	listen := cfg.Agents.SupportListen
	if c.Listen != "" {
		listen = c.Listen
	}
	support := agent.NewSupportAgent(func(o *agent.SupportAgentOptions) {
		o.Endpoint = cfg.Agents.SupportEndpoint
		o.Responder = buildResponder(cfg)
		o.Caller = caller
		o.Registry = registry
		o.HopTimeout = cfg.Router.HopTimeout.Duration()
		o.Logger = logger.WithComponent("agent.support")
	})
	return serveAgent(support, listen, logger)
}

func serveAgent(h a2a.Handler, listen string, logger *logging.MeshLogger) error {
	srv := a2a.NewServer(h, listen, func(o *a2a.ServerOptions) {
		o.Logger = logger.WithComponent("server")
		o.Sink = trace.WriterSink{W: os.Stdout}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	return srv.Start()
}

// RouterCmd serves the orchestrator over HTTP, dispatching to remote
// agents discovered from their endpoints.
type RouterCmd struct {
	Listen string `help:"Listen address." default:":8080"`
}

func (c *RouterCmd) Run(cli *CLI) error {
	cfg, logger, err := cli.load()
	if err != nil {
		return err
	}

	registry := a2a.NewRegistry()
	caller := a2a.NewHTTPCaller()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, endpoint := range []string{cfg.Agents.DataEndpoint, cfg.Agents.SupportEndpoint} {
		if _, err := registry.WaitUntilReady(ctx, endpoint, 30, time.Second); err != nil {
			return fmt.Errorf("discover agent at %s: %w", endpoint, err)
		}
	}
	logger.Info("agents discovered", "names", fmt.Sprintf("%v", registry.Names()))

	archive := trace.NewArchiveSink()
	archive.Limit = 100

	rt := router.New(registry, caller, func(o *router.Options) {
		o.HopTimeout = cfg.Router.HopTimeout.Duration()
		o.QueryTimeout = cfg.Router.QueryTimeout.Duration()
		o.MaxNegotiations = cfg.Router.MaxNegotiations
		o.Logger = logger.WithComponent("router")
		o.Sink = archive
	})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/transcripts", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(archive.Transcripts())
	})
	r.Post("/query", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Query == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		out := rt.Handle(req.Context(), body.Query)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	srv := &http.Server{Addr: c.Listen, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("router listening", "addr", c.Listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("csmesh"),
		kong.Description("Multi-agent customer service mesh."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
