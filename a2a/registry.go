package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Registry maps agent names to their published cards. Lookups are read-mostly
// and safe for concurrent use. Cards may be preloaded (static discovery) or
// fetched from a candidate endpoint's well-known path (dynamic discovery).
type Registry struct {
	mu    sync.RWMutex
	cards map[string]AgentCard

	httpClient *http.Client
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// HTTPClient is used for dynamic card discovery. Defaults to a client
	// with a 5 second timeout.
	HTTPClient *http.Client
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Registry{
		cards:      make(map[string]AgentCard),
		httpClient: opts.HTTPClient,
	}
}

// Register publishes a card under its name, replacing any previous card.
func (r *Registry) Register(card AgentCard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[card.Name] = card
}

// Resolve returns the card registered under name. Resolving the same name
// twice within one process lifetime returns identical capability sets.
func (r *Registry) Resolve(name string) (AgentCard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	card, ok := r.cards[name]
	if !ok {
		return AgentCard{}, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}
	return card, nil
}

// Names returns the registered agent names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.cards))
	for name := range r.cards {
		names = append(names, name)
	}
	return names
}

// Discover fetches the card document from a candidate endpoint's well-known
// path, registers it, and returns it. A stale or unreachable endpoint is a
// runtime failure, not a data-model violation, so errors here are ordinary
// Go errors rather than MessageResults.
func (r *Registry) Discover(ctx context.Context, baseURL string) (AgentCard, error) {
	url := strings.TrimRight(baseURL, "/") + WellKnownCardPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return AgentCard{}, fmt.Errorf("build card request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return AgentCard{}, fmt.Errorf("fetch agent card from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return AgentCard{}, fmt.Errorf("fetch agent card from %s: %s - %s", url, resp.Status, string(body))
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return AgentCard{}, fmt.Errorf("decode agent card from %s: %w", url, err)
	}
	if card.Name == "" {
		return AgentCard{}, fmt.Errorf("agent card from %s has no name", url)
	}
	if card.Endpoint == "" {
		card.Endpoint = strings.TrimRight(baseURL, "/")
	}

	r.Register(card)

	return card, nil
}

// WaitUntilReady polls an endpoint's card document until it answers or the
// attempt budget runs out. Useful when peer processes start concurrently.
func (r *Registry) WaitUntilReady(ctx context.Context, baseURL string, attempts int, delay time.Duration) (AgentCard, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		card, err := r.Discover(ctx, baseURL)
		if err == nil {
			return card, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return AgentCard{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return AgentCard{}, lastErr
}
