package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InMemoryStore is a volatile Store implementation backed by process-local
// maps. It is safe for concurrent access and mirrors the SQLite backend's
// semantics (NotFound, update field restrictions, newest-first history), so
// tests and ephemeral demos exercise the same contract. Returned records are
// copies to prevent external mutation of internal state.
type InMemoryStore struct {
	mu           sync.RWMutex
	customers    map[int64]*Customer
	tickets      map[int64][]*Ticket
	nextCustomer int64
	nextTicket   int64
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		customers:    make(map[int64]*Customer),
		tickets:      make(map[int64][]*Ticket),
		nextCustomer: 1,
		nextTicket:   1,
	}
}

// NewSeededInMemoryStore constructs an in-memory store preloaded with the
// demo customer set plus the open high-priority ticket for customer 12345.
func NewSeededInMemoryStore() *InMemoryStore {
	s := NewInMemoryStore()
	for _, c := range seedCustomers {
		s.AddCustomer(Customer{
			ID: c.id, Name: c.name, Email: c.email, Phone: c.phone, Status: c.status,
		})
	}
	_, _ = s.CreateTicket(context.Background(), 12345, "Service outage reported on premium account", "high")
	return s
}

// AddCustomer inserts a customer, assigning an id if none is set. Intended
// for test fixtures.
func (s *InMemoryStore) AddCustomer(c Customer) Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextCustomer
	}
	if c.ID >= s.nextCustomer {
		s.nextCustomer = c.ID + 1
	}
	if c.CreatedAt == "" {
		c.CreatedAt = now()
	}
	cp := c
	s.customers[c.ID] = &cp
	return c
}

// AddTicket inserts a ticket with an explicit status, assigning an id if
// none is set. Intended for test fixtures; CreateTicket always opens.
func (s *InMemoryStore) AddTicket(t Ticket) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.nextTicket
	}
	if t.ID >= s.nextTicket {
		s.nextTicket = t.ID + 1
	}
	if t.Status == "" {
		t.Status = "open"
	}
	if t.CreatedAt == "" {
		t.CreatedAt = now()
	}
	cp := t
	s.tickets[t.CustomerID] = append(s.tickets[t.CustomerID], &cp)
	return t
}

// FetchCustomer implements Store.
func (s *InMemoryStore) FetchCustomer(_ context.Context, id int64) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// ListCustomers implements Store.
func (s *InMemoryStore) ListCustomers(_ context.Context, status string, limit int) ([]Customer, error) {
	if limit <= 0 || limit > MaxListLimit {
		return nil, fmt.Errorf("limit %d out of range: %w", limit, ErrValidation)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.customers))
	for id, c := range s.customers {
		if status != "" && c.Status != status {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []Customer
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		out = append(out, *s.customers[id])
	}
	return out, nil
}

// UpdateCustomer implements Store. The whole update happens under one lock
// acquisition, keeping it atomic per record.
func (s *InMemoryStore) UpdateCustomer(_ context.Context, id int64, fields map[string]string) (*Customer, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", ErrValidation)
	}
	for f := range fields {
		if !updateFieldAllowed(f) {
			return nil, fmt.Errorf("field %q not updatable: %w", f, ErrValidation)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	for f, v := range fields {
		switch f {
		case "name":
			c.Name = v
		case "email":
			c.Email = v
		case "phone":
			c.Phone = v
		case "status":
			c.Status = v
		}
	}
	c.UpdatedAt = now()

	cp := *c
	return &cp, nil
}

// CreateTicket implements Store.
func (s *InMemoryStore) CreateTicket(_ context.Context, customerID int64, issue, priority string) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[customerID]; !ok {
		return nil, fmt.Errorf("customer %d: %w", customerID, ErrNotFound)
	}

	t := &Ticket{
		ID:         s.nextTicket,
		CustomerID: customerID,
		Issue:      issue,
		Priority:   priority,
		Status:     "open",
		CreatedAt:  now(),
	}
	s.nextTicket++
	s.tickets[customerID] = append(s.tickets[customerID], t)

	cp := *t
	return &cp, nil
}

// FetchHistory implements Store. Newest tickets first, matching the SQLite
// backend's ordering.
func (s *InMemoryStore) FetchHistory(_ context.Context, customerID int64) ([]Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tickets := s.tickets[customerID]
	out := make([]Ticket, 0, len(tickets))
	for i := len(tickets) - 1; i >= 0; i-- {
		out = append(out, *tickets[i])
	}
	return out, nil
}

// Close implements Store.
func (s *InMemoryStore) Close() error { return nil }
