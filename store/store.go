// Package store is the external tool surface owned by the customer-data
// agent: authoritative customer and ticket persistence. The coordination
// core never caches or mutates these records directly; it only passes
// opaque payloads returned through this interface. Mutations are atomic per
// record, which is the only discipline the coordination layer relies on.
package store

import (
	"context"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no customer or ticket matches the id.
	ErrNotFound = fmt.Errorf("record not found")
	// ErrValidation is returned for arguments the store itself rejects
	// (unknown update fields, bad limits).
	ErrValidation = fmt.Errorf("validation failed")
)

// Allowed value sets shared by the store backends and the data agent's
// local argument validation.
var (
	// AllowedCustomerStatuses are the statuses list/update filters accept.
	AllowedCustomerStatuses = []string{"active", "disabled"}
	// AllowedTicketPriorities are the priorities a ticket may carry.
	AllowedTicketPriorities = []string{"low", "medium", "high"}
	// AllowedUpdateFields are the customer columns updates may touch.
	AllowedUpdateFields = []string{"name", "email", "phone", "status"}
)

// MaxListLimit caps ListCustomers result sizes.
const MaxListLimit = 100

// Customer is one customer record as the store reports it.
type Customer struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Ticket is one support ticket record.
type Ticket struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customer_id"`
	Issue      string `json:"issue"`
	Priority   string `json:"priority"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

// Store is the persistence contract the data agent delegates to.
type Store interface {
	// FetchCustomer returns the customer with the given id or ErrNotFound.
	FetchCustomer(ctx context.Context, id int64) (*Customer, error)

	// ListCustomers returns up to limit customers, optionally filtered by
	// status. An empty status means no filter.
	ListCustomers(ctx context.Context, status string, limit int) ([]Customer, error)

	// UpdateCustomer applies the given field changes atomically and returns
	// the updated record. Unknown fields yield ErrValidation; a missing
	// customer yields ErrNotFound.
	UpdateCustomer(ctx context.Context, id int64, fields map[string]string) (*Customer, error)

	// CreateTicket opens a new ticket (status "open") for the customer.
	CreateTicket(ctx context.Context, customerID int64, issue, priority string) (*Ticket, error)

	// FetchHistory returns the customer's tickets, newest first.
	FetchHistory(ctx context.Context, customerID int64) ([]Ticket, error)

	// Close releases backend resources.
	Close() error
}

// now formats the current UTC time the way both backends stamp records.
func now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}

func updateFieldAllowed(field string) bool {
	for _, f := range AllowedUpdateFields {
		if f == field {
			return true
		}
	}
	return false
}
