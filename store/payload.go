package store

import (
	"encoding/json"
	"fmt"
)

// The coordination layer moves records as opaque payload values that may be
// native structs (in-process transport) or the maps/slices encoding/json
// produces after a wire hop. These helpers recover typed records from either
// shape by round-tripping through JSON.

// CustomerFromPayload decodes a single customer record.
func CustomerFromPayload(v any) (*Customer, error) {
	var c Customer
	if err := reshape(v, &c); err != nil {
		return nil, fmt.Errorf("decode customer payload: %w", err)
	}
	if c.ID == 0 {
		return nil, fmt.Errorf("decode customer payload: missing id")
	}
	return &c, nil
}

// CustomersFromPayload decodes a customer list.
func CustomersFromPayload(v any) ([]Customer, error) {
	var cs []Customer
	if err := reshape(v, &cs); err != nil {
		return nil, fmt.Errorf("decode customers payload: %w", err)
	}
	return cs, nil
}

// TicketFromPayload decodes a single ticket record.
func TicketFromPayload(v any) (*Ticket, error) {
	var t Ticket
	if err := reshape(v, &t); err != nil {
		return nil, fmt.Errorf("decode ticket payload: %w", err)
	}
	if t.ID == 0 {
		return nil, fmt.Errorf("decode ticket payload: missing id")
	}
	return &t, nil
}

// TicketsFromPayload decodes a ticket list.
func TicketsFromPayload(v any) ([]Ticket, error) {
	var ts []Ticket
	if err := reshape(v, &ts); err != nil {
		return nil, fmt.Errorf("decode tickets payload: %w", err)
	}
	return ts, nil
}

func reshape(v, into any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, into)
}
