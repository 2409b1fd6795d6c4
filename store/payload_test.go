package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCustomerFromPayload_TypedAndWireShapes(t *testing.T) {
	typed := &Customer{ID: 3, Name: "Cara Nguyen", Status: "vip"}

	c, err := CustomerFromPayload(typed)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), c.ID)

	// The same record after a JSON wire hop arrives as map[string]any.
	b, _ := json.Marshal(typed)
	var wire any
	assert.NoError(t, json.Unmarshal(b, &wire))

	c, err = CustomerFromPayload(wire)
	assert.NoError(t, err)
	assert.Equal(t, "Cara Nguyen", c.Name)
	assert.Equal(t, "vip", c.Status)
}

func TestCustomerFromPayload_MissingID(t *testing.T) {
	_, err := CustomerFromPayload(map[string]any{"name": "nobody"})
	assert.Error(t, err)
}

func TestTicketsFromPayload_WireShape(t *testing.T) {
	tickets := []Ticket{
		{ID: 1, CustomerID: 12345, Issue: "outage", Priority: "high", Status: "open"},
	}
	b, _ := json.Marshal(tickets)
	var wire any
	assert.NoError(t, json.Unmarshal(b, &wire))

	out, err := TicketsFromPayload(wire)
	assert.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, int64(12345), out[0].CustomerID)
}
