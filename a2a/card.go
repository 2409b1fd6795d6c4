// Package a2a implements the agent-to-agent coordination protocol: agent
// cards and discovery, typed request/response messages, the transport client
// contract with its error taxonomy, and HTTP / in-memory implementations.
//
// Agents are isolated failure domains. Nothing in this package lets a
// transport fault escape as a Go error across the coordination boundary;
// every failure mode is folded into a MessageResult so the orchestrator's
// state machine always observes a deterministic terminal value per call.
package a2a

import (
	"slices"
)

// WellKnownCardPath is the discovery path every agent serves its card at.
const WellKnownCardPath = "/.well-known/agent-card.json"

// AgentCard is the published descriptor of an agent: its network address and
// the set of actions it is willing to perform. Cards are created at service
// startup, are immutable once published, and live for the process lifetime.
type AgentCard struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Version      string   `json:"version,omitempty"`
	Endpoint     string   `json:"endpoint"`
	Capabilities []string `json:"capabilities"`
}

// HasCapability reports whether the card declares the given action. Callers
// must check this before invoking an action; invoking an undeclared action
// fails fast with CapabilityMismatch instead of going over the network.
func (c AgentCard) HasCapability(action string) bool {
	return slices.Contains(c.Capabilities, action)
}
