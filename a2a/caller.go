package a2a

import (
	"context"
	"errors"
	"time"

	"github.com/daisydq74/multi-agent-customer-service/trace"
)

// DefaultCallTimeout bounds a single hop when the caller does not supply a
// timeout of its own.
const DefaultCallTimeout = 3 * time.Second

// Handler is the server side of the coordination protocol: an agent's
// inbound action dispatcher. Implementations must validate arguments locally
// and fold every failure into the returned MessageResult.
type Handler interface {
	// Card returns the agent's published descriptor.
	Card() AgentCard

	// Handle executes one inbound message, recording any outbound hops it
	// makes itself (nested negotiation) on the supplied log.
	Handle(ctx context.Context, log *trace.Log, msg Message) MessageResult
}

// Caller is the transport client contract. A call is one logical
// request/response exchange; the caller may fan out many concurrently. Call
// never returns a Go error and never retries: timeouts, unreachable
// endpoints, and protocol violations all come back as error-status results,
// and retry policy belongs to the orchestrator.
//
// Every call, successful or not, appends exactly one request entry to the
// log at send time and one result entry at receipt or timeout.
type Caller interface {
	Call(ctx context.Context, log *trace.Log, sender string, card AgentCard, action string, args map[string]any, timeout time.Duration) MessageResult
}

// exchangeFn performs the transport-specific half of a call. It may return
// an error-status result directly (remote-side failures) or a Go error for
// transport faults, which execute folds into the taxonomy.
type exchangeFn func(ctx context.Context, msg Message) (MessageResult, error)

// execute implements the shared call discipline for every Caller: message
// construction, request/result logging, the capability fail-fast, the
// per-hop deadline, and the conversion of transport faults into synthetic
// error results.
func execute(ctx context.Context, log *trace.Log, sender string, card AgentCard, action string, args map[string]any, timeout time.Duration, exchange exchangeFn) MessageResult {
	msg := NewMessage(sender, card.Name, action, args)
	log.Record(msg.ID, msg.Sender, msg.Recipient, msg.Action, msg.Args)

	res := func() MessageResult {
		if !card.HasCapability(action) {
			return ErrorResult(msg, CodeCapabilityMismatch,
				"agent "+card.Name+" does not declare action "+action)
		}

		if timeout <= 0 {
			timeout = DefaultCallTimeout
		}
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		res, err := exchange(callCtx, msg)
		if err != nil {
			return ErrorResult(msg, classifyTransportErr(callCtx, err), err.Error())
		}
		if res.ID != msg.ID {
			return ErrorResult(msg, CodeProtocolError, "result id does not match message id")
		}
		return res
	}()

	if res.OK() {
		log.RecordResult(msg.ID, msg.Recipient, msg.Sender, msg.Action, res.Summary(), "")
	} else {
		log.RecordResult(msg.ID, msg.Recipient, msg.Sender, msg.Action, "", res.Summary())
	}

	return res
}

// classifyTransportErr maps a transport-layer error onto the taxonomy. The
// hop deadline takes precedence: a dial error caused by the expired deadline
// is still a Timeout from the orchestrator's point of view.
func classifyTransportErr(callCtx context.Context, err error) ErrorCode {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return CodeTimeout
	}
	var pe *protocolError
	if errors.As(err, &pe) {
		return CodeProtocolError
	}
	return CodeUnreachable
}

// protocolError marks wire-contract violations so they classify separately
// from plain unreachability.
type protocolError struct {
	msg string
}

func (e *protocolError) Error() string { return e.msg }
