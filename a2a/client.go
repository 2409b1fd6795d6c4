package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daisydq74/multi-agent-customer-service/trace"
)

// MethodMessageSend is the single RPC method between agent processes.
const MethodMessageSend = "message/send"

// rpcRequest is the JSON-RPC 2.0 envelope for a coordination call.
type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      string    `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Message Message `json:"message"`
}

// rpcResponse is the JSON-RPC 2.0 envelope for a coordination result.
// Exactly one of Result and Error is set.
type rpcResponse struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      string     `json:"id"`
	Result  *rpcResult `json:"result,omitempty"`
	Error   *rpcError  `json:"error,omitempty"`
}

type rpcResult struct {
	Message MessageResult `json:"message"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HTTPCaller is the production transport: JSON-RPC 2.0 message/send POSTs to
// the target card's endpoint. The per-hop deadline lives on the request
// context, so no timeout is set on the underlying http.Client.
type HTTPCaller struct {
	httpClient *http.Client
}

// HTTPCallerOptions configures an HTTPCaller.
type HTTPCallerOptions struct {
	// HTTPClient overrides the underlying client (connection pooling,
	// proxies). Its Timeout should stay zero; hops carry their own
	// deadlines.
	HTTPClient *http.Client
}

// NewHTTPCaller creates the network transport client.
func NewHTTPCaller(optFns ...func(o *HTTPCallerOptions)) *HTTPCaller {
	opts := HTTPCallerOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &HTTPCaller{httpClient: opts.HTTPClient}
}

// Call implements Caller.
func (c *HTTPCaller) Call(ctx context.Context, log *trace.Log, sender string, card AgentCard, action string, args map[string]any, timeout time.Duration) MessageResult {
	return execute(ctx, log, sender, card, action, args, timeout, func(callCtx context.Context, msg Message) (MessageResult, error) {
		return c.exchange(callCtx, card, msg)
	})
}

func (c *HTTPCaller) exchange(ctx context.Context, card AgentCard, msg Message) (MessageResult, error) {
	rpcReq := rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.New().String(),
		Method:  MethodMessageSend,
		Params:  rpcParams{Message: msg},
	}

	body, err := json.Marshal(rpcReq)
	if err != nil {
		return MessageResult{}, &protocolError{msg: fmt.Sprintf("marshal rpc request: %v", err)}
	}

	url := strings.TrimRight(card.Endpoint, "/") + "/rpc"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return MessageResult{}, &protocolError{msg: fmt.Sprintf("build rpc request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return MessageResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return MessageResult{}, fmt.Errorf("endpoint %s answered %s: %s", card.Name, resp.Status, string(preview))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return MessageResult{}, &protocolError{msg: fmt.Sprintf("decode rpc response: %v", err)}
	}
	if rpcResp.Error != nil {
		return MessageResult{}, &protocolError{msg: fmt.Sprintf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)}
	}
	if rpcResp.ID != rpcReq.ID {
		return MessageResult{}, &protocolError{msg: "rpc response id does not match request id"}
	}
	if rpcResp.Result == nil {
		return MessageResult{}, &protocolError{msg: "rpc response has neither result nor error"}
	}

	return rpcResp.Result.Message, nil
}
