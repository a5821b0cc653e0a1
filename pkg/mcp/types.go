// Package mcp implements the framed JSON request/response protocol spoken to
// external tool-service processes over their standard input/output.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const jsonRPCVersion = "2.0"

// ErrTransportClosed signals that the underlying process or stream is gone.
var ErrTransportClosed = errors.New("mcp: transport closed")

// Request is one outbound protocol frame.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is one inbound protocol frame.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a protocol-level error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("mcp: rpc error %d: %s", e.Code, e.Message)
}

// methodNotFound is the JSON-RPC code servers return for unknown methods.
const methodNotFound = -32601

// Transport moves request frames to the service and returns matched
// responses. Implementations must be safe for concurrent calls.
type Transport interface {
	Call(ctx context.Context, req *Request) (*Response, error)
	Close() error
}
