package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
)

const (
	protocolVersion = "2025-06-18"
	clientName      = "agentcore"
	clientVersion   = "dev"
)

// Client drives a protocol session over a Transport: initialization, tool
// discovery, and tool invocation.
type Client struct {
	transport Transport
	nextID    atomic.Uint64
}

// NewClient wraps an established transport.
func NewClient(t Transport) *Client {
	return &Client{transport: t}
}

// Call performs one request/response exchange, decoding the result into out
// when out is non-nil.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	req := &Request{
		ID:     strconv.FormatUint(c.nextID.Add(1), 10),
		Method: method,
		Params: params,
	}
	resp, err := c.transport.Call(ctx, req)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("mcp: decode %s result: %w", method, err)
	}
	return nil
}

// Initialize negotiates the protocol session. Servers that predate the
// initialize method are tolerated so older tool services keep working.
func (c *Client) Initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
	}
	err := c.Call(ctx, "initialize", params, nil)
	var rpcErr *Error
	if errors.As(err, &rpcErr) && rpcErr.Code == methodNotFound {
		return nil
	}
	return err
}

// ToolAnnotations carry the server's safety hints for one tool.
type ToolAnnotations struct {
	ReadOnlyHint    *bool `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool `json:"destructiveHint,omitempty"`
}

// ToolInfo is the discovery record for one tool.
type ToolInfo struct {
	Name        string           `json:"name"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	InputSchema json.RawMessage  `json:"inputSchema,omitempty"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

// ListTools issues a discovery call and returns the advertised tools.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	var out struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := c.Call(ctx, "tools/list", map[string]any{}, &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

// CallToolResult is the decoded invocation response. Exactly one of Content
// or ToolResult is populated; StructuredContent and IsError are optional.
type CallToolResult struct {
	Content           []ContentBlock
	ToolResult        json.RawMessage
	StructuredContent map[string]any
	IsError           bool
}

// CallTool invokes one tool and decodes the heterogeneous response body.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	var wire struct {
		Content           json.RawMessage `json:"content,omitempty"`
		ToolResult        json.RawMessage `json:"toolResult,omitempty"`
		StructuredContent map[string]any  `json:"structuredContent,omitempty"`
		IsError           bool            `json:"isError,omitempty"`
	}
	params := map[string]any{"name": name, "arguments": args}
	if err := c.Call(ctx, "tools/call", params, &wire); err != nil {
		return nil, err
	}

	blocks, err := decodeContentBlocks(wire.Content)
	if err != nil {
		return nil, err
	}
	return &CallToolResult{
		Content:           blocks,
		ToolResult:        wire.ToolResult,
		StructuredContent: wire.StructuredContent,
		IsError:           wire.IsError,
	}, nil
}

// Flatten renders the invocation response as one string, preferring typed
// content blocks and falling back to the raw result object.
func (r *CallToolResult) Flatten() string {
	if len(r.Content) > 0 {
		return FlattenContent(r.Content)
	}
	if len(r.ToolResult) > 0 {
		return string(r.ToolResult)
	}
	return ""
}

// Close releases the transport and its process.
func (c *Client) Close() error {
	return c.transport.Close()
}
