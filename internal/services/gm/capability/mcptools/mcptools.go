// Package mcptools exposes registered capabilities as MCP tools so external
// clients can call the same lookups the game master cores use.
package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/integerman/jaimes/internal/services/gm/capability"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "jaimes game master"
	serverVersion = "0.1.0"
)

// EmptyInput is the input of capabilities without parameters.
type EmptyInput struct{}

// NameInput is the input of capabilities keyed by a required name.
type NameInput struct {
	Name string `json:"name" jsonschema:"name of the entry to look up"`
}

// OptionalNameInput is the input of capabilities keyed by an optional name.
type OptionalNameInput struct {
	Name string `json:"name,omitempty" jsonschema:"optional name of the entry to look up"`
}

// QueryInput is the input of search capabilities.
type QueryInput struct {
	Query string `json:"query" jsonschema:"free text search query"`
}

// TextResult carries the text a capability returned.
type TextResult struct {
	Text string `json:"text"`
}

// NewServer returns an MCP server exposing every capability in registry.
func NewServer(registry *capability.Registry) (*mcp.Server, error) {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	if err := Register(server, registry); err != nil {
		return nil, err
	}
	return server, nil
}

// Register adds one MCP tool per registered capability. The tool input type
// is chosen from the capability parameter shape.
func Register(server *mcp.Server, registry *capability.Registry) error {
	if server == nil || registry == nil {
		return fmt.Errorf("register mcp tools: server and registry are required")
	}
	for _, name := range registry.Names() {
		c, _ := registry.Lookup(name)
		tool := &mcp.Tool{Name: c.Name(), Description: c.Description()}
		if err := addTool(server, tool, registry, c.Parameters()); err != nil {
			return err
		}
	}
	return nil
}

func addTool(server *mcp.Server, tool *mcp.Tool, registry *capability.Registry, params []capability.Parameter) error {
	switch shape(params) {
	case "":
		mcp.AddTool(server, tool, handler(registry, tool.Name, func(EmptyInput) capability.Args { return nil }))
	case "name!":
		mcp.AddTool(server, tool, handler(registry, tool.Name, func(in NameInput) capability.Args {
			return capability.Args{"name": in.Name}
		}))
	case "name?":
		mcp.AddTool(server, tool, handler(registry, tool.Name, func(in OptionalNameInput) capability.Args {
			return capability.Args{"name": in.Name}
		}))
	case "query!", "query?":
		mcp.AddTool(server, tool, handler(registry, tool.Name, func(in QueryInput) capability.Args {
			return capability.Args{"query": in.Query}
		}))
	default:
		return fmt.Errorf("mcp tools do not support parameters %q of capability %q", shape(params), tool.Name)
	}
	return nil
}

// shape renders params as a compact signature such as "name!" or "name?".
func shape(params []capability.Parameter) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		marker := "?"
		if p.Required {
			marker = "!"
		}
		parts = append(parts, p.Name+marker)
	}
	return strings.Join(parts, ",")
}

func handler[I any](registry *capability.Registry, name string, toArgs func(I) capability.Args) mcp.ToolHandlerFor[I, TextResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input I) (*mcp.CallToolResult, TextResult, error) {
		text, err := registry.Invoke(ctx, name, toArgs(input))
		if err != nil {
			return nil, TextResult{}, err
		}
		return nil, TextResult{Text: text}, nil
	}
}

// Serve runs an MCP server over stdio until ctx is cancelled.
func Serve(ctx context.Context, registry *capability.Registry) error {
	return ServeTransport(ctx, registry, &mcp.StdioTransport{})
}

// ServeTransport runs an MCP server over transport until ctx is cancelled.
func ServeTransport(ctx context.Context, registry *capability.Registry, transport mcp.Transport) error {
	server, err := NewServer(registry)
	if err != nil {
		return err
	}
	if err := server.Run(ctx, transport); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve mcp: %w", err)
	}
	return nil
}
