package app

import (
	"context"
	"strings"

	"github.com/integerman/jaimes/internal/services/gm/capability/mcptools"
	"github.com/integerman/jaimes/internal/services/gm/observe"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServeMCP exposes the capabilities of cfg's adventure over transport, or
// stdio when transport is nil.
func ServeMCP(ctx context.Context, cfg Config, deps Deps, transport mcp.Transport) error {
	logger := deps.logger()
	runtime, err := Build(cfg, deps, observe.NewLogObserver(logger, cfg.Verbose))
	if err != nil {
		return err
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			logger.Printf("close rulebook index: %v", err)
		}
	}()

	if name := strings.TrimSpace(cfg.Character); name != "" {
		if _, err := runtime.Adventure.SetPlayerCharacter(name); err != nil {
			return err
		}
	} else if _, _, err := runtime.Adventure.AutoSelectCharacter(); err != nil {
		return err
	}

	if transport == nil {
		transport = &mcp.StdioTransport{}
	}
	logger.Printf("serving %d capabilities for %q", len(runtime.Registry.Names()), runtime.Adventure.Name)
	return mcptools.ServeTransport(ctx, runtime.Registry, transport)
}
