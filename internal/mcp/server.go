package mcp

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/certmail/internal/config"
	"github.com/hpungsan/certmail/internal/logger"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
// Sending mail is only available from the CLI.
var toolRegistry = map[string]toolEntry{
	"certify_names": {
		def:     namesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNames },
	},
	"certify_render": {
		def:     renderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRender },
	},
	"certify_check": {
		def:     checkToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCheck },
	},
	"certify_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
}

// AllToolNames returns a sorted list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with certmail tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, home, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"certmail",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, home)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport. Every tool call logs to log.
func Run(db *sql.DB, cfg *config.Config, home, version string, log *slog.Logger) error {
	s := NewServer(db, cfg, home, version)
	return server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return logger.IntoContext(ctx, log)
	}))
}
