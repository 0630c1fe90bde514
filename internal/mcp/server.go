package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/GergesShamon/convenient-discussions/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"section", "move", "anchor", "timestamp", "visits", "watch", "users"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"section_locate": {
		def:     locateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLocate },
	},
	"section_reply": {
		def:     replyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReply },
	},
	"section_add_subsection": {
		def:     addSubsectionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAddSubsection },
	},
	"section_move": {
		def:     moveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMove },
	},
	"move_history": {
		def:     moveHistoryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMoveHistory },
	},
	"anchor_generate": {
		def:     anchorGenerateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAnchorGenerate },
	},
	"anchor_parse": {
		def:     anchorParseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAnchorParse },
	},
	"timestamp_parse": {
		def:     timestampParseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTimestampParse },
	},
	"visits_record": {
		def:     visitsRecordToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVisitsRecord },
	},
	"visits_get": {
		def:     visitsGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVisitsGet },
	},
	"visits_import": {
		def:     visitsImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVisitsImport },
	},
	"watch_add": {
		def:     watchAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWatchAdd },
	},
	"watch_remove": {
		def:     watchRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWatchRemove },
	},
	"watch_list": {
		def:     watchListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWatchList },
	},
	"watch_rename": {
		def:     watchRenameToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWatchRename },
	},
	"watch_import": {
		def:     watchImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWatchImport },
	},
	"users_suggest": {
		def:     usersSuggestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUsersSuggest },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
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

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "watch_add" → "watch").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with the discussion tools registered.
// Tools listed in DisabledTools or belonging to DisabledTypes of the
// configuration are excluded from registration.
func NewServer(deps *ops.Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"cdtool",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(deps.Config.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range deps.Config.DisabledTools {
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

// Run starts the MCP server using stdio transport.
func Run(deps *ops.Deps, version string) error {
	s := NewServer(deps, version)
	deps.Logger.Info("mcp server starting", "version", version, "tools", len(s.ListTools()))
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
