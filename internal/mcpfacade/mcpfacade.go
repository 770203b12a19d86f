// Package mcpfacade exposes Engram's stores over the Model Context
// Protocol stdio transport (SPEC_FULL.md §4.8, §6.1), grounded on the
// pack's jalfarocode-engram/internal/mcp/mcp.go for tool-registration
// and handler-signature conventions: mcp.NewTool + mcp.With* param
// builders, server.ToolHandlerFunc, mcp.NewToolResultText/Error.
package mcpfacade

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/engramhq/engram/internal/embedding"
	"github.com/engramhq/engram/internal/memory"
	"github.com/engramhq/engram/internal/recovery"
	"github.com/engramhq/engram/internal/secrets"
	"github.com/engramhq/engram/internal/sync"
)

// Deps bundles every store/engine a tool handler might need. Memories is
// required. Secrets, Devices and VaultKey may be unset: the tools that need
// them return a "vault not initialized" error result. A nil Embedder makes
// the embedding tools return an "embedding model not loaded" error result,
// and a nil Sync leaves device authorization local to the registry.
type Deps struct {
	Memories *memory.Store
	Secrets  *secrets.Store
	Embedder embedding.Embedder
	Devices  *recovery.DeviceRegistry
	Sync     *sync.DeviceClient
	VaultKey []byte
}

// NewServer builds an MCP server with all twelve Engram tools registered.
func NewServer(d Deps) *server.MCPServer {
	srv := server.NewMCPServer(
		"engram",
		"0.1.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(serverInstructions),
	)
	registerTools(srv, d)
	return srv
}

const serverInstructions = `Engram provides local-first, end-to-end-encrypted memory and secrets ` +
	`for AI assistants. Use these tools to save and recall memories across ` +
	`sessions, store and fetch encrypted secrets, manage authorized devices, ` +
	`and generate recovery kits for the vault key.`

func registerTools(srv *server.MCPServer, d Deps) {
	srv.AddTool(
		mcp.NewTool("mcp_save_memory",
			mcp.WithDescription("Sanitize and store a memory, embedding it for later semantic search."),
			mcp.WithTitleAnnotation("Save Memory"),
			mcp.WithReadOnlyHintAnnotation(false),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(false),
			mcp.WithString("content", mcp.Required(), mcp.Description("The memory content to save")),
			mcp.WithString("tags", mcp.Description("Optional comma-separated tags to attach")),
		),
		handleSaveMemory(d),
	)

	srv.AddTool(
		mcp.NewTool("mcp_read_memory",
			mcp.WithDescription("Search stored memories by semantic similarity to a query."),
			mcp.WithTitleAnnotation("Read Memory"),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(true),
			mcp.WithString("query", mcp.Required(), mcp.Description("Natural language search query")),
			mcp.WithNumber("limit", mcp.Description("Max results (default 5)")),
		),
		handleReadMemory(d),
	)

	srv.AddTool(
		mcp.NewTool("mcp_delete_memory",
			mcp.WithDescription("Delete a memory by id."),
			mcp.WithTitleAnnotation("Delete Memory"),
			mcp.WithReadOnlyHintAnnotation(false),
			mcp.WithDestructiveHintAnnotation(true),
			mcp.WithIdempotentHintAnnotation(true),
			mcp.WithString("memory_id", mcp.Required(), mcp.Description("The memory id to delete")),
		),
		handleDeleteMemory(d),
	)

	srv.AddTool(
		mcp.NewTool("mcp_list_memories",
			mcp.WithDescription("List recently stored memories, optionally filtered by source."),
			mcp.WithTitleAnnotation("List Memories"),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(true),
			mcp.WithNumber("limit", mcp.Description("Max results (default 10)")),
			mcp.WithString("source", mcp.Description("Filter by source path")),
		),
		handleListMemories(d),
	)

	srv.AddTool(
		mcp.NewTool("mcp_memory_status",
			mcp.WithDescription("Report memory count and embedding model readiness."),
			mcp.WithTitleAnnotation("Memory Status"),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(true),
		),
		handleMemoryStatus(d),
	)

	srv.AddTool(
		mcp.NewTool("mcp_find_similar_sessions",
			mcp.WithDescription("Find past coding sessions whose indexed content is similar to a stated intent."),
			mcp.WithTitleAnnotation("Find Similar Sessions"),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(true),
			mcp.WithString("intent", mcp.Required(), mcp.Description("What you're about to work on")),
			mcp.WithNumber("limit", mcp.Description("Max results (default 3)")),
		),
		handleFindSimilarSessions(d),
	)

	srv.AddTool(
		mcp.NewTool("mcp_get_secret",
			mcp.WithDescription("Fetch a stored secret's plaintext value by key name."),
			mcp.WithTitleAnnotation("Get Secret"),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(true),
			mcp.WithString("key_name", mcp.Required(), mcp.Description("The secret's key name")),
		),
		handleGetSecret(d),
	)

	srv.AddTool(
		mcp.NewTool("mcp_set_secret",
			mcp.WithDescription("Store or update a secret's value."),
			mcp.WithTitleAnnotation("Set Secret"),
			mcp.WithReadOnlyHintAnnotation(false),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(false),
			mcp.WithString("key_name", mcp.Required(), mcp.Description("The secret's key name")),
			mcp.WithString("value", mcp.Required(), mcp.Description("The secret's plaintext value")),
			mcp.WithString("description", mcp.Description("Optional description")),
		),
		handleSetSecret(d),
	)

	srv.AddTool(
		mcp.NewTool("mcp_authorize_device",
			mcp.WithDescription("Authorize a new device to sync with this vault."),
			mcp.WithTitleAnnotation("Authorize Device"),
			mcp.WithReadOnlyHintAnnotation(false),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(false),
			mcp.WithString("device_id", mcp.Required(), mcp.Description("The device's unique id (not used: the registry assigns the id reported in the result)")),
			mcp.WithString("device_name", mcp.Required(), mcp.Description("A human-readable device name")),
			mcp.WithString("device_public_key_pem", mcp.Required(), mcp.Description("The device's RSA public key, PEM-encoded")),
		),
		handleAuthorizeDevice(d),
	)

	srv.AddTool(
		mcp.NewTool("mcp_revoke_device",
			mcp.WithDescription("Revoke a previously authorized device."),
			mcp.WithTitleAnnotation("Revoke Device"),
			mcp.WithReadOnlyHintAnnotation(false),
			mcp.WithDestructiveHintAnnotation(true),
			mcp.WithIdempotentHintAnnotation(true),
			mcp.WithString("device_id", mcp.Required(), mcp.Description("The device id to revoke")),
		),
		handleRevokeDevice(d),
	)

	srv.AddTool(
		mcp.NewTool("mcp_list_devices",
			mcp.WithDescription("List every device ever authorized against this vault."),
			mcp.WithTitleAnnotation("List Devices"),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(true),
		),
		handleListDevices(d),
	)

	srv.AddTool(
		mcp.NewTool("mcp_create_recovery_kit",
			mcp.WithDescription("Split the vault key into Shamir recovery shares."),
			mcp.WithTitleAnnotation("Create Recovery Kit"),
			mcp.WithReadOnlyHintAnnotation(false),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(false),
			mcp.WithNumber("shares", mcp.Description("Total shares to generate (default 5)")),
			mcp.WithNumber("threshold", mcp.Description("Shares required to recover (default 3)")),
		),
		handleCreateRecoveryKit(d),
	)
}

func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func stringArg(req mcp.CallToolRequest, key string) string {
	v, _ := req.GetArguments()[key].(string)
	return v
}

func tagsArg(req mcp.CallToolRequest, key string) []string {
	raw := stringArg(req, key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
