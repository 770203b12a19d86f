package mcpfacade

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/engramhq/engram/internal/crypto"
	"github.com/engramhq/engram/internal/dlp"
	"github.com/engramhq/engram/internal/memory"
	"github.com/engramhq/engram/internal/recovery"
	"github.com/engramhq/engram/internal/secrets"
)

func errResult(category string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %s", category, err))
}

func embedOne(ctx context.Context, d Deps, text string) ([]float32, error) {
	if d.Embedder == nil {
		return nil, fmt.Errorf("embedding model not loaded")
	}
	if d.Embedder.IsLoading() {
		return nil, fmt.Errorf("embedding model still loading")
	}
	if !d.Embedder.IsReady() {
		return nil, fmt.Errorf("embedding model not ready")
	}
	vecs, err := d.Embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	return vecs[0], nil
}

func handleSaveMemory(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content := stringArg(req, "content")
		if strings.TrimSpace(content) == "" {
			return errResult("Save memory", fmt.Errorf("content is required")), nil
		}
		tags := tagsArg(req, "tags")

		sanitized := dlp.CachedDefault().Sanitize(content).Sanitized
		vector, err := embedOne(ctx, d, sanitized)
		if err != nil {
			return errResult("Save memory", err), nil
		}

		m, err := d.Memories.Create(ctx, memory.CreateInput{Content: content, Tags: tags}, vector)
		if err != nil {
			return errResult("Save memory", err), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Remembered: %q (ID: %s)", truncate(m.Content, 100), m.ID)), nil
	}
}

func handleReadMemory(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := stringArg(req, "query")
		limit := intArg(req, "limit", 5)

		vector, err := embedOne(ctx, d, query)
		if err != nil {
			return errResult("Read memory", err), nil
		}

		hits, err := d.Memories.Search(ctx, vector, limit, memory.SearchOptions{})
		if err != nil {
			return errResult("Read memory", err), nil
		}
		if len(hits) == 0 {
			return mcp.NewToolResultText("No relevant memories found."), nil
		}

		var b strings.Builder
		for i, h := range hits {
			fmt.Fprintf(&b, "%d. %s", i+1, h.Memory.Content)
			if len(h.Memory.Tags) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(h.Memory.Tags, ", "))
			}
			if h.Memory.IsVerified {
				b.WriteString(" (verified)")
			}
			fmt.Fprintf(&b, " (similarity: %.3f)\n", 1-h.Distance)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleDeleteMemory(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := stringArg(req, "memory_id")
		ok, err := d.Memories.Delete(ctx, id)
		if err != nil {
			return errResult("Delete memory", err), nil
		}
		if !ok {
			return mcp.NewToolResultText(fmt.Sprintf("Memory %s not found.", id)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Memory %s has been deleted.", id)), nil
	}
}

func handleListMemories(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := intArg(req, "limit", 10)
		source := stringArg(req, "source")

		list, err := d.Memories.List(ctx, memory.ListOptions{Limit: limit, Source: source})
		if err != nil {
			return errResult("List memories", err), nil
		}
		if len(list) == 0 {
			return mcp.NewToolResultText("No memories found."), nil
		}

		var b strings.Builder
		for i, m := range list {
			day := time.UnixMilli(m.CreatedAt).UTC().Format("2006-01-02")
			fmt.Fprintf(&b, "%d. [%s] %s", i+1, day, truncate(m.Content, 80))
			if len(m.Tags) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(m.Tags, ", "))
			}
			b.WriteString("\n")
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleMemoryStatus(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		count, err := d.Memories.Count(ctx)
		if err != nil {
			return errResult("Memory status", err), nil
		}

		model := "Not loaded"
		if d.Embedder != nil {
			switch {
			case d.Embedder.IsLoading():
				model = "Loading..."
			case d.Embedder.IsReady():
				model = "Ready"
			}
		}

		return mcp.NewToolResultText(fmt.Sprintf("Memory count: %d\nEmbedding model: %s", count, model)), nil
	}
}

func handleFindSimilarSessions(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		intent := stringArg(req, "intent")
		limit := intArg(req, "limit", 3)

		vector, err := embedOne(ctx, d, intent)
		if err != nil {
			return errResult("Find similar sessions", err), nil
		}

		hits, err := d.Memories.Search(ctx, vector, limit*2, memory.SearchOptions{})
		if err != nil {
			return errResult("Find similar sessions", err), nil
		}

		var filtered []memory.SearchHit
		for _, h := range hits {
			if containsTag(h.Memory.Tags, "session-index") {
				filtered = append(filtered, h)
				if len(filtered) == limit {
					break
				}
			}
		}
		if len(filtered) == 0 {
			return mcp.NewToolResultText("No similar sessions found."), nil
		}

		var b strings.Builder
		for i, h := range filtered {
			fmt.Fprintf(&b, "%d. Similarity: %.2f\n   Path: %s\n   %s\n", i+1, 1-h.Distance, h.Memory.Source, truncate(h.Memory.Content, 200))
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

func handleGetSecret(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if d.Secrets == nil {
			return errResult("Get secret", fmt.Errorf("vault not initialized")), nil
		}
		keyName := stringArg(req, "key_name")
		secret, ok, err := d.Secrets.Get(ctx, keyName)
		if err != nil {
			return errResult("Get secret", err), nil
		}
		if !ok {
			return mcp.NewToolResultText(fmt.Sprintf("Secret %q not found.", keyName)), nil
		}
		return mcp.NewToolResultText(secret.Value), nil
	}
}

func handleSetSecret(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if d.Secrets == nil {
			return errResult("Set secret", fmt.Errorf("vault not initialized")), nil
		}
		keyName := stringArg(req, "key_name")
		value := stringArg(req, "value")
		description := stringArg(req, "description")

		secret, err := d.Secrets.Set(ctx, secrets.SetInput{KeyName: keyName, Value: value, Description: description})
		if err != nil {
			return errResult("Set secret", err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Secret %q saved.", secret.KeyName)), nil
	}
}

func handleAuthorizeDevice(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if d.Devices == nil {
			return errResult("Authorize device", fmt.Errorf("vault not initialized")), nil
		}
		deviceName := stringArg(req, "device_name")
		pubPEM := stringArg(req, "device_public_key_pem")

		pub, err := crypto.ParsePublicKeyPEM(pubPEM)
		if err != nil {
			return errResult("Authorize device", fmt.Errorf("invalid device public key: %w", err)), nil
		}

		dev, err := d.Devices.Register(ctx, deviceName, pubPEM)
		if err != nil {
			return errResult("Authorize device", err), nil
		}
		if d.Sync != nil {
			if err := d.Sync.AuthorizeDevice(ctx, dev.ID, deviceName, pub, d.VaultKey); err != nil {
				return errResult("Authorize device", err), nil
			}
		}

		return mcp.NewToolResultText(fmt.Sprintf("Device %q (%s) authorized.", deviceName, dev.ID)), nil
	}
}

func handleRevokeDevice(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if d.Devices == nil {
			return errResult("Revoke device", fmt.Errorf("vault not initialized")), nil
		}
		deviceID := stringArg(req, "device_id")
		if err := d.Devices.Revoke(ctx, deviceID); err != nil {
			return errResult("Revoke device", err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Device %s revoked.", deviceID)), nil
	}
}

func handleListDevices(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if d.Devices == nil {
			return errResult("List devices", fmt.Errorf("vault not initialized")), nil
		}
		list, err := d.Devices.List(ctx)
		if err != nil {
			return errResult("List devices", err), nil
		}
		if len(list) == 0 {
			return mcp.NewToolResultText("No devices authorized."), nil
		}

		var b strings.Builder
		for _, dev := range list {
			status := "active"
			if dev.RevokedAt != nil {
				status = "revoked"
			}
			lastSync := "never"
			if dev.LastSyncAt != nil {
				lastSync = time.UnixMilli(*dev.LastSyncAt).UTC().Format(time.RFC3339)
			}
			created := time.UnixMilli(dev.CreatedAt).UTC().Format(time.RFC3339)
			fmt.Fprintf(&b, "%s (%s) — created: %s, last_sync: %s, status: %s\n", dev.Name, dev.ID, created, lastSync, status)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleCreateRecoveryKit(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		shares := intArg(req, "shares", 5)
		threshold := intArg(req, "threshold", 3)

		if len(d.VaultKey) == 0 {
			return errResult("Create recovery kit", fmt.Errorf("vault not initialized")), nil
		}

		kit, err := recovery.GenerateRecoveryKit(d.VaultKey, shares, threshold)
		if err != nil {
			return errResult("Create recovery kit", err), nil
		}

		var b strings.Builder
		b.WriteString("Recovery kit generated. Write down each share before closing this session:\n\n")
		for _, share := range kit.Shares {
			rendered := recovery.FormatShare(share)
			fmt.Fprintf(&b, "  %s\n", truncate(rendered, 20))
		}
		fmt.Fprintf(&b, "\nAny %d of these %d shares recovers the vault key. Store them in separate safe locations.", threshold, shares)

		return mcp.NewToolResultText(b.String()), nil
	}
}
