package cmd

import (
	"context"
	"fmt"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/engramhq/engram/internal/dlp"
	"github.com/engramhq/engram/internal/embedding"
	"github.com/engramhq/engram/internal/indexing"
	"github.com/engramhq/engram/internal/indexing/parsers"
	"github.com/engramhq/engram/internal/keyvault"
	"github.com/engramhq/engram/internal/mcpfacade"
	"github.com/engramhq/engram/internal/memory"
	"github.com/engramhq/engram/internal/recovery"
	"github.com/engramhq/engram/internal/secrets"
	"github.com/engramhq/engram/internal/sync"
	"github.com/engramhq/engram/internal/tracing"
	"github.com/engramhq/engram/internal/vault"
	"github.com/engramhq/engram/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		usePassword bool
		watchPaths  []string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the stdio MCP server (unlocks the vault, starts the file watcher, serves tool calls)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint)
			if err != nil {
				return fmt.Errorf("serve: init tracing: %w", err)
			}
			defer shutdownTracing(context.Background())

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			var session vault.Session
			if usePassword {
				password, perr := promptPassword("Vault password", "")
				if perr != nil {
					return perr
				}
				session, err = vault.UnlockWithPassword(ctx, db, password)
			} else {
				session, err = vault.Unlock(ctx, db, keyvault.NewOSKeyring())
			}
			if err != nil {
				return fmt.Errorf("serve: unlock vault: %w", err)
			}
			logger.Info("vault unlocked")

			sanitizer := dlp.CachedDefault()
			embedder := embedding.NewFake(cfg.VectorDim)

			memories := memory.New(db, sanitizer, session.VaultKey)
			secretStore := secrets.New(db, session.VaultKey, session.BlindIndexKey)
			devices := recovery.NewDeviceRegistry(db)

			var memEngine *sync.MemoryEngine
			var secEngine *sync.SecretsEngine
			var deviceClient *sync.DeviceClient
			if cfg.APIURL != "" {
				syncCfg := sync.Config{
					ServerURL:      cfg.APIURL,
					RequestsPerMin: 60,
					Burst:          10,
					Timeout:        30 * time.Second,
					RedisURL:       cfg.RedisURL,
				}
				var cache sync.CursorCache
				if cfg.RedisURL != "" {
					redisCache, rerr := sync.NewRedisCursorCache(cfg.RedisURL)
					if rerr != nil {
						logger.Warn("redis cursor cache unavailable, falling back to SQL-only cursors", "error", rerr)
					} else {
						cache = redisCache
						defer redisCache.Close()
					}
				}
				memEngine = sync.NewMemoryEngine(syncCfg, db, memories, cache)
				secEngine = sync.NewSecretsEngine(syncCfg, db, secretStore, cache)
				deviceClient = sync.NewDeviceClient(syncCfg)
				secretStore.SetEngine(secEngine)
				go runSyncLoop(ctx, memEngine, secEngine)
			}
			_ = deviceClient

			indexParsers := []indexing.Parser{parsers.NewFrontmatterParser(), parsers.NewSessionsParser()}
			indexer, err := indexing.New(db, memories, embedder, indexParsers)
			if err != nil {
				return fmt.Errorf("serve: start indexing service: %w", err)
			}

			w, err := watcher.New()
			if err != nil {
				return fmt.Errorf("serve: start watcher: %w", err)
			}
			for _, p := range watchPaths {
				if err := w.AddPath(p); err != nil {
					logger.Warn("could not watch path", "path", p, "error", err)
				}
			}
			w.Start(ctx)
			defer w.Stop()
			go runIndexingLoop(ctx, w, indexer)
			if verbose {
				go runIndexingProgressLog(ctx, indexer)
			}

			srv := mcpfacade.NewServer(mcpfacade.Deps{
				Memories: memories,
				Secrets:  secretStore,
				Embedder: embedder,
				Devices:  devices,
				Sync:     deviceClient,
				VaultKey: session.VaultKey,
			})

			logger.Info("engram mcp server starting", "db_path", cfg.DBPath, "sync_enabled", cfg.APIURL != "")
			if err := mcpserver.ServeStdio(srv); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&usePassword, "password", false, "unlock with a password instead of the OS keychain")
	cmd.Flags().StringSliceVar(&watchPaths, "watch", nil, "directories to watch for markdown/session files to auto-ingest")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log indexing ring events (start/parsed/embedded/stored) to stderr")
	return cmd
}

// runIndexingProgressLog polls the indexing ring buffer's most recent
// event and logs transitions, giving an operator watching stderr the
// start/parsed/embedded/stored pipeline without a separate dashboard.
func runIndexingProgressLog(ctx context.Context, indexer *indexing.Service) {
	var lastLogged string
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recent := indexer.RecentEvents()
			if len(recent) == 0 {
				continue
			}
			latest := recent[len(recent)-1]
			key := fmt.Sprintf("%s:%s", latest.Path, latest.State)
			if key == lastLogged {
				continue
			}
			lastLogged = key
			logger.Info("indexing progress", "path", latest.Path, "state", latest.State, "detail", latest.Detail)
		}
	}
}

// runIndexingLoop feeds watcher file-change events into the indexing
// service until ctx is canceled, mirroring the teacher's internal
// event-loop-in-a-goroutine pattern (internal/scheduler/queue.go).
func runIndexingLoop(ctx context.Context, w *watcher.Watcher, indexer *indexing.Service) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Changes():
			if !ok {
				return
			}
			if err := indexer.IngestFile(ctx, event.Path); err != nil {
				logger.Warn("ingest failed", "path", event.Path, "error", err)
			}
		}
	}
}

// runSyncLoop periodically pushes and pulls memory sync events and pulls
// secret sync events (the Secrets Store pushes its own events at write
// time) until ctx is canceled.
func runSyncLoop(ctx context.Context, memEngine *sync.MemoryEngine, secEngine *sync.SecretsEngine) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := memEngine.Push(ctx); err != nil {
				logger.Warn("memory sync push failed", "error", err)
			}
			if err := memEngine.Pull(ctx); err != nil {
				logger.Warn("memory sync pull failed", "error", err)
			}
			if _, err := secEngine.PullSecrets(ctx); err != nil {
				logger.Warn("secret sync pull failed", "error", err)
			}
		}
	}
}
