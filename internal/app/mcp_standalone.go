package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"weave/internal/ai"
	"weave/internal/config"
	"weave/internal/index"
	"weave/internal/ingest"
	mcpserver "weave/internal/mcp"
	"weave/internal/secret"
	"weave/internal/service"
	"weave/internal/storage"
)

// noopEmitter is a no-op EventEmitter used in MCP-only mode (no Wails
// frontend).
type noopEmitter struct{}

func (noopEmitter) Emit(_ context.Context, _ string, _ any) {}

// ServeMCP runs the app as a standalone MCP server on stdin/stdout with
// no GUI. Approvals for destructive tools go through the shared SQLite
// database; the desktop process surfaces them to the user.
func ServeMCP() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, cfgErr := config.Load(config.DefaultPath())

	zlog, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()
	if cfgErr != nil {
		zlog.Warn("config file unusable, running on defaults", zap.Error(cfgErr))
	}

	db, err := storage.New(cfg.Storage.DatabasePath, cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	idx, err := index.Open(cfg.Storage.BleveIndexPath)
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}
	defer idx.Close()

	blocks := storage.NewBlockStore(db)
	conns := storage.NewConnectionStore(db)
	workspaces := storage.NewWorkspaceStore(db)
	corpora := storage.NewRagDatabaseStore(db)
	settings := storage.NewSettingsStore(db)
	dbConns := storage.NewDatabaseConnectionStore(db)
	secrets := secret.NewKeychainStore()
	emitter := noopEmitter{}

	graph := service.NewGraphService(blocks, conns, workspaces, emitter)
	workspaceSvc := service.NewWorkspaceService(workspaces, blocks, conns, settings, emitter)
	rag := service.NewRagService(corpora, blocks, idx, emitter, zlog)

	completer, err := ai.NewClient(cfg.AI)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}
	pipelines := service.NewPipelineService(graph, blocks, completer, rag, emitter, zlog)

	ingest.SetConnectionResolver(dbConns, secrets)

	if _, err := workspaceSvc.EnsureDefault(); err != nil {
		log.Fatalf("Failed to ensure default workspace: %v", err)
	}

	mcpSrv := mcpserver.New(ctx, mcpserver.Deps{
		Emitter:    emitter,
		Workspaces: workspaceSvc,
		Graph:      graph,
		Pipelines:  pipelines,
		Rag:        rag,
		ApprovalDB: db.Conn(), // SQLite-based approval IPC with the desktop process
	})

	if err := mcpSrv.ServeStdio(); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
