package app

import (
	"context"
	"path/filepath"
	"sync"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"weave/internal/ai"
	"weave/internal/canvas"
	"weave/internal/config"
	"weave/internal/dbclient"
	"weave/internal/index"
	"weave/internal/ingest"
	"weave/internal/secret"
	"weave/internal/service"
	"weave/internal/storage"
)

// wailsEmitter forwards service events to the frontend over the Wails
// event bus.
type wailsEmitter struct{}

func (wailsEmitter) Emit(ctx context.Context, event string, data any) {
	wailsRuntime.EventsEmit(ctx, event, data)
}

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx context.Context
	log *zap.Logger
	cfg *config.Config

	db      *storage.DB
	idx     *index.CorpusIndex
	blocks  *storage.BlockStore
	secrets secret.SecretStore
	dbConns *storage.DatabaseConnectionStore

	graph      *service.GraphService
	workspaces *service.WorkspaceService
	pipelines  *service.PipelineService
	rag        *service.RagService

	// One interaction session drives the visible workspace's canvas
	engineMu          sync.Mutex
	engine            *canvas.Engine
	canvasWorkspaceID string

	watcher  *workspaceWatcher
	inbox    *ingest.InboxWatcher
	stopSync func()

	activeConnectors map[string]dbclient.Connector // connID to open connector
	connectorsMu     sync.Mutex
}

// New creates a new App.
func New() *App {
	return &App{}
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx

	// A broken config file must not stop the app from launching; Load
	// hands back the defaults along with the error.
	cfg, cfgErr := config.Load(config.DefaultPath())
	a.cfg = cfg

	log, err := newLogger(cfg.Debug)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to create logger: %v", err)
		return
	}
	a.log = log
	if cfgErr != nil {
		log.Warn("config file unusable, running on defaults", zap.Error(cfgErr))
	}

	db, err := storage.New(cfg.Storage.DatabasePath, cfg.Storage.DataDir)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to open database: %v", err)
		return
	}
	a.db = db

	a.blocks = storage.NewBlockStore(db)
	conns := storage.NewConnectionStore(db)
	workspaces := storage.NewWorkspaceStore(db)
	corpora := storage.NewRagDatabaseStore(db)
	settings := storage.NewSettingsStore(db)
	a.dbConns = storage.NewDatabaseConnectionStore(db)
	a.secrets = secret.NewKeychainStore()
	a.activeConnectors = make(map[string]dbclient.Connector)

	// isProcessing is transient state; a crash mid-pipeline must not leave
	// blocks stuck
	if err := a.blocks.ClearProcessingFlags(); err != nil {
		log.Warn("clear processing flags", zap.Error(err))
	}

	idx, err := index.Open(cfg.Storage.BleveIndexPath)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to open search index: %v", err)
		return
	}
	a.idx = idx

	emitter := wailsEmitter{}
	a.graph = service.NewGraphService(a.blocks, conns, workspaces, emitter)
	a.workspaces = service.NewWorkspaceService(workspaces, a.blocks, conns, settings, emitter)
	a.rag = service.NewRagService(corpora, a.blocks, idx, emitter, log)

	completer, err := ai.NewClient(cfg.AI)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to create AI client: %v", err)
		return
	}
	a.pipelines = service.NewPipelineService(a.graph, a.blocks, completer, a.rag, emitter, log)

	// Database ingestion source resolves stored connections via the app's
	// stores
	ingest.SetConnectionResolver(a.dbConns, a.secrets)

	if _, err := a.workspaces.EnsureDefault(); err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to ensure default workspace: %v", err)
		return
	}

	if cfg.Rag.InboxEnabled {
		a.startInbox(ctx)
	}

	stop, err := a.rag.StartScheduledSync(ctx, cfg.Rag.SyncSchedule, a.workspaceIDs)
	if err != nil {
		log.Warn("scheduled sync disabled", zap.Error(err))
	} else {
		a.stopSync = stop
	}

	a.watcher = newWorkspaceWatcher(ctx, a)
	a.watcher.Start()
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.stopSync != nil {
		a.stopSync()
	}
	if a.inbox != nil {
		a.inbox.Stop()
	}
	if a.pipelines != nil {
		a.pipelines.WaitIdle(ctx)
	}

	a.connectorsMu.Lock()
	for _, c := range a.activeConnectors {
		c.Close()
	}
	a.activeConnectors = nil
	a.connectorsMu.Unlock()

	if a.idx != nil {
		a.idx.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.log != nil {
		a.log.Sync()
	}
}

// startInbox creates the inbox corpus and starts watching the drop folder.
func (a *App) startInbox(ctx context.Context) {
	if _, err := a.rag.CreateCorpus(a.cfg.Rag.InboxCorpus); err != nil {
		a.log.Warn("inbox corpus", zap.Error(err))
		return
	}
	inboxDir := filepath.Join(a.cfg.Storage.DataDir, "inbox")
	iw, err := ingest.NewInboxWatcher(inboxDir, a.cfg.Rag.InboxCorpus, a.rag, a.log)
	if err != nil {
		a.log.Warn("inbox watcher disabled", zap.Error(err))
		return
	}
	iw.Start(ctx)
	a.inbox = iw
}

// workspaceIDs feeds the scheduled rag sync with every workspace id.
func (a *App) workspaceIDs() []string {
	list, err := a.workspaces.ListWorkspaces()
	if err != nil {
		return nil
	}
	ids := make([]string, len(list))
	for i, ws := range list {
		ids[i] = ws.ID
	}
	return ids
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
