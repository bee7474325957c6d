package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// workspaceWatcher polls the database for changes to the visible
// workspace, detecting external modifications (e.g. from the standalone
// MCP process) and emitting Wails events so the frontend auto-refreshes.
type workspaceWatcher struct {
	ctx context.Context
	app *App
	mu  sync.Mutex

	workspaceID string
	lastBlocks  string // blocks fingerprint (count + max updated_at)
	lastList    string // workspace list fingerprint (count + max last_modified)
	stopCh      chan struct{}

	// Track emitted approval IDs to avoid infinite re-emission
	emittedApprovals map[string]bool
}

func newWorkspaceWatcher(ctx context.Context, app *App) *workspaceWatcher {
	return &workspaceWatcher{ctx: ctx, app: app, emittedApprovals: map[string]bool{}}
}

// SetWorkspace updates the watched workspace. Called when the user
// navigates.
func (w *workspaceWatcher) SetWorkspace(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.workspaceID = id
	w.lastBlocks = ""
	w.lastList = ""
}

func (w *workspaceWatcher) Start() {
	w.stopCh = make(chan struct{})
	go w.pollLoop()
}

func (w *workspaceWatcher) Stop() {
	if w.stopCh != nil {
		close(w.stopCh)
	}
}

func (w *workspaceWatcher) pollLoop() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check()
		case <-w.stopCh:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *workspaceWatcher) check() {
	w.mu.Lock()
	workspaceID := w.workspaceID
	w.mu.Unlock()

	db := w.app.db.Conn()

	// ── Blocks fingerprint for the visible workspace ────
	var blockFingerprint string
	if workspaceID != "" {
		var count int
		var maxUpdated string
		err := db.QueryRow(
			`SELECT COUNT(*), COALESCE(MAX(updated_at), '') FROM blocks WHERE workspace_id = ?`, workspaceID,
		).Scan(&count, &maxUpdated)
		if err != nil {
			return
		}
		blockFingerprint = fmt.Sprintf("%d:%s", count, maxUpdated)
	}

	// ── Workspace list fingerprint (sidebar) ───────────
	var listFingerprint string
	{
		var count int
		var maxModified string
		if err := db.QueryRow(
			`SELECT COUNT(*), COALESCE(MAX(last_modified), '') FROM workspaces`,
		).Scan(&count, &maxModified); err == nil {
			listFingerprint = fmt.Sprintf("%d:%s", count, maxModified)
		}
	}

	w.mu.Lock()
	blocksChanged := w.lastBlocks != "" && blockFingerprint != "" && w.lastBlocks != blockFingerprint
	listChanged := w.lastList != "" && listFingerprint != "" && w.lastList != listFingerprint
	if blockFingerprint != "" {
		w.lastBlocks = blockFingerprint
	}
	if listFingerprint != "" {
		w.lastList = listFingerprint
	}
	w.mu.Unlock()

	if blocksChanged {
		wailsRuntime.EventsEmit(w.ctx, "mcp:blocks-changed", map[string]string{"workspaceId": workspaceID})
	}
	if listChanged {
		wailsRuntime.EventsEmit(w.ctx, "mcp:workspaces-changed", map[string]string{})
	}

	// ── Pending MCP approvals (cross-process IPC) ──────
	rows, err := db.Query(`SELECT id, tool, description, created_at, metadata FROM mcp_approvals WHERE status = 'pending'`)
	if err == nil {
		for rows.Next() {
			var id, tool, desc, createdAt, metadata string
			if rows.Scan(&id, &tool, &desc, &createdAt, &metadata) != nil {
				continue
			}
			w.mu.Lock()
			alreadySent := w.emittedApprovals[id]
			if !alreadySent {
				w.emittedApprovals[id] = true
			}
			w.mu.Unlock()
			if !alreadySent {
				wailsRuntime.EventsEmit(w.ctx, "mcp:approval-required", map[string]string{
					"id":          id,
					"tool":        tool,
					"description": desc,
					"createdAt":   createdAt,
					"metadata":    metadata,
				})
			}
		}
		rows.Close()
	}

	// Clean up tracking for resolved/deleted approvals (the standalone
	// process deletes rows after reading the verdict)
	w.mu.Lock()
	for id := range w.emittedApprovals {
		var count int
		if db.QueryRow(`SELECT COUNT(*) FROM mcp_approvals WHERE id = ? AND status = 'pending'`, id).Scan(&count) == nil && count == 0 {
			delete(w.emittedApprovals, id)
		}
	}
	w.mu.Unlock()
}

// ── Approval verdicts ──────────────────────────────────────

// ApproveMCPAction records user approval for a pending MCP action. The
// standalone MCP process polls the row and proceeds.
func (a *App) ApproveMCPAction(actionID string) error {
	_, err := a.db.Conn().Exec(`UPDATE mcp_approvals SET status = 'approved' WHERE id = ?`, actionID)
	return err
}

// RejectMCPAction records user rejection for a pending MCP action.
func (a *App) RejectMCPAction(actionID string) error {
	_, err := a.db.Conn().Exec(`UPDATE mcp_approvals SET status = 'rejected' WHERE id = ?`, actionID)
	return err
}
