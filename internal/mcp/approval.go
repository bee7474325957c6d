package mcpserver

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventEmitter lets the approval queue surface pending actions to the
// canvas UI.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// PendingAction is a destructive tool call waiting for the user's verdict.
// Metadata carries JSON context the frontend can use, e.g. block ids to
// highlight on the canvas while the dialog is up.
type PendingAction struct {
	ID          string `json:"id"`
	Tool        string `json:"tool"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	Metadata    string `json:"metadata"`
}

type verdict struct {
	approved bool
}

// ApprovalQueue gates destructive MCP tools behind user confirmation.
// When the desktop app hosts the MCP server the round trip is a channel
// plus a frontend event. A standalone `--mcp` process has no frontend,
// so the request goes through the shared mcp_approvals table instead and
// the desktop process answers it there.
type ApprovalQueue struct {
	mu      sync.Mutex
	pending map[string]chan verdict
	ctx     context.Context
	emitter EventEmitter
	timeout time.Duration
	db      *sql.DB // non-nil switches to table-based requests
}

const approvalPollInterval = 500 * time.Millisecond

func NewApprovalQueue(ctx context.Context, emitter EventEmitter) *ApprovalQueue {
	return &ApprovalQueue{
		pending: make(map[string]chan verdict),
		ctx:     ctx,
		emitter: emitter,
		timeout: 120 * time.Second,
	}
}

// SetDB switches the queue to table-based requests for standalone mode.
func (q *ApprovalQueue) SetDB(db *sql.DB) {
	q.db = db
}

// Request blocks until the user approves or rejects the action, or the
// timeout passes. metadata is optional JSON context for the frontend.
func (q *ApprovalQueue) Request(tool, description string, metadata ...string) (bool, error) {
	id := uuid.New().String()
	meta := "{}"
	if len(metadata) > 0 && metadata[0] != "" {
		meta = metadata[0]
	}

	if q.db != nil {
		return q.requestViaDB(id, tool, description, meta)
	}
	return q.requestViaChannel(id, tool, description, meta)
}

// requestViaDB files the action as a pending row, then polls its status
// until the desktop process flips it. The row is removed whatever the
// outcome so abandoned requests never pile up.
func (q *ApprovalQueue) requestViaDB(id, tool, description, metadata string) (bool, error) {
	_, err := q.db.Exec(
		`INSERT INTO mcp_approvals (id, tool, description, status, metadata) VALUES (?, ?, ?, 'pending', ?)`,
		id, tool, description, metadata,
	)
	if err != nil {
		return false, fmt.Errorf("insert approval: %w", err)
	}
	defer q.db.Exec(`DELETE FROM mcp_approvals WHERE id = ?`, id)

	ticker := time.NewTicker(approvalPollInterval)
	defer ticker.Stop()
	deadline := time.After(q.timeout)

	for {
		select {
		case <-ticker.C:
			var status string
			if err := q.db.QueryRow(`SELECT status FROM mcp_approvals WHERE id = ?`, id).Scan(&status); err != nil {
				continue
			}
			switch status {
			case "approved":
				return true, nil
			case "rejected":
				return false, fmt.Errorf("action rejected by user: %s", tool)
			}
		case <-deadline:
			return false, fmt.Errorf("action timed out after %s: %s", q.timeout, tool)
		case <-q.ctx.Done():
			return false, fmt.Errorf("context cancelled")
		}
	}
}

// requestViaChannel raises the dialog through a frontend event and waits
// for Approve/Reject to answer on the action's channel.
func (q *ApprovalQueue) requestViaChannel(id, tool, description, metadata string) (bool, error) {
	ch := make(chan verdict, 1)

	q.mu.Lock()
	q.pending[id] = ch
	q.mu.Unlock()
	defer q.forget(id)

	q.emitter.Emit(q.ctx, "mcp:approval-required", PendingAction{
		ID:          id,
		Tool:        tool,
		Description: description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Metadata:    metadata,
	})

	select {
	case v := <-ch:
		if !v.approved {
			return false, fmt.Errorf("action rejected by user: %s", tool)
		}
		return true, nil
	case <-time.After(q.timeout):
		// tell the frontend to drop the stale dialog
		q.emitter.Emit(q.ctx, "mcp:approval-dismissed", map[string]string{"id": id})
		return false, fmt.Errorf("action timed out after %s: %s", q.timeout, tool)
	}
}

// Approve resolves a pending in-process action in favour of running it.
func (q *ApprovalQueue) Approve(actionID string) {
	q.resolve(actionID, true)
}

// Reject resolves a pending in-process action against running it.
func (q *ApprovalQueue) Reject(actionID string) {
	q.resolve(actionID, false)
}

func (q *ApprovalQueue) resolve(id string, approved bool) {
	q.mu.Lock()
	ch, ok := q.pending[id]
	q.mu.Unlock()
	if ok {
		ch <- verdict{approved: approved}
	}
}

func (q *ApprovalQueue) forget(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}
