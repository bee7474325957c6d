package app

import (
	"fmt"

	"weave/internal/canvas"
	"weave/internal/domain"
)

// ── Canvas interaction ─────────────────────────────────────
//
// Pointer and wheel events from the frontend are forwarded to one
// interaction engine per visible workspace. The engine owns gesture
// semantics; the frontend only reports raw input and redraws from the
// returned view.

// CanvasView is the engine state snapshot returned after every input
// event so the frontend can redraw.
type CanvasView struct {
	State         string          `json:"state"`
	Viewport      canvas.Viewport `json:"viewport"`
	ActiveBlockID string          `json:"activeBlockId"`
	Selection     []string        `json:"selection"`
}

// loadCanvas points the interaction engine at a workspace's geometry.
func (a *App) loadCanvas(state *domain.WorkspaceState) {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()

	vp := &canvas.Viewport{
		Pan:   canvas.Point{X: state.Workspace.ViewportX, Y: state.Workspace.ViewportY},
		Scale: state.Workspace.ViewportZoom,
	}
	if vp.Scale == 0 {
		vp.Scale = 1.0
	}

	a.engine = canvas.NewEngine(vp, a.graph)
	a.engine.SetBlocks(boxesOf(state.Blocks))
	a.canvasWorkspaceID = state.Workspace.ID
}

func (a *App) CanvasPointerDown(x, y float64, shift bool) (*CanvasView, error) {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	if a.engine == nil {
		return nil, fmt.Errorf("no workspace loaded")
	}
	a.engine.PointerDown(canvas.Point{X: x, Y: y}, shift)
	return a.viewLocked(), nil
}

func (a *App) CanvasPointerMove(x, y float64) (*CanvasView, error) {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	if a.engine == nil {
		return nil, fmt.Errorf("no workspace loaded")
	}
	a.engine.PointerMove(canvas.Point{X: x, Y: y})
	return a.viewLocked(), nil
}

func (a *App) CanvasPointerUp(x, y float64) (*CanvasView, error) {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	if a.engine == nil {
		return nil, fmt.Errorf("no workspace loaded")
	}
	a.engine.PointerUp(canvas.Point{X: x, Y: y})
	return a.viewLocked(), nil
}

func (a *App) CanvasWheel(deltaX, deltaY float64, zoomModifier bool) (*CanvasView, error) {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	if a.engine == nil {
		return nil, fmt.Errorf("no workspace loaded")
	}
	// Config sensitivity is applied as a delta multiplier over the
	// engine's baseline.
	if zoomModifier && a.cfg.Canvas.ZoomSensitivity > 0 {
		deltaY *= a.cfg.Canvas.ZoomSensitivity / canvas.ZoomSensitivity
	}
	a.engine.Wheel(deltaX, deltaY, zoomModifier)
	return a.viewLocked(), nil
}

// ClearSelection empties the selection set (Escape key).
func (a *App) ClearSelection() (*CanvasView, error) {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	if a.engine == nil {
		return nil, fmt.Errorf("no workspace loaded")
	}
	a.engine.ClearSelection()
	return a.viewLocked(), nil
}

// DropBlock creates a block of the given type at a screen position
// (palette drag-drop), converting through the viewport transform.
func (a *App) DropBlock(blockType string, screenX, screenY float64) (*domain.Block, error) {
	a.engineMu.Lock()
	if a.engine == nil || a.canvasWorkspaceID == "" {
		a.engineMu.Unlock()
		return nil, fmt.Errorf("no workspace loaded")
	}
	workspaceID := a.canvasWorkspaceID
	p := a.engine.Viewport().ScreenToCanvas(canvas.Point{X: screenX, Y: screenY})
	a.engineMu.Unlock()

	return a.CreateBlock(workspaceID, blockType, p.X, p.Y)
}

// viewLocked snapshots the engine state. Caller holds engineMu.
func (a *App) viewLocked() *CanvasView {
	return &CanvasView{
		State:         a.engine.State().String(),
		Viewport:      *a.engine.Viewport(),
		ActiveBlockID: a.engine.ActiveBlockID(),
		Selection:     a.engine.Selection(),
	}
}

// trackBlock keeps the engine's hit-test geometry in sync after a block
// mutation outside the engine (create, patch, MCP edit).
func (a *App) trackBlock(b *domain.Block) {
	if b == nil {
		return
	}
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	if a.engine == nil || b.WorkspaceID != a.canvasWorkspaceID {
		return
	}
	blocks, err := a.graph.ListBlocks(a.canvasWorkspaceID)
	if err != nil {
		return
	}
	a.engine.SetBlocks(boxesOf(blocks))
}

func (a *App) forgetBlock(id string) {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	if a.engine == nil {
		return
	}
	a.engine.ForgetBlock(id)
	if blocks, err := a.graph.ListBlocks(a.canvasWorkspaceID); err == nil {
		a.engine.SetBlocks(boxesOf(blocks))
	}
}

func boxesOf(blocks []domain.Block) []canvas.BlockBox {
	boxes := make([]canvas.BlockBox, len(blocks))
	for i, b := range blocks {
		boxes[i] = canvas.BlockBox{ID: b.ID, X: b.X, Y: b.Y, W: b.Width, H: b.Height}
	}
	return boxes
}
