package canvas

// ─────────────────────────────────────────────────────────────
// Interaction Engine — pointer gestures over the canvas
// ─────────────────────────────────────────────────────────────
//
// A finite-state controller that interprets raw pointer events and
// dispatches mutations to the Viewport (pan/zoom) and the graph (block
// moves, new connections). Hit testing happens here, in canvas space, so
// the engine owns the full gesture semantics rather than trusting the
// renderer to classify targets.

// State is the engine's current gesture mode.
type State int

const (
	StateIdle State = iota
	StatePanning
	StateDraggingBlock
	StateConnecting
)

func (s State) String() string {
	switch s {
	case StatePanning:
		return "panning"
	case StateDraggingBlock:
		return "dragging-block"
	case StateConnecting:
		return "connecting"
	default:
		return "idle"
	}
}

// HandleRadius is the hit radius of connection handles, in screen pixels.
const HandleRadius = 10.0

// BlockBox is the minimal geometry the engine needs for hit testing.
type BlockBox struct {
	ID   string
	X, Y float64
	W, H float64
}

// Graph is the mutation surface the engine dispatches to. Implemented by
// the graph service; errors (duplicate edge, self-loop) discard the
// gesture without further effect.
type Graph interface {
	MoveBlock(id string, x, y float64) error
	Connect(fromID, toID string) error
}

// dragState is the typed data captured when a block drag begins.
type dragState struct {
	id          string
	startX      float64
	startY      float64
	startScreen Point
}

// Engine is the interaction state machine for one canvas session.
// It is not safe for concurrent use; callers serialize pointer events,
// which arrive in order from a single input stream.
type Engine struct {
	vp    *Viewport
	graph Graph

	state       State
	lastScreen  Point
	drag        dragState
	connectFrom string

	blocks    []BlockBox
	selection map[string]struct{}
	activeID  string
}

// NewEngine creates an interaction engine over a viewport and graph.
func NewEngine(vp *Viewport, graph Graph) *Engine {
	return &Engine{
		vp:        vp,
		graph:     graph,
		selection: make(map[string]struct{}),
	}
}

// State returns the current gesture state.
func (e *Engine) State() State { return e.state }

// Viewport returns the engine's viewport.
func (e *Engine) Viewport() *Viewport { return e.vp }

// ActiveBlockID returns the block targeted by the next drag/delete, or "".
func (e *Engine) ActiveBlockID() string { return e.activeID }

// Selection returns the ids of the currently selected blocks.
func (e *Engine) Selection() []string {
	out := make([]string, 0, len(e.selection))
	for id := range e.selection {
		out = append(out, id)
	}
	return out
}

// IsSelected reports whether a block is in the selection set.
func (e *Engine) IsSelected(id string) bool {
	_, ok := e.selection[id]
	return ok
}

// SetBlocks supplies the current block geometry for hit testing. The slice
// is in render order: earlier entries draw first, so hit testing walks it
// back to front.
func (e *Engine) SetBlocks(blocks []BlockBox) {
	e.blocks = blocks
}

// ForgetBlock drops a deleted block from the selection and any in-flight
// gesture that references it.
func (e *Engine) ForgetBlock(id string) {
	delete(e.selection, id)
	if e.activeID == id {
		e.activeID = ""
	}
	if e.state == StateDraggingBlock && e.drag.id == id {
		e.state = StateIdle
	}
	if e.state == StateConnecting && e.connectFrom == id {
		e.state = StateIdle
		e.connectFrom = ""
	}
}

// PointerDown starts a gesture. On an output handle it begins a connection
// draw; on a block body it begins a drag and updates the selection; on
// empty background it begins a pan.
func (e *Engine) PointerDown(screen Point, shift bool) {
	e.lastScreen = screen

	if id, ok := e.hitOutputHandle(screen); ok {
		e.state = StateConnecting
		e.connectFrom = id
		return
	}

	if b, ok := e.hitBlock(screen); ok {
		e.updateSelection(b.ID, shift)
		e.activeID = b.ID
		e.state = StateDraggingBlock
		e.drag = dragState{id: b.ID, startX: b.X, startY: b.Y, startScreen: screen}
		return
	}

	e.state = StatePanning
}

// PointerMove advances the active gesture. Idle moves are no-ops.
func (e *Engine) PointerMove(screen Point) {
	switch e.state {
	case StatePanning:
		e.vp.PanBy(screen.X-e.lastScreen.X, screen.Y-e.lastScreen.Y)
	case StateDraggingBlock:
		// Drag is position-only: newPos = startPos + screenDelta/scale.
		dx := (screen.X - e.drag.startScreen.X) / e.vp.Scale
		dy := (screen.Y - e.drag.startScreen.Y) / e.vp.Scale
		_ = e.graph.MoveBlock(e.drag.id, e.drag.startX+dx, e.drag.startY+dy)
		e.syncBox(e.drag.id, e.drag.startX+dx, e.drag.startY+dy)
	}
	e.lastScreen = screen
}

// PointerUp ends the active gesture. A connection gesture commits only
// when released on the input handle of a different block; anywhere else
// it is discarded with no mutation. Pointer-up is defined in every state,
// so a malformed event sequence can never strand the engine.
func (e *Engine) PointerUp(screen Point) {
	if e.state == StateConnecting {
		if id, ok := e.hitInputHandle(screen); ok && id != e.connectFrom {
			// Duplicate and self-loop rejection happens in the graph;
			// a refused edge just ends the gesture.
			_ = e.graph.Connect(e.connectFrom, id)
		}
		e.connectFrom = ""
	}
	e.state = StateIdle
	e.lastScreen = screen
}

// Wheel handles scroll input: with the zoom modifier held it zooms,
// otherwise it pans by the raw delta.
func (e *Engine) Wheel(deltaX, deltaY float64, zoomModifier bool) {
	if zoomModifier {
		e.vp.ZoomBy(deltaY)
		return
	}
	e.vp.PanBy(-deltaX, -deltaY)
}

// ── selection ──────────────────────────────────────────────

// updateSelection applies click-selection rules: a plain click on an
// unselected block replaces the set; shift-click toggles membership.
// Selection never affects gesture transitions.
func (e *Engine) updateSelection(id string, shift bool) {
	if shift {
		if _, ok := e.selection[id]; ok {
			delete(e.selection, id)
		} else {
			e.selection[id] = struct{}{}
		}
		return
	}
	if _, ok := e.selection[id]; !ok {
		e.selection = map[string]struct{}{id: {}}
	}
}

// ClearSelection empties the selection set.
func (e *Engine) ClearSelection() {
	e.selection = make(map[string]struct{})
	e.activeID = ""
}

// ── hit testing ────────────────────────────────────────────

// hitBlock returns the topmost block under the screen point. The active
// block is raised to the top of the hit order, matching its raised render
// priority while selected.
func (e *Engine) hitBlock(screen Point) (BlockBox, bool) {
	p := e.vp.ScreenToCanvas(screen)
	if e.activeID != "" {
		for _, b := range e.blocks {
			if b.ID == e.activeID && pointInBox(p, b) {
				return b, true
			}
		}
	}
	for i := len(e.blocks) - 1; i >= 0; i-- {
		if pointInBox(p, e.blocks[i]) {
			return e.blocks[i], true
		}
	}
	return BlockBox{}, false
}

// hitOutputHandle tests the handle at the right-edge midpoint of each block.
func (e *Engine) hitOutputHandle(screen Point) (string, bool) {
	return e.hitHandle(screen, func(b BlockBox) Point {
		return Point{X: b.X + b.W, Y: b.Y + b.H/2}
	})
}

// hitInputHandle tests the handle at the left-edge midpoint of each block.
func (e *Engine) hitInputHandle(screen Point) (string, bool) {
	return e.hitHandle(screen, func(b BlockBox) Point {
		return Point{X: b.X, Y: b.Y + b.H/2}
	})
}

func (e *Engine) hitHandle(screen Point, anchor func(BlockBox) Point) (string, bool) {
	p := e.vp.ScreenToCanvas(screen)
	// Handles render at fixed screen size, so the hit radius shrinks in
	// canvas units as the zoom grows.
	r := HandleRadius / e.vp.Scale
	for i := len(e.blocks) - 1; i >= 0; i-- {
		a := anchor(e.blocks[i])
		dx, dy := p.X-a.X, p.Y-a.Y
		if dx*dx+dy*dy <= r*r {
			return e.blocks[i].ID, true
		}
	}
	return "", false
}

// syncBox keeps the local hit-test geometry in step with a drag so
// subsequent events in the same gesture see the moved block.
func (e *Engine) syncBox(id string, x, y float64) {
	for i := range e.blocks {
		if e.blocks[i].ID == id {
			e.blocks[i].X = x
			e.blocks[i].Y = y
			return
		}
	}
}

func pointInBox(p Point, b BlockBox) bool {
	return p.X >= b.X && p.X <= b.X+b.W && p.Y >= b.Y && p.Y <= b.Y+b.H
}
