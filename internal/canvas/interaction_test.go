package canvas

import "testing"

// fakeGraph records MoveBlock/Connect calls for assertions.
type fakeGraph struct {
	moves    map[string]Point
	connects [][2]string
	connErrs map[[2]string]error
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{moves: make(map[string]Point)}
}

func (g *fakeGraph) MoveBlock(id string, x, y float64) error {
	g.moves[id] = Point{X: x, Y: y}
	return nil
}

func (g *fakeGraph) Connect(fromID, toID string) error {
	if g.connErrs != nil {
		if err, ok := g.connErrs[[2]string{fromID, toID}]; ok {
			return err
		}
	}
	g.connects = append(g.connects, [2]string{fromID, toID})
	return nil
}

func newTestEngine(graph *fakeGraph, blocks ...BlockBox) *Engine {
	e := NewEngine(NewViewport(), graph)
	e.SetBlocks(blocks)
	return e
}

func TestEngine_PanGesture(t *testing.T) {
	e := newTestEngine(newFakeGraph())

	e.PointerDown(Point{X: 500, Y: 500}, false)
	if e.State() != StatePanning {
		t.Fatalf("state = %v, want panning", e.State())
	}

	e.PointerMove(Point{X: 530, Y: 480})
	e.PointerMove(Point{X: 540, Y: 470})
	e.PointerUp(Point{X: 540, Y: 470})

	vp := e.Viewport()
	if vp.Pan.X != 40 || vp.Pan.Y != -30 {
		t.Errorf("pan = (%v,%v), want (40,-30)", vp.Pan.X, vp.Pan.Y)
	}
	if e.State() != StateIdle {
		t.Errorf("state after pointer-up = %v, want idle", e.State())
	}
}

func TestEngine_DragDeterminism(t *testing.T) {
	// Start (100,100), screen delta (50,20) at scale 2 → (125,110).
	g := newFakeGraph()
	e := newTestEngine(g, BlockBox{ID: "b1", X: 100, Y: 100, W: 300, H: 200})
	e.Viewport().SetScale(2.0)

	// Block occupies screen rect (200,200)-(800,600) at scale 2.
	e.PointerDown(Point{X: 300, Y: 300}, false)
	if e.State() != StateDraggingBlock {
		t.Fatalf("state = %v, want dragging-block", e.State())
	}

	e.PointerMove(Point{X: 350, Y: 320})
	e.PointerUp(Point{X: 350, Y: 320})

	got, ok := g.moves["b1"]
	if !ok {
		t.Fatal("expected MoveBlock call for b1")
	}
	if got.X != 125 || got.Y != 110 {
		t.Errorf("position = (%v,%v), want (125,110)", got.X, got.Y)
	}
}

func TestEngine_DragUsesGestureStart(t *testing.T) {
	// Intermediate moves must not accumulate: each move is computed from
	// the gesture start, not the previous position.
	g := newFakeGraph()
	e := newTestEngine(g, BlockBox{ID: "b1", X: 0, Y: 0, W: 100, H: 100})

	e.PointerDown(Point{X: 50, Y: 50}, false)
	e.PointerMove(Point{X: 60, Y: 60})
	e.PointerMove(Point{X: 70, Y: 50})
	e.PointerUp(Point{X: 70, Y: 50})

	got := g.moves["b1"]
	if got.X != 20 || got.Y != 0 {
		t.Errorf("position = (%v,%v), want (20,0)", got.X, got.Y)
	}
}

func TestEngine_ConnectCommit(t *testing.T) {
	g := newFakeGraph()
	a := BlockBox{ID: "a", X: 0, Y: 0, W: 100, H: 100}
	b := BlockBox{ID: "b", X: 300, Y: 0, W: 100, H: 100}
	e := newTestEngine(g, a, b)

	// Output handle of a is at (100, 50); input handle of b at (300, 50).
	e.PointerDown(Point{X: 100, Y: 50}, false)
	if e.State() != StateConnecting {
		t.Fatalf("state = %v, want connecting", e.State())
	}

	e.PointerMove(Point{X: 200, Y: 50})
	e.PointerUp(Point{X: 300, Y: 50})

	if len(g.connects) != 1 || g.connects[0] != [2]string{"a", "b"} {
		t.Fatalf("connects = %v, want [[a b]]", g.connects)
	}
	if e.State() != StateIdle {
		t.Errorf("state = %v, want idle", e.State())
	}
}

func TestEngine_ConnectDiscardedOnBackground(t *testing.T) {
	g := newFakeGraph()
	a := BlockBox{ID: "a", X: 0, Y: 0, W: 100, H: 100}
	e := newTestEngine(g, a)

	e.PointerDown(Point{X: 100, Y: 50}, false)
	e.PointerUp(Point{X: 700, Y: 700})

	if len(g.connects) != 0 {
		t.Errorf("expected no connection, got %v", g.connects)
	}
	if e.State() != StateIdle {
		t.Errorf("state = %v, want idle", e.State())
	}
}

func TestEngine_ConnectToSelfDiscarded(t *testing.T) {
	g := newFakeGraph()
	a := BlockBox{ID: "a", X: 0, Y: 0, W: 100, H: 100}
	e := newTestEngine(g, a)

	// Release on a's own input handle.
	e.PointerDown(Point{X: 100, Y: 50}, false)
	e.PointerUp(Point{X: 0, Y: 50})

	if len(g.connects) != 0 {
		t.Errorf("expected no self connection, got %v", g.connects)
	}
}

func TestEngine_StrayPointerUpIsNoOp(t *testing.T) {
	g := newFakeGraph()
	e := newTestEngine(g, BlockBox{ID: "a", X: 0, Y: 0, W: 100, H: 100})

	// Pointer-up with no matching pointer-down.
	e.PointerUp(Point{X: 10, Y: 10})
	if e.State() != StateIdle {
		t.Errorf("state = %v, want idle", e.State())
	}
	if len(g.moves) != 0 || len(g.connects) != 0 {
		t.Error("stray pointer-up mutated the graph")
	}

	// Pointer-move while idle is likewise a no-op.
	e.PointerMove(Point{X: 999, Y: 999})
	if e.Viewport().Pan.X != 0 || e.Viewport().Pan.Y != 0 {
		t.Error("idle pointer-move changed the pan")
	}
}

func TestEngine_SelectionReplaceAndToggle(t *testing.T) {
	g := newFakeGraph()
	a := BlockBox{ID: "a", X: 0, Y: 0, W: 100, H: 100}
	b := BlockBox{ID: "b", X: 300, Y: 0, W: 100, H: 100}
	e := newTestEngine(g, a, b)

	e.PointerDown(Point{X: 50, Y: 50}, false)
	e.PointerUp(Point{X: 50, Y: 50})
	if !e.IsSelected("a") || e.IsSelected("b") {
		t.Fatalf("selection = %v, want [a]", e.Selection())
	}

	// Shift-click b adds it.
	e.PointerDown(Point{X: 350, Y: 50}, true)
	e.PointerUp(Point{X: 350, Y: 50})
	if !e.IsSelected("a") || !e.IsSelected("b") {
		t.Fatalf("selection = %v, want [a b]", e.Selection())
	}

	// Shift-click b again removes it.
	e.PointerDown(Point{X: 350, Y: 50}, true)
	e.PointerUp(Point{X: 350, Y: 50})
	if e.IsSelected("b") {
		t.Error("shift-click did not toggle b off")
	}

	// Plain click on unselected b replaces the set.
	e.PointerDown(Point{X: 350, Y: 50}, false)
	e.PointerUp(Point{X: 350, Y: 50})
	if e.IsSelected("a") || !e.IsSelected("b") {
		t.Fatalf("selection = %v, want [b]", e.Selection())
	}
}

func TestEngine_TopmostBlockWins(t *testing.T) {
	g := newFakeGraph()
	under := BlockBox{ID: "under", X: 0, Y: 0, W: 200, H: 200}
	over := BlockBox{ID: "over", X: 50, Y: 50, W: 200, H: 200}
	e := newTestEngine(g, under, over)

	// Overlap region: later entry renders on top and wins the hit.
	e.PointerDown(Point{X: 100, Y: 100}, false)
	if e.ActiveBlockID() != "over" {
		t.Errorf("active = %q, want over", e.ActiveBlockID())
	}
	e.PointerUp(Point{X: 100, Y: 100})
}

func TestEngine_ForgetBlockMidDrag(t *testing.T) {
	g := newFakeGraph()
	e := newTestEngine(g, BlockBox{ID: "a", X: 0, Y: 0, W: 100, H: 100})

	e.PointerDown(Point{X: 50, Y: 50}, false)
	e.ForgetBlock("a")

	if e.State() != StateIdle {
		t.Errorf("state = %v, want idle after block removal", e.State())
	}
	if e.IsSelected("a") || e.ActiveBlockID() == "a" {
		t.Error("removed block still referenced by engine")
	}
}

func TestEngine_WheelZoomVsPan(t *testing.T) {
	e := newTestEngine(newFakeGraph())

	e.Wheel(0, -500, true)
	if e.Viewport().Scale <= 1.0 {
		t.Errorf("scale = %v, want > 1 after zoom-in wheel", e.Viewport().Scale)
	}

	before := e.Viewport().Pan
	e.Wheel(10, 20, false)
	after := e.Viewport().Pan
	if after.X != before.X-10 || after.Y != before.Y-20 {
		t.Errorf("pan = (%v,%v), want (%v,%v)", after.X, after.Y, before.X-10, before.Y-20)
	}
}
