package canvas

import "testing"

func TestNextPosition_EmptyCanvas(t *testing.T) {
	le := NewLayoutEngine()
	x, y := le.NextPosition(nil, 420, 360)
	if x != 0 || y != 0 {
		t.Errorf("expected (0, 0) for empty canvas, got (%.0f, %.0f)", x, y)
	}
}

func TestNextPosition_AvoidsExistingBlocks(t *testing.T) {
	le := NewLayoutEngine()
	existing := []BlockBox{
		{X: 0, Y: 0, W: 420, H: 360},
		{X: 540, Y: 0, W: 420, H: 360},
	}
	x, y := le.NextPosition(existing, 420, 360)

	for _, b := range existing {
		r := rect{x, y, 420, 360}
		padded := rect{b.X - Padding, b.Y - Padding, b.W + Padding*2, b.H + Padding*2}
		if r.intersects(padded) {
			t.Errorf("position (%.0f, %.0f) overlaps block at (%.0f, %.0f)", x, y, b.X, b.Y)
		}
	}
}

func TestArrangeGroup_NoOverlaps(t *testing.T) {
	le := NewLayoutEngine()
	blocks := []BlockBox{
		{ID: "1", W: 300, H: 200},
		{ID: "2", W: 300, H: 200},
		{ID: "3", W: 300, H: 200},
	}

	arranged := le.ArrangeGroup(blocks, 0, 0)

	for i := 0; i < len(arranged); i++ {
		for j := i + 1; j < len(arranged); j++ {
			a := rect{arranged[i].X, arranged[i].Y, arranged[i].W, arranged[i].H}
			b := rect{arranged[j].X, arranged[j].Y, arranged[j].W, arranged[j].H}
			if a.intersects(b) {
				t.Errorf("blocks %d and %d overlap: (%.0f,%.0f) and (%.0f,%.0f)",
					i, j, a.x, a.y, b.x, b.y)
			}
		}
	}
}

func TestSnap(t *testing.T) {
	le := NewLayoutEngine()
	tests := []struct {
		input, want float64
	}{
		{0, 0},
		{15, 30},
		{29, 30},
		{30, 30},
		{45, 60},
		{100, 90},
	}
	for _, tt := range tests {
		got := le.Snap(tt.input)
		if got != tt.want {
			t.Errorf("Snap(%.0f) = %.0f, want %.0f", tt.input, got, tt.want)
		}
	}
}
