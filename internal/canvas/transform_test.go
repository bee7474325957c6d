package canvas

import (
	"math"
	"testing"
)

func TestScreenToCanvas_RoundTrip(t *testing.T) {
	viewports := []*Viewport{
		{Pan: Point{}, Scale: 1.0},
		{Pan: Point{X: 120, Y: -340}, Scale: 0.5},
		{Pan: Point{X: -999.5, Y: 0.25}, Scale: 3.0},
		{Pan: Point{X: 42, Y: 42}, Scale: 0.1},
	}
	points := []Point{
		{0, 0},
		{100, 100},
		{-512.5, 780.25},
		{1e6, -1e6},
	}

	for _, vp := range viewports {
		for _, p := range points {
			got := vp.ScreenToCanvas(vp.CanvasToScreen(p))
			if math.Abs(got.X-p.X) > 1e-6 || math.Abs(got.Y-p.Y) > 1e-6 {
				t.Errorf("round trip at scale=%.2f pan=(%.1f,%.1f): got (%v,%v), want (%v,%v)",
					vp.Scale, vp.Pan.X, vp.Pan.Y, got.X, got.Y, p.X, p.Y)
			}
		}
	}
}

func TestScreenToCanvas_Formula(t *testing.T) {
	vp := &Viewport{Pan: Point{X: 50, Y: 20}, Scale: 2.0}
	got := vp.ScreenToCanvas(Point{X: 250, Y: 120})
	if got.X != 100 || got.Y != 50 {
		t.Errorf("got (%v,%v), want (100,50)", got.X, got.Y)
	}
}

func TestZoomBy_ClampsScale(t *testing.T) {
	vp := NewViewport()

	// Zoom out hard, repeatedly
	for i := 0; i < 100; i++ {
		vp.ZoomBy(5000)
	}
	if vp.Scale != MinScale {
		t.Errorf("scale after zoom out = %v, want %v", vp.Scale, MinScale)
	}

	// Zoom in hard, repeatedly
	for i := 0; i < 100; i++ {
		vp.ZoomBy(-5000)
	}
	if vp.Scale != MaxScale {
		t.Errorf("scale after zoom in = %v, want %v", vp.Scale, MaxScale)
	}
}

func TestZoomBy_RandomishGesturesStayBounded(t *testing.T) {
	vp := NewViewport()
	deltas := []float64{-120, 240, -360, 10000, -10000, 3, -3, 999, -1}
	for i := 0; i < 500; i++ {
		vp.ZoomBy(deltas[i%len(deltas)])
		if vp.Scale < MinScale || vp.Scale > MaxScale {
			t.Fatalf("scale %v escaped [%v, %v] after %d gestures", vp.Scale, MinScale, MaxScale, i+1)
		}
	}
}

func TestPanBy_Unscaled(t *testing.T) {
	vp := &Viewport{Pan: Point{X: 10, Y: 10}, Scale: 0.5}
	vp.PanBy(30, -5)
	if vp.Pan.X != 40 || vp.Pan.Y != 5 {
		t.Errorf("pan = (%v,%v), want (40,5)", vp.Pan.X, vp.Pan.Y)
	}
}
