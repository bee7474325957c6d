package canvas

// ─────────────────────────────────────────────────────────────
// Coordinate Transform — screen space ↔ logical canvas space
// ─────────────────────────────────────────────────────────────

const (
	MinScale = 0.1
	MaxScale = 3.0

	// ZoomSensitivity converts wheel deltaY into a scale delta.
	ZoomSensitivity = 0.001
)

// Point is a 2D coordinate, in either screen or canvas space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport maps between screen pixel space and logical canvas space via a
// pan offset and a scalar zoom factor. Block positions are stored in
// canvas space; the viewport is per workspace.
type Viewport struct {
	Pan   Point   `json:"pan"`
	Scale float64 `json:"scale"`
}

// NewViewport returns an identity viewport (no pan, scale 1).
func NewViewport() *Viewport {
	return &Viewport{Scale: 1.0}
}

// ScreenToCanvas converts a screen point to logical canvas space.
func (v *Viewport) ScreenToCanvas(p Point) Point {
	return Point{
		X: (p.X - v.Pan.X) / v.Scale,
		Y: (p.Y - v.Pan.Y) / v.Scale,
	}
}

// CanvasToScreen converts a logical canvas point to screen space.
func (v *Viewport) CanvasToScreen(p Point) Point {
	return Point{
		X: p.X*v.Scale + v.Pan.X,
		Y: p.Y*v.Scale + v.Pan.Y,
	}
}

// PanBy shifts the viewport by a raw screen-pixel delta. Pan is unscaled.
func (v *Viewport) PanBy(dx, dy float64) {
	v.Pan.X += dx
	v.Pan.Y += dy
}

// ZoomBy applies a wheel-driven zoom: scale += -deltaY * sensitivity,
// clamped to [MinScale, MaxScale]. The zoom is a plain multiplicative
// scale change with no focal anchoring; the resulting drift toward the
// origin is accepted behavior.
func (v *Viewport) ZoomBy(deltaY float64) {
	v.SetScale(v.Scale + -deltaY*ZoomSensitivity)
}

// SetScale sets the zoom factor, clamped to the allowed bounds.
func (v *Viewport) SetScale(s float64) {
	if s < MinScale {
		s = MinScale
	}
	if s > MaxScale {
		s = MaxScale
	}
	v.Scale = s
}
