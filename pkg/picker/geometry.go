package picker

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Calibration constants of the triangle relative to the enclosing circle.
// They must not change, otherwise pointers land in different places than on
// other clients.
const (
	satOffset      = 0.32
	satSpan        = 0.71
	lumSpan        = 0.8
	satPointerBase = 0.23
	triangleBottom = 0.235
	hueRingRadius  = 0.87
)

var (
	origin = r2.Vec{}

	// One third of a turn, applied three times per triangle projection.
	thirdTurn = r2.NewRotation(-2*math.Pi/3, origin)
)

// Geometry describes the widget rectangle. The Y axis points up: a pointer
// below the centre has a smaller Y than the centre.
type Geometry struct {
	Center r2.Vec

	// Half is the half-width and half-height of the widget.
	Half r2.Vec
}

// NewGeometry returns the geometry of the widget occupying box.
func NewGeometry(box r2.Box) Geometry {
	return Geometry{
		Center: box.Center(),
		Half:   r2.Scale(0.5, box.Size()),
	}
}

// Degenerate reports whether the widget has no area.
func (g Geometry) Degenerate() bool {
	return g.Half.X <= 0 || g.Half.Y <= 0
}

// PointerToHue maps a pointer on the hue ring to a hue in [0, 2π). Directly
// below the centre is 0, directly above is π, and the left half mirrors the
// right half as 2π - h.
//
// A pointer exactly at the centre has no direction; ok is false and the
// caller keeps its previous hue.
func (g Geometry) PointerToHue(p r2.Vec) (hue float64, ok bool) {
	d := r2.Sub(p, g.Center)
	l := r2.Norm(d)
	if l == 0 {
		return 0, false
	}

	hue = math.Acos(clamp(-d.Y/l, -1, 1))
	if d.X < 0 {
		hue = 2*math.Pi - hue
	}
	return hue, true
}

// PointerToSatLum maps a pointer inside (or outside) the triangle, which is
// rotated by hue, to a saturation and luminance in [0, 1]. Pointers outside
// the triangle are projected onto its nearest edge first.
//
// ok is false for a degenerate geometry.
func (g Geometry) PointerToSatLum(p r2.Vec, hue float64) (sat, lum float64, ok bool) {
	if g.Degenerate() {
		return 0, 0, false
	}

	v := r2.NewRotation(-hue, origin).Rotate(r2.Sub(p, g.Center))

	limit := g.Half.Y * triangleBottom
	v.Y = math.Min(v.Y, limit)
	v = thirdTurn.Rotate(v)
	v.Y = math.Min(v.Y, limit)
	v = thirdTurn.Rotate(v)
	v.Y = math.Min(v.Y, limit)
	v = thirdTurn.Rotate(v)

	sat = satOffset - v.Y/(g.Half.Y*satSpan)
	lum = clamp(0.5-v.X/(g.Half.X*lumSpan), 0, 1)

	switch {
	case sat < 0:
		sat = 0
	case sat > 1:
		sat = 1
		if v.Y < 0 {
			lum = 0.5
		}
	default:
		if m := satModulation(lum); m != 0 {
			sat = clamp(sat/m, 0, 1)
		} else {
			sat = 1
		}
	}
	return sat, lum, true
}

// HuePointerOffset returns the position of the hue ring marker relative to
// the centre.
func (g Geometry) HuePointerOffset(hue float64) r2.Vec {
	sin, cos := math.Sincos(hue)
	return r2.Vec{
		X: sin * g.Half.X * hueRingRadius,
		Y: -cos * g.Half.Y * hueRingRadius,
	}
}

// HueLumSatToPointerOffset returns the position of the triangle marker
// relative to the centre. It is only used for drawing the marker and is not
// an exact inverse of PointerToSatLum.
func (g Geometry) HueLumSatToPointerOffset(hue, sat, lum float64) r2.Vec {
	sin, cos := math.Sincos(hue)

	lumScale := lum*lumSpan - 0.4
	lumY := -sin * g.Half.Y * lumScale
	lumX := cos * g.Half.X * lumScale

	satScale := sat*satSpan*satModulation(lum) - satPointerBase
	satY := cos * g.Half.Y * satScale
	satX := sin * g.Half.X * satScale

	return r2.Vec{X: satX - lumX, Y: lumY - satY}
}

// satModulation narrows the saturation range towards the black and white
// corners of the triangle.
func satModulation(lum float64) float64 {
	return math.Min(2-2*lum, 2*lum)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
