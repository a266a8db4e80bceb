package picker

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r2"
)

// State is the colour selected in a picker. Hue is in radians.
type State struct {
	Hue        float64
	Saturation float64
	Luminance  float64
}

// DefaultState is the colour of a freshly created picker.
var DefaultState = State{Hue: 0, Saturation: 1, Luminance: 0.2}

// Color converts the state to an RGB colour for swatches.
func (s State) Color() colorful.Color {
	return colorful.Hsl(s.Hue*180/math.Pi, s.Saturation, s.Luminance)
}

// Target selects which part of the widget a drag acts on.
type Target uint8

const (
	// TargetHue is the hue ring.
	TargetHue Target = iota

	// TargetValue is the saturation/luminance triangle.
	TargetValue
)

// String returns the target name.
func (t Target) String() string {
	switch t {
	case TargetHue:
		return "hue"
	case TargetValue:
		return "value"
	default:
		return "unknown"
	}
}

// Picker holds the state of one colour widget. It is owned by a single
// goroutine.
type Picker struct {
	geo   Geometry
	state State
}

// New creates a picker with DefaultState.
func New(geo Geometry) *Picker {
	return &Picker{geo: geo, state: DefaultState}
}

// Geometry returns the widget geometry.
func (p *Picker) Geometry() Geometry {
	return p.geo
}

// SetGeometry updates the widget geometry, e.g. after a resize.
func (p *Picker) SetGeometry(g Geometry) {
	p.geo = g
}

// State returns the current colour.
func (p *Picker) State() State {
	return p.state
}

// SetState replaces the current colour without a drag.
func (p *Picker) SetState(s State) {
	p.state = s
}

// Drag applies a pointer position to the given target and reports whether
// the colour changed.
func (p *Picker) Drag(t Target, pt r2.Vec) bool {
	if t == TargetHue {
		return p.DragHue(pt)
	}
	return p.DragValue(pt)
}

// DragHue updates the hue from a pointer on the ring. A pointer at the exact
// centre keeps the previous hue.
func (p *Picker) DragHue(pt r2.Vec) bool {
	hue, ok := p.geo.PointerToHue(pt)
	if !ok || hue == p.state.Hue {
		return false
	}
	p.state.Hue = hue
	return true
}

// DragValue updates saturation and luminance from a pointer on the triangle.
func (p *Picker) DragValue(pt r2.Vec) bool {
	sat, lum, ok := p.geo.PointerToSatLum(pt, p.state.Hue)
	if !ok || (sat == p.state.Saturation && lum == p.state.Luminance) {
		return false
	}
	p.state.Saturation = sat
	p.state.Luminance = lum
	return true
}

// HueMarker returns the absolute position of the hue ring marker.
func (p *Picker) HueMarker() r2.Vec {
	return r2.Add(p.geo.Center, p.geo.HuePointerOffset(p.state.Hue))
}

// ValueMarker returns the absolute position of the triangle marker.
func (p *Picker) ValueMarker() r2.Vec {
	off := p.geo.HueLumSatToPointerOffset(p.state.Hue, p.state.Saturation, p.state.Luminance)
	return r2.Add(p.geo.Center, off)
}
