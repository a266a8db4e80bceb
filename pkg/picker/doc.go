// Package picker implements the geometry of the hue ring and
// saturation/luminance triangle colour widget.
//
// The ring selects a hue. The triangle inside the ring is rotated with the
// hue; a pointer inside it selects saturation and luminance. Pointers
// outside the triangle are projected onto its edges so every drag yields a
// legal colour.
//
// All transforms are pure functions of a Geometry; Picker adds the per-widget
// state and change detection used to drive throttled updates.
package picker
