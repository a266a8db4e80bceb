// Package model implements the client-side mirror of a controller's
// configuration.
//
// # Entity Hierarchy
//
// The LED variant uses a two-level hierarchy:
//
//	Strip > Zone
//
// A Strip owns a pixel budget. Zones are contiguous sub-allocations of that
// budget, appended and removed only at the tail:
//
//	Strip 0 (144 px, GRB)
//	├── Zone 0 (60 px, single colour)
//	├── Zone 1 (40 px, single colour)
//	└── 44 px remaining
//
// The fieldbus variant uses a flat list of FieldDevice slots, each with an
// 8-bit coil vector and an 8-bit input vector.
//
// # Invariants
//
// After every mutation:
//   - Strip.UsedPixels equals the sum of its zones' pixel counts.
//   - Strip.UsedPixels never exceeds Strip.PixelCount.
//   - Strip.ChannelOrder is a permutation of R, G and B.
//   - Zone ids are dense and 0-based within their strip.
//
// Mutators do not clamp user input themselves (with the exception of
// Strip.SetPixelCount and Strip.SetChannelOrder); callers clamp with
// ClampZoneSize before calling Zone.SetPixelCount.
//
// # Sync State
//
// Every entity carries a SyncState so that optimistic local edits can be told
// apart from values confirmed by the last device snapshot.
//
// The model has no locks. It is owned by a single goroutine.
package model
