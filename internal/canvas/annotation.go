package canvas

import "github.com/inkstream/paintcore/internal/wire"

// AnnotationKind distinguishes the ephemeral, non-pixel overlays tracked
// alongside the canvas (spec.md §3 "annotations": laser trails and
// remote cursor positions).
type AnnotationKind uint8

const (
	AnnotationLaserTrail AnnotationKind = iota
	AnnotationPointer
)

// Annotation is one ephemeral overlay entry, keyed by the context that
// owns it. LASER_TRAIL and MOVE_POINTER commands (spec.md §4) replace
// the owning context's entry of their kind; they never touch tile pixels and so never mark a Diff
// tile dirty.
type Annotation struct {
	ContextID wire.ContextID
	Kind      AnnotationKind
	X, Y      float32
	Color     wire.Color32 // meaningful for AnnotationLaserTrail only
}
