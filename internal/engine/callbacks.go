package engine

import (
	"github.com/inkstream/paintcore/internal/canvas"
	"github.com/inkstream/paintcore/internal/wire"
)

// SavePointFunc is invoked once per accepted command with the resulting
// canvas state, so an embedder can capture undo/redo restore points
// without polling (spec.md §6 "save_point_fn"). snapshotRequested is
// set for commands that mark a natural restore point (UNDO_POINT).
type SavePointFunc interface {
	SavePoint(ctx wire.ContextID, state *canvas.State, snapshotRequested bool)
}

// PushMessageFunc is the narrow capability a message producer needs to
// feed commands into the engine — e.g. a brush-stroke smoother running
// on its own goroutine that only needs "push a message", not the full
// Engine surface (spec.md §6 "push_message_fn", design note 9's
// single-purpose capability interfaces). *Engine implements it.
type PushMessageFunc interface {
	PushMessage(ctx wire.ContextID, cmd wire.Command)
}

// HandleCallbacks receives the side-effect events the engine emits
// while handling commands: ACL filter changes, DEFAULT_LAYER (handled
// inline by PushLocal), and LASER_TRAIL / MOVE_POINTER after they have
// been applied through history (spec.md §6 "on handle").
type HandleCallbacks interface {
	ACLsChanged()
	LaserTrail(ctx wire.ContextID, x, y float32, color wire.Color32)
	MovePointer(ctx wire.ContextID, x, y float32)
	DefaultLayerSet(ctx wire.ContextID, layer wire.LayerID)
}

// TickCallbacks receives every per-tick event the engine can emit
// (spec.md §4.6 step 4, §6 on-tick callback list). Embed
// DefaultTickCallbacks to pick up no-op defaults for events a given
// embedder doesn't care about.
type TickCallbacks interface {
	Catchup(progress int)
	Resized(width, height int)
	TileChanged(tx, ty int)
	LayerPropsChanged()
	AnnotationsChanged()
	DocumentMetadataChanged()
	CursorMoved(ctx wire.ContextID, x, y float32)
}

// DefaultTickCallbacks implements TickCallbacks with no-ops, so a
// caller that only cares about TileChanged can embed this and override
// just that one method.
type DefaultTickCallbacks struct{}

func (DefaultTickCallbacks) Catchup(int)                            {}
func (DefaultTickCallbacks) Resized(int, int)                       {}
func (DefaultTickCallbacks) TileChanged(int, int)                   {}
func (DefaultTickCallbacks) LayerPropsChanged()                      {}
func (DefaultTickCallbacks) AnnotationsChanged()                     {}
func (DefaultTickCallbacks) DocumentMetadataChanged()                {}
func (DefaultTickCallbacks) CursorMoved(wire.ContextID, float32, float32) {}
