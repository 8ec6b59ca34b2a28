// Package paintcore is the collaborative paint engine core: a versioned,
// immutable canvas data model with undo/redo, a command-driven paint
// engine that serializes local and remote edits through a worker thread,
// and a tile compositor that reports minimal per-tile redraws.
//
// The canvas model lives in internal/canvas, internal/layer, and
// internal/proptree. Command application is internal/paintops. The
// ordered command log with local/remote reconciliation is
// internal/history. The embedder-facing engine (queues, worker thread,
// preview slot, tick/render) is internal/engine. Wire framing is
// internal/wire. File format collaborators are format/openraster and
// format/flatpng.
package paintcore
