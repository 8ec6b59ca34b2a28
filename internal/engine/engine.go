// Package engine is the embedder-facing paint engine: a worker
// goroutine draining local and remote command queues against one
// history.History, publishing live preview frames and tick-driven diff
// callbacks (spec.md §4.6).
package engine

import (
	"sync"
	"sync/atomic"

	"github.com/inkstream/paintcore"
	"github.com/inkstream/paintcore/internal/canvas"
	"github.com/inkstream/paintcore/internal/history"
	"github.com/inkstream/paintcore/internal/paintops"
	"github.com/inkstream/paintcore/internal/proptree"
	"github.com/inkstream/paintcore/internal/wire"
)

// ACLFilter decides whether a context is permitted to draw on a given
// layer. PushLocal and PushRemote drop any command it rejects before
// queueing; hidden-layer overrides are kept separately (see
// SetLayerHiddenOverride).
type ACLFilter interface {
	Allow(ctx wire.ContextID, layer wire.LayerID) bool
}

type allowAll struct{}

func (allowAll) Allow(wire.ContextID, wire.LayerID) bool { return true }

// queuedCommand pairs a command with the metadata needed to route it
// to the right History method.
type queuedCommand struct {
	cmd    wire.Command
	ctx    wire.ContextID
	remote bool
	seq    uint64
}

// Engine owns the worker goroutine and the canvas history it mutates.
type Engine struct {
	history *history.History
	acl     ACLFilter

	mu          sync.Mutex
	localQueue  []queuedCommand
	remoteQueue []queuedCommand
	pending     sync.WaitGroup // counts queued-but-not-yet-applied commands

	preview atomic.Pointer[canvas.State] // latest in-progress preview, nil when no stroke is live
	catchup atomic.Int32                 // 0-100 while a soft reset replays, -1 when idle (spec.md §4.6 "Holds")

	tick        TickCallbacks
	handleCB    HandleCallbacks
	savePoint   SavePointFunc
	lastView    *canvas.State // the view_cs the previous Tick diffed against
	pendingDiff *canvas.Diff  // dirty mask from the last Tick, consumed by Render

	hiddenOverride   map[wire.LayerID]bool
	overrideCacheSrc *proptree.Node
	overrideCacheOut *canvas.State

	defaultLayer map[wire.ContextID]wire.LayerID

	stop chan struct{}
	wake chan struct{}
	done chan struct{}
}

// New creates an engine over a brand-new canvas of the given pixel
// dimensions and starts its worker goroutine.
func New(width, height int) *Engine {
	e := &Engine{
		history:        history.New(canvas.New(width, height)),
		acl:            allowAll{},
		defaultLayer:   make(map[wire.ContextID]wire.LayerID),
		hiddenOverride: make(map[wire.LayerID]bool),
		stop:           make(chan struct{}),
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
	e.catchup.Store(-1)
	e.history.SetCatchupCallback(func(progress int) { e.catchup.Store(int32(progress)) })
	go e.loop()
	return e
}

// SetACLFilter installs a custom access-control filter.
func (e *Engine) SetACLFilter(f ACLFilter) {
	e.mu.Lock()
	if f == nil {
		f = allowAll{}
	}
	e.acl = f
	cb := e.handleCB
	e.mu.Unlock()
	if cb != nil {
		cb.ACLsChanged()
	}
}

// SetTickCallbacks installs the receiver for every per-tick event
// (spec.md §4.6 step 4, §6). Pass nil to stop receiving tick events.
func (e *Engine) SetTickCallbacks(tc TickCallbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tick = tc
}

// SetHandleCallbacks installs the receiver for handle()'s side-effect
// events (ACL changes, laser trails, pointer moves, default-layer
// changes — spec.md §6 "on handle").
func (e *Engine) SetHandleCallbacks(hc HandleCallbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handleCB = hc
}

// SetSavePointFunc installs the receiver invoked once per accepted
// command (spec.md §6 "save_point_fn").
func (e *Engine) SetSavePointFunc(sp SavePointFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.savePoint = sp
}

// PushMessage implements PushMessageFunc, letting a message producer
// (e.g. a brush-stroke smoother on its own goroutine) feed a command
// into the engine the same way PushLocal does.
func (e *Engine) PushMessage(ctx wire.ContextID, cmd wire.Command) {
	e.PushLocal(cmd, ctx)
}

// SetLayerHiddenOverride toggles a client-side-only hidden flag for a
// layer, independent of its authoritative LAYER_ATTR hidden bit
// (spec.md §4.6 step 4 "apply_hidden_layers", §3 "censored": a layer an
// embedder hides locally without broadcasting the change).
func (e *Engine) SetLayerHiddenOverride(id wire.LayerID, hidden bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if hidden {
		e.hiddenOverride[id] = true
	} else {
		delete(e.hiddenOverride, id)
	}
	e.overrideCacheSrc = nil
}

// PushLocal enqueues a locally-originated command for the worker.
// DEFAULT_LAYER is a meta record handled inline here rather than going
// through history: it only updates which layer a context's subsequent
// layer-less commands target (spec.md §3, §4.6).
func (e *Engine) PushLocal(cmd wire.Command, ctx wire.ContextID) {
	e.mu.Lock()
	if cmd.Tag == wire.TagDefaultLayer {
		e.defaultLayer[ctx] = cmd.LayerID
		cb := e.handleCB
		e.mu.Unlock()
		if cb != nil {
			cb.DefaultLayerSet(ctx, cmd.LayerID)
		}
		return
	}
	if cmd.LayerID == 0 {
		cmd.LayerID = e.defaultLayer[ctx]
	}
	if !e.acl.Allow(ctx, cmd.LayerID) {
		e.mu.Unlock()
		return
	}
	e.localQueue = append(e.localQueue, queuedCommand{cmd: cmd, ctx: ctx})
	e.mu.Unlock()
	e.pending.Add(1)
	e.signal()
}

// PushRemote enqueues a remote command carrying its own logical
// sequence number.
func (e *Engine) PushRemote(cmd wire.Command, ctx wire.ContextID, seq uint64) {
	e.mu.Lock()
	if !e.acl.Allow(ctx, cmd.LayerID) {
		e.mu.Unlock()
		return
	}
	e.remoteQueue = append(e.remoteQueue, queuedCommand{cmd: cmd, ctx: ctx, remote: true, seq: seq})
	e.mu.Unlock()
	e.pending.Add(1)
	e.signal()
}

// PushInternal enqueues an engine-internal message (RESET, SOFT_RESET,
// SNAPSHOT, CATCHUP, PREVIEW) onto the local queue, so it serializes
// with accepted commands rather than jumping the line (spec.md §4.6
// "PREVIEW ... posted through the local queue").
func (e *Engine) PushInternal(cmd wire.Command) {
	e.mu.Lock()
	e.localQueue = append(e.localQueue, queuedCommand{cmd: cmd})
	e.mu.Unlock()
	e.pending.Add(1)
	e.signal()
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// loop is the engine's single worker goroutine: it drains the remote
// queue ahead of the local queue (remote commands carry fixed seqs and
// must land in order) each time it wakes, then idles until the next
// push or Stop (spec.md §4.6 worker-thread model).
func (e *Engine) loop() {
	defer close(e.done)
	for {
		select {
		case <-e.stop:
			e.drain()
			return
		case <-e.wake:
			e.drain()
		}
	}
}

func (e *Engine) drain() {
	for {
		batch, ok := e.popBurst()
		if !ok {
			return
		}
		e.handle(batch)
	}
}

// popBurst pops one command from whichever queue currently has a head,
// remote prioritized ahead of local. If that command is a dab burst, it
// keeps popping from the *same* queue while the new head is a dab burst
// of the same tag, context, layer, color, blend mode, opacity and
// indirect flag and the running dab total stays within history.MaxMultidabs,
// so a long stroke coalesces into one history entry instead of one per
// DRAW_DABS message (spec.md §4.6 worker loop).
func (e *Engine) popBurst() ([]queuedCommand, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	queue := &e.remoteQueue
	if len(*queue) == 0 {
		queue = &e.localQueue
		if len(*queue) == 0 {
			return nil, false
		}
	}

	first := (*queue)[0]
	*queue = (*queue)[1:]
	if !first.cmd.IsDabBurst() {
		return []queuedCommand{first}, true
	}

	batch := []queuedCommand{first}
	total := len(first.cmd.Dabs)
	for len(*queue) > 0 {
		next := (*queue)[0]
		sameStroke := next.cmd.Tag == first.cmd.Tag && next.ctx == first.ctx &&
			next.cmd.LayerID == first.cmd.LayerID && next.cmd.Color == first.cmd.Color &&
			next.cmd.Blend == first.cmd.Blend && next.cmd.Opacity == first.cmd.Opacity &&
			next.cmd.Indirect == first.cmd.Indirect
		if !sameStroke || total+len(next.cmd.Dabs) > history.MaxMultidabs {
			break
		}
		batch = append(batch, next)
		total += len(next.cmd.Dabs)
		*queue = (*queue)[1:]
	}
	return batch, true
}

func (e *Engine) handle(batch []queuedCommand) {
	defer e.pending.Add(-len(batch))

	first := batch[0]
	if first.cmd.Tag.IsInternal() {
		e.handleInternal(first.cmd)
		return
	}

	var diff *canvas.Diff
	var err error
	switch {
	case len(batch) == 1:
		if first.remote {
			diff, err = e.history.AppendRemote(first.cmd, first.ctx, first.seq)
		} else {
			diff, err = e.history.Append(first.cmd, first.ctx)
		}
	default:
		cmds := make([]wire.Command, len(batch))
		for i, qc := range batch {
			cmds[i] = qc.cmd
		}
		if first.remote {
			seqs := make([]uint64, len(batch))
			for i, qc := range batch {
				seqs[i] = qc.seq
			}
			diff, err = e.history.AppendRemoteMultidab(cmds, first.ctx, seqs)
		} else {
			diff, err = e.history.AppendMultidab(cmds, first.ctx)
		}
	}
	if err != nil {
		paintcore.Logger().Warn("engine: command discarded", "tag", first.cmd.Tag, "err", err)
		return
	}

	switch first.cmd.Tag {
	case wire.TagLaserTrail:
		if cb := e.handleCB; cb != nil {
			cb.LaserTrail(first.ctx, float32(first.cmd.X), float32(first.cmd.Y), first.cmd.Color)
		}
	case wire.TagMovePointer:
		if cb := e.handleCB; cb != nil {
			cb.MovePointer(first.ctx, float32(first.cmd.X), float32(first.cmd.Y))
		}
	}

	if e.savePoint != nil {
		snapshotRequested := first.cmd.Tag == wire.TagUndoPoint
		e.savePoint.SavePoint(first.ctx, e.history.Current(), snapshotRequested)
	}
}

// handleInternal dispatches an engine-internal (never-on-wire) message
// (spec.md §4.6 "handle_internal").
func (e *Engine) handleInternal(cmd wire.Command) {
	switch cmd.Tag {
	case wire.TagPreview:
		e.applyPreview(cmd)
	case wire.TagReset:
		e.history.Reset(int(cmd.W), int(cmd.H))
	case wire.TagSoftReset:
		e.history.SoftReset()
	case wire.TagSnapshot:
		e.history.SnapshotNow()
	case wire.TagCatchup:
		e.catchup.Store(cmd.X)
	}
}

// applyPreview renders an in-progress stroke or cut against the current
// history state and publishes it to the preview slot, without logging
// anything to history (spec.md §4.6 preview slot). cmd.Indirect selects
// a dabs preview (cmd.Dabs painted with cmd.Color and cmd.Blend);
// otherwise cmd describes a rectangular cut (erased via BlendErase).
func (e *Engine) applyPreview(cmd wire.Command) {
	base := e.history.Current()
	ts := base.Transient()
	routes := base.Routes()

	var pcmd wire.Command
	if cmd.Indirect {
		pcmd = wire.Command{
			Tag: wire.TagDrawDabsClassic, ContextID: cmd.ContextID, LayerID: cmd.LayerID,
			Color: cmd.Color, Opacity: cmd.Opacity, Blend: cmd.Blend, Dabs: cmd.Dabs,
		}
	} else {
		pcmd = wire.Command{
			Tag: wire.TagFillRect, ContextID: cmd.ContextID, LayerID: cmd.LayerID,
			X: cmd.X, Y: cmd.Y, W: cmd.W, H: cmd.H, Blend: wire.BlendErase,
			Color: wire.NewColor32(255, 0, 0, 0), // full coverage: erase the whole rect
		}
	}
	if err := paintops.Apply(ts, routes, pcmd); err != nil {
		return
	}
	e.PublishPreview(ts.Persist())
}

// Tick flushes any queued work synchronously (by waiting for pending
// commands to drain), computes view_cs = apply_hidden_layers(
// apply_preview(history_cs)), diffs it against the view from the
// previous Tick, and invokes every registered tick callback for what
// changed (spec.md §4.6 step 4).
func (e *Engine) Tick() {
	e.pending.Wait()

	if p := e.catchup.Swap(-1); p != -1 {
		e.mu.Lock()
		tc := e.tick
		e.mu.Unlock()
		if tc != nil {
			tc.Catchup(int(p))
		}
	}

	historyCS := e.history.Current()
	viewCS := historyCS
	if preview := e.preview.Load(); preview != nil {
		viewCS = preview
	}
	viewCS = e.applyHiddenOverrides(viewCS)

	e.mu.Lock()
	tc := e.tick
	prev := e.lastView
	e.lastView = viewCS
	e.mu.Unlock()

	if tc == nil {
		return
	}
	if prev == nil {
		prev = canvas.New(viewCS.Width, viewCS.Height)
	}
	if prev.Width != viewCS.Width || prev.Height != viewCS.Height {
		tc.Resized(viewCS.Width, viewCS.Height)
	}

	diff := canvas.Compute(prev.Root, viewCS.Root, viewCS.TilesX(), viewCS.TilesY())
	e.mu.Lock()
	e.pendingDiff = diff
	e.mu.Unlock()

	for _, xy := range diff.DirtyTiles() {
		tc.TileChanged(xy[0], xy[1])
	}
	if diff.PropsChanged {
		tc.LayerPropsChanged()
	}
	if prev.Annotations != viewCS.Annotations {
		tc.AnnotationsChanged()
		for _, a := range viewCS.Annotations.Value() {
			if a.Kind == canvas.AnnotationPointer {
				tc.CursorMoved(a.ContextID, a.X, a.Y)
			}
		}
	}
	if prev.Metadata != viewCS.Metadata {
		tc.DocumentMetadataChanged()
	}
}

// applyHiddenOverrides folds the client-side hidden-layer overrides
// into cs, rebuilding only when cs.Root actually changed since the last
// call (spec.md §4.6 "apply_hidden_layers").
func (e *Engine) applyHiddenOverrides(cs *canvas.State) *canvas.State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.hiddenOverride) == 0 {
		return cs
	}
	if e.overrideCacheSrc == cs.Root {
		return e.overrideCacheOut
	}

	ts := cs.Transient()
	routes := cs.Routes()
	for id, hidden := range e.hiddenOverride {
		if !hidden {
			continue
		}
		route, ok := routes[id]
		if !ok {
			continue
		}
		node := proptree.EntryTransientContent(ts.Root, route.Path)
		if node == nil {
			continue
		}
		p := node.Props()
		p.Hidden = true
		node.SetProps(p)
	}
	out := ts.Persist()
	e.overrideCacheSrc = cs.Root
	e.overrideCacheOut = out
	return out
}

// Stop halts the worker goroutine after draining any queued work.
func (e *Engine) Stop() {
	close(e.stop)
	<-e.done
}

// Preview returns the latest published in-progress preview state, or
// nil when no stroke is currently live (spec.md §4.6, atomic preview
// slot with a null sentinel).
func (e *Engine) Preview() *canvas.State {
	return e.preview.Load()
}

// PublishPreview swaps in a new preview snapshot, releasing whatever
// was previously published.
func (e *Engine) PublishPreview(s *canvas.State) {
	old := e.preview.Swap(s)
	old.Release()
}

// ClearPreview swaps the preview slot back to its null sentinel.
func (e *Engine) ClearPreview() {
	old := e.preview.Swap(nil)
	old.Release()
}

// Current returns the engine's current canvas snapshot (the
// authoritative history_cs, not the composited view_cs Tick computes).
func (e *Engine) Current() *canvas.State {
	return e.history.Current()
}

// History exposes the underlying history log for undo/redo.
func (e *Engine) History() *history.History {
	return e.history
}
