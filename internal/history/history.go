// Package history maintains the ordered command log behind one canvas:
// local and remote command entries, periodic snapshots for fast replay,
// per-context undo/redo stacks, and fork reconciliation when a remote
// command arrives out of logical-time order (spec.md §4.6).
package history

import (
	"fmt"
	"sync"

	"github.com/inkstream/paintcore/internal/canvas"
	"github.com/inkstream/paintcore/internal/paintops"
	"github.com/inkstream/paintcore/internal/wire"
)

const (
	// UndoDepthLimit bounds how many undo points each context keeps
	// live; older undo points are dropped, so their groups can no longer
	// be undone (their entries stay in the log).
	UndoDepthLimit = 30

	// SnapshotInterval is how many log entries pass between automatic
	// full-state snapshots, trading memory for replay speed on
	// reconciliation (spec.md §4.6).
	SnapshotInterval = 64

	// MaxMultidabs bounds how many consecutive same-stroke dab commands
	// handle_multidab coalesces into a single history entry (spec.md
	// §4.6).
	MaxMultidabs = 128

	// MaxReconcileReplay bounds how many entries reconcile will replay
	// forward from a snapshot before giving up and soft-resetting
	// instead (spec.md §4.5 "soft reset" fallback): beyond this, a
	// bounded replay from genesis discarding the local fork is cheaper
	// than hunting for an older snapshot or replaying an unbounded tail.
	MaxReconcileReplay = 512
)

// Entry is one logged command plus the bookkeeping needed to replay or
// reconcile the log around it.
type Entry struct {
	Command  wire.Command
	Context  wire.ContextID
	Local    bool
	Seq      uint64
	Snapshot *canvas.State // non-nil on every SnapshotInterval-th entry
}

// History is the ordered log of commands applied to one canvas, plus
// the canvas state that log currently produces.
type History struct {
	mu         sync.Mutex
	genesis    *canvas.State // the state before entries[0]; reconciliation's base case
	entries    []Entry
	current    *canvas.State
	nextSeq    uint64
	undoPoints map[wire.ContextID][]int // indices into entries of each context's UNDO_POINT markers
	redoStacks map[wire.ContextID][][]Entry

	catchupFn func(progress int) // spec.md §4.6 "catchup" atomic slot; nil if the embedder never registered one
}

// SetCatchupCallback installs the function invoked with a 0-100
// progress value while a soft reset is replaying, and -1 once it's done
// (spec.md §4.6 Catchup, §4.5 soft reset).
func (h *History) SetCatchupCallback(fn func(progress int)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.catchupFn = fn
}

func (h *History) reportCatchup(progress int) {
	if h.catchupFn != nil {
		h.catchupFn(progress)
	}
}

// New creates a history rooted at the given initial canvas snapshot.
// Ownership of one reference on initial transfers to the History.
func New(initial *canvas.State) *History {
	return &History{
		genesis:    initial.Retain(),
		current:    initial,
		undoPoints: make(map[wire.ContextID][]int),
		redoStacks: make(map[wire.ContextID][][]Entry),
	}
}

// Current returns the canvas state the log currently produces. The
// caller must not release it; it is owned by the History.
func (h *History) Current() *canvas.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Entries returns a shallow copy of the current log, for inspection
// (e.g. counting how many entries a multidab burst coalesced into).
func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Append applies a locally-originated command, logs it with the next
// logical sequence number, and returns the resulting diff (spec.md
// §4.5, §4.6).
func (h *History) Append(cmd wire.Command, ctx wire.ContextID) (*canvas.Diff, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	seq := h.nextSeq
	h.nextSeq++
	return h.applyAndLog(cmd, ctx, true, seq)
}

// AppendRemote applies a remote command carrying its own logical
// sequence number. If seq does not come after every entry already
// logged, this triggers reconciliation: the log forks at the insertion
// point and everything after it is replayed (spec.md §4.6, "local/remote
// reconciliation").
func (h *History) AppendRemote(cmd wire.Command, ctx wire.ContextID, seq uint64) (*canvas.Diff, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if seq >= h.nextSeq {
		if seq > h.nextSeq {
			h.nextSeq = seq
		}
		h.nextSeq++
		return h.applyAndLog(cmd, ctx, false, seq)
	}
	return h.reconcile(cmd, ctx, seq)
}

// applyAndLog applies cmd to the working transient state, appends the
// log entry (snapshotting if due), and returns the diff against the
// previous current state.
func (h *History) applyAndLog(cmd wire.Command, ctx wire.ContextID, local bool, seq uint64) (*canvas.Diff, error) {
	cmd.ContextID = ctx
	prev := h.current
	ts := prev.Transient()
	routes := prev.Routes()
	if err := paintops.Apply(ts, routes, cmd); err != nil {
		return nil, fmt.Errorf("history: applying entry: %w", err)
	}
	next := ts.Persist()
	next.Seq = seq

	entry := Entry{Command: cmd, Context: ctx, Local: local, Seq: seq}
	idx := len(h.entries)
	if idx%SnapshotInterval == 0 {
		entry.Snapshot = prev.Retain()
	}
	h.entries = append(h.entries, entry)
	if cmd.Tag == wire.TagUndoPoint {
		h.pushUndoPoint(ctx, idx)
	}

	diff := canvas.Compute(prev.Root, next.Root, next.TilesX(), next.TilesY())
	h.current = next
	return diff, nil
}

// AppendMultidab is handle_multidab for locally-originated dab bursts:
// it coalesces cmds (all assumed contiguous and already vetted as the
// same dab tag by the engine's worker loop) into chunks of at most
// MaxMultidabs, applying and logging each chunk as a single transient
// edit and history entry. Every dab stays individually addressable for
// undo since they all share the same undo point (spec.md §4.5, §4.6
// "multidab batching", scenario S4).
func (h *History) AppendMultidab(cmds []wire.Command, ctx wire.ContextID) (*canvas.Diff, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(cmds) == 0 {
		return nil, nil
	}

	var merged *canvas.Diff
	for len(cmds) > 0 {
		n := len(cmds)
		if n > MaxMultidabs {
			n = MaxMultidabs
		}
		chunk := mergeDabCommands(cmds[:n])
		cmds = cmds[n:]

		seq := h.nextSeq
		h.nextSeq++
		diff, err := h.applyAndLog(chunk, ctx, true, seq)
		if err != nil {
			return nil, err
		}
		merged = mergeDiff(merged, diff)
	}
	return merged, nil
}

// AppendRemoteMultidab is handle_multidab for a remote-originated dab
// burst. Each command already carries its own logical seq; a burst only
// coalesces cleanly when every seq in it lands after the log's tail
// (the common case — a burst arrives as one unit from one remote
// peer). If the first seq would instead require reconciliation, each
// command is applied one at a time through the ordinary reconcile path
// so out-of-order bursts stay correct at the cost of per-entry logging.
func (h *History) AppendRemoteMultidab(cmds []wire.Command, ctx wire.ContextID, seqs []uint64) (*canvas.Diff, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(cmds) == 0 {
		return nil, nil
	}

	if seqs[0] < h.nextSeq {
		var merged *canvas.Diff
		for i, cmd := range cmds {
			var diff *canvas.Diff
			var err error
			seq := seqs[i]
			if seq >= h.nextSeq {
				if seq > h.nextSeq {
					h.nextSeq = seq
				}
				h.nextSeq++
				diff, err = h.applyAndLog(cmd, ctx, false, seq)
			} else {
				diff, err = h.reconcile(cmd, ctx, seq)
			}
			if err != nil {
				return nil, err
			}
			merged = mergeDiff(merged, diff)
		}
		return merged, nil
	}

	var merged *canvas.Diff
	start := 0
	for start < len(cmds) {
		end := start + MaxMultidabs
		if end > len(cmds) {
			end = len(cmds)
		}
		chunk := mergeDabCommands(cmds[start:end])
		seq := seqs[end-1]
		if seq >= h.nextSeq {
			h.nextSeq = seq + 1
		}
		diff, err := h.applyAndLog(chunk, ctx, false, seq)
		if err != nil {
			return nil, err
		}
		merged = mergeDiff(merged, diff)
		start = end
	}
	return merged, nil
}

// mergeDabCommands concatenates a contiguous run of dab commands into
// one Command carrying every dab, so the batch applies and logs as a
// single transient-state edit (spec.md §4.5).
func mergeDabCommands(cmds []wire.Command) wire.Command {
	merged := cmds[0]
	total := 0
	for _, c := range cmds {
		total += len(c.Dabs)
	}
	merged.Dabs = make([]wire.Dab, 0, total)
	for _, c := range cmds {
		merged.Dabs = append(merged.Dabs, c.Dabs...)
	}
	return merged
}

func mergeDiff(into, diff *canvas.Diff) *canvas.Diff {
	if into == nil {
		return diff
	}
	into.Merge(diff)
	return into
}

// Reset discards the entire log and starts over at a blank canvas of
// the given size — the engine-internal RESET message (spec.md §4.6),
// used for a hard resync rather than the bounded SoftReset fallback.
func (h *History) Reset(width, height int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.releaseSnapshots(h.entries)
	h.genesis.Release()
	h.current.Release()

	blank := canvas.New(width, height)
	h.genesis = blank.Retain()
	h.current = blank
	h.entries = nil
	h.nextSeq = 0
	h.undoPoints = make(map[wire.ContextID][]int)
	h.redoStacks = make(map[wire.ContextID][][]Entry)
}

// SoftReset discards every local, unconfirmed entry and rebuilds the
// log from genesis using only the remote-originated entries that
// remain, reporting catchup progress as it replays (spec.md §4.5, §4.6
// "soft reset": the engine-internal SOFT_RESET message, or reconcile's
// own fallback when a replay would exceed MaxReconcileReplay).
func (h *History) SoftReset() (*canvas.Diff, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.softReset()
}

func (h *History) softReset() (*canvas.Diff, error) {
	kept := make([]Entry, 0, len(h.entries))
	for _, e := range h.entries {
		if !e.Local {
			kept = append(kept, e)
		}
	}

	oldCurrent := h.current
	h.releaseSnapshots(kept)
	h.reportCatchup(0)
	result, err := h.replayFrom(h.genesis, kept)
	if err != nil {
		h.reportCatchup(-1)
		return nil, fmt.Errorf("history: soft reset: %w", err)
	}
	assignSnapshots(kept, 0, result)
	h.entries = kept
	h.current = result.final
	h.rebuildUndoPoints()
	h.reportCatchup(100)
	diff := canvas.Compute(oldCurrent.Root, result.final.Root, result.final.TilesX(), result.final.TilesY())
	h.reportCatchup(-1)
	return diff, nil
}

// SnapshotNow forces the most recently logged entry to carry a
// snapshot of the state immediately before it, independent of the
// usual SnapshotInterval cadence — the engine-internal SNAPSHOT message
// (spec.md §4.6), used by embedders that know a save point is coming up
// and want reconciliation to have a nearby snapshot ready.
func (h *History) SnapshotNow() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == 0 {
		return
	}
	idx := len(h.entries) - 1
	if h.entries[idx].Snapshot != nil {
		return
	}
	base, baseIdx := h.nearestSnapshot(idx)
	if baseIdx == idx {
		h.entries[idx].Snapshot = base.Retain()
		return
	}
	result, err := h.replayFrom(base, h.entries[baseIdx:idx])
	if err != nil {
		return
	}
	h.entries[idx].Snapshot = result.final.Retain()
}

func (h *History) pushUndoPoint(ctx wire.ContextID, idx int) {
	pts := append(h.undoPoints[ctx], idx)
	if len(pts) > UndoDepthLimit {
		pts = pts[len(pts)-UndoDepthLimit:]
	}
	h.undoPoints[ctx] = pts
}

