package history

import (
	"fmt"
	"sort"

	"github.com/inkstream/paintcore/internal/canvas"
	"github.com/inkstream/paintcore/internal/paintops"
	"github.com/inkstream/paintcore/internal/wire"
)

// reconcile inserts a remote command whose logical sequence number
// places it before the tail of the log, then replays everything from
// the nearest preceding snapshot forward so every entry after the
// insertion point reflects the rebased history (spec.md §4.6).
// h.mu is held by the caller.
func (h *History) reconcile(cmd wire.Command, ctx wire.ContextID, seq uint64) (*canvas.Diff, error) {
	cmd.ContextID = ctx
	insertAt := sort.Search(len(h.entries), func(i int) bool { return h.entries[i].Seq > seq })

	base, baseIdx := h.nearestSnapshot(insertAt)
	if len(h.entries)-baseIdx > MaxReconcileReplay {
		return h.softResetForRemote(cmd, ctx, seq)
	}

	newEntries := make([]Entry, 0, len(h.entries)+1)
	newEntries = append(newEntries, h.entries[:baseIdx]...)
	newEntries = append(newEntries, h.entries[baseIdx:insertAt]...)
	newEntries = append(newEntries, Entry{Command: cmd, Context: ctx, Local: false, Seq: seq})
	newEntries = append(newEntries, h.entries[insertAt:]...)

	oldCurrent := h.current
	replayed, err := h.replayFrom(base, newEntries[baseIdx:])
	if err != nil {
		return nil, fmt.Errorf("history: reconciling: %w", err)
	}
	assignSnapshots(newEntries, baseIdx, replayed)

	h.entries = newEntries
	h.current = replayed.final
	h.rebuildUndoPoints()

	return canvas.Compute(oldCurrent.Root, replayed.final.Root, replayed.final.TilesX(), replayed.final.TilesY()), nil
}

// softResetForRemote discards every local (unconfirmed) entry and
// rebuilds the log from genesis using only remote-originated entries
// plus the newly arriving one, reporting catchup progress as it
// replays (spec.md §4.5 "soft reset" fallback: the nearest snapshot was
// further back than MaxReconcileReplay entries, where a bounded replay
// from genesis is cheaper than hunting for an older snapshot or
// replaying the full local fork). h.mu is held by the caller.
func (h *History) softResetForRemote(cmd wire.Command, ctx wire.ContextID, seq uint64) (*canvas.Diff, error) {
	kept := make([]Entry, 0, len(h.entries)+1)
	for _, e := range h.entries {
		if !e.Local {
			kept = append(kept, e)
		}
	}
	insertAt := sort.Search(len(kept), func(i int) bool { return kept[i].Seq > seq })

	newEntries := make([]Entry, 0, len(kept)+1)
	newEntries = append(newEntries, kept[:insertAt]...)
	newEntries = append(newEntries, Entry{Command: cmd, Context: ctx, Local: false, Seq: seq})
	newEntries = append(newEntries, kept[insertAt:]...)

	oldCurrent := h.current
	h.releaseSnapshots(newEntries[:insertAt])
	h.releaseSnapshots(newEntries[insertAt+1:])
	h.reportCatchup(0)
	result, err := h.replayFrom(h.genesis, newEntries)
	if err != nil {
		h.reportCatchup(-1)
		return nil, fmt.Errorf("history: soft-reset reconciling: %w", err)
	}
	assignSnapshots(newEntries, 0, result)
	h.entries = newEntries
	h.current = result.final
	h.rebuildUndoPoints()
	h.reportCatchup(100)
	diff := canvas.Compute(oldCurrent.Root, result.final.Root, result.final.TilesX(), result.final.TilesY())
	h.reportCatchup(-1)
	return diff, nil
}

// nearestSnapshot returns the last snapshot at or before index upTo
// (exclusive) plus its entry index, falling back to genesis.
func (h *History) nearestSnapshot(upTo int) (*canvas.State, int) {
	for i := upTo - 1; i >= 0; i-- {
		if h.entries[i].Snapshot != nil {
			return h.entries[i].Snapshot, i
		}
	}
	return h.genesis, 0
}

// replayResult carries the final replayed state and lets reconcile pull
// an intermediate snapshot for any index it decides is now snapshot-due.
type replayResult struct {
	base   *canvas.State
	states []*canvas.State // state AFTER replaying entry i, same order as the entries slice passed to replayFrom
	final  *canvas.State
}

// snapshotAt returns (a retained reference to) the state immediately
// BEFORE entry i was applied, matching applyAndLog's snapshot
// convention (taken from prev, before computing next).
func (r *replayResult) snapshotAt(i int) *canvas.State {
	if i == 0 {
		return r.base.Retain()
	}
	return r.states[i-1].Retain()
}

// replayFrom applies every entry in order starting from base, returning
// the full chain of intermediate states (needed so callers can mint
// fresh snapshots at the right cadence) plus the final state.
func (h *History) replayFrom(base *canvas.State, entries []Entry) (*replayResult, error) {
	cur := base
	states := make([]*canvas.State, 0, len(entries))
	for _, e := range entries {
		ts := cur.Transient()
		routes := cur.Routes()
		if err := paintops.Apply(ts, routes, e.Command); err != nil {
			return nil, err
		}
		next := ts.Persist()
		next.Seq = e.Seq
		cur = next
		states = append(states, cur)
	}
	if len(states) == 0 {
		return &replayResult{base: base, final: base}, nil
	}
	return &replayResult{base: base, states: states, final: cur}, nil
}

// assignSnapshots mints a fresh snapshot for every SnapshotInterval-th
// entry from fromIdx onward, releasing whatever stale snapshot (if any)
// that index previously held. fromIdx itself keeps the snapshot it was
// replayed from.
func assignSnapshots(entries []Entry, fromIdx int, replayed *replayResult) {
	for i := range entries[fromIdx:] {
		idx := fromIdx + i
		if entries[idx].Snapshot != nil && idx != fromIdx {
			entries[idx].Snapshot.Release()
			entries[idx].Snapshot = nil
		}
		if idx%SnapshotInterval == 0 && idx > 0 {
			entries[idx].Snapshot = replayed.snapshotAt(i)
		}
	}
}

// rebuildUndoPoints recomputes each context's UNDO_POINT index list from
// scratch after a reconciliation reshuffles entry indices.
func (h *History) rebuildUndoPoints() {
	h.undoPoints = make(map[wire.ContextID][]int)
	for i, e := range h.entries {
		if e.Command.Tag == wire.TagUndoPoint {
			h.pushUndoPoint(e.Context, i)
		}
	}
}
