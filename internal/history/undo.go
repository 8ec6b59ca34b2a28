package history

import (
	"github.com/inkstream/paintcore/internal/canvas"
	"github.com/inkstream/paintcore/internal/wire"
)

// Undo removes the most recent completed stroke group belonging to ctx
// and replays the log without it, pushing the removed entries onto that
// context's redo stack (spec.md §4.6). Returns the diff against the
// previous current state, or a nil diff if ctx has nothing to undo.
func (h *History) Undo(ctx wire.ContextID) (*canvas.Diff, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group := h.popLastStrokeGroup(ctx)
	if group == nil {
		return nil, nil
	}

	var removed []Entry
	kept := make([]Entry, 0, len(h.entries))
	for _, e := range h.entries {
		if _, ok := group[e.Seq]; ok {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}

	oldCurrent := h.current
	h.releaseSnapshots(kept)
	result, err := h.replayFrom(h.genesis, kept)
	if err != nil {
		return nil, err
	}
	assignSnapshots(kept, 0, result)
	h.entries = kept
	h.current = result.final
	h.rebuildUndoPoints()
	h.redoStacks[ctx] = append(h.redoStacks[ctx], removed)

	return canvas.Compute(oldCurrent.Root, result.final.Root, result.final.TilesX(), result.final.TilesY()), nil
}

// Redo restores the most recently undone stroke group for ctx, if any.
func (h *History) Redo(ctx wire.ContextID) (*canvas.Diff, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	stack := h.redoStacks[ctx]
	if len(stack) == 0 {
		return nil, nil
	}
	restore := stack[len(stack)-1]
	h.redoStacks[ctx] = stack[:len(stack)-1]

	merged := append(append([]Entry{}, h.entries...), restore...)
	sortEntriesBySeq(merged)

	oldCurrent := h.current
	h.releaseSnapshots(merged)
	result, err := h.replayFrom(h.genesis, merged)
	if err != nil {
		return nil, err
	}
	assignSnapshots(merged, 0, result)
	h.entries = merged
	h.current = result.final
	h.rebuildUndoPoints()

	return canvas.Compute(oldCurrent.Root, result.final.Root, result.final.TilesX(), result.final.TilesY()), nil
}

func sortEntriesBySeq(entries []Entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Seq < entries[j-1].Seq; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// releaseSnapshots drops any Snapshot references carried by entries
// that are about to be discarded or replaced; entries retained in a new
// log get a fresh snapshot lazily assigned elsewhere.
func (h *History) releaseSnapshots(entries []Entry) {
	for i := range entries {
		entries[i].Snapshot.Release()
		entries[i].Snapshot = nil
	}
}

// popLastStrokeGroup finds and removes the most recent UNDO_POINT for
// ctx, returning the set of Seqs belonging to its stroke (every entry
// from ctx back to the previous UNDO_POINT for ctx, inclusive).
func (h *History) popLastStrokeGroup(ctx wire.ContextID) map[uint64]struct{} {
	pts := h.undoPoints[ctx]
	if len(pts) == 0 {
		return nil
	}
	last := pts[len(pts)-1]
	prevBoundary := -1
	if len(pts) > 1 {
		prevBoundary = pts[len(pts)-2]
	}
	h.undoPoints[ctx] = pts[:len(pts)-1]

	group := make(map[uint64]struct{})
	for i := prevBoundary + 1; i <= last && i < len(h.entries); i++ {
		if h.entries[i].Context == ctx {
			group[h.entries[i].Seq] = struct{}{}
		}
	}
	return group
}
