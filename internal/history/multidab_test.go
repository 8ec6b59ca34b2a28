package history

import (
	"testing"

	"github.com/inkstream/paintcore/internal/canvas"
	"github.com/inkstream/paintcore/internal/wire"
)

func dabCommand(n int) wire.Command {
	dabs := make([]wire.Dab, n)
	for i := range dabs {
		dabs[i] = wire.Dab{X: int32(i * 256), Y: 4 * 256, Size: 8, Hardness: 200, Opacity: 255}
	}
	return wire.Command{Tag: wire.TagDrawDabsClassic, LayerID: 1, Color: wire.NewColor32(255, 1, 2, 3), Dabs: dabs}
}

func TestAppendMultidab_CoalescesIntoCeilDivChunks(t *testing.T) {
	h, ctx := newTestHistory()

	cmds := make([]wire.Command, 130)
	for i := range cmds {
		cmds[i] = dabCommand(1)
	}
	diff, err := h.AppendMultidab(cmds, ctx)
	if err != nil {
		t.Fatalf("AppendMultidab: %v", err)
	}
	if diff == nil || diff.IsEmpty() {
		t.Fatal("expected a non-empty merged diff")
	}

	entries := h.Entries()
	dabEntries := 0
	for _, e := range entries {
		if e.Command.IsDabBurst() {
			dabEntries++
		}
	}
	if dabEntries != 2 {
		t.Fatalf("expected 130 dabs to coalesce into ceil(130/128)=2 entries, got %d", dabEntries)
	}
}

func TestSoftReset_DiscardsLocalEntriesKeepsRemote(t *testing.T) {
	h := New(canvas.New(128, 128))
	ctx := wire.ContextID(1)

	// Both the layer's creation and its first fill arrive remotely, so
	// they survive the soft reset; only the second, locally-originated
	// fill should be discarded.
	if _, err := h.AppendRemote(wire.Command{
		Tag: wire.TagLayerCreate, ParentID: 0, LayerID: 1, Opacity: 0x8000, Blend: wire.BlendNormal,
	}, ctx, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := h.AppendRemote(wire.Command{
		Tag: wire.TagFillRect, LayerID: 1, X: 0, Y: 0, W: 4, H: 4,
		Color: wire.NewColor32(255, 9, 9, 9), Blend: wire.BlendNormal,
	}, ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Append(wire.Command{
		Tag: wire.TagFillRect, LayerID: 1, X: 4, Y: 0, W: 4, H: 4,
		Color: wire.NewColor32(255, 1, 1, 1), Blend: wire.BlendNormal,
	}, ctx); err != nil {
		t.Fatal(err)
	}

	var progress []int
	h.SetCatchupCallback(func(p int) { progress = append(progress, p) })

	if _, err := h.SoftReset(); err != nil {
		t.Fatalf("SoftReset: %v", err)
	}
	if len(progress) == 0 {
		t.Fatal("expected SoftReset to report catchup progress")
	}

	for _, e := range h.Entries() {
		if e.Local {
			t.Fatal("SoftReset should discard every local entry")
		}
	}
	if len(h.Entries()) != 2 {
		t.Fatalf("expected the two remote entries to survive, got %d", len(h.Entries()))
	}
}
