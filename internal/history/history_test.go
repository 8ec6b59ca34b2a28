package history

import (
	"testing"

	"github.com/inkstream/paintcore/internal/canvas"
	"github.com/inkstream/paintcore/internal/wire"
)

func newTestHistory() (*History, wire.ContextID) {
	root := canvas.New(128, 128)
	h := New(root)
	ctx := wire.ContextID(1)
	h.Append(wire.Command{Tag: wire.TagLayerCreate, ParentID: 0, LayerID: 1, Opacity: 0x8000, Blend: wire.BlendNormal}, ctx)
	return h, ctx
}

func TestAppend_FillsLayerAndReturnsDiff(t *testing.T) {
	h, ctx := newTestHistory()
	diff, err := h.Append(wire.Command{
		Tag: wire.TagFillRect, LayerID: 1,
		X: 0, Y: 0, W: 8, H: 8,
		Color: wire.NewColor32(255, 10, 20, 30), Blend: wire.BlendNormal,
	}, ctx)
	if err != nil {
		t.Fatalf("Append FILL_RECT: %v", err)
	}
	if diff.IsEmpty() {
		t.Fatal("expected a non-empty diff from FILL_RECT")
	}
}

func TestUndo_RemovesStrokeAndRestoresPreviousState(t *testing.T) {
	h, ctx := newTestHistory()
	// Close the layer creation as its own undo group so that undoing the
	// fill below leaves layer 1 in place.
	if _, err := h.Append(wire.Command{Tag: wire.TagUndoPoint}, ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Append(wire.Command{
		Tag: wire.TagFillRect, LayerID: 1, X: 0, Y: 0, W: 8, H: 8,
		Color: wire.NewColor32(255, 255, 0, 0), Blend: wire.BlendNormal,
	}, ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Append(wire.Command{Tag: wire.TagUndoPoint}, ctx); err != nil {
		t.Fatal(err)
	}

	beforeUndo := h.Current()
	diff, err := h.Undo(ctx)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if diff == nil {
		t.Fatal("expected Undo to produce a diff")
	}
	_ = beforeUndo

	routes := h.Current().Routes()
	route := routes[1]
	node := h.Current().Root.Walk(route.Path)
	if node.Leaf.TileAt(0, 0) != nil {
		if r, _, _, a := node.Leaf.TileAt(0, 0).At(0, 0); r != 0 || a != 0 {
			t.Fatal("Undo should have reverted the FILL_RECT stroke")
		}
	}
}

func TestRedo_RestoresUndoneStroke(t *testing.T) {
	h, ctx := newTestHistory()
	if _, err := h.Append(wire.Command{
		Tag: wire.TagFillRect, LayerID: 1, X: 0, Y: 0, W: 8, H: 8,
		Color: wire.NewColor32(255, 255, 0, 0), Blend: wire.BlendNormal,
	}, ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Append(wire.Command{Tag: wire.TagUndoPoint}, ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Undo(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Redo(ctx); err != nil {
		t.Fatalf("Redo: %v", err)
	}

	routes := h.Current().Routes()
	route := routes[1]
	node := h.Current().Root.Walk(route.Path)
	tl := node.Leaf.TileAt(0, 0)
	if tl == nil {
		t.Fatal("Redo should have restored the FILL_RECT stroke's tile")
	}
	r, _, _, a := tl.At(0, 0)
	if r == 0 || a == 0 {
		t.Fatal("Redo should have restored the filled pixel")
	}
}
