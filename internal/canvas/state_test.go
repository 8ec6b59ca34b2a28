package canvas

import (
	"testing"

	"github.com/inkstream/paintcore/internal/proptree"
	"github.com/inkstream/paintcore/internal/tile"
	"github.com/inkstream/paintcore/internal/wire"
)

func TestNew_EmptyCanvasHasTransparentBackgroundAndEmptyRoot(t *testing.T) {
	s := New(200, 130)
	defer s.Release()

	if s.TilesX() != 4 || s.TilesY() != 3 {
		t.Fatalf("tile grid = (%d,%d), want (4,3)", s.TilesX(), s.TilesY())
	}
	if !tile.IsTransparent(s.Background) {
		t.Fatal("new canvas background should be transparent")
	}
	if !s.Root.IsGroup() || len(s.Root.Children) != 0 {
		t.Fatal("new canvas root should be an empty group")
	}
}

func TestTransientState_AddLayerThenPersist(t *testing.T) {
	s := New(64, 64)
	defer s.Release()

	ts := s.Transient()
	leaf := proptree.NewTransientLeaf(proptree.Props{ID: 1, Opacity: 0x8000, Blend: wire.BlendNormal}, 1, 1)
	ts.Root.InsertChild(0, leaf.Persist())

	s2 := ts.Persist()
	defer s2.Release()

	if len(s2.Root.Children) != 1 || s2.Root.Children[0].Props.ID != 1 {
		t.Fatal("expected the new layer to appear in the persisted root")
	}

	diff := Compute(s.Root, s2.Root, s2.TilesX(), s2.TilesY())
	if diff.IsEmpty() {
		t.Fatal("adding a layer should produce a non-empty diff")
	}
	if !diff.PropsChanged {
		t.Fatal("a structural change should set PropsChanged")
	}
}

func TestDiff_UnchangedTileSharesPointerAndStaysClean(t *testing.T) {
	s := New(128, 64)
	defer s.Release()

	ts := s.Transient()
	leaf := proptree.NewTransientLeaf(proptree.Props{ID: 1, Opacity: 0x8000, Blend: wire.BlendNormal}, s.TilesX(), s.TilesY())
	leaf.Leaf().FillRect(0, 0, 10, 10, 0x8000, 0, 0, 0x8000, wire.BlendNormal)
	ts.Root.InsertChild(0, leaf.Persist())
	s1 := ts.Persist()
	defer s1.Release()

	ts2 := s1.Transient()
	child := ts2.Root.MutateChild(0)
	child.Leaf().FillRect(100, 0, 10, 10, 0, 0x8000, 0, 0x8000, wire.BlendNormal)
	s2 := ts2.Persist()
	defer s2.Release()

	diff := Compute(s1.Root, s2.Root, s2.TilesX(), s2.TilesY())
	if diff.IsTileDirty(0, 0) {
		t.Error("tile (0,0) was not touched by the second edit and should stay clean")
	}
	if !diff.IsTileDirty(1, 0) {
		t.Error("tile (1,0) contains the edited pixel and should be dirty")
	}
}
