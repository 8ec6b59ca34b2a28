package engine

import (
	"testing"

	"github.com/inkstream/paintcore/internal/wire"
)

type tileRecorder struct {
	DefaultTickCallbacks
	tiles [][2]int
}

func (r *tileRecorder) TileChanged(tx, ty int) {
	r.tiles = append(r.tiles, [2]int{tx, ty})
}

func TestEngine_PushLocalThenTick_InvokesCallback(t *testing.T) {
	e := New(128, 128)
	defer e.Stop()

	rec := &tileRecorder{}
	e.SetTickCallbacks(rec)

	e.PushLocal(wire.Command{Tag: wire.TagLayerCreate, ParentID: 0, LayerID: 1, Opacity: 0x8000, Blend: wire.BlendNormal}, 1)
	e.PushLocal(wire.Command{
		Tag: wire.TagFillRect, LayerID: 1, X: 0, Y: 0, W: 4, H: 4,
		Color: wire.NewColor32(255, 1, 2, 3), Blend: wire.BlendNormal,
	}, 1)

	e.Tick()
	if len(rec.tiles) == 0 {
		t.Fatal("expected tick callback to fire with at least one changed tile")
	}
}

func TestEngine_DefaultLayerRoutesLayerlessCommands(t *testing.T) {
	e := New(64, 64)
	defer e.Stop()

	e.PushLocal(wire.Command{Tag: wire.TagLayerCreate, ParentID: 0, LayerID: 5, Opacity: 0x8000, Blend: wire.BlendNormal}, 2)
	e.PushLocal(wire.Command{Tag: wire.TagDefaultLayer, LayerID: 5}, 2)
	e.PushLocal(wire.Command{Tag: wire.TagFillRect, X: 0, Y: 0, W: 4, H: 4, Color: wire.NewColor32(255, 9, 9, 9), Blend: wire.BlendNormal}, 2)

	e.Tick()

	s := e.Current()
	routes := s.Routes()
	node := s.Root.Walk(routes[5].Path)
	if node == nil || node.Leaf == nil {
		t.Fatal("expected layer 5 to exist")
	}
	if node.Leaf.TileAt(0, 0) == nil {
		t.Fatal("DEFAULT_LAYER should have routed the layer-less FILL_RECT onto layer 5")
	}
}

func TestEngine_Multidab_CoalescesIntoFewHistoryEntries(t *testing.T) {
	e := New(128, 128)
	defer e.Stop()

	e.PushLocal(wire.Command{Tag: wire.TagLayerCreate, ParentID: 0, LayerID: 1, Opacity: 0x8000, Blend: wire.BlendNormal}, 1)
	e.PushLocal(wire.Command{Tag: wire.TagDefaultLayer, LayerID: 1}, 1)

	const n = 130
	for i := 0; i < n; i++ {
		e.PushLocal(wire.Command{
			Tag:   wire.TagDrawDabsClassic,
			Color: wire.NewColor32(255, 10, 20, 30),
			Dabs:  []wire.Dab{{X: int32(i * 256), Y: 10 * 256, Size: 8, Hardness: 200, Opacity: 255}},
		}, 1)
	}
	e.Tick()

	if got := len(e.History().Entries()); got > 4 {
		t.Fatalf("expected the 130-dab burst to coalesce into a small number of entries, got %d", got)
	}
}

func TestEngine_PreviewCutThenClear_DiffsCoverTheSameTile(t *testing.T) {
	e := New(128, 128)
	defer e.Stop()

	e.PushLocal(wire.Command{Tag: wire.TagLayerCreate, ParentID: 0, LayerID: 1, Opacity: 0x8000, Blend: wire.BlendNormal}, 1)
	e.PushLocal(wire.Command{
		Tag: wire.TagFillRect, LayerID: 1, X: 0, Y: 0, W: 64, H: 64,
		Color: wire.NewColor32(255, 200, 200, 200), Blend: wire.BlendNormal,
	}, 1)
	e.Tick()

	rec := &tileRecorder{}
	e.SetTickCallbacks(rec)

	e.PushInternal(wire.Command{Tag: wire.TagPreview, ContextID: 1, LayerID: 1, X: 0, Y: 0, W: 32, H: 32})
	e.Tick()
	if len(rec.tiles) == 0 || rec.tiles[0] != [2]int{0, 0} {
		t.Fatalf("expected the preview cut to dirty tile (0,0), got %v", rec.tiles)
	}

	rec.tiles = nil
	e.ClearPreview()
	e.Tick()
	if len(rec.tiles) == 0 || rec.tiles[0] != [2]int{0, 0} {
		t.Fatalf("expected clearing the preview to re-dirty tile (0,0), got %v", rec.tiles)
	}
}
