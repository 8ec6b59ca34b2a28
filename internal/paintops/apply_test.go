package paintops

import (
	"testing"

	"github.com/inkstream/paintcore/internal/canvas"
	"github.com/inkstream/paintcore/internal/proptree"
	"github.com/inkstream/paintcore/internal/wire"
)

func newTestState(t *testing.T) (*canvas.TransientState, map[wire.LayerID]proptree.Route) {
	t.Helper()
	s := canvas.New(128, 128)
	ts := s.Transient()
	if err := Apply(ts, s.Routes(), wire.Command{Tag: wire.TagLayerCreate, ParentID: 0, LayerID: 1, Opacity: 0x8000, Blend: wire.BlendNormal}); err != nil {
		t.Fatalf("LAYER_CREATE: %v", err)
	}
	return ts, proptree.BuildRoutes(ts.Root.Persist())
}

func TestApplyFillRect_DirectDraw(t *testing.T) {
	ts, routes := newTestState(t)
	err := Apply(ts, routes, wire.Command{
		Tag: wire.TagFillRect, LayerID: 1,
		X: 0, Y: 0, W: 10, H: 10,
		Color: wire.NewColor32(255, 255, 0, 0),
		Blend: wire.BlendNormal,
	})
	if err != nil {
		t.Fatalf("FILL_RECT: %v", err)
	}
	leaf := routes[1]
	node := proptree.EntryTransientContent(ts.Root, leaf.Path)
	r, _, _, a := node.Leaf().TileAt(0, 0).At(0, 0)
	if r == 0 || a == 0 {
		t.Fatalf("expected filled red pixel, got r=%d a=%d", r, a)
	}
}

func TestApplyIndirectFillRect_ThenPenUp_Merges(t *testing.T) {
	ts, routes := newTestState(t)
	cmd := wire.Command{
		Tag: wire.TagFillRect, LayerID: 1, ContextID: 3, Indirect: true,
		X: 0, Y: 0, W: 5, H: 5,
		Color: wire.NewColor32(255, 0, 255, 0),
		Blend: wire.BlendNormal, Opacity: 0x8000,
	}
	if err := Apply(ts, routes, cmd); err != nil {
		t.Fatalf("indirect FILL_RECT: %v", err)
	}

	leafNode := proptree.EntryTransientContent(ts.Root, routes[1].Path)
	directPixel := leafNode.Leaf().TileAt(0, 0)
	if directPixel != nil {
		_, g, _, _ := directPixel.At(0, 0)
		if g != 0 {
			t.Fatal("indirect draw should not touch the layer's own content before PEN_UP")
		}
	}

	if err := Apply(ts, routes, wire.Command{Tag: wire.TagPenUp, LayerID: 1, ContextID: 3}); err != nil {
		t.Fatalf("PEN_UP: %v", err)
	}
	_, g, _, a := leafNode.Leaf().TileAt(0, 0).At(0, 0)
	if g == 0 || a == 0 {
		t.Fatal("PEN_UP should have merged the indirect sublayer into the layer")
	}
}

func TestApplyLayerOrder_Permutes(t *testing.T) {
	ts, routes := newTestState(t)
	if err := Apply(ts, routes, wire.Command{Tag: wire.TagLayerCreate, ParentID: 0, LayerID: 2, Opacity: 0x8000}); err != nil {
		t.Fatalf("second LAYER_CREATE: %v", err)
	}
	routes = proptree.BuildRoutes(ts.Root.Persist())
	err := Apply(ts, routes, wire.Command{Tag: wire.TagLayerOrder, ParentID: 0, Order: []wire.LayerID{2, 1}})
	if err != nil {
		t.Fatalf("LAYER_ORDER: %v", err)
	}
	if ts.Root.Child(0).Props.ID != 2 || ts.Root.Child(1).Props.ID != 1 {
		t.Fatal("LAYER_ORDER did not reorder children as requested")
	}
}
