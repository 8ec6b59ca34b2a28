// Package paintops applies one wire.Command at a time to a transient
// canvas state: the pure, serializable functions the history log and
// engine replay to go from one canvas snapshot to the next (spec.md §4,
// one Apply function per command tag).
package paintops

import (
	"fmt"

	"github.com/inkstream/paintcore/internal/canvas"
	"github.com/inkstream/paintcore/internal/layer"
	"github.com/inkstream/paintcore/internal/pixelops"
	"github.com/inkstream/paintcore/internal/proptree"
	"github.com/inkstream/paintcore/internal/wire"
)

// premultipliedColor15 converts a non-premultiplied wire.Color32 to
// premultiplied RGBA15 (spec.md §4.1's blend-space contract).
func premultipliedColor15(c wire.Color32) (r, g, b, a uint16) {
	a8 := c.A()
	pr := uint8((uint16(c.R())*uint16(a8) + 127) / 255)
	pg := uint8((uint16(c.G())*uint16(a8) + 127) / 255)
	pb := uint8((uint16(c.B())*uint16(a8) + 127) / 255)
	return pixelops.To15(pr), pixelops.To15(pg), pixelops.To15(pb), pixelops.To15(a8)
}

// Apply dispatches a command to its handler by tag. routes must be
// current for ts's tree shape (rebuilt by the caller after any
// structural command — LAYER_CREATE/ORDER/DELETE — changes it).
func Apply(ts *canvas.TransientState, routes map[wire.LayerID]proptree.Route, cmd wire.Command) error {
	switch cmd.Tag {
	case wire.TagCanvasResize:
		return applyCanvasResize(ts, cmd)
	case wire.TagLayerCreate:
		return applyLayerCreate(ts, routes, cmd)
	case wire.TagLayerAttr:
		return applyLayerAttr(ts, routes, cmd)
	case wire.TagLayerOrder:
		return applyLayerOrder(ts, routes, cmd)
	case wire.TagLayerDelete:
		return applyLayerDelete(ts, routes, cmd)
	case wire.TagFillRect:
		return applyFillRect(ts, routes, cmd)
	case wire.TagPutImage:
		return applyPutImage(ts, routes, cmd)
	case wire.TagDrawDabsClassic:
		return applyDrawDabs(ts, routes, cmd, dabClassic)
	case wire.TagDrawDabsPixel:
		return applyDrawDabs(ts, routes, cmd, dabPixel)
	case wire.TagDrawDabsPixelSquare:
		return applyDrawDabs(ts, routes, cmd, dabPixelSquare)
	case wire.TagDrawDabsMyPaint:
		return applyDrawDabs(ts, routes, cmd, dabMyPaint)
	case wire.TagPenUp:
		return applyPenUp(ts, routes, cmd)
	case wire.TagUndoPoint:
		return nil // marker only; history owns undo bookkeeping
	case wire.TagLaserTrail:
		return applyLaserTrail(ts, cmd)
	case wire.TagMovePointer:
		return applyMovePointer(ts, cmd)
	default:
		return fmt.Errorf("paintops: unhandled command tag %v", cmd.Tag)
	}
}

// targetLeaf resolves a layer id to its mutable content builder,
// creating the layer's indirect sublayer first when the command targets
// it indirectly (spec.md §4.4).
func targetLeaf(ts *canvas.TransientState, routes map[wire.LayerID]proptree.Route, id wire.LayerID) (*layer.TransientContent, error) {
	route, ok := routes[id]
	if !ok {
		return nil, fmt.Errorf("paintops: no route for layer %d", id)
	}
	node := proptree.EntryTransientContent(ts.Root, route.Path)
	if node == nil || node.IsGroup() {
		return nil, fmt.Errorf("paintops: layer %d route does not resolve to a leaf", id)
	}
	return node.Leaf(), nil
}

func applyCanvasResize(ts *canvas.TransientState, cmd wire.Command) error {
	newWidth, newHeight := int(cmd.W), int(cmd.H)
	newTilesX := (newWidth + wire.TileSize - 1) / wire.TileSize
	newTilesY := (newHeight + wire.TileSize - 1) / wire.TileSize
	tileOffsetX, tileOffsetY := int(cmd.OffsetX)/wire.TileSize, int(cmd.OffsetY)/wire.TileSize

	ts.Root.ResizeAll(newTilesX, newTilesY, tileOffsetX, tileOffsetY)
	ts.Width, ts.Height = newWidth, newHeight
	return nil
}

func applyLayerCreate(ts *canvas.TransientState, routes map[wire.LayerID]proptree.Route, cmd wire.Command) error {
	parentRoute, ok := routes[cmd.ParentID]
	if !ok {
		return fmt.Errorf("paintops: LAYER_CREATE unknown parent %d", cmd.ParentID)
	}
	parent := proptree.EntryTransientContent(ts.Root, parentRoute.Path)
	if parent == nil || !parent.IsGroup() {
		return fmt.Errorf("paintops: LAYER_CREATE parent %d is not a group", cmd.ParentID)
	}
	props := proptree.Props{ID: cmd.LayerID, Opacity: cmd.Opacity, Blend: cmd.Blend, Hidden: cmd.Hidden, Isolated: cmd.Isolated, Censored: cmd.Censored, Title: cmd.Title}
	var child *proptree.Node
	if cmd.IsGroup {
		child = proptree.NewTransientGroup(props).Persist()
	} else {
		child = proptree.NewTransientLeaf(props, ts.TilesX(), ts.TilesY()).Persist()
	}
	parent.InsertChild(parent.NumChildren(), child)
	return nil
}

func applyLayerAttr(ts *canvas.TransientState, routes map[wire.LayerID]proptree.Route, cmd wire.Command) error {
	route, ok := routes[cmd.LayerID]
	if !ok {
		return fmt.Errorf("paintops: LAYER_ATTR unknown layer %d", cmd.LayerID)
	}
	node := proptree.EntryTransientContent(ts.Root, route.Path)
	if node == nil {
		return fmt.Errorf("paintops: LAYER_ATTR route for %d did not resolve", cmd.LayerID)
	}
	p := node.Props()
	p.Opacity = cmd.Opacity
	p.Blend = cmd.Blend
	p.Hidden = cmd.Hidden
	p.Isolated = cmd.Isolated
	p.Censored = cmd.Censored
	p.Title = cmd.Title
	node.SetProps(p)
	return nil
}

func applyLayerOrder(ts *canvas.TransientState, routes map[wire.LayerID]proptree.Route, cmd wire.Command) error {
	route, ok := routes[cmd.ParentID]
	if !ok {
		return fmt.Errorf("paintops: LAYER_ORDER unknown parent %d", cmd.ParentID)
	}
	parent := proptree.EntryTransientContent(ts.Root, route.Path)
	if parent == nil || !parent.IsGroup() {
		return fmt.Errorf("paintops: LAYER_ORDER parent %d is not a group", cmd.ParentID)
	}
	if len(cmd.Order) != parent.NumChildren() {
		return fmt.Errorf("paintops: LAYER_ORDER length %d does not match %d children", len(cmd.Order), parent.NumChildren())
	}
	idByID := make(map[wire.LayerID]int, parent.NumChildren())
	for i := 0; i < parent.NumChildren(); i++ {
		c := parent.Child(i)
		if c != nil {
			idByID[c.Props.ID] = i
		}
	}
	perm := make([]int, len(cmd.Order))
	for i, id := range cmd.Order {
		idx, ok := idByID[id]
		if !ok {
			return fmt.Errorf("paintops: LAYER_ORDER references unknown child %d", id)
		}
		perm[i] = idx
	}
	parent.ReorderChildren(perm)
	return nil
}

func applyLayerDelete(ts *canvas.TransientState, routes map[wire.LayerID]proptree.Route, cmd wire.Command) error {
	route, ok := routes[cmd.LayerID]
	if !ok || route.Depth == 0 {
		return fmt.Errorf("paintops: LAYER_DELETE cannot remove layer %d", cmd.LayerID)
	}
	parentPath := route.Path[:len(route.Path)-1]
	childIdx := route.Path[len(route.Path)-1]
	parent := proptree.EntryTransientContent(ts.Root, parentPath)
	if parent == nil {
		return fmt.Errorf("paintops: LAYER_DELETE parent route for %d did not resolve", cmd.LayerID)
	}
	parent.RemoveChild(childIdx)
	return nil
}

func applyFillRect(ts *canvas.TransientState, routes map[wire.LayerID]proptree.Route, cmd wire.Command) error {
	return withDrawTarget(ts, routes, cmd, func(tc *layer.TransientContent) {
		r, g, b, a := premultipliedColor15(cmd.Color)
		tc.FillRect(int(cmd.X), int(cmd.Y), int(cmd.W), int(cmd.H), r, g, b, a, cmd.Blend)
	})
}

func applyPutImage(ts *canvas.TransientState, routes map[wire.LayerID]proptree.Route, cmd wire.Command) error {
	w, h := int(cmd.W), int(cmd.H)
	raw := cmd.Image
	if sw, sh := int(cmd.ScaleW), int(cmd.ScaleH); sw > 0 && sh > 0 && (sw != w || sh != h) && len(raw) == w*h*4 {
		raw = ResizeRGBA8(raw, w, h, sw, sh)
		w, h = sw, sh
	}
	pix, err := decodeImagePixels(raw, w, h)
	if err != nil {
		return err
	}
	return withDrawTarget(ts, routes, cmd, func(tc *layer.TransientContent) {
		tc.PutImage(int(cmd.X), int(cmd.Y), w, h, pix, cmd.Blend)
	})
}

func applyDrawDabs(ts *canvas.TransientState, routes map[wire.LayerID]proptree.Route, cmd wire.Command, kind dabKind) error {
	return withDrawTarget(ts, routes, cmd, func(tc *layer.TransientContent) {
		r, g, b, a := premultipliedColor15(cmd.Color)
		// Dabs are stamped at full stroke opacity; an indirect stroke's
		// opacity is applied when PEN_UP merges its sublayer.
		for _, dab := range cmd.Dabs {
			rasterizeDab(tc, dab, r, g, b, a, pixelops.Full15, cmd.Blend, kind)
		}
	})
}

// withDrawTarget resolves the layer to draw into, routing through the
// context's indirect sublayer when the command requests indirect
// drawing, runs draw against the resolved transient content, and — for
// the indirect case — commits the mutated content back onto the
// sublayer so it survives until the matching PEN_UP merges it
// (spec.md §4.4).
func withDrawTarget(ts *canvas.TransientState, routes map[wire.LayerID]proptree.Route, cmd wire.Command, draw func(tc *layer.TransientContent)) error {
	tc, err := targetLeaf(ts, routes, cmd.LayerID)
	if err != nil {
		return err
	}
	if !cmd.Indirect {
		draw(tc)
		return nil
	}
	sl := tc.PushSublayer(cmd.ContextID, cmd.Blend, cmd.Opacity)
	slt := sl.Content.Transient()
	draw(slt)
	sl.Content.Release()
	sl.Content = slt.Persist()
	return nil
}

func applyPenUp(ts *canvas.TransientState, routes map[wire.LayerID]proptree.Route, cmd wire.Command) error {
	tc, err := targetLeaf(ts, routes, cmd.LayerID)
	if err != nil {
		return err
	}
	sl := tc.TakeSublayer(cmd.ContextID)
	if sl == nil {
		return nil
	}
	tc.MergeSublayerInto(sl)
	return nil
}

func applyLaserTrail(ts *canvas.TransientState, cmd wire.Command) error {
	kept := make([]canvas.Annotation, 0, len(ts.Annotations()))
	for _, an := range ts.Annotations() {
		if an.ContextID != cmd.ContextID || an.Kind != canvas.AnnotationLaserTrail {
			kept = append(kept, an)
		}
	}
	kept = append(kept, canvas.Annotation{ContextID: cmd.ContextID, Kind: canvas.AnnotationLaserTrail, X: float32(cmd.X), Y: float32(cmd.Y), Color: cmd.Color})
	ts.SetAnnotations(kept)
	return nil
}

func applyMovePointer(ts *canvas.TransientState, cmd wire.Command) error {
	kept := make([]canvas.Annotation, 0, len(ts.Annotations()))
	for _, an := range ts.Annotations() {
		if an.ContextID != cmd.ContextID || an.Kind != canvas.AnnotationPointer {
			kept = append(kept, an)
		}
	}
	kept = append(kept, canvas.Annotation{ContextID: cmd.ContextID, Kind: canvas.AnnotationPointer, X: float32(cmd.X), Y: float32(cmd.Y)})
	ts.SetAnnotations(kept)
	return nil
}
