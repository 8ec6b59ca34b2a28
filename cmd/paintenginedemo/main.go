// Command paintenginedemo drives the paint engine end-to-end: it opens
// a canvas, fills a background layer, draws two strokes on a second
// layer, undoes the most recent stroke, and saves the result as both an
// OpenRaster document and a flattened PNG.
package main

import (
	"flag"
	"log"
	"math"
	"os"

	"github.com/inkstream/paintcore/format/flatpng"
	"github.com/inkstream/paintcore/format/openraster"
	"github.com/inkstream/paintcore/internal/engine"
	"github.com/inkstream/paintcore/internal/wire"
)

func main() {
	var (
		width  = flag.Int("width", 512, "canvas width")
		height = flag.Int("height", 512, "canvas height")
		oraOut = flag.String("ora", "demo.ora", "OpenRaster output path")
		pngOut = flag.String("png", "demo.png", "flattened PNG output path")
	)
	flag.Parse()

	e := engine.New(*width, *height)
	defer e.Stop()

	const ctx wire.ContextID = 1

	e.PushLocal(wire.Command{
		Tag: wire.TagLayerCreate, ParentID: 0, LayerID: 1,
		Opacity: 0x8000, Blend: wire.BlendNormal, Title: "background",
	}, ctx)
	e.PushLocal(wire.Command{
		Tag: wire.TagFillRect, LayerID: 1,
		X: 0, Y: 0, W: int32(*width), H: int32(*height),
		Color: wire.NewColor32(255, 235, 235, 235), Blend: wire.BlendNormal,
	}, ctx)
	e.PushLocal(wire.Command{Tag: wire.TagUndoPoint, ContextID: ctx}, ctx)

	e.PushLocal(wire.Command{
		Tag: wire.TagLayerCreate, ParentID: 0, LayerID: 2,
		Opacity: 0x8000, Blend: wire.BlendNormal, Title: "sketch",
	}, ctx)
	e.PushLocal(wire.Command{Tag: wire.TagDefaultLayer, LayerID: 2}, ctx)

	e.PushLocal(wire.Command{
		Tag: wire.TagDrawDabsClassic, ContextID: ctx,
		Color: wire.NewColor32(255, 40, 90, 200), Blend: wire.BlendNormal,
		Dabs: strokeLine(40, 40, 220, 180, 24),
	}, ctx)
	e.PushLocal(wire.Command{Tag: wire.TagPenUp, ContextID: ctx}, ctx)
	e.PushLocal(wire.Command{Tag: wire.TagUndoPoint, ContextID: ctx}, ctx)

	e.PushLocal(wire.Command{
		Tag: wire.TagDrawDabsClassic, ContextID: ctx,
		Color: wire.NewColor32(255, 220, 60, 40), Blend: wire.BlendNormal,
		Dabs: strokeLine(300, 60, 120, 260, 18),
	}, ctx)
	e.PushLocal(wire.Command{Tag: wire.TagPenUp, ContextID: ctx}, ctx)
	e.PushLocal(wire.Command{Tag: wire.TagUndoPoint, ContextID: ctx}, ctx)

	e.Tick()

	if _, err := e.History().Undo(ctx); err != nil {
		log.Fatalf("undo: %v", err)
	}

	state := e.Current()

	oraFile, err := os.Create(*oraOut)
	if err != nil {
		log.Fatalf("create %s: %v", *oraOut, err)
	}
	defer oraFile.Close()
	if err := openraster.Save(oraFile, state); err != nil {
		log.Fatalf("save ora: %v", err)
	}

	pngFile, err := os.Create(*pngOut)
	if err != nil {
		log.Fatalf("create %s: %v", *pngOut, err)
	}
	defer pngFile.Close()
	if err := flatpng.Encode(pngFile, state); err != nil {
		log.Fatalf("encode png: %v", err)
	}

	log.Printf("wrote %s and %s (%dx%d)\n", *oraOut, *pngOut, *width, *height)
}

// strokeLine synthesizes a straight dab burst between two points,
// spaced roughly one radius apart, in the DRAW_DABS wire format's
// 1/256px fixed-point coordinates.
func strokeLine(x0, y0, x1, y1 float64, radius float32) []wire.Dab {
	dx, dy := x1-x0, y1-y0
	dist := math.Sqrt(dx*dx + dy*dy)
	steps := int(dist / float64(radius))
	if steps < 1 {
		steps = 1
	}
	dabs := make([]wire.Dab, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := x0 + dx*t
		y := y0 + dy*t
		dabs = append(dabs, wire.Dab{
			X: int32(x * 256), Y: int32(y * 256),
			Size: uint16(radius * 2), Hardness: 200, Opacity: 220,
		})
	}
	return dabs
}
