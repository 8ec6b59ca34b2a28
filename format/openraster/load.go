package openraster

import (
	"archive/zip"
	"encoding/xml"
	"image"
	"image/png"
	"sync"

	"github.com/inkstream/paintcore/internal/canvas"
	"github.com/inkstream/paintcore/internal/engerr"
	"github.com/inkstream/paintcore/internal/layer"
	"github.com/inkstream/paintcore/internal/pixelops"
	"github.com/inkstream/paintcore/internal/proptree"
	"github.com/inkstream/paintcore/internal/tile"
	"github.com/inkstream/paintcore/internal/wire"
)

// Load reads an OpenRaster archive and reconstructs a canvas (spec.md
// §6). The archive's stack.xml and layer PNGs are read directly from
// the zip central directory.
func Load(r *zip.Reader) (*canvas.State, error) {
	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		files[f.Name] = f
	}

	stackFile, ok := files["stack.xml"]
	if !ok {
		return nil, engerr.New(engerr.BadMimetype, "missing stack.xml")
	}
	rc, err := stackFile.Open()
	if err != nil {
		return nil, engerr.New(engerr.OpenError, err.Error())
	}
	defer rc.Close()

	var doc xmlImage
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return nil, engerr.New(engerr.ReadError, err.Error())
	}

	tilesX := (doc.Width + tile.Size - 1) / tile.Size
	tilesY := (doc.Height + tile.Size - 1) / tile.Size

	nextID := wire.LayerID(1)
	skeleton := buildSkeleton(doc.Stack, files, &nextID)
	if err := decodeJobs(skeleton.jobs, tilesX, tilesY); err != nil {
		return nil, err
	}
	root := skeleton.root.toNode()

	return &canvas.State{
		Width:       doc.Width,
		Height:      doc.Height,
		Background:  tile.Transparent(),
		Root:        root,
		Annotations: canvas.NewNode[[]canvas.Annotation](nil),
		Metadata:    canvas.NewNode(map[string]string{}),
	}, nil
}

// stackSkeleton is the tree built by the synchronous, ID-assigning walk
// over stack.xml, paired with the flat list of pending PNG-decode jobs
// it discovered. Assigning IDs during this walk (rather than from
// inside the parallel decode below) keeps layer numbering deterministic
// regardless of how the decode goroutines happen to finish.
type stackSkeleton struct {
	root *skeletonNode
	jobs []*decodeJob
}

type skeletonNode struct {
	props    proptree.Props
	children []*skeletonNode
	job      *decodeJob
}

type decodeJob struct {
	src     string
	file    *zip.File
	content *layer.Content
	err     error
}

func (n *skeletonNode) toNode() *proptree.Node {
	if n.job != nil {
		return proptree.NewLeaf(n.props, n.job.content)
	}
	children := make([]*proptree.Node, len(n.children))
	for i, c := range n.children {
		children[i] = c.toNode()
	}
	return proptree.NewGroup(n.props, children)
}

func buildSkeleton(s xmlStackTag, files map[string]*zip.File, nextID *wire.LayerID) *stackSkeleton {
	sk := &stackSkeleton{}
	sk.root = buildStackSkeleton(s, files, nextID, &sk.jobs)
	return sk
}

func buildStackSkeleton(s xmlStackTag, files map[string]*zip.File, nextID *wire.LayerID, jobs *[]*decodeJob) *skeletonNode {
	id := *nextID
	*nextID++
	node := &skeletonNode{props: proptree.Props{ID: id, Opacity: opacityU15(s.Opacity), Hidden: s.Visible == "hidden", Blend: wire.BlendNormal, Title: s.Name}}

	for _, child := range s.Children {
		node.children = append(node.children, buildStackSkeleton(child, files, nextID, jobs))
	}
	for _, l := range s.Layers {
		node.children = append(node.children, buildLayerSkeleton(l, files, nextID, jobs))
	}
	return node
}

func buildLayerSkeleton(l xmlLayerTag, files map[string]*zip.File, nextID *wire.LayerID, jobs *[]*decodeJob) *skeletonNode {
	id := *nextID
	*nextID++
	props := proptree.Props{
		ID: id, Opacity: opacityU15(l.Opacity), Hidden: l.Visibility == "hidden",
		Blend: blendFromCompositeOp(l.CompositeOp), Title: l.Name,
	}

	job := &decodeJob{src: l.Src, file: files[l.Src]}
	*jobs = append(*jobs, job)
	return &skeletonNode{props: props, job: job}
}

// decodeJobs decodes every pending layer PNG concurrently, one goroutine
// per layer, then reports the first decode error encountered (spec.md
// §6 load path). Each goroutine only ever touches its own job, so no
// synchronization is needed beyond the WaitGroup join.
func decodeJobs(jobs []*decodeJob, tilesX, tilesY int) error {
	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for _, job := range jobs {
		job := job
		go func() {
			defer wg.Done()
			job.content, job.err = decodeLayerPNG(job.file, job.src, tilesX, tilesY)
		}()
	}
	wg.Wait()

	for _, job := range jobs {
		if job.err != nil {
			return job.err
		}
	}
	return nil
}

func decodeLayerPNG(f *zip.File, src string, tilesX, tilesY int) (*layer.Content, error) {
	if f == nil {
		return nil, engerr.New(engerr.ReadError, "missing layer image "+src)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, engerr.New(engerr.OpenError, err.Error())
	}
	defer rc.Close()
	img, err := png.Decode(rc)
	if err != nil {
		return nil, engerr.New(engerr.ReadError, err.Error())
	}

	content := layer.NewTransient(tilesX, tilesY)
	decodeIntoContent(content, img)
	return content.Persist(), nil
}

func decodeIntoContent(tc *layer.TransientContent, img image.Image) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r32, g32, b32, a32 := img.At(x, y).RGBA()
			r8, g8, b8, a8 := uint8(r32>>8), uint8(g32>>8), uint8(b32>>8), uint8(a32>>8)
			tc.PutPixel(x, y, pixelops.To15(r8), pixelops.To15(g8), pixelops.To15(b8), pixelops.To15(a8), wire.BlendReplace)
		}
	}
}

func opacityU15(v float64) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return uint16(pixelops.Full15)
	}
	return uint16(v * float64(pixelops.Full15))
}

func blendFromCompositeOp(op string) wire.BlendMode {
	switch op {
	case "svg:multiply":
		return wire.BlendMultiply
	case "svg:color-burn":
		return wire.BlendBurn
	case "svg:color-dodge":
		return wire.BlendDodge
	case "svg:darken":
		return wire.BlendDarken
	case "svg:lighten":
		return wire.BlendLighten
	case "svg:plus":
		return wire.BlendAdd
	default:
		return wire.BlendNormal
	}
}
