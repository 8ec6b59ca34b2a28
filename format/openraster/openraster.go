// Package openraster saves and loads canvases in the OpenRaster (.ora)
// format: a zip archive containing a stack.xml describing the layer
// tree plus one PNG per leaf layer (spec.md §6 file formats). Built on
// archive/zip, encoding/xml, and image/png since the corpus carries no
// archive/image-codec library of its own for this domain (see
// DESIGN.md).
package openraster

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/text/unicode/norm"

	"github.com/inkstream/paintcore/internal/canvas"
	"github.com/inkstream/paintcore/internal/engerr"
	"github.com/inkstream/paintcore/internal/layer"
	"github.com/inkstream/paintcore/internal/pixelops"
	"github.com/inkstream/paintcore/internal/proptree"
	"github.com/inkstream/paintcore/internal/tile"
	"github.com/inkstream/paintcore/internal/wire"
)

type xmlImage struct {
	XMLName xml.Name    `xml:"image"`
	Width   int         `xml:"w,attr"`
	Height  int         `xml:"h,attr"`
	Stack   xmlStackTag `xml:"stack"`
}

type xmlStackTag struct {
	Name     string        `xml:"name,attr,omitempty"`
	Opacity  float64       `xml:"opacity,attr"`
	Visible  string        `xml:"visibility,attr,omitempty"`
	Layers   []xmlLayerTag `xml:"layer"`
	Children []xmlStackTag `xml:"stack"`
}

type xmlLayerTag struct {
	Name        string  `xml:"name,attr"`
	Src         string  `xml:"src,attr"`
	Opacity     float64 `xml:"opacity,attr"`
	Visibility  string  `xml:"visibility,attr,omitempty"`
	CompositeOp string  `xml:"composite-op,attr,omitempty"`
}

// Save writes s to w as a complete OpenRaster archive (spec.md §6).
func Save(w io.Writer, s *canvas.State) error {
	zw := zip.NewWriter(w)

	// The mimetype entry is written first and stored uncompressed.
	if f, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store}); err != nil {
		return engerr.New(engerr.WriteError, err.Error())
	} else if _, err := f.Write([]byte("image/openraster")); err != nil {
		return engerr.New(engerr.WriteError, err.Error())
	}

	pngs := make(map[string][]byte)
	stack := buildStackXML(s.Root, s.TilesX(), s.TilesY(), pngs)

	doc := xmlImage{Width: s.Width, Height: s.Height, Stack: stack}
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return engerr.New(engerr.WriteError, err.Error())
	}

	if f, err := zw.Create("stack.xml"); err != nil {
		return engerr.New(engerr.WriteError, err.Error())
	} else if _, err := f.Write(append([]byte(xml.Header), body...)); err != nil {
		return engerr.New(engerr.WriteError, err.Error())
	}

	for name, data := range pngs {
		f, err := zw.Create(name)
		if err != nil {
			return engerr.New(engerr.WriteError, err.Error())
		}
		if _, err := f.Write(data); err != nil {
			return engerr.New(engerr.WriteError, err.Error())
		}
	}

	return zw.Close()
}

func buildStackXML(n *proptree.Node, tilesX, tilesY int, pngs map[string][]byte) xmlStackTag {
	title := norm.NFC.String(n.Props.Title)
	tag := xmlStackTag{
		Name:    title,
		Opacity: float64(n.Props.Opacity) / float64(pixelops.Full15),
		Visible: visibility(n.Props.Hidden),
	}
	if n.IsGroup() {
		for _, c := range n.Children {
			if c.IsGroup() {
				tag.Children = append(tag.Children, buildStackXML(c, tilesX, tilesY, pngs))
			} else {
				tag.Layers = append(tag.Layers, buildLayerXML(c, tilesX, tilesY, pngs))
			}
		}
	}
	return tag
}

func buildLayerXML(n *proptree.Node, tilesX, tilesY int, pngs map[string][]byte) xmlLayerTag {
	name := norm.NFC.String(n.Props.Title)
	src := fmt.Sprintf("data/layer%d.png", n.Props.ID)
	pngs[src] = encodeLayerPNG(n.Leaf, tilesX, tilesY)
	return xmlLayerTag{
		Name:        name,
		Src:         src,
		Opacity:     float64(n.Props.Opacity) / float64(pixelops.Full15),
		Visibility:  visibility(n.Props.Hidden),
		CompositeOp: compositeOpName(n.Props.Blend),
	}
}

func visibility(hidden bool) string {
	if hidden {
		return "hidden"
	}
	return "visible"
}

// encodeLayerPNG composites a layer's tile grid into a single
// non-premultiplied RGBA8 image and PNG-encodes it, unmultiplying and
// downscaling each channel from the blend engine's RGBA15 representation
// (spec.md §4.1's exact 8↔15 round trip, used here in reverse).
func encodeLayerPNG(c *layer.Content, tilesX, tilesY int) []byte {
	w, h := tilesX*tile.Size, tilesY*tile.Size
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			t := c.TileAt(tx, ty)
			if t == nil {
				continue
			}
			for py := 0; py < tile.Size; py++ {
				for px := 0; px < tile.Size; px++ {
					r15, g15, b15, a15 := t.At(px, py)
					r8, g8, b8 := unpremultiply15(r15, a15), unpremultiply15(g15, a15), unpremultiply15(b15, a15)
					o := img.PixOffset(tx*tile.Size+px, ty*tile.Size+py)
					img.Pix[o] = r8
					img.Pix[o+1] = g8
					img.Pix[o+2] = b8
					img.Pix[o+3] = pixelops.To8(a15)
				}
			}
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func unpremultiply15(c, a uint16) uint8 {
	if a == 0 {
		return 0
	}
	v := uint32(c) * uint32(pixelops.Full15) / uint32(a)
	if v > uint32(pixelops.Full15) {
		v = uint32(pixelops.Full15)
	}
	return pixelops.To8(uint16(v))
}

func compositeOpName(b wire.BlendMode) string {
	switch b {
	case wire.BlendMultiply:
		return "svg:multiply"
	case wire.BlendDivide:
		return "svg:color-dodge"
	case wire.BlendBurn:
		return "svg:color-burn"
	case wire.BlendDodge:
		return "svg:color-dodge"
	case wire.BlendDarken:
		return "svg:darken"
	case wire.BlendLighten:
		return "svg:lighten"
	case wire.BlendAdd:
		return "svg:plus"
	default:
		return "svg:src-over"
	}
}
