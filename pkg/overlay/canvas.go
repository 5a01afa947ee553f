package overlay

import (
	"FaceOverlay/internal/entity"
	"image"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const (
	BoxColor     = "#00FF00"
	BoxLineWidth = 3.0

	PointColor  = "#ff1744"
	PointRadius = 2.0

	LandmarkLineColor = "#0070f3"
	LandmarkLineWidth = 2.0

	LabelColor    = "#222"
	LabelFontSize = 18.0
)

// Canvas is the drawing surface the overlay is painted on. Coordinates are
// display pixels.
type Canvas interface {
	DrawImage(img image.Image)
	StrokeRect(box entity.Box, color string, width float64)
	FillDisc(center entity.Point, radius float64, color string)
	StrokePath(points []entity.Point, closed bool, color string, width float64)
	FillText(text string, at entity.Point, color string)
	Image() image.Image
}

// CanvasFactory creates a cleared canvas of the given size.
type CanvasFactory func(size Dimensions) Canvas

var (
	labelFont     *opentype.Font
	labelFontOnce sync.Once
)

func labelFace() font.Face {
	labelFontOnce.Do(func() {
		f, err := opentype.Parse(goregular.TTF)
		if err == nil {
			labelFont = f
		}
	})
	if labelFont == nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(labelFont, &opentype.FaceOptions{
		Size:    LabelFontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

// RasterCanvas draws into an RGBA image with gg.
type RasterCanvas struct {
	dc *gg.Context
}

func NewRasterCanvas(size Dimensions) Canvas {
	dc := gg.NewContext(size.Width, size.Height)
	dc.SetFontFace(labelFace())
	return &RasterCanvas{dc: dc}
}

func (c *RasterCanvas) DrawImage(img image.Image) {
	c.dc.DrawImage(img, 0, 0)
}

func (c *RasterCanvas) StrokeRect(box entity.Box, color string, width float64) {
	c.dc.DrawRectangle(box.X, box.Y, box.Width, box.Height)
	c.dc.SetHexColor(color)
	c.dc.SetLineWidth(width)
	c.dc.Stroke()
}

func (c *RasterCanvas) FillDisc(center entity.Point, radius float64, color string) {
	c.dc.DrawCircle(center.X, center.Y, radius)
	c.dc.SetHexColor(color)
	c.dc.Fill()
}

func (c *RasterCanvas) StrokePath(points []entity.Point, closed bool, color string, width float64) {
	if len(points) == 0 {
		return
	}
	c.dc.NewSubPath()
	c.dc.MoveTo(points[0].X, points[0].Y)
	for _, p := range points[1:] {
		c.dc.LineTo(p.X, p.Y)
	}
	if closed {
		c.dc.ClosePath()
	}
	c.dc.SetHexColor(color)
	c.dc.SetLineWidth(width)
	c.dc.Stroke()
}

func (c *RasterCanvas) FillText(text string, at entity.Point, color string) {
	c.dc.SetHexColor(color)
	c.dc.DrawString(text, at.X, at.Y)
}

func (c *RasterCanvas) Image() image.Image {
	return c.dc.Image()
}

func (c *RasterCanvas) EncodePNG(w io.Writer) error {
	return c.dc.EncodePNG(w)
}
