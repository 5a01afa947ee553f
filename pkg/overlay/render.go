// Package overlay turns face detections into a drawn overlay sized for
// display.
package overlay

import (
	"FaceOverlay/internal/entity"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

var ErrDetection = errors.New("face detection failed")

// Detector is the one call into the face model.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]entity.FaceDetection, error)
}

type Result struct {
	ImageID    string
	Natural    Dimensions
	Display    Dimensions
	Scale      Scale
	Detections []entity.FaceDetection
	Faces      []entity.FaceSummary
	Status     string
	Canvas     Canvas
}

func (r *Result) Image() image.Image {
	if r == nil || r.Canvas == nil {
		return nil
	}
	return r.Canvas.Image()
}

type Renderer struct {
	detector  Detector
	maxWidth  int
	newCanvas CanvasFactory
}

type Option func(*Renderer)

func WithCanvasFactory(f CanvasFactory) Option {
	return func(r *Renderer) { r.newCanvas = f }
}

func NewRenderer(detector Detector, maxWidth int, opts ...Option) *Renderer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	r := &Renderer{
		detector:  detector,
		maxWidth:  maxWidth,
		newCanvas: NewRasterCanvas,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) MaxWidth() int {
	return r.maxWidth
}

// Render runs one detection cycle for asset. It is a no-op returning
// (nil, nil) while there is no image or the models are not ready.
func (r *Renderer) Render(ctx context.Context, asset *entity.ImageAsset, ready bool) (*Result, error) {
	if asset == nil || asset.Image == nil || !ready {
		return nil, nil
	}

	w, h := asset.Size()
	natural := Dimensions{Width: w, Height: h}
	if w == 0 || h == 0 {
		return nil, ErrEmptyImage
	}
	display := FitWidth(natural, r.maxWidth)

	detections, err := r.detector.Detect(ctx, asset.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetection, err)
	}

	canvas := r.newCanvas(display)
	base := asset.Image
	if display != natural {
		base = imaging.Resize(asset.Image, display.Width, display.Height, imaging.Lanczos)
	}
	canvas.DrawImage(base)

	scale := ScaleBetween(natural, display)
	DrawDetections(canvas, detections, scale)

	return &Result{
		ImageID:    asset.ID,
		Natural:    natural,
		Display:    display,
		Scale:      scale,
		Detections: detections,
		Faces:      Summaries(detections),
		Status:     StatusDetected(len(detections)),
		Canvas:     canvas,
	}, nil
}

func StatusDetected(n int) string {
	return fmt.Sprintf("Detected %d face(s).", n)
}

// DrawDetections paints every detection in the order given.
func DrawDetections(c Canvas, detections []entity.FaceDetection, scale Scale) {
	for _, det := range detections {
		drawDetection(c, det, scale)
	}
}

func drawDetection(c Canvas, det entity.FaceDetection, scale Scale) {
	box := scale.Box(det.Box)
	c.StrokeRect(box, BoxColor, BoxLineWidth)

	for _, p := range det.Landmarks {
		c.FillDisc(scale.Point(p), PointRadius, PointColor)
	}

	for _, group := range LandmarkGroups {
		c.StrokePath(scale.Points(group.Slice(det.Landmarks)), group.Closed, LandmarkLineColor, LandmarkLineWidth)
	}

	if expr := DominantExpression(det.Expressions); expr != "" {
		c.FillText(expr, LabelPosition(box), LabelColor)
	}
}

// LabelPosition puts the label above the box, or below its top edge when
// the box is too close to the top of the image for the text to fit.
func LabelPosition(box entity.Box) entity.Point {
	if box.Y > 20 {
		return entity.Point{X: box.X, Y: box.Y - 8}
	}
	return entity.Point{X: box.X, Y: box.Y + 20}
}
