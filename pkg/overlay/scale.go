package overlay

import (
	"FaceOverlay/internal/entity"
	"math"
)

const DefaultMaxWidth = 600

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Scale struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FitWidth caps the width at maxWidth and keeps the aspect ratio. Images
// already narrower than maxWidth are never upscaled.
func FitWidth(natural Dimensions, maxWidth int) Dimensions {
	if natural.Width <= 0 || natural.Height <= 0 {
		return Dimensions{}
	}
	if maxWidth <= 0 || natural.Width <= maxWidth {
		return natural
	}
	return Dimensions{
		Width:  maxWidth,
		Height: int(math.Round(float64(natural.Height) * (float64(maxWidth) / float64(natural.Width)))),
	}
}

// ScaleBetween is the display/natural ratio per axis.
func ScaleBetween(natural, display Dimensions) Scale {
	if natural.Width == 0 || natural.Height == 0 {
		return Scale{}
	}
	return Scale{
		X: float64(display.Width) / float64(natural.Width),
		Y: float64(display.Height) / float64(natural.Height),
	}
}

func (s Scale) Point(p entity.Point) entity.Point {
	return entity.Point{X: p.X * s.X, Y: p.Y * s.Y}
}

func (s Scale) Box(b entity.Box) entity.Box {
	return entity.Box{
		X:      b.X * s.X,
		Y:      b.Y * s.Y,
		Width:  b.Width * s.X,
		Height: b.Height * s.Y,
	}
}

func (s Scale) Points(points []entity.Point) []entity.Point {
	out := make([]entity.Point, len(points))
	for i, p := range points {
		out[i] = s.Point(p)
	}
	return out
}
