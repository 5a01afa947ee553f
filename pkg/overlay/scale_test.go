package overlay_test

import (
	"FaceOverlay/internal/entity"
	"FaceOverlay/pkg/overlay"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFitWidth(t *testing.T) {
	tests := []struct {
		name     string
		natural  overlay.Dimensions
		maxWidth int
		expected overlay.Dimensions
	}{
		{
			name:     "Narrower than max is untouched",
			natural:  overlay.Dimensions{Width: 320, Height: 240},
			maxWidth: 600,
			expected: overlay.Dimensions{Width: 320, Height: 240},
		},
		{
			name:     "Exactly max is untouched",
			natural:  overlay.Dimensions{Width: 600, Height: 900},
			maxWidth: 600,
			expected: overlay.Dimensions{Width: 600, Height: 900},
		},
		{
			name:     "Wide image is capped",
			natural:  overlay.Dimensions{Width: 1200, Height: 800},
			maxWidth: 600,
			expected: overlay.Dimensions{Width: 600, Height: 400},
		},
		{
			name:     "Height is rounded to nearest",
			natural:  overlay.Dimensions{Width: 1000, Height: 333},
			maxWidth: 600,
			expected: overlay.Dimensions{Width: 600, Height: 200},
		},
		{
			name:     "Half pixel rounds up",
			natural:  overlay.Dimensions{Width: 1200, Height: 401},
			maxWidth: 600,
			expected: overlay.Dimensions{Width: 600, Height: 201},
		},
		{
			name:     "Empty image stays empty",
			natural:  overlay.Dimensions{},
			maxWidth: 600,
			expected: overlay.Dimensions{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, overlay.FitWidth(tt.natural, tt.maxWidth))
		})
	}
}

func TestFitWidth_PreservesAspectRatio(t *testing.T) {
	for w := 601; w <= 4000; w += 37 {
		for _, h := range []int{1, 99, 480, 1080, 3001} {
			natural := overlay.Dimensions{Width: w, Height: h}
			display := overlay.FitWidth(natural, 600)

			assert.Equal(t, 600, display.Width)
			exact := float64(h) * 600 / float64(w)
			assert.LessOrEqual(t, math.Abs(float64(display.Height)-exact), 0.5+1e-9,
				"height for %dx%d", w, h)
		}
	}
}

func TestScaleBetween(t *testing.T) {
	natural := overlay.Dimensions{Width: 320, Height: 240}
	scale := overlay.ScaleBetween(natural, overlay.FitWidth(natural, 600))
	assert.Equal(t, overlay.Scale{X: 1, Y: 1}, scale)

	natural = overlay.Dimensions{Width: 1200, Height: 800}
	scale = overlay.ScaleBetween(natural, overlay.FitWidth(natural, 600))
	assert.Equal(t, 0.5, scale.X)
	assert.Equal(t, 0.5, scale.Y)

	box := scale.Box(entity.Box{X: 100, Y: 50, Width: 200, Height: 300})
	assert.Equal(t, entity.Box{X: 50, Y: 25, Width: 100, Height: 150}, box)
}
