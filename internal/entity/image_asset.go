package entity

import "image"

// ImageAsset is an uploaded image decoded once at intake. Image holds the
// oriented pixels and Data an encoding of the same frame for the model
// runtime.
type ImageAsset struct {
	ID          string
	ContentType string
	Data        []byte
	Image       image.Image
}

func (a *ImageAsset) Size() (int, int) {
	if a == nil || a.Image == nil {
		return 0, 0
	}
	b := a.Image.Bounds()
	return b.Dx(), b.Dy()
}
