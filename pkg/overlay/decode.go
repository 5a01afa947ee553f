package overlay

import (
	"FaceOverlay/internal/entity"
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

var (
	ErrDecode     = errors.New("image could not be decoded")
	ErrEmptyImage = errors.New("image has no pixels")
	ErrNotImage   = errors.New("content is not an image")
)

const detectorJPEGQuality = 95

// Decode sniffs and decodes an uploaded image, applying its EXIF
// orientation so boxes line up with what the client sees. The asset's Data
// is what the model runtime receives and always holds the oriented pixels.
func Decode(id string, data []byte) (*entity.ImageAsset, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, mime.String())
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrEmptyImage
	}

	encoded, contentType, err := detectorBytes(img, mime.String(), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return &entity.ImageAsset{
		ID:          id,
		ContentType: contentType,
		Data:        encoded,
		Image:       img,
	}, nil
}

// detectorBytes encodes img for the model runtime. JPEG is the only format
// whose EXIF orientation is applied on decode, so it is re-encoded from the
// oriented pixels. PNG passes through and other formats become PNG.
func detectorBytes(img image.Image, mime string, original []byte) ([]byte, string, error) {
	format := imaging.PNG
	switch mime {
	case "image/png":
		return original, mime, nil
	case "image/jpeg":
		format = imaging.JPEG
	default:
		mime = "image/png"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(detectorJPEGQuality)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mime, nil
}
