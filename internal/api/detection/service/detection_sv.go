package detectionService

import (
	"FaceOverlay/internal/api/detection"
	contextPkg "FaceOverlay/pkg/context"
	"FaceOverlay/pkg/overlay"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// Annotate renders one image without touching any session.
func (s *detectionService) Annotate(ctx context.Context, data []byte) (*detection.AnnotateResult, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if !s.models.Ready() {
		return nil, detection.ErrModelsNotReady
	}

	imageID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrInternalServerError, err)
	}

	asset, err := overlay.Decode(imageID, data)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"image_id":   imageID,
			"error":      err.Error(),
		}).Warn("Failed to decode uploaded image")
		return nil, fmt.Errorf("%w: %v", detection.ErrInvalidImage, err)
	}

	detectCtx, cancel := context.WithTimeout(ctx, s.detectTimeout)
	defer cancel()

	result, err := s.renderer.Render(detectCtx, asset, s.models.Ready())
	if err != nil {
		return nil, s.renderError(requestID, imageID, err)
	}
	if result == nil {
		return nil, detection.ErrModelsNotReady
	}

	png, err := encodePNG(result.Image())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrInternalServerError, err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"image_id":   imageID,
		"faces":      len(result.Detections),
		"width":      result.Display.Width,
		"height":     result.Display.Height,
	}).Info("Image annotated")

	return &detection.AnnotateResult{
		ImageID:       imageID,
		Status:        result.Status,
		Width:         result.Display.Width,
		Height:        result.Display.Height,
		NaturalWidth:  result.Natural.Width,
		NaturalHeight: result.Natural.Height,
		Faces:         result.Faces,
		PNG:           png,
	}, nil
}

func (s *detectionService) renderError(requestID, imageID string, err error) error {
	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"image_id":   imageID,
		"error":      err.Error(),
	}).Error("Face detection failed")

	switch {
	case errors.Is(err, overlay.ErrEmptyImage):
		return fmt.Errorf("%w: %v", detection.ErrInvalidImage, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: timed out after %s", detection.ErrDetectionFailed, s.detectTimeout)
	default:
		return fmt.Errorf("%w: %v", detection.ErrDetectionFailed, err)
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nothing to encode")
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
