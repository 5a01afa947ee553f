package detection

import (
	"FaceOverlay/pkg/response"
	"errors"
	"net/http"
)

var (
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
	ErrBadRequest          = response.NewError(http.StatusBadRequest, "bad request")
	ErrModelsNotReady      = response.NewError(http.StatusServiceUnavailable, "face detection models are not ready")
	ErrSessionNotFound     = response.NewError(http.StatusNotFound, "session not found")
	ErrInvalidImage        = response.NewError(http.StatusBadRequest, "invalid image")
	ErrFileTooLarge        = response.NewError(http.StatusBadRequest, "file too large, maximum size is 5MB")
	ErrOverlayNotReady     = response.NewError(http.StatusNotFound, "overlay not ready")
	ErrDetectionFailed     = response.NewError(http.StatusBadGateway, "face detection failed")
	ErrImageSuperseded     = response.NewError(http.StatusConflict, "image was replaced by a newer upload")
)

// ErrStaleResult is returned by a commit whose image id no longer matches the
// session's current image.
var ErrStaleResult = errors.New("stale detection result")
