package handlerUtil

import (
	"FaceOverlay/internal/api/detection"
	"FaceOverlay/pkg/faceapi"
	"FaceOverlay/pkg/log"
	"FaceOverlay/pkg/overlay"
	"FaceOverlay/pkg/response"
	"FaceOverlay/pkg/utils"
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberUtils "github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	// Upload validation errors
	if errors.Is(err, utils.ErrNoFile) {
		h.logger.WithFields(fields).Warn("No file uploaded")
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "No image uploaded. Send it as the multipart field \"image\".",
			Code:  "NO_FILE",
		})
	}

	if errors.Is(err, utils.ErrNotAnImage) {
		h.logger.WithFields(fields).Warn("Invalid file type")
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "Invalid file type. Only images are allowed.",
			Code:  "INVALID_FILE_TYPE",
		})
	}

	if errors.Is(err, utils.ErrFileTooLarge) {
		h.logger.WithFields(fields).Warn("File too large")
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: detection.ErrFileTooLarge.Error(),
			Code:  "FILE_TOO_LARGE",
		})
	}

	// Model loader errors reaching a handler mean the runtime is not serving
	if errors.Is(err, faceapi.ErrNotReady) || errors.Is(err, faceapi.ErrLibraryLoad) || errors.Is(err, faceapi.ErrModelLoad) {
		h.logger.WithFields(fields).Warn("Face models not ready")
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: detection.ErrModelsNotReady.Error(),
			Code:  "MODELS_NOT_READY",
		})
	}

	if errors.Is(err, overlay.ErrDecode) || errors.Is(err, overlay.ErrNotImage) || errors.Is(err, overlay.ErrEmptyImage) {
		h.logger.WithFields(fields).Warn("Image could not be decoded")
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   detection.ErrInvalidImage.Error(),
			Code:    "INVALID_IMAGE",
			Details: err.Error(),
		})
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		fields["code"] = respErr.Code
		if respErr.Code >= fiber.StatusInternalServerError {
			h.logger.WithFields(fields).Error("Operation failed with error response")
		} else {
			h.logger.WithFields(fields).Warn("Operation failed with error response")
		}
		return c.Status(respErr.Code).JSON(ErrorResponse{Error: err.Error()})
	}

	h.logger.WithFields(fields).Error("Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error: "An unexpected error occurred",
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(fiberUtils.StatusMessage(fiber.StatusRequestTimeout))
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
