package detectionHandler

import (
	"FaceOverlay/internal/api/detection"
	contextPkg "FaceOverlay/pkg/context"
	"FaceOverlay/pkg/handlerUtil"
	"FaceOverlay/pkg/log"
	"FaceOverlay/pkg/utils"
	"encoding/base64"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *DetectionHandler) GetStatus(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.detectionService.Status())
}

func (h *DetectionHandler) Annotate(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var query detection.AnnotateQuery
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.Handle(ctx, requestID, detection.ErrBadRequest, ctx.Path(), "parse_query")
	}
	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	data, err := h.readUpload(ctx, requestID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_upload")
	}

	result, err := h.detectionService.Annotate(c, data)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "annotate")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"image_id":   result.ImageID,
			"faces":      len(result.Faces),
		}).Info("Annotation successful")

		if query.Format == "json" {
			return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.AnnotateResponse{
				AnnotateResult: *result,
				Overlay:        base64.StdEncoding.EncodeToString(result.PNG),
			})
		}

		ctx.Set("X-Face-Count", strconv.Itoa(len(result.Faces)))
		ctx.Set("X-Display-Width", strconv.Itoa(result.Width))
		ctx.Set("X-Display-Height", strconv.Itoa(result.Height))
		ctx.Set("X-Image-ID", result.ImageID)
		ctx.Type("png")
		return ctx.Status(fiber.StatusOK).Send(result.PNG)
	}
}

// readUpload refuses uploads until the models are ready, then reads the
// multipart "image" field.
func (h *DetectionHandler) readUpload(ctx *fiber.Ctx, requestID string) ([]byte, error) {
	if !h.detectionService.Status().Ready {
		return nil, detection.ErrModelsNotReady
	}

	file, err := ctx.FormFile("image")
	if err != nil {
		return nil, utils.ErrNoFile
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"file_name":  file.Filename,
		"file_size":  file.Size,
	}).Debug("Processing file upload")

	if err := h.utils.ValidateImageFile(file); err != nil {
		return nil, err
	}

	return h.utils.ReadFile(file)
}
