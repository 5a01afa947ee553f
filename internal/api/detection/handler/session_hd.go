package detectionHandler

import (
	"FaceOverlay/internal/api/detection"
	contextPkg "FaceOverlay/pkg/context"
	"FaceOverlay/pkg/handlerUtil"
	"FaceOverlay/pkg/log"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *DetectionHandler) CreateSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	state, err := h.detectionService.CreateSession(c)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "create_session")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusCreated, detection.SessionResponse{Data: state})
}

func (h *DetectionHandler) GetSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	state, err := h.detectionService.GetSession(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.SessionResponse{Data: state})
	}
}

func (h *DetectionHandler) GetOverlay(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	png, err := h.detectionService.GetOverlay(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_overlay")
	}

	ctx.Type("png")
	return ctx.Status(fiber.StatusOK).Send(png)
}

// SubmitImage replaces the session's image. Without ?wait it answers 202 as
// soon as detection has started; with ?wait=true it answers with the
// committed display state.
func (h *DetectionHandler) SubmitImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	sessionID := ctx.Params("id")
	errHandler := handlerUtil.New(h.log)

	var query detection.SubmitQuery
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.Handle(ctx, requestID, detection.ErrBadRequest, ctx.Path(), "parse_query")
	}
	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	timeout := h.requestTimeout
	if query.Timeout > 0 {
		timeout = time.Duration(query.Timeout) * time.Second
	}
	c, cancel := context.WithTimeout(contextPkg.WithSessionID(contextPkg.FromFiberCtx(ctx), sessionID), timeout)
	defer cancel()

	data, err := h.readUpload(ctx, requestID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_upload")
	}

	imageID, outcomes, err := h.detectionService.Submit(c, sessionID, data)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "submit_image")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"session_id": sessionID,
		"image_id":   imageID,
		"wait":       query.Wait,
	}).Info("Image submitted")

	if !query.Wait {
		return errHandler.HandleSuccess(ctx, fiber.StatusAccepted, detection.SubmitResponse{
			SessionID: sessionID,
			ImageID:   imageID,
			Status:    detection.StatusDetecting,
		})
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	case outcome := <-outcomes:
		switch outcome.Kind {
		case detection.KindNone, detection.KindDetection, detection.KindRender:
			return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.SessionResponse{Data: outcome.State})
		case detection.KindCancelled, detection.KindStale:
			return errHandler.Handle(ctx, requestID, detection.ErrImageSuperseded, ctx.Path(), "submit_image")
		case detection.KindNotReady:
			return errHandler.Handle(ctx, requestID, detection.ErrModelsNotReady, ctx.Path(), "submit_image")
		default:
			return errHandler.Handle(ctx, requestID, detection.ErrInternalServerError, ctx.Path(), "submit_image")
		}
	}
}
