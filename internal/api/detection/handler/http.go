package detectionHandler

import (
	detectionService "FaceOverlay/internal/api/detection/service"
	"FaceOverlay/internal/middleware"
	"FaceOverlay/pkg/utils"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const DefaultRequestTimeout = 45 * time.Second

type DetectionHandler struct {
	log              *logrus.Logger
	validator        *validator.Validate
	middleware       middleware.Middleware
	detectionService detectionService.IDetectionService
	utils            utils.IUtils
	requestTimeout   time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ds detectionService.IDetectionService,
	utils utils.IUtils,
	requestTimeout time.Duration,
) *DetectionHandler {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &DetectionHandler{
		detectionService: ds,
		log:              log,
		validator:        validator,
		middleware:       middleware,
		utils:            utils,
		requestTimeout:   requestTimeout,
	}
}

func (h *DetectionHandler) Start(srv fiber.Router) {
	face := srv.Group("/face")
	face.Get("/status", h.GetStatus)
	face.Post("/annotate", h.Annotate)

	face.Post("/sessions", h.CreateSession)
	face.Get("/sessions/:id", h.GetSession)
	face.Post("/sessions/:id/images", h.SubmitImage)
	face.Get("/sessions/:id/overlay", h.GetOverlay)
	face.Get("/sessions/:id/ws", h.upgradeStatusStream, websocket.New(h.handleStatusStream))
}
