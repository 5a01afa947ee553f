package config

import (
	"FaceOverlay/pkg/handlerUtil"
	"FaceOverlay/pkg/utils"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// NewFiber builds the app. Uploads are capped a little above the image
// limit so the multipart envelope fits, and errors fiber raises itself
// (unknown route, oversized body) get the same JSON shape as handler errors.
func NewFiber(logger *logrus.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:           "FaceOverlay",
		BodyLimit:         utils.DefaultMaxFileSize + 1024*1024,
		ReadTimeout:       time.Minute,
		IdleTimeout:       2 * time.Minute,
		StrictRouting:     true,
		CaseSensitive:     true,
		EnablePrintRoutes: logger.IsLevelEnabled(logrus.DebugLevel),
		JSONEncoder:       jsoniter.Marshal,
		JSONDecoder:       jsoniter.Unmarshal,
		ErrorHandler:      fiberErrorHandler(logger),
	})
}

func fiberErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}

		if code >= fiber.StatusInternalServerError {
			logger.WithFields(logrus.Fields{
				"path":  c.Path(),
				"error": err.Error(),
			}).Error("Unhandled request error")
		}

		return c.Status(code).JSON(handlerUtil.ErrorResponse{Error: message})
	}
}
