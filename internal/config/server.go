package config

import (
	detectionHandler "FaceOverlay/internal/api/detection/handler"
	detectionRepository "FaceOverlay/internal/api/detection/repository"
	detectionService "FaceOverlay/internal/api/detection/service"
	"FaceOverlay/internal/middleware"
	"FaceOverlay/pkg/faceapi"
	"FaceOverlay/pkg/overlay"
	"FaceOverlay/pkg/redis"
	"FaceOverlay/pkg/s3"
	"FaceOverlay/pkg/utils"
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine           *fiber.App
	env              *Env
	log              *logrus.Logger
	middleware       middleware.Middleware
	validator        *validator.Validate
	utils            utils.IUtils
	handlers         []handler
	redisServer      redis.IRedis
	s3Client         s3.ItfS3
	loader           *faceapi.Loader
	sessions         detectionRepository.Repository
	detectionService detectionService.IDetectionService
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.env == nil {
		return nil, fmt.Errorf("environment is required")
	}
	if server.loader == nil {
		return nil, fmt.Errorf("model loader is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithEnv(env *Env) ServerOption {
	return func(s *Server) error {
		s.env = env
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

// WithModelLoader connects the face runtime client and wraps it in a loader.
// Loading itself starts with StartModelLoading.
func WithModelLoader() ServerOption {
	return func(s *Server) error {
		if s.env == nil || s.log == nil {
			return fmt.Errorf("environment and logger must be initialized before the model loader")
		}
		runtime := faceapi.NewWebSocketRuntime(s.env.RuntimeURL, faceapi.WithLogger(s.log))
		s.loader = faceapi.NewLoader(runtime, s.env.ModelURL, s.env.LoadTimeout, s.log)
		return nil
	}
}

// WithSessionStore picks the session backend named by SESSION_STORE.
func WithSessionStore() ServerOption {
	return func(s *Server) error {
		if s.env == nil || s.log == nil {
			return fmt.Errorf("environment and logger must be initialized before the session store")
		}

		if s.env.SessionStore == detectionRepository.StoreRedis {
			s.redisServer = redis.New(redis.Options{
				Address:  s.env.RedisAddress,
				Password: s.env.RedisPassword,
				DB:       s.env.RedisDB,
			})
		}

		repo, err := detectionRepository.New(detectionRepository.Config{
			Store: s.env.SessionStore,
			TTL:   s.env.SessionTTL,
		}, s.redisServer, s.log)
		if err != nil {
			return fmt.Errorf("failed to create session store: %w", err)
		}
		s.sessions = repo
		return nil
	}
}

// WithS3Client enables overlay archiving. It is a no-op without a bucket.
func WithS3Client() ServerOption {
	return func(s *Server) error {
		if s.env == nil || !s.env.ArchiveEnabled() {
			return nil
		}

		client, err := s3.New(s3.Config{
			Region:          s.env.AWSRegion,
			AccessKeyID:     s.env.AWSAccessKeyID,
			SecretAccessKey: s.env.AWSSecretAccessKey,
			BucketName:      s.env.AWSBucketName,
			Endpoint:        s.env.AWSEndpoint,
		})
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

// StartModelLoading begins loading the models in the background. The server
// serves requests meanwhile and refuses uploads until the loader is ready.
func (s *Server) StartModelLoading() {
	go func() {
		if err := s.loader.EnsureReady(context.Background()); err != nil {
			s.log.WithField("error", err.Error()).Error("Face models failed to load")
			return
		}
		s.log.Info("Face models loaded")
	}()
}

func (s *Server) RegisterHandler() {
	if s.sessions == nil {
		s.sessions = detectionRepository.NewMemory(s.env.SessionTTL, s.log)
	}

	// Detection
	renderer := overlay.NewRenderer(s.loader, s.env.MaxWidth)
	s.detectionService = detectionService.NewDetectionService(
		detectionService.Config{DetectTimeout: s.env.DetectTimeout},
		s.loader,
		renderer,
		s.sessions,
		s.s3Client,
		s.utils,
		s.log,
	)
	detectionHandlers := detectionHandler.New(s.log, s.validator, s.middleware, s.detectionService, s.utils, s.env.DetectTimeout+s.env.DetectTimeout/2)

	s.handlers = append(s.handlers, detectionHandlers)
}

func (s *Server) Run() error {
	s.mount()

	if err := s.engine.Listen(fmt.Sprintf(":%s", s.env.AppPort)); err != nil {
		return err
	}

	return nil
}

// Shutdown stops accepting requests, then cancels in-flight detections and
// releases the runtime and store connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.engine.ShutdownWithContext(ctx)

	if s.detectionService != nil {
		s.detectionService.Close()
	}
	if closeErr := s.loader.Close(); closeErr != nil {
		s.log.WithField("error", closeErr.Error()).Warn("Failed to close face runtime")
	}
	if s.redisServer != nil {
		if closeErr := s.redisServer.Close(); closeErr != nil {
			s.log.WithField("error", closeErr.Error()).Warn("Failed to close redis")
		}
	}

	return err
}

// mount registers the middleware before any route, the health check
// included. Fiber skips middleware added after a route.
func (s *Server) mount() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	s.engine.Use(s.middleware.NewRateLimiter)

	s.setupHealthCheck()

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
			"models":  s.loader.Status(),
			"ready":   s.loader.Ready(),
		})
	})
}
