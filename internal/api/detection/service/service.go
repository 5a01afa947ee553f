package detectionService

import (
	"FaceOverlay/internal/api/detection"
	detectionRepository "FaceOverlay/internal/api/detection/repository"
	"FaceOverlay/internal/entity"
	"FaceOverlay/pkg/faceapi"
	"FaceOverlay/pkg/overlay"
	"FaceOverlay/pkg/s3"
	"FaceOverlay/pkg/utils"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultDetectTimeout = 30 * time.Second

type IDetectionService interface {
	Status() detection.ModelStatusResponse
	Annotate(ctx context.Context, data []byte) (*detection.AnnotateResult, error)
	CreateSession(ctx context.Context) (entity.DisplayState, error)
	Submit(ctx context.Context, sessionID string, data []byte) (string, <-chan detection.Outcome, error)
	GetSession(ctx context.Context, sessionID string) (entity.DisplayState, error)
	GetOverlay(ctx context.Context, sessionID string) ([]byte, error)
	Subscribe(sessionID string) (<-chan entity.StatusEvent, func())
	Close()
}

// ModelStatus reports whether the face models can serve detections.
type ModelStatus interface {
	State() faceapi.State
	Ready() bool
	Status() string
}

type Config struct {
	DetectTimeout time.Duration
}

type detectionService struct {
	models        ModelStatus
	renderer      *overlay.Renderer
	repository    detectionRepository.Repository
	archive       s3.ItfS3
	utils         utils.IUtils
	hub           *statusHub
	log           *logrus.Logger
	detectTimeout time.Duration

	mu    sync.Mutex
	tasks map[string]*task
	locks map[string]*sessionLock
	wg    sync.WaitGroup
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// task is the in-flight render cycle of one session.
type task struct {
	imageID string
	cancel  context.CancelFunc
}

// NewDetectionService wires the service. archive may be nil, in which case
// overlays are only kept in the session store.
func NewDetectionService(
	cfg Config,
	models ModelStatus,
	renderer *overlay.Renderer,
	repository detectionRepository.Repository,
	archive s3.ItfS3,
	utils utils.IUtils,
	log *logrus.Logger,
) IDetectionService {
	timeout := cfg.DetectTimeout
	if timeout <= 0 {
		timeout = DefaultDetectTimeout
	}

	return &detectionService{
		models:        models,
		renderer:      renderer,
		repository:    repository,
		archive:       archive,
		utils:         utils,
		hub:           newStatusHub(),
		log:           log,
		detectTimeout: timeout,
		tasks:         make(map[string]*task),
		locks:         make(map[string]*sessionLock),
	}
}

func (s *detectionService) Status() detection.ModelStatusResponse {
	return detection.ModelStatusResponse{
		State:  s.models.State().String(),
		Ready:  s.models.Ready(),
		Status: s.models.Status(),
	}
}

// Close cancels every in-flight task and waits for them to finish.
func (s *detectionService) Close() {
	s.mu.Lock()
	for id, t := range s.tasks {
		t.cancel()
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.hub.closeAll()
}
