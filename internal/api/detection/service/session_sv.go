package detectionService

import (
	"FaceOverlay/internal/api/detection"
	"FaceOverlay/internal/entity"
	contextPkg "FaceOverlay/pkg/context"
	"FaceOverlay/pkg/overlay"
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func (s *detectionService) CreateSession(ctx context.Context) (entity.DisplayState, error) {
	state := entity.DisplayState{
		SessionID: uuid.NewString(),
		Status:    s.models.Status(),
		Phase:     entity.PhaseIdle,
		Faces:     []entity.FaceSummary{},
		UpdatedAt: time.Now(),
	}

	if err := s.repository.Create(ctx, state); err != nil {
		return entity.DisplayState{}, fmt.Errorf("%w: %v", detection.ErrInternalServerError, err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": state.SessionID,
	}).Info("Session created")

	return state, nil
}

func (s *detectionService) GetSession(ctx context.Context, sessionID string) (entity.DisplayState, error) {
	state, err := s.repository.Get(ctx, sessionID)
	if err != nil {
		return entity.DisplayState{}, err
	}

	// an idle session follows the loader until its first upload
	if state.Phase == entity.PhaseIdle {
		state.Status = s.models.Status()
	}

	return state, nil
}

func (s *detectionService) GetOverlay(ctx context.Context, sessionID string) ([]byte, error) {
	state, err := s.repository.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(state.Overlay) == 0 {
		return nil, detection.ErrOverlayNotReady
	}
	return state.Overlay, nil
}

func (s *detectionService) Subscribe(sessionID string) (<-chan entity.StatusEvent, func()) {
	return s.hub.subscribe(sessionID)
}

// Submit replaces the session's image and starts a render cycle for it. The
// returned channel yields exactly one Outcome and is then closed. A newer
// Submit on the same session cancels this one, and a result that arrives for
// an image the session no longer shows is discarded.
func (s *detectionService) Submit(ctx context.Context, sessionID string, data []byte) (string, <-chan detection.Outcome, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if !s.models.Ready() {
		return "", nil, detection.ErrModelsNotReady
	}

	imageID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", detection.ErrInternalServerError, err)
	}

	asset, err := overlay.Decode(imageID, data)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": sessionID,
			"image_id":   imageID,
			"error":      err.Error(),
		}).Warn("Failed to decode uploaded image")
		return "", nil, fmt.Errorf("%w: %v", detection.ErrInvalidImage, err)
	}

	// Reset and task registration happen under the session's lock so the
	// task that survives is always the one for the image the session shows.
	unlock := s.lockSession(sessionID)
	state, err := s.repository.Reset(ctx, sessionID, imageID, detection.StatusDetecting)
	if err != nil {
		unlock()
		return "", nil, err
	}

	s.mu.Lock()
	if prev, ok := s.tasks[sessionID]; ok {
		prev.cancel()
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": sessionID,
			"image_id":   prev.imageID,
		}).Debug("Cancelled superseded detection")
	}

	taskCtx := contextPkg.WithSessionID(contextPkg.Detach(ctx), sessionID)
	taskCtx, cancel := context.WithCancel(taskCtx)
	s.tasks[sessionID] = &task{imageID: imageID, cancel: cancel}
	s.wg.Add(1)
	s.mu.Unlock()
	unlock()

	s.publish(state)

	out := make(chan detection.Outcome, 1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		defer s.finish(sessionID, imageID, cancel)

		out <- s.run(taskCtx, state, asset)
	}()

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": sessionID,
		"image_id":   imageID,
	}).Info("Detection started")

	return imageID, out, nil
}

func (s *detectionService) run(ctx context.Context, state entity.DisplayState, asset *entity.ImageAsset) detection.Outcome {
	requestID := contextPkg.GetRequestID(ctx)
	outcome := detection.Outcome{ImageID: asset.ID}

	detectCtx, cancel := context.WithTimeout(ctx, s.detectTimeout)
	defer cancel()

	result, err := s.renderer.Render(detectCtx, asset, s.models.Ready())
	if ctx.Err() != nil {
		outcome.Kind = detection.KindCancelled
		outcome.Err = ctx.Err()
		return outcome
	}

	natural := overlay.Dimensions{}
	natural.Width, natural.Height = asset.Size()
	display := overlay.FitWidth(natural, s.renderer.MaxWidth())

	next := state
	next.Width = display.Width
	next.Height = display.Height
	next.UpdatedAt = time.Now()

	switch {
	case err != nil:
		s.renderError(requestID, asset.ID, err)
		outcome.Kind = detection.KindDetection
		outcome.Err = err
		next.Phase = entity.PhaseFailed
		next.Status = detection.StatusFailed
		next.Faces = []entity.FaceSummary{}
	case result == nil:
		outcome.Kind = detection.KindNotReady
		outcome.Err = detection.ErrModelsNotReady
		next.Phase = entity.PhaseFailed
		next.Status = s.models.Status()
		next.Faces = []entity.FaceSummary{}
	default:
		png, encErr := encodePNG(result.Image())
		if encErr != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": state.SessionID,
				"image_id":   asset.ID,
				"error":      encErr.Error(),
			}).Error("Failed to encode overlay")
			outcome.Kind = detection.KindRender
			outcome.Err = encErr
			next.Phase = entity.PhaseFailed
			next.Status = detection.StatusFailed
			next.Faces = []entity.FaceSummary{}
			break
		}
		next.Phase = entity.PhaseDone
		next.Status = result.Status
		next.Faces = result.Faces
		next.Overlay = png
	}

	if err := s.repository.Commit(ctx, next); err != nil {
		if errors.Is(err, detection.ErrStaleResult) {
			outcome.Kind = detection.KindStale
		} else {
			outcome.Kind = detection.KindStore
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": state.SessionID,
				"image_id":   asset.ID,
				"error":      err.Error(),
			}).Error("Failed to commit detection result")
		}
		outcome.Err = err
		return outcome
	}

	// only overlays that made it into the session are archived
	if len(next.Overlay) > 0 {
		if url := s.archiveOverlay(ctx, state.SessionID, asset.ID, next.Overlay); url != "" {
			archived := next
			archived.ArchiveURL = url
			if err := s.repository.Commit(ctx, archived); err == nil {
				next = archived
			} else {
				s.log.WithFields(logrus.Fields{
					"request_id": requestID,
					"session_id": state.SessionID,
					"image_id":   asset.ID,
					"error":      err.Error(),
				}).Debug("Archive link not stored")
			}
		}
	}

	outcome.State = next
	s.publish(next)

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": state.SessionID,
		"image_id":   asset.ID,
		"phase":      next.Phase.String(),
		"faces":      len(next.Faces),
	}).Info("Detection committed")

	return outcome
}

// lockSession serialises Submit per session. Other sessions are not held up
// by a slow store round trip.
func (s *detectionService) lockSession(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}

func (s *detectionService) finish(sessionID, imageID string, cancel context.CancelFunc) {
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tasks[sessionID]; ok && t.imageID == imageID {
		delete(s.tasks, sessionID)
	}
}

// archiveOverlay uploads the overlay when an archive is configured and
// returns a presigned link to it. Archive failures only cost the link.
func (s *detectionService) archiveOverlay(ctx context.Context, sessionID, imageID string, png []byte) string {
	if s.archive == nil {
		return ""
	}

	key := fmt.Sprintf("overlays/%s/%s.png", sessionID, imageID)
	location, err := s.archive.Upload(ctx, key, bytes.NewReader(png), "image/png")
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"image_id":   imageID,
			"error":      err.Error(),
		}).Warn("Failed to archive overlay")
		return ""
	}

	url, err := s.archive.PresignUrl(location)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"image_id":   imageID,
			"error":      err.Error(),
		}).Warn("Failed to presign overlay")
		return ""
	}

	return url
}

func (s *detectionService) publish(state entity.DisplayState) {
	s.hub.publish(entity.StatusEvent{
		SessionID: state.SessionID,
		ImageID:   state.ImageID,
		Phase:     state.Phase,
		Status:    state.Status,
		Faces:     len(state.Faces),
		At:        state.UpdatedAt,
	})
}
