package detectionRepository

import (
	"FaceOverlay/internal/api/detection"
	"FaceOverlay/internal/entity"
	contextPkg "FaceOverlay/pkg/context"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type memoryEntry struct {
	state     entity.DisplayState
	expiresAt time.Time
}

type memoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	now      func() time.Time
	log      *logrus.Logger
}

func NewMemory(ttl time.Duration, log *logrus.Logger) Repository {
	return &memoryRepository{
		sessions: make(map[string]*memoryEntry),
		ttl:      ttl,
		now:      time.Now,
		log:      log,
	}
}

func (r *memoryRepository) Create(ctx context.Context, state entity.DisplayState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()
	r.sessions[state.SessionID] = &memoryEntry{state: state, expiresAt: r.now().Add(r.ttl)}

	r.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": state.SessionID,
	}).Debug("Session created")

	return nil
}

func (r *memoryRepository) Get(ctx context.Context, sessionID string) (entity.DisplayState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.entryLocked(sessionID)
	if err != nil {
		return entity.DisplayState{}, err
	}
	return entry.state, nil
}

func (r *memoryRepository) Reset(ctx context.Context, sessionID, imageID, status string) (entity.DisplayState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.entryLocked(sessionID)
	if err != nil {
		return entity.DisplayState{}, err
	}

	now := r.now()
	entry.state = resetState(entry.state, imageID, status, now)
	entry.expiresAt = now.Add(r.ttl)
	return entry.state, nil
}

func (r *memoryRepository) Commit(ctx context.Context, state entity.DisplayState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.entryLocked(state.SessionID)
	if err != nil {
		return err
	}

	if entry.state.ImageID != state.ImageID {
		r.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"session_id": state.SessionID,
			"image_id":   state.ImageID,
			"current":    entry.state.ImageID,
		}).Debug("Dropping stale detection result")
		return detection.ErrStaleResult
	}

	now := r.now()
	entry.state = state
	entry.expiresAt = now.Add(r.ttl)
	return nil
}

func (r *memoryRepository) entryLocked(sessionID string) (*memoryEntry, error) {
	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, detection.ErrSessionNotFound
	}
	if r.now().After(entry.expiresAt) {
		delete(r.sessions, sessionID)
		return nil, detection.ErrSessionNotFound
	}
	return entry, nil
}

func (r *memoryRepository) sweepLocked() {
	now := r.now()
	for id, entry := range r.sessions {
		if now.After(entry.expiresAt) {
			delete(r.sessions, id)
		}
	}
}
