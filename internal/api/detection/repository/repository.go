package detectionRepository

import (
	"FaceOverlay/internal/entity"
	redisPkg "FaceOverlay/pkg/redis"
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"

	DefaultSessionTTL = time.Hour
)

// Repository stores one display state per session. Commit is a
// compare-and-swap on the image id: it only lands while the session still
// shows the image the result was computed for.
type Repository interface {
	Create(ctx context.Context, state entity.DisplayState) error
	Get(ctx context.Context, sessionID string) (entity.DisplayState, error)
	Reset(ctx context.Context, sessionID, imageID, status string) (entity.DisplayState, error)
	Commit(ctx context.Context, state entity.DisplayState) error
}

type Config struct {
	Store string
	TTL   time.Duration
}

func New(cfg Config, redis redisPkg.IRedis, log *logrus.Logger) (Repository, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	switch cfg.Store {
	case "", StoreMemory:
		return NewMemory(ttl, log), nil
	case StoreRedis:
		if redis == nil {
			return nil, fmt.Errorf("session store %q needs a redis client", cfg.Store)
		}
		return NewRedis(redis, ttl, log), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

func resetState(state entity.DisplayState, imageID, status string, now time.Time) entity.DisplayState {
	state.ImageID = imageID
	state.Status = status
	state.Phase = entity.PhaseDetecting
	state.Width = 0
	state.Height = 0
	state.Faces = []entity.FaceSummary{}
	state.Overlay = nil
	state.ArchiveURL = ""
	state.UpdatedAt = now
	return state
}
