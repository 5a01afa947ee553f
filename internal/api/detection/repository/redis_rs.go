package detectionRepository

import (
	"FaceOverlay/internal/api/detection"
	"FaceOverlay/internal/entity"
	contextPkg "FaceOverlay/pkg/context"
	redisPkg "FaceOverlay/pkg/redis"
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const sessionKeyPrefix = "faceoverlay:session:"

// sessionRecord is the stored form of a display state. The overlay is kept
// alongside it since the API encoding leaves it out.
type sessionRecord struct {
	entity.DisplayState
	Overlay []byte `json:"overlay,omitempty"`
}

func toRecord(state entity.DisplayState) sessionRecord {
	return sessionRecord{DisplayState: state, Overlay: state.Overlay}
}

func (r sessionRecord) toEntity() entity.DisplayState {
	state := r.DisplayState
	state.Overlay = r.Overlay
	return state
}

type redisRepository struct {
	redis redisPkg.IRedis
	ttl   time.Duration
	now   func() time.Time
	log   *logrus.Logger
}

func NewRedis(redis redisPkg.IRedis, ttl time.Duration, log *logrus.Logger) Repository {
	return &redisRepository{
		redis: redis,
		ttl:   ttl,
		now:   time.Now,
		log:   log,
	}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func (r *redisRepository) Create(ctx context.Context, state entity.DisplayState) error {
	data, err := json.Marshal(toRecord(state))
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"session_id": state.SessionID,
			"error":      err.Error(),
		}).Error("Failed to marshal session")
		return err
	}

	if err := r.redis.Set(ctx, sessionKey(state.SessionID), data, r.ttl); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"session_id": state.SessionID,
			"error":      err.Error(),
		}).Error("Redis error when creating session")
		return err
	}

	return nil
}

func (r *redisRepository) Get(ctx context.Context, sessionID string) (entity.DisplayState, error) {
	data, err := r.redis.Get(ctx, sessionKey(sessionID))
	if errors.Is(err, redisPkg.ErrNotFound) {
		return entity.DisplayState{}, detection.ErrSessionNotFound
	} else if err != nil {
		return entity.DisplayState{}, err
	}

	var record sessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"session_id": sessionID,
			"error":      err.Error(),
		}).Error("Failed to unmarshal session")
		return entity.DisplayState{}, err
	}

	return record.toEntity(), nil
}

func (r *redisRepository) Reset(ctx context.Context, sessionID, imageID, status string) (entity.DisplayState, error) {
	var reset entity.DisplayState

	err := r.update(ctx, sessionID, func(current entity.DisplayState) (entity.DisplayState, error) {
		reset = resetState(current, imageID, status, r.now())
		return reset, nil
	})
	if err != nil {
		return entity.DisplayState{}, err
	}

	return reset, nil
}

func (r *redisRepository) Commit(ctx context.Context, state entity.DisplayState) error {
	return r.update(ctx, state.SessionID, func(current entity.DisplayState) (entity.DisplayState, error) {
		if current.ImageID != state.ImageID {
			r.log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"session_id": state.SessionID,
				"image_id":   state.ImageID,
				"current":    current.ImageID,
			}).Debug("Dropping stale detection result")
			return entity.DisplayState{}, detection.ErrStaleResult
		}
		return state, nil
	})
}

func (r *redisRepository) update(ctx context.Context, sessionID string, fn func(entity.DisplayState) (entity.DisplayState, error)) error {
	err := r.redis.Update(ctx, sessionKey(sessionID), r.ttl, func(current []byte) ([]byte, error) {
		var record sessionRecord
		if err := json.Unmarshal(current, &record); err != nil {
			return nil, err
		}

		next, err := fn(record.toEntity())
		if err != nil {
			return nil, err
		}

		return json.Marshal(toRecord(next))
	})
	if errors.Is(err, redisPkg.ErrNotFound) {
		return detection.ErrSessionNotFound
	}
	return err
}
