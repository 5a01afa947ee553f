package config

import (
	"FaceOverlay/pkg/faceapi"
	"FaceOverlay/pkg/overlay"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const DefaultRuntimeURL = "ws://localhost:8765/faceapi"

type Env struct {
	AppPort string `validate:"required,numeric"`
	AppEnv  string

	MaxWidth      int           `validate:"min=1"`
	ModelURL      string        `validate:"required,url"`
	RuntimeURL    string        `validate:"required,url"`
	DetectTimeout time.Duration `validate:"min=1ms"`
	LoadTimeout   time.Duration `validate:"min=1ms"`

	SessionStore string        `validate:"oneof=memory redis"`
	SessionTTL   time.Duration `validate:"min=1ms"`

	RedisAddress  string `validate:"required_if=SessionStore redis"`
	RedisPassword string
	RedisDB       int `validate:"min=0"`

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSBucketName      string
	AWSEndpoint        string
}

// LoadEnv reads .env when present, then the process environment.
func LoadEnv() (*Env, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return EnvFromLookup(os.LookupEnv)
}

// EnvFromLookup builds an Env from any key lookup, applying defaults for
// unset keys.
func EnvFromLookup(lookup func(string) (string, bool)) (*Env, error) {
	r := envReader{lookup: lookup}

	env := &Env{
		AppPort:            r.string("APP_PORT", "3000"),
		AppEnv:             r.string("APP_ENV", "development"),
		MaxWidth:           r.int("MAX_WIDTH", overlay.DefaultMaxWidth),
		ModelURL:           r.string("MODEL_URL", faceapi.DefaultModelURL),
		RuntimeURL:         r.string("FACEAPI_WS_URL", DefaultRuntimeURL),
		DetectTimeout:      r.duration("DETECT_TIMEOUT", 30*time.Second),
		LoadTimeout:        r.duration("LOAD_TIMEOUT", 60*time.Second),
		SessionStore:       r.string("SESSION_STORE", "memory"),
		SessionTTL:         r.duration("SESSION_TTL", time.Hour),
		RedisAddress:       r.string("REDIS_ADDRESS", ""),
		RedisPassword:      r.string("REDIS_PASSWORD", ""),
		RedisDB:            r.int("REDIS_DB", 0),
		AWSRegion:          r.string("AWS_REGION", ""),
		AWSAccessKeyID:     r.string("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: r.string("AWS_SECRET_ACCESS_KEY", ""),
		AWSBucketName:      r.string("AWS_BUCKET_NAME", ""),
		AWSEndpoint:        r.string("AWS_ENDPOINT", ""),
	}

	if r.err != nil {
		return nil, r.err
	}

	if err := validator.New().Struct(env); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return env, nil
}

func (e *Env) ArchiveEnabled() bool {
	return e.AWSBucketName != ""
}

type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *envReader) string(key, fallback string) string {
	if v, ok := r.lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func (r *envReader) int(key string, fallback int) int {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
	return n
}

// duration accepts Go durations ("45s") or a bare number of seconds.
func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
	return d
}
