package faceapi

import (
	"FaceOverlay/internal/entity"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State uint8

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

var stateNames = map[State]string{
	StateUnloaded: "unloaded",
	StateLoading:  "loading",
	StateReady:    "ready",
	StateFailed:   "failed",
}

func (s State) String() string {
	return stateNames[s]
}

const (
	StatusLoading = "Loading models..."
	StatusReady   = "Models loaded. Upload an image!"
	StatusFailed  = "Error loading face detection library or models"
)

// Loader brings the runtime up exactly once. Ready and Failed are terminal;
// a failed loader stays failed until the process restarts.
type Loader struct {
	runtime     Runtime
	modelURL    string
	loadTimeout time.Duration
	log         *logrus.Logger

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

func NewLoader(runtime Runtime, modelURL string, loadTimeout time.Duration, log *logrus.Logger) *Loader {
	if modelURL == "" {
		modelURL = DefaultModelURL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loader{
		runtime:     runtime,
		modelURL:    modelURL,
		loadTimeout: loadTimeout,
		log:         log,
	}
}

// EnsureReady starts the load on first use and waits for it to settle.
// Concurrent callers share the same load. ctx only bounds the wait.
func (l *Loader) EnsureReady(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case StateReady:
		l.mu.Unlock()
		return nil
	case StateFailed:
		err := l.err
		l.mu.Unlock()
		return err
	case StateUnloaded:
		l.state = StateLoading
		l.done = make(chan struct{})
		go l.load()
	}
	done := l.done
	l.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Loader) load() {
	ctx := context.Background()
	if l.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.loadTimeout)
		defer cancel()
	}

	start := time.Now()
	err := l.bringUp(ctx)

	l.mu.Lock()
	if err != nil {
		l.state = StateFailed
		l.err = err
		l.log.WithFields(logrus.Fields{
			"error":      err.Error(),
			"model_url":  l.modelURL,
			"latency_ms": time.Since(start).Milliseconds(),
		}).Error("Face models unavailable")
	} else {
		l.state = StateReady
		l.log.WithFields(logrus.Fields{
			"model_url":  l.modelURL,
			"latency_ms": time.Since(start).Milliseconds(),
		}).Info("Face models loaded")
	}
	close(l.done)
	l.mu.Unlock()
}

func (l *Loader) bringUp(ctx context.Context) error {
	if err := l.runtime.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrLibraryLoad, err)
	}

	for _, net := range RequiredNets {
		l.log.WithField("net", net).Debug("Loading face model")
		if err := l.runtime.LoadNet(ctx, net, l.modelURL); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrModelLoad, net, err)
		}
	}
	return nil
}

func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loader) Ready() bool {
	return l.State() == StateReady
}

func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Status is the user-facing line for the current state. Library and model
// failures share one message.
func (l *Loader) Status() string {
	switch l.State() {
	case StateReady:
		return StatusReady
	case StateFailed:
		return StatusFailed
	default:
		return StatusLoading
	}
}

// Detect runs the runtime's single detection entry point. It refuses to run
// before the loader is Ready.
func (l *Loader) Detect(ctx context.Context, image []byte) ([]entity.FaceDetection, error) {
	if !l.Ready() {
		return nil, ErrNotReady
	}
	return l.runtime.Detect(ctx, image)
}

func (l *Loader) Close() error {
	return l.runtime.Close()
}
