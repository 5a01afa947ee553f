package detectionHandler_test

import (
	"FaceOverlay/internal/api/detection"
	detectionHandler "FaceOverlay/internal/api/detection/handler"
	detectionRepository "FaceOverlay/internal/api/detection/repository"
	detectionService "FaceOverlay/internal/api/detection/service"
	"FaceOverlay/internal/entity"
	"FaceOverlay/internal/middleware"
	"FaceOverlay/pkg/faceapi"
	"FaceOverlay/pkg/overlay"
	"FaceOverlay/pkg/utils"
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type fakeModels struct {
	mu    sync.Mutex
	state faceapi.State
}

func (m *fakeModels) State() faceapi.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *fakeModels) Ready() bool { return m.State() == faceapi.StateReady }

func (m *fakeModels) Status() string {
	if m.Ready() {
		return faceapi.StatusReady
	}
	return faceapi.StatusLoading
}

type detectorFunc func(ctx context.Context, image []byte) ([]entity.FaceDetection, error)

func (f detectorFunc) Detect(ctx context.Context, image []byte) ([]entity.FaceDetection, error) {
	return f(ctx, image)
}

func oneFace(context.Context, []byte) ([]entity.FaceDetection, error) {
	return []entity.FaceDetection{{
		Box:         entity.Box{X: 10, Y: 10, Width: 40, Height: 40},
		Landmarks:   make([]entity.Point, entity.LandmarkCount),
		Expressions: entity.Expressions{{Label: "surprised", Score: 0.7}, {Label: "neutral", Score: 0.3}},
	}}, nil
}

func newApp(t *testing.T, models *fakeModels) *fiber.App {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	svc := detectionService.NewDetectionService(
		detectionService.Config{DetectTimeout: time.Second},
		models,
		overlay.NewRenderer(detectorFunc(oneFace), overlay.DefaultMaxWidth),
		detectionRepository.NewMemory(time.Hour, log),
		nil,
		utils.New(),
		log,
	)
	t.Cleanup(svc.Close)

	mw := middleware.New(log)
	app := fiber.New(fiber.Config{BodyLimit: 8 * 1024 * 1024})
	app.Use(mw.NewRequestIDMiddleware())
	handler := detectionHandler.New(log, validator.New(), mw, svc, utils.New(), 5*time.Second)
	handler.Start(app.Group("/api/v1"))
	return app
}

func imageBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, target, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="face.png"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(fiber.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func createSession(t *testing.T, app *fiber.App) entity.DisplayState {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/api/v1/face/sessions", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created detection.SessionResponse
	decode(t, resp, &created)
	return created.Data
}

func TestGetStatus(t *testing.T) {
	models := &fakeModels{state: faceapi.StateLoading}
	app := newApp(t, models)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/face/status", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var status detection.ModelStatusResponse
	decode(t, resp, &status)
	assert.False(t, status.Ready)
	assert.Equal(t, "loading", status.State)
	assert.Equal(t, faceapi.StatusLoading, status.Status)
}

func TestAnnotate_RefusedWhileLoading(t *testing.T) {
	app := newApp(t, &fakeModels{state: faceapi.StateLoading})

	resp, err := app.Test(uploadRequest(t, "/api/v1/face/annotate", "image/png", imageBytes(t, 20, 20)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestAnnotate_PNG(t *testing.T) {
	app := newApp(t, &fakeModels{state: faceapi.StateReady})

	resp, err := app.Test(uploadRequest(t, "/api/v1/face/annotate", "image/png", imageBytes(t, 1000, 500)), 10000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "1", resp.Header.Get("X-Face-Count"))
	assert.Equal(t, "600", resp.Header.Get("X-Display-Width"))
	assert.Equal(t, "300", resp.Header.Get("X-Display-Height"))

	cfg, err := png.DecodeConfig(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Width)
	assert.Equal(t, 300, cfg.Height)
}

func TestAnnotate_JSON(t *testing.T) {
	app := newApp(t, &fakeModels{state: faceapi.StateReady})

	resp, err := app.Test(uploadRequest(t, "/api/v1/face/annotate?format=json", "image/png", imageBytes(t, 100, 80)), 10000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body detection.AnnotateResponse
	decode(t, resp, &body)
	assert.Equal(t, "Detected 1 face(s).", body.Status)
	require.Len(t, body.Faces, 1)
	assert.Equal(t, "surprised", body.Faces[0].Expression)
	assert.NotEmpty(t, body.Overlay)
}

func TestAnnotate_BadUploads(t *testing.T) {
	app := newApp(t, &fakeModels{state: faceapi.StateReady})

	resp, err := app.Test(uploadRequest(t, "/api/v1/face/annotate", "text/plain", []byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/api/v1/face/annotate", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(uploadRequest(t, "/api/v1/face/annotate", "image/png", []byte("not really a png")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(uploadRequest(t, "/api/v1/face/annotate?format=gif", "image/png", imageBytes(t, 10, 10)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	big := make([]byte, utils.DefaultMaxFileSize+1)
	resp, err = app.Test(uploadRequest(t, "/api/v1/face/annotate", "image/png", big), 10000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSessions_Lifecycle(t *testing.T) {
	app := newApp(t, &fakeModels{state: faceapi.StateReady})

	session := createSession(t, app)
	assert.Equal(t, faceapi.StatusReady, session.Status)
	assert.Equal(t, entity.PhaseIdle, session.Phase)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/face/sessions/"+session.SessionID+"/overlay", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, "no overlay before the first upload")

	target := "/api/v1/face/sessions/" + session.SessionID + "/images?wait=true"
	resp, err = app.Test(uploadRequest(t, target, "image/png", imageBytes(t, 300, 200)), 10000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var done detection.SessionResponse
	decode(t, resp, &done)
	assert.Equal(t, entity.PhaseDone, done.Data.Phase)
	assert.Equal(t, "Detected 1 face(s).", done.Data.Status)
	assert.Equal(t, 300, done.Data.Width)
	require.Len(t, done.Data.Faces, 1)
	assert.Equal(t, 1, done.Data.Faces[0].Index)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/face/sessions/"+session.SessionID, nil))
	require.NoError(t, err)
	var fetched detection.SessionResponse
	decode(t, resp, &fetched)
	assert.Equal(t, done.Data.ImageID, fetched.Data.ImageID)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/face/sessions/"+session.SessionID+"/overlay", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	cfg, err := png.DecodeConfig(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
}

func TestSessions_SubmitAsync(t *testing.T) {
	app := newApp(t, &fakeModels{state: faceapi.StateReady})
	session := createSession(t, app)

	target := "/api/v1/face/sessions/" + session.SessionID + "/images"
	resp, err := app.Test(uploadRequest(t, target, "image/png", imageBytes(t, 40, 40)))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var accepted detection.SubmitResponse
	decode(t, resp, &accepted)
	assert.NotEmpty(t, accepted.ImageID)
	assert.Equal(t, detection.StatusDetecting, accepted.Status)

	require.Eventually(t, func() bool {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/face/sessions/"+session.SessionID, nil))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var state detection.SessionResponse
		if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
			return false
		}
		return state.Data.ImageID == accepted.ImageID && state.Data.Phase == entity.PhaseDone
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSessions_Unknown(t *testing.T) {
	app := newApp(t, &fakeModels{state: faceapi.StateReady})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/face/sessions/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(uploadRequest(t, "/api/v1/face/sessions/nope/images", "image/png", imageBytes(t, 10, 10)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestStatusStream(t *testing.T) {
	app := newApp(t, &fakeModels{state: faceapi.StateReady})
	session := createSession(t, app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	url := "ws://" + ln.Addr().String() + "/api/v1/face/sessions/" + session.SessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first entity.StatusEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, session.SessionID, first.SessionID)
	assert.Equal(t, entity.PhaseIdle, first.Phase)

	target := "/api/v1/face/sessions/" + session.SessionID + "/images"
	resp, err := app.Test(uploadRequest(t, target, "image/png", imageBytes(t, 40, 40)))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var phases []entity.Phase
	for len(phases) < 2 {
		var ev entity.StatusEvent
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, conn.ReadJSON(&ev))
		phases = append(phases, ev.Phase)
	}
	assert.Equal(t, []entity.Phase{entity.PhaseDetecting, entity.PhaseDone}, phases)

	_, _, err = websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/face/sessions/nope/ws", nil)
	assert.Error(t, err, "unknown sessions are not upgraded")
}

// committingService finishes a detection right after the first session
// lookup, before any stream has subscribed.
type committingService struct {
	detectionService.IDetectionService

	mu      sync.Mutex
	state   entity.DisplayState
	lookups int
	subs    map[chan entity.StatusEvent]struct{}
}

func (s *committingService) GetSession(ctx context.Context, sessionID string) (entity.DisplayState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != s.state.SessionID {
		return entity.DisplayState{}, detection.ErrSessionNotFound
	}

	snapshot := s.state
	s.lookups++
	if s.lookups == 1 {
		s.state.Phase = entity.PhaseDone
		s.state.Status = "Detected 1 face(s)."
		for ch := range s.subs {
			select {
			case ch <- entity.StatusEvent{SessionID: sessionID, ImageID: s.state.ImageID, Phase: s.state.Phase, Status: s.state.Status, Faces: 1}:
			default:
			}
		}
	}
	return snapshot, nil
}

func (s *committingService) Subscribe(sessionID string) (<-chan entity.StatusEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan entity.StatusEvent, 4)
	s.subs[ch] = struct{}{}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, ch)
			close(ch)
		})
	}
}

func TestStatusStream_CommitBeforeSubscribeIsNotLost(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	svc := &committingService{
		state: entity.DisplayState{
			SessionID: "s-1",
			ImageID:   "img-1",
			Phase:     entity.PhaseDetecting,
			Status:    detection.StatusDetecting,
		},
		subs: make(map[chan entity.StatusEvent]struct{}),
	}

	mw := middleware.New(log)
	app := fiber.New()
	app.Use(mw.NewRequestIDMiddleware())
	detectionHandler.New(log, validator.New(), mw, svc, utils.New(), 5*time.Second).Start(app.Group("/api/v1"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/face/sessions/s-1/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var first entity.StatusEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, entity.PhaseDone, first.Phase, "the first event reflects the committed result")
	assert.Equal(t, "Detected 1 face(s).", first.Status)
}
