package main

import (
	"FaceOverlay/internal/entity"
	"FaceOverlay/pkg/faceapi"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRuntime struct {
	loaded     []faceapi.Net
	detections []entity.FaceDetection
	loadErr    error
}

func (s *stubRuntime) Connect(ctx context.Context) error { return nil }

func (s *stubRuntime) LoadNet(ctx context.Context, net faceapi.Net, uri string) error {
	s.loaded = append(s.loaded, net)
	return s.loadErr
}

func (s *stubRuntime) Detect(ctx context.Context, image []byte) ([]entity.FaceDetection, error) {
	return s.detections, nil
}

func (s *stubRuntime) Close() error { return nil }

func writeImage(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "people.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
	return path
}

func execute(t *testing.T, runtime faceapi.Runtime, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd(func(string) faceapi.Runtime { return runtime })
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestAnnotateCommand(t *testing.T) {
	input := writeImage(t, 1200, 600)
	output := filepath.Join(t.TempDir(), "out.png")
	runtime := &stubRuntime{detections: []entity.FaceDetection{
		{
			Box:         entity.Box{X: 100, Y: 100, Width: 300, Height: 300},
			Expressions: entity.Expressions{{Label: "angry", Score: 0.6}, {Label: "happy", Score: 0.4}},
		},
		{
			Box:         entity.Box{X: 700, Y: 100, Width: 300, Height: 300},
			Expressions: entity.Expressions{{Label: "neutral", Score: 0.0}},
		},
	}}

	stdout, stderr, err := execute(t, runtime, "--input", input, "--output", output)
	require.NoError(t, err)

	assert.Equal(t, faceapi.RequiredNets, runtime.loaded)
	assert.Contains(t, stderr, faceapi.StatusLoading)
	assert.Contains(t, stderr, faceapi.StatusReady)
	assert.Contains(t, stdout, "Detected 2 face(s).")
	assert.Contains(t, stdout, "Face 1: angry\n")
	assert.Contains(t, stdout, "Face 2: \n", "no positive score leaves the label empty")

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Width)
	assert.Equal(t, 300, cfg.Height)
}

func TestAnnotateCommand_JSON(t *testing.T) {
	input := writeImage(t, 200, 100)

	stdout, _, err := execute(t, &stubRuntime{}, "-i", input, "--json", "--max-width", "100")
	require.NoError(t, err)

	assert.Contains(t, stdout, `"status":"Detected 0 face(s)."`)
	assert.Contains(t, stdout, `"width":100`)
	assert.FileExists(t, input+".overlay.png")
}

func TestAnnotateCommand_Errors(t *testing.T) {
	_, _, err := execute(t, &stubRuntime{})
	assert.Error(t, err, "--input is required")

	_, _, err = execute(t, &stubRuntime{}, "--input", filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	input := writeImage(t, 10, 10)
	_, stderr, err := execute(t, &stubRuntime{loadErr: errors.New("404")}, "--input", input)
	assert.ErrorIs(t, err, faceapi.ErrModelLoad)
	assert.Contains(t, stderr, faceapi.StatusFailed)
}
