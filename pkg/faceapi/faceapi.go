// Package faceapi talks to the external face-api inference runtime and
// tracks whether its networks are loaded.
package faceapi

import (
	"FaceOverlay/internal/entity"
	"context"
	"errors"
)

// Net names a weight bundle the runtime can load.
type Net string

const (
	SSDMobilenetV1    Net = "ssdMobilenetv1"
	FaceLandmark68Net Net = "faceLandmark68Net"
	FaceExpressionNet Net = "faceExpressionNet"
)

// RequiredNets is the load order used by the Loader.
var RequiredNets = []Net{SSDMobilenetV1, FaceLandmark68Net, FaceExpressionNet}

const DefaultModelURL = "https://justadudewhohacks.github.io/face-api.js/models"

var (
	ErrLibraryLoad = errors.New("face detection library unavailable")
	ErrModelLoad   = errors.New("face model failed to load")
	ErrNotReady    = errors.New("face models are not loaded")
)

// Runtime is the black-box model library.
type Runtime interface {
	Connect(ctx context.Context) error
	LoadNet(ctx context.Context, net Net, uri string) error
	Detect(ctx context.Context, image []byte) ([]entity.FaceDetection, error)
	Close() error
}

type request struct {
	ID              string `json:"id"`
	Op              string `json:"op"`
	Net             Net    `json:"net,omitempty"`
	URI             string `json:"uri,omitempty"`
	Image           string `json:"image,omitempty"`
	WithLandmarks   bool   `json:"withLandmarks,omitempty"`
	WithExpressions bool   `json:"withExpressions,omitempty"`
}

type response struct {
	ID         string          `json:"id"`
	OK         bool            `json:"ok"`
	Error      string          `json:"error,omitempty"`
	Detections []wireDetection `json:"detections,omitempty"`
}

// wireDetection mirrors the shape face-api returns from
// detectAllFaces().withFaceLandmarks().withFaceExpressions().
type wireDetection struct {
	Detection struct {
		Box   entity.Box `json:"box"`
		Score float64    `json:"score"`
	} `json:"detection"`
	Landmarks struct {
		Positions []entity.Point `json:"positions"`
	} `json:"landmarks"`
	Expressions entity.Expressions `json:"expressions"`
}

func (w wireDetection) toEntity() entity.FaceDetection {
	return entity.FaceDetection{
		Box:         w.Detection.Box,
		Score:       w.Detection.Score,
		Landmarks:   w.Landmarks.Positions,
		Expressions: w.Expressions,
	}
}
