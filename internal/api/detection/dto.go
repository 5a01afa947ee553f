package detection

import (
	"FaceOverlay/internal/entity"
)

const (
	StatusDetecting = "Detecting faces..."
	StatusFailed    = "Face detection failed."
)

type ModelStatusResponse struct {
	State  string `json:"state"`
	Ready  bool   `json:"ready"`
	Status string `json:"status"`
}

type AnnotateResult struct {
	ImageID       string               `json:"image_id"`
	Status        string               `json:"status"`
	Width         int                  `json:"width"`
	Height        int                  `json:"height"`
	NaturalWidth  int                  `json:"natural_width"`
	NaturalHeight int                  `json:"natural_height"`
	Faces         []entity.FaceSummary `json:"faces"`
	PNG           []byte               `json:"-"`
}

type AnnotateResponse struct {
	AnnotateResult
	Overlay string `json:"overlay"`
}

type SubmitQuery struct {
	Wait    bool `query:"wait"`
	Timeout int  `query:"timeout" validate:"omitempty,min=1,max=120"`
}

type AnnotateQuery struct {
	Format string `query:"format" validate:"omitempty,oneof=png json"`
}

type SubmitResponse struct {
	SessionID string `json:"session_id"`
	ImageID   string `json:"image_id"`
	Status    string `json:"status"`
}

type SessionResponse struct {
	Data entity.DisplayState `json:"data"`
}

// ErrorKind classifies how a submitted image's task ended.
type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	KindNotReady
	KindDetection
	KindCancelled
	KindStale
	KindStore
	KindRender
)

var ErrorKindMap = map[ErrorKind]string{
	KindNone:      "",
	KindNotReady:  "not_ready",
	KindDetection: "detection",
	KindCancelled: "cancelled",
	KindStale:     "stale",
	KindStore:     "store",
	KindRender:    "render",
}

func (k ErrorKind) String() string {
	return ErrorKindMap[k]
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outcome is delivered once per submitted image. State is the committed
// display state when Committed reports true.
type Outcome struct {
	ImageID string              `json:"image_id"`
	Kind    ErrorKind           `json:"kind,omitempty"`
	Err     error               `json:"-"`
	State   entity.DisplayState `json:"state"`
}

func (o Outcome) Committed() bool {
	return o.Kind == KindNone || o.Kind == KindDetection || o.Kind == KindRender
}
