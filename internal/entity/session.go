package entity

import "time"

// DisplayState is what a client renders for one session: the current image,
// its overlay, the status line and the results list.
type DisplayState struct {
	SessionID  string        `json:"session_id"`
	ImageID    string        `json:"image_id,omitempty"`
	Status     string        `json:"status"`
	Phase      Phase         `json:"phase"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Faces      []FaceSummary `json:"faces"`
	Overlay    []byte        `json:"-"`
	ArchiveURL string        `json:"archive_url,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseDetecting
	PhaseDone
	PhaseFailed
)

var PhaseMap = map[Phase]string{
	PhaseIdle:      "idle",
	PhaseDetecting: "detecting",
	PhaseDone:      "done",
	PhaseFailed:    "failed",
}

func (p Phase) String() string {
	return PhaseMap[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range PhaseMap {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	*p = PhaseIdle
	return nil
}

// StatusEvent is pushed to live subscribers of a session.
type StatusEvent struct {
	SessionID string    `json:"session_id"`
	ImageID   string    `json:"image_id,omitempty"`
	Phase     Phase     `json:"phase"`
	Status    string    `json:"status"`
	Faces     int       `json:"faces"`
	At        time.Time `json:"at"`
}
