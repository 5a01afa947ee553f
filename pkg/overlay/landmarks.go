package overlay

import "FaceOverlay/internal/entity"

// LandmarkGroup is a half-open index range into the 68-point layout.
type LandmarkGroup struct {
	Name   string
	Start  int
	End    int
	Closed bool
}

// LandmarkGroups follows the 68-point layout of the landmark model. The
// ranges are fixed by the model and must not change.
var LandmarkGroups = []LandmarkGroup{
	{Name: "jaw", Start: 0, End: 17},
	{Name: "right_eyebrow", Start: 17, End: 22},
	{Name: "left_eyebrow", Start: 22, End: 27},
	{Name: "nose_bridge", Start: 27, End: 31},
	{Name: "lower_nose", Start: 31, End: 36},
	{Name: "right_eye", Start: 36, End: 42, Closed: true},
	{Name: "left_eye", Start: 42, End: 48, Closed: true},
	{Name: "outer_lip", Start: 48, End: 60, Closed: true},
	{Name: "inner_lip", Start: 60, End: 68, Closed: true},
}

// Slice returns the group's points, clamped to what points holds.
func (g LandmarkGroup) Slice(points []entity.Point) []entity.Point {
	start, end := g.Start, g.End
	if start > len(points) {
		start = len(points)
	}
	if end > len(points) {
		end = len(points)
	}
	return points[start:end]
}
