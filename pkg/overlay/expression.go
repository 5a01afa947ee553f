package overlay

import "FaceOverlay/internal/entity"

// DominantExpression returns the label with the highest score. A later label
// only wins when strictly greater, so ties keep the first one seen. Scores
// of zero or less never win, which yields "" for an empty map.
func DominantExpression(expressions entity.Expressions) string {
	best := ""
	top := 0.0
	for _, expr := range expressions {
		if expr.Score > top {
			top = expr.Score
			best = expr.Label
		}
	}
	return best
}

// Summaries builds the results list, one row per face in detector order.
func Summaries(detections []entity.FaceDetection) []entity.FaceSummary {
	out := make([]entity.FaceSummary, 0, len(detections))
	for i, det := range detections {
		out = append(out, entity.FaceSummary{
			Index:      i + 1,
			Expression: DominantExpression(det.Expressions),
			Box:        det.Box,
			Scores:     det.Expressions,
		})
	}
	return out
}
