package overlay_test

import (
	"FaceOverlay/internal/entity"
	"FaceOverlay/pkg/overlay"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDominantExpression(t *testing.T) {
	tests := []struct {
		name        string
		expressions entity.Expressions
		expected    string
	}{
		{
			name:        "Clear winner",
			expressions: entity.Expressions{{Label: "happy", Score: 0.9}, {Label: "neutral", Score: 0.1}},
			expected:    "happy",
		},
		{
			name:        "Winner last",
			expressions: entity.Expressions{{Label: "neutral", Score: 0.2}, {Label: "sad", Score: 0.05}, {Label: "surprised", Score: 0.75}},
			expected:    "surprised",
		},
		{
			name:        "Tie keeps first seen",
			expressions: entity.Expressions{{Label: "angry", Score: 0.5}, {Label: "fearful", Score: 0.5}},
			expected:    "angry",
		},
		{
			name:        "Empty map",
			expressions: nil,
			expected:    "",
		},
		{
			name:        "All zero",
			expressions: entity.Expressions{{Label: "neutral", Score: 0}, {Label: "happy", Score: 0}},
			expected:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, overlay.DominantExpression(tt.expressions))
		})
	}
}

func TestDominantExpression_FollowsWireOrderOnTies(t *testing.T) {
	var first, second entity.Expressions
	require.NoError(t, json.Unmarshal([]byte(`{"sad":0.4,"happy":0.4,"neutral":0.2}`), &first))
	require.NoError(t, json.Unmarshal([]byte(`{"happy":0.4,"sad":0.4,"neutral":0.2}`), &second))

	assert.Equal(t, "sad", overlay.DominantExpression(first))
	assert.Equal(t, "happy", overlay.DominantExpression(second))
}

func TestExpressions_JSONKeepsOrder(t *testing.T) {
	in := `{"neutral":0.25,"happy":0.5,"angry":0.25}`

	var exprs entity.Expressions
	require.NoError(t, json.Unmarshal([]byte(in), &exprs))
	require.Len(t, exprs, 3)
	assert.Equal(t, "neutral", exprs[0].Label)
	assert.Equal(t, "angry", exprs[2].Label)

	out, err := json.Marshal(exprs)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	assert.Equal(t, in, string(out))
}

func TestExpressions_RejectsDuplicateLabels(t *testing.T) {
	var exprs entity.Expressions
	err := json.Unmarshal([]byte(`{"happy":0.4,"happy":0.6}`), &exprs)
	assert.Error(t, err)
}

func TestSummaries(t *testing.T) {
	faces := overlay.Summaries([]entity.FaceDetection{
		{Expressions: entity.Expressions{{Label: "happy", Score: 0.9}, {Label: "neutral", Score: 0.1}}},
		{Expressions: entity.Expressions{{Label: "sad", Score: 0.7}, {Label: "neutral", Score: 0.3}}},
	})

	require.Len(t, faces, 2)
	assert.Equal(t, 1, faces[0].Index)
	assert.Equal(t, "happy", faces[0].Expression)
	assert.Equal(t, 2, faces[1].Index)
	assert.Equal(t, "sad", faces[1].Expression)
}
