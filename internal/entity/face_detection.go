package entity

import (
	"errors"

	jsoniter "github.com/json-iterator/go"
)

// LandmarkCount is the size of the 68-point face layout.
const LandmarkCount = 68

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Expression struct {
	Label string
	Score float64
}

// Expressions keeps the label order the model emitted, which JSON objects
// decoded into a Go map would lose.
type Expressions []Expression

func (e Expressions) MarshalJSON() ([]byte, error) {
	stream := jsoniter.ConfigFastest.BorrowStream(nil)
	defer jsoniter.ConfigFastest.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, expr := range e {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(expr.Label)
		stream.WriteFloat64(expr.Score)
	}
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

func (e *Expressions) UnmarshalJSON(data []byte) error {
	iter := jsoniter.ConfigFastest.BorrowIterator(data)
	defer jsoniter.ConfigFastest.ReturnIterator(iter)

	if iter.WhatIsNext() == jsoniter.NilValue {
		iter.Skip()
		*e = nil
		return nil
	}

	out := Expressions{}
	seen := make(map[string]struct{})
	iter.ReadObjectCB(func(it *jsoniter.Iterator, label string) bool {
		score := it.ReadFloat64()
		if _, dup := seen[label]; dup {
			it.ReportError("Expressions", "duplicate expression label "+label)
			return false
		}
		seen[label] = struct{}{}
		out = append(out, Expression{Label: label, Score: score})
		return true
	})
	if iter.Error != nil {
		return errors.New("invalid expressions: " + iter.Error.Error())
	}

	*e = out
	return nil
}

// Score returns the confidence for label and whether it is present.
func (e Expressions) Score(label string) (float64, bool) {
	for _, expr := range e {
		if expr.Label == label {
			return expr.Score, true
		}
	}
	return 0, false
}

type FaceDetection struct {
	Box         Box         `json:"box"`
	Score       float64     `json:"score,omitempty"`
	Landmarks   []Point     `json:"landmarks"`
	Expressions Expressions `json:"expressions"`
}

// FaceSummary is one row of the results list shown next to the overlay.
type FaceSummary struct {
	Index      int         `json:"index"`
	Expression string      `json:"expression"`
	Box        Box         `json:"box"`
	Scores     Expressions `json:"scores,omitempty"`
}
