package service

import (
	"fmt"
	"math"

	"lingua_voice_backend/internal/model"
	"lingua_voice_backend/internal/util"
)

// Rubric is the scoring configuration pinned at session open. It is
// validated once when built; a session never observes a rubric change.
type Rubric struct {
	Version  string
	Modality string
	Weights  model.MetricMap
	ScaleMin float64
	ScaleMax float64
	PassMark int
}

// NewRubric copies the mode's scoring columns into an immutable rubric,
// normalizing the weights so they sum to 1. Negative weights, an all-zero
// weight set and an empty scale are rejected.
func NewRubric(mode *model.TeachingMode, passMark int) (*Rubric, error) {
	if len(mode.Weights) == 0 {
		return nil, fmt.Errorf("%w: mode %s has no weights", util.ErrInvalidRubric, mode.Code)
	}
	var sum float64
	weights := make(model.MetricMap, len(mode.Weights))
	for name, w := range mode.Weights {
		if w < 0 {
			return nil, fmt.Errorf("%w: negative weight for %s", util.ErrInvalidRubric, name)
		}
		weights[name] = w
		sum += w
	}
	if sum <= 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", util.ErrInvalidRubric)
	}
	for name := range weights {
		weights[name] /= sum
	}
	if mode.ScaleMax <= mode.ScaleMin {
		return nil, fmt.Errorf("%w: scale [%.1f, %.1f]", util.ErrInvalidRubric, mode.ScaleMin, mode.ScaleMax)
	}

	return &Rubric{
		Version:  mode.RubricVersion,
		Modality: mode.Modality,
		Weights:  weights,
		ScaleMin: mode.ScaleMin,
		ScaleMax: mode.ScaleMax,
		PassMark: passMark,
	}, nil
}

// Clamp forces a raw sub-score onto the rubric scale.
func (r *Rubric) Clamp(v float64) float64 {
	if v < r.ScaleMin {
		return r.ScaleMin
	}
	if v > r.ScaleMax {
		return r.ScaleMax
	}
	return v
}

// Score folds clamped sub-scores into a 0..100 total. Competencies missing
// from the metric map contribute zero weight share; unknown competencies in
// the map are ignored.
func (r *Rubric) Score(metrics model.MetricMap) int {
	span := r.ScaleMax - r.ScaleMin
	var total float64
	for name, weight := range r.Weights {
		raw, ok := metrics[name]
		if !ok {
			continue
		}
		normalized := (r.Clamp(raw) - r.ScaleMin) / span
		total += weight * normalized
	}
	score := int(math.Round(total * 100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Passed reports whether a total score counts as a correct turn.
func (r *Rubric) Passed(totalScore int) bool {
	return totalScore >= r.PassMark
}
