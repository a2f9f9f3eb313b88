package service

import (
	"strings"
	"unicode"

	"lingua_voice_backend/internal/model"
)

// TurnScorer turns engine analysis (or, failing that, the transcript alone)
// into an Evaluation. Scoring is deterministic: the same rubric, transcript
// and analysis always produce the same metrics and total.
type TurnScorer struct {
	Rubric *Rubric
}

func NewTurnScorer(rubric *Rubric) *TurnScorer {
	return &TurnScorer{Rubric: rubric}
}

// Evaluate scores one user turn. Engine-provided sub-scores win; any
// competency the engine left out is filled from transcript heuristics.
// Returns false when the turn cannot be scored at all (no transcript and
// no analysis), in which case the turn stays logged but unscored.
func (s *TurnScorer) Evaluate(text string, analysis model.MetricMap) (model.MetricMap, int, bool) {
	text = strings.TrimSpace(text)
	if text == "" && len(analysis) == 0 {
		return nil, 0, false
	}

	metrics := make(model.MetricMap, len(s.Rubric.Weights))
	for name := range s.Rubric.Weights {
		if raw, ok := analysis[name]; ok {
			metrics[name] = s.Rubric.Clamp(raw)
			continue
		}
		if text == "" {
			continue
		}
		metrics[name] = s.heuristic(name, text)
	}

	if len(metrics) == 0 {
		return nil, 0, false
	}
	return metrics, s.Rubric.Score(metrics), true
}

// heuristic estimates a sub-score from the transcript when the engine
// supplied no analysis for the competency. Coarse on purpose, only a
// fallback so a spoken turn is never silently discarded.
func (s *TurnScorer) heuristic(competency, text string) float64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
	if len(words) == 0 {
		return s.Rubric.ScaleMin
	}

	span := s.Rubric.ScaleMax - s.Rubric.ScaleMin
	var ratio float64

	switch competency {
	case "vocabulary":
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[w] = struct{}{}
		}
		ratio = float64(len(unique)) / float64(len(words))
	case "fluency":
		// longer utterances read as more fluent, saturating at 20 words
		ratio = float64(len(words)) / 20.0
	case "grammar":
		var totalLen int
		for _, w := range words {
			totalLen += len(w)
		}
		avg := float64(totalLen) / float64(len(words))
		ratio = avg / 8.0
	default:
		// no signal in text for pronunciation and the like, assume mid-scale
		ratio = 0.5
	}

	if ratio > 1 {
		ratio = 1
	}
	return s.Rubric.ScaleMin + ratio*span
}
