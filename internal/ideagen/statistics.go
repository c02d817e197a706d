package ideagen

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// ScoreDraft is the raw scoring-stage output before deterministic
// finalization: five sub-scores plus best-effort narrative lists.
type ScoreDraft struct {
	SubScores    SubScores `json:"sub_scores"`
	Strengths    []string  `json:"strengths"`
	Improvements []string  `json:"improvements"`
	Summary      string    `json:"summary"`
	StageConfidence
}

// Sub-score weights for the overall score. Innovation and business value
// carry the most weight on an idea board; compliance and readiness temper it.
const (
	weightInnovation    = 0.25
	weightFeasibility   = 0.20
	weightBusinessValue = 0.25
	weightCompliance    = 0.15
	weightReadiness     = 0.15
)

// Recommendation tier thresholds. Strictly increasing; a score equal to a
// threshold lands in the higher tier.
const (
	thresholdHighlyRecommended = 85.0
	thresholdRecommended       = 70.0
	thresholdConsider          = 50.0
)

// FinalizeStatistics turns a schema-validated score draft into the terminal
// StatisticsOutput. The overall score is computed here, in code, as a
// weighted mean of the five sub-scores rather than trusted from the model,
// so the tier thresholds are exact and testable.
func FinalizeStatistics(draft ScoreDraft) StatisticsOutput {
	s := draft.SubScores
	overall := s.Innovation*weightInnovation +
		s.Feasibility*weightFeasibility +
		s.BusinessValue*weightBusinessValue +
		s.Compliance*weightCompliance +
		s.Readiness*weightReadiness
	overall = clampScore(overall)
	if rounded, err := stats.Round(overall, 1); err == nil {
		overall = rounded
	}

	out := StatisticsOutput{
		OverallScore:   overall,
		SubScores:      s,
		Recommendation: TierForScore(overall),
		Strengths:      draft.Strengths,
		Improvements:   draft.Improvements,
		Summary:        draft.Summary,
	}
	if len(out.Strengths) == 0 {
		out.Strengths = []string{fmt.Sprintf("Strongest dimension: %s", bestDimension(s))}
	}
	if len(out.Improvements) == 0 {
		out.Improvements = []string{fmt.Sprintf("Weakest dimension: %s", worstDimension(s))}
	}
	return out
}

// TierForScore maps an overall score to its recommendation tier. Monotonic
// non-decreasing in the score across the defined thresholds.
func TierForScore(score float64) RecommendationTier {
	switch {
	case score >= thresholdHighlyRecommended:
		return TierHighlyRecommended
	case score >= thresholdRecommended:
		return TierRecommended
	case score >= thresholdConsider:
		return TierConsider
	default:
		return TierNeedsWork
	}
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func dimensionPairs(s SubScores) ([]float64, []string) {
	return []float64{s.Innovation, s.Feasibility, s.BusinessValue, s.Compliance, s.Readiness},
		[]string{"innovation", "feasibility", "business value", "compliance", "readiness"}
}

func bestDimension(s SubScores) string {
	values, names := dimensionPairs(s)
	max, err := stats.Max(values)
	if err != nil {
		return names[0]
	}
	for i, v := range values {
		if v == max {
			return names[i]
		}
	}
	return names[0]
}

func worstDimension(s SubScores) string {
	values, names := dimensionPairs(s)
	min, err := stats.Min(values)
	if err != nil {
		return names[0]
	}
	for i, v := range values {
		if v == min {
			return names[i]
		}
	}
	return names[0]
}
