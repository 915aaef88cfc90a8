// Package predict decides which team an article's text predicts as the
// winner. The extraction heuristic is pluggable; Rules is the default
// and only built-in strategy.
package predict

import (
	"picktally/internal/types"
)

// Extraction methods reported in Prediction.Method.
const (
	MethodFinalScore = "final_score"
	MethodExplicit   = "explicit"
	MethodScoreline  = "scoreline"
	MethodMoneyline  = "moneyline_field"
	MethodPick       = "pick_field"
	MethodPrediction = "prediction_field"
	MethodNone       = "none"
)

// Strategy extracts a predicted winner from article text. An absence
// of signal maps to WinnerAmbiguous; it is never an error.
type Strategy interface {
	// Predict returns the extraction outcome. The caller fills in
	// Prediction.URL; MatchPhrase is empty when ambiguous.
	Predict(text string) types.Prediction

	// Name returns the strategy identifier.
	Name() string
}

// Factory builds a Strategy for a matchup. The pipeline calls it once
// per run so strategies can precompile per-team patterns.
type Factory func(m types.Matchup) Strategy

// DefaultFactory builds the rule-based strategy.
func DefaultFactory(m types.Matchup) Strategy {
	return NewRules(m)
}
