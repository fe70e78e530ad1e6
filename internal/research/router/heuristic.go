// internal/research/router/heuristic.go
package router

import (
	"fmt"
	"strings"

	"research-workers/internal/models"
)

// Heuristic classifies a query without any network call. Rules are evaluated in
// order and the first match wins.
func Heuristic(query string, contextExists bool, kw *Keywords) models.RouterDecision {
	if kw == nil {
		kw = DefaultKeywords()
	}
	lower := strings.ToLower(query)
	words := len(strings.Fields(query))

	decide := func(mode models.Mode, confidence float64, reason string) models.RouterDecision {
		return models.RouterDecision{Mode: mode, Confidence: confidence, Reason: reason, Source: models.SourceHeuristic}
	}

	switch {
	case words <= 4:
		return decide(models.ModeSimple, 0.90, "short query")
	case words >= 15:
		return decide(models.ModePro, 0.85, "long complex query")
	case contextExists:
		return decide(models.ModePro, 0.80, "conversation context exists")
	}

	if n := CountMatches(lower, kw.Pro); n >= 2 {
		return decide(models.ModePro, 0.90, fmt.Sprintf("%d complexity markers", n))
	}
	if n := CountMatches(lower, kw.Simple); n >= 1 {
		return decide(models.ModeSimple, 0.85, fmt.Sprintf("%d simple markers", n))
	}
	if hasPrefixAny(lower, kw.QuestionWords) && CountMatches(lower, kw.MechanismWords) > 0 {
		return decide(models.ModePro, 0.75, "mechanism question")
	}
	if strings.Count(query, "?") > 1 || countOccurrences(lower, kw.Conjunctions) > 2 {
		return decide(models.ModePro, 0.80, "multiple aspects")
	}

	if words <= 8 {
		return decide(models.ModeSimple, 0.60, "medium complexity, leaning simple")
	}
	return decide(models.ModePro, 0.60, "medium complexity, leaning pro")
}
