// internal/models/query_types.go
package models

// Mode is the pipeline a query is routed to.
type Mode string

const (
	ModeSimple Mode = "simple"
	ModePro    Mode = "pro"
	// ModeError only ever appears on results produced by the orchestrator catch-all.
	ModeError Mode = "error"
)

func (m Mode) Valid() bool {
	return m == ModeSimple || m == ModePro
}

// DecisionSource records which router stage produced a decision.
type DecisionSource string

const (
	SourceHeuristic DecisionSource = "heuristic"
	SourceLLM       DecisionSource = "llm"
	SourceCache     DecisionSource = "cache"
	SourceFailure   DecisionSource = "failure"
)
