// Package engine implements SoD conflict detection and composite risk
// scoring over permission sets. Every operation is a pure function of the
// input set and the injected rule-set, so the engine is trivially safe for
// concurrent use and its results are memoizable by sorted permission list.
package engine

// Engine evaluates permission sets against an immutable RuleSet.
// It holds no per-call state.
type Engine struct {
	rs *RuleSet
}

// NewEngine wraps a validated rule-set.
func NewEngine(rs *RuleSet) *Engine {
	return &Engine{rs: rs}
}

// RuleSet exposes the active configuration for the read-only API surface.
func (e *Engine) RuleSet() *RuleSet {
	return e.rs
}
