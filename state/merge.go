package state

import "github.com/synerthink/dotlanth/errs"

// Merger merges two application-level state values, grounded on
// original_source/crates/dotvm/core/src/vm/state_transitions/merge.rs's
// StateMerger trait.
type Merger[T comparable] interface {
	Merge(a, b T) (T, error)
}

// LifecycleState is the small state-machine vocabulary the default merger's
// conflict rules are defined over (erigon-style Idle/Running/Error), kept
// separate from the document-shaped StateTransition.After payload.
type LifecycleState string

const (
	LifecycleIdle    LifecycleState = "idle"
	LifecycleRunning LifecycleState = "running"
	LifecycleError   LifecycleState = "error"
)

// DefaultMerger implements the production merge rules from spec.md §4.6:
// identical states merge to themselves; either side in Error conflicts;
// mutually exclusive Idle/Running conflicts; otherwise state_a wins.
type DefaultMerger struct{}

// Merge merges a and b per the rules above.
func (DefaultMerger) Merge(a, b LifecycleState) (LifecycleState, error) {
	if a == b {
		return a, nil
	}
	if a == LifecycleError || b == LifecycleError {
		return "", errs.New(errs.KindRuntime, "cannot merge with error state").
			With(map[string]any{"a": a, "b": b})
	}
	if (a == LifecycleIdle && b == LifecycleRunning) || (a == LifecycleRunning && b == LifecycleIdle) {
		return "", errs.New(errs.KindRuntime, "idle/running conflict").
			With(map[string]any{"a": a, "b": b})
	}
	return a, nil
}

// MergeTransitions applies DefaultMerger's rules to two transitions' After
// lifecycle states, used by higher layers reconciling concurrent proposals
// against the same prior state.
func MergeTransitions(a, b LifecycleState) (LifecycleState, error) {
	return DefaultMerger{}.Merge(a, b)
}
