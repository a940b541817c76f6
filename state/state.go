// Package state implements the state transition and finality layer
// (spec.md §4.6, C6): a Proposed -> Validated -> Finalized/Failed state
// machine, a composable validator chain, a conflict-aware state merger, and
// an append-only audit log persisted asynchronously through storage/wal.
package state

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/synerthink/dotlanth/errs"
)

// LatestVersion is the current persisted-state schema version; Versioner
// migrates older states upward and rejects anything newer.
const LatestVersion = 1

// Status is one node of the transition lifecycle's state machine.
type Status string

const (
	StatusProposed  Status = "proposed"
	StatusValidated Status = "validated"
	StatusFinalized Status = "finalized"
	StatusFailed    Status = "failed"
)

// StateTransition is one proposed change from a Before snapshot to an After
// snapshot of opaque, JSON-encodable application state.
type StateTransition struct {
	ID      string
	Version int
	Before  json.RawMessage
	After   json.RawMessage
}

// Confirmation records the outcome of one step in a transition's lifecycle.
type Confirmation struct {
	TransitionID string
	Status       Status
	Result       ValidationResult
	Timestamp    time.Time
}

// ValidationResult is the composed output of the validator chain.
type ValidationResult struct {
	IsValid  bool
	Errors   []string
	Warnings []string
}

// and composes two results by logical AND over IsValid and set-union over
// errors/warnings (spec.md §4.6: "Results compose by logical AND... and
// set-union").
func (r ValidationResult) and(o ValidationResult) ValidationResult {
	return ValidationResult{
		IsValid:  r.IsValid && o.IsValid,
		Errors:   union(r.Errors, o.Errors),
		Warnings: union(r.Warnings, o.Warnings),
	}
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Validator runs one check against a proposed transition.
type Validator interface {
	Validate(t StateTransition) ValidationResult
}

// ValidatorChain runs an ordered set of Validators and composes their
// results (spec.md §4.6).
type ValidatorChain struct {
	validators []Validator
}

// NewValidatorChain builds a chain from validators, run in order.
func NewValidatorChain(validators ...Validator) *ValidatorChain {
	return &ValidatorChain{validators: validators}
}

// Run executes every validator and composes the results.
func (c *ValidatorChain) Run(t StateTransition) ValidationResult {
	result := ValidationResult{IsValid: true}
	for _, v := range c.validators {
		result = result.and(v.Validate(t))
	}
	return result
}

// confirmationRecord is what gets persisted per transition: the current
// status plus whether a Finalized confirmation has already been recorded
// (spec.md §5 ordering guarantee: "at most one Finalized confirmation").
type confirmationRecord struct {
	status    Status
	finalized bool
}

// Machine drives the Proposed -> Validated -> Finalized/Failed state
// machine for a set of in-flight transitions, backed by a ValidatorChain
// and an asynchronous AuditLog.
type Machine struct {
	mu      sync.Mutex
	chain   *ValidatorChain
	audit   *AuditLog
	logger  *zap.Logger
	records map[string]*confirmationRecord
	current json.RawMessage
}

// NewMachine builds a Machine. logger and audit may be nil, in which case a
// no-op logger and a discarding audit log are used.
func NewMachine(chain *ValidatorChain, audit *AuditLog, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = NewDiscardAuditLog()
	}
	return &Machine{
		chain:   chain,
		audit:   audit,
		logger:  logger,
		records: make(map[string]*confirmationRecord),
	}
}

// Propose logs a proposal and returns a pending confirmation.
func (m *Machine) Propose(t StateTransition) Confirmation {
	m.mu.Lock()
	m.records[t.ID] = &confirmationRecord{status: StatusProposed}
	m.mu.Unlock()

	conf := Confirmation{TransitionID: t.ID, Status: StatusProposed, Timestamp: time.Now()}
	m.audit.Append(Entry{Kind: EventProposed, TransitionID: t.ID, Status: StatusProposed, Timestamp: conf.Timestamp})
	m.logger.Debug("transition proposed", zap.String("transition_id", t.ID))
	return conf
}

// Validate runs the configured validator chain and records a Validated or
// Failed confirmation.
func (m *Machine) Validate(t StateTransition) (Confirmation, error) {
	m.mu.Lock()
	rec, ok := m.records[t.ID]
	m.mu.Unlock()
	if !ok {
		return Confirmation{}, errs.New(errs.KindRuntime, "unknown transition").With(map[string]any{"transition_id": t.ID})
	}

	result := m.chain.Run(t)
	status := StatusValidated
	if !result.IsValid {
		status = StatusFailed
	}

	m.mu.Lock()
	rec.status = status
	m.mu.Unlock()

	conf := Confirmation{TransitionID: t.ID, Status: status, Result: result, Timestamp: time.Now()}
	m.audit.Append(Entry{Kind: EventValidated, TransitionID: t.ID, Status: status, Details: result, Timestamp: conf.Timestamp})
	return conf, nil
}

// Finalize requires a Validated confirmation; persists t.After as the
// machine's current state and emits a single Finalized confirmation. A
// second finalize attempt for the same transition id fails: spec.md §5's
// "at most one Finalized confirmation" guarantee.
func (m *Machine) Finalize(t StateTransition) (Confirmation, error) {
	m.mu.Lock()
	rec, ok := m.records[t.ID]
	if !ok {
		m.mu.Unlock()
		return Confirmation{}, errs.New(errs.KindRuntime, "unknown transition").With(map[string]any{"transition_id": t.ID})
	}
	if rec.status != StatusValidated {
		m.mu.Unlock()
		return Confirmation{}, errs.New(errs.KindRuntime, "finalize requires a validated transition").
			With(map[string]any{"transition_id": t.ID, "status": rec.status})
	}
	if rec.finalized {
		m.mu.Unlock()
		return Confirmation{}, errs.New(errs.KindRuntime, "transition already finalized").With(map[string]any{"transition_id": t.ID})
	}
	rec.status = StatusFinalized
	rec.finalized = true
	m.current = t.After
	m.mu.Unlock()

	conf := Confirmation{TransitionID: t.ID, Status: StatusFinalized, Timestamp: time.Now()}
	m.audit.Append(Entry{Kind: EventFinalized, TransitionID: t.ID, Status: StatusFinalized, Timestamp: conf.Timestamp})
	m.logger.Info("transition finalized", zap.String("transition_id", t.ID))
	return conf, nil
}

// Current returns the machine's current finalized state.
func (m *Machine) Current() json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
