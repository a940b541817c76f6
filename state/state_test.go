package state

import (
	"encoding/json"
	"testing"
)

type alwaysValid struct{}

func (alwaysValid) Validate(StateTransition) ValidationResult {
	return ValidationResult{IsValid: true}
}

type alwaysInvalid struct{ reason string }

func (a alwaysInvalid) Validate(StateTransition) ValidationResult {
	return ValidationResult{IsValid: false, Errors: []string{a.reason}}
}

func TestLifecycleHappyPath(t *testing.T) {
	m := NewMachine(NewValidatorChain(alwaysValid{}), nil, nil)
	tr := StateTransition{ID: "t1", Version: LatestVersion, After: json.RawMessage(`{"x":1}`)}

	m.Propose(tr)
	conf, err := m.Validate(tr)
	if err != nil || conf.Status != StatusValidated {
		t.Fatalf("expected Validated, got %+v err=%v", conf, err)
	}
	conf, err = m.Finalize(tr)
	if err != nil || conf.Status != StatusFinalized {
		t.Fatalf("expected Finalized, got %+v err=%v", conf, err)
	}
	if string(m.Current()) != `{"x":1}` {
		t.Fatalf("unexpected current state: %s", m.Current())
	}
}

func TestValidateFailurePreventsFinalize(t *testing.T) {
	m := NewMachine(NewValidatorChain(alwaysInvalid{reason: "bad"}), nil, nil)
	tr := StateTransition{ID: "t2", Version: LatestVersion}

	m.Propose(tr)
	conf, err := m.Validate(tr)
	if err != nil || conf.Status != StatusFailed {
		t.Fatalf("expected Failed, got %+v err=%v", conf, err)
	}
	if _, err := m.Finalize(tr); err == nil {
		t.Fatal("expected Finalize to reject a non-validated transition")
	}
}

func TestFinalizeIsSingleUse(t *testing.T) {
	m := NewMachine(NewValidatorChain(alwaysValid{}), nil, nil)
	tr := StateTransition{ID: "t3", Version: LatestVersion}
	m.Propose(tr)
	if _, err := m.Validate(tr); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Finalize(tr); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Finalize(tr); err == nil {
		t.Fatal("expected second finalize to fail")
	}
}

func TestValidatorChainComposesAndUnion(t *testing.T) {
	chain := NewValidatorChain(alwaysValid{}, alwaysInvalid{reason: "e1"}, alwaysInvalid{reason: "e2"})
	result := chain.Run(StateTransition{})
	if result.IsValid {
		t.Fatal("expected composed result to be invalid")
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected union of 2 errors, got %v", result.Errors)
	}
}

func TestDefaultMergerRules(t *testing.T) {
	cases := []struct {
		a, b    LifecycleState
		wantErr bool
		want    LifecycleState
	}{
		{LifecycleIdle, LifecycleIdle, false, LifecycleIdle},
		{LifecycleIdle, LifecycleError, true, ""},
		{LifecycleError, LifecycleRunning, true, ""},
		{LifecycleIdle, LifecycleRunning, true, ""},
		{LifecycleRunning, LifecycleIdle, true, ""},
		{LifecycleRunning, LifecycleRunning, false, LifecycleRunning},
	}
	for _, c := range cases {
		got, err := MergeTransitions(c.a, c.b)
		if c.wantErr != (err != nil) {
			t.Fatalf("merge(%s,%s): wantErr=%v got err=%v", c.a, c.b, c.wantErr, err)
		}
		if !c.wantErr && got != c.want {
			t.Fatalf("merge(%s,%s): want %s got %s", c.a, c.b, c.want, got)
		}
	}
}

func TestAuditLogOrdering(t *testing.T) {
	a := NewDiscardAuditLog()
	a.Append(Entry{Kind: EventProposed, TransitionID: "x"})
	a.Append(Entry{Kind: EventValidated, TransitionID: "x"})
	a.Append(Entry{Kind: EventFinalized, TransitionID: "x"})
	a.Close()

	entries := a.Entries()
	if len(entries) != 3 {
		t.Fatalf("want 3 entries got %d", len(entries))
	}
	want := []EventKind{EventProposed, EventValidated, EventFinalized}
	for i, e := range entries {
		if e.Kind != want[i] {
			t.Fatalf("entry %d: want %s got %s", i, want[i], e.Kind)
		}
	}
}

func TestVersionerMigratesUpward(t *testing.T) {
	v := NewVersioner(map[int]Migration{
		0: func(json.RawMessage) (json.RawMessage, error) { return json.RawMessage(`{"migrated":true}`), nil },
	})
	tr := StateTransition{ID: "t4", Version: 0, After: json.RawMessage(`{}`)}
	got, err := v.Migrate(tr)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != LatestVersion {
		t.Fatalf("want version %d got %d", LatestVersion, got.Version)
	}
}

func TestVersionerRejectsFutureVersion(t *testing.T) {
	v := NewVersioner(nil)
	tr := StateTransition{ID: "t5", Version: LatestVersion + 1}
	if _, err := v.Migrate(tr); err == nil {
		t.Fatal("expected rejection of a future version")
	}
}
