package state

import (
	"encoding/json"

	"github.com/synerthink/dotlanth/errs"
)

// Migration upgrades a persisted state from one version to the next.
type Migration func(json.RawMessage) (json.RawMessage, error)

// Versioner migrates older persisted states up to LatestVersion and rejects
// states newer than it (spec.md §4.6).
type Versioner struct {
	migrations map[int]Migration // keyed by the version migrated FROM
}

// NewVersioner builds a Versioner from an ordered set of from-version
// migrations.
func NewVersioner(migrations map[int]Migration) *Versioner {
	return &Versioner{migrations: migrations}
}

// Migrate walks t.Version up to LatestVersion, applying registered
// migrations in order, and rejects anything newer than LatestVersion.
func (v *Versioner) Migrate(t StateTransition) (StateTransition, error) {
	if t.Version > LatestVersion {
		return StateTransition{}, errs.New(errs.KindFormat, "state version newer than supported").
			With(map[string]any{"version": t.Version, "latest": LatestVersion})
	}
	for t.Version < LatestVersion {
		m, ok := v.migrations[t.Version]
		if !ok {
			return StateTransition{}, errs.New(errs.KindFormat, "no migration registered").
				With(map[string]any{"from_version": t.Version})
		}
		after, err := m(t.After)
		if err != nil {
			return StateTransition{}, errs.Wrap(errs.KindFormat, "migration failed", err).
				With(map[string]any{"from_version": t.Version})
		}
		t.After = after
		t.Version++
	}
	return t, nil
}
