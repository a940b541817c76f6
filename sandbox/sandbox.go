// Package sandbox implements the per-dot capability sandbox (spec.md
// §4.12, C12): every opcode dispatch in the execution engine is checked
// against a dot's granted capabilities before it runs, and every
// crypto/storage opcode's resource consumption is accumulated against
// per-dot limits.
//
// There is no direct analog in the teacher repo (erigon has no
// capability-gated execution model); the package follows the teacher's
// general shape for shared mutable managers — a mutex-guarded map behind a
// narrow method set, immutable grant values, structured *errs.Error
// returns — rather than any specific erigon file. See DESIGN.md.
package sandbox

import (
	"sync"
	"time"

	"github.com/synerthink/dotlanth/bytecode"
	"github.com/synerthink/dotlanth/errs"
)

// SecurityLevel orders how privileged a dot's clearance or a capability's
// requirement is. Higher values are more privileged.
type SecurityLevel uint8

const (
	SecurityLow SecurityLevel = iota
	SecurityStandard
	SecurityElevated
	SecurityCritical
)

// OpcodeType identifies the (arch, category) pair a capability authorizes
// (spec.md §4.12). Arch is a vm.WordWidth value; zero matches any
// architecture, letting a capability authorize a category across every
// supported word size.
type OpcodeType struct {
	Arch     uint16
	Category bytecode.Family
}

// ResourceLimits bounds what a dot may consume under a capability (spec.md
// §4.12). Usage is accumulated per dot, across every category it executes,
// and compared against these limits. A zero field means "unbounded" for that
// resource.
type ResourceLimits struct {
	Memory   uint64 // bytes
	CPU      uint64 // abstract cpu-time units, one per executed instruction by convention
	IOBytes  uint64
	WallTime time.Duration
}

// Capability grants a dot the right to execute opcodes of one OpcodeType,
// subject to ResourceLimits, an optional expiration and a minimum security
// clearance (spec.md §4.12). Capabilities are immutable once issued
// (spec.md §5): to change one, grant a replacement and revoke the original.
type Capability struct {
	ID                    string
	OpcodeType            OpcodeType
	Permissions           []string
	ResourceLimits        ResourceLimits
	Expiration            *time.Time
	RequiredSecurityLevel SecurityLevel
	Delegatable           bool
}

func (c Capability) expired(now time.Time) bool {
	return c.Expiration != nil && now.After(*c.Expiration)
}

func (c Capability) matches(ot OpcodeType) bool {
	if c.OpcodeType.Category != ot.Category {
		return false
	}
	return c.OpcodeType.Arch == 0 || ot.Arch == 0 || c.OpcodeType.Arch == ot.Arch
}

// usage tracks one dot's cumulative resource consumption and denial count.
type usage struct {
	memory, cpu, io uint64
	wall            time.Duration
	denials         uint64
}

// Resource names used in ResourceLimitExceeded error context.
const (
	ResourceMemory   = "memory"
	ResourceCPU      = "cpu"
	ResourceIO       = "io"
	ResourceWallTime = "wall_time"
)

// Sandbox gates opcode execution per dot (spec.md §4.12, C12). A single
// Sandbox instance is shared by every vm.Context in a process and is safe
// for concurrent use, matching §5's "storage engine and document layer...
// must be safe for concurrent access" requirement extended to the sandbox.
type Sandbox struct {
	mu           sync.Mutex
	grants       map[string][]Capability
	usage        map[string]*usage
	securityTier map[string]SecurityLevel
	now          func() time.Time
}

// New builds an empty Sandbox.
func New() *Sandbox {
	return &Sandbox{
		grants:       make(map[string][]Capability),
		usage:        make(map[string]*usage),
		securityTier: make(map[string]SecurityLevel),
		now:          time.Now,
	}
}

// Grant adds cap to dot's capability set.
func (s *Sandbox) Grant(dot string, cap Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[dot] = append(s.grants[dot], cap)
}

// Revoke removes the capability with the given id from dot's grants, if
// present.
func (s *Sandbox) Revoke(dot, capabilityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	caps := s.grants[dot]
	out := caps[:0]
	for _, c := range caps {
		if c.ID != capabilityID {
			out = append(out, c)
		}
	}
	s.grants[dot] = out
}

// SetSecurityLevel records dot's current security clearance, checked
// against each capability's RequiredSecurityLevel on every Authorize call.
func (s *Sandbox) SetSecurityLevel(dot string, level SecurityLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.securityTier[dot] = level
}

// Authorize resolves ot and verifies dot holds at least one matching,
// non-expired capability at sufficient security level (spec.md §4.12:
// "Sandbox completeness" invariant). On failure it raises a KindSecurity
// Unauthorized error and increments dot's denial counter.
func (s *Sandbox) Authorize(dot string, ot OpcodeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	level := s.securityTier[dot]
	now := s.now()
	for _, c := range s.grants[dot] {
		if c.expired(now) || !c.matches(ot) {
			continue
		}
		if level < c.RequiredSecurityLevel {
			continue
		}
		return nil
	}
	s.usageLocked(dot).denials++
	return errs.New(errs.KindSecurity, "unauthorized opcode").
		With(map[string]any{"dot": dot, "category": ot.Category.String(), "arch": ot.Arch})
}

func (s *Sandbox) usageLocked(dot string) *usage {
	u, ok := s.usage[dot]
	if !ok {
		u = &usage{}
		s.usage[dot] = u
	}
	return u
}

// Denials returns dot's cumulative count of unauthorized-access attempts.
func (s *Sandbox) Denials(dot string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usageLocked(dot).denials
}

// Consume accumulates memory/cpu/io/wall usage against dot's tightest
// matching capability limits for ot, failing with a KindResource
// ResourceLimitExceeded error before the usage is recorded if any bound
// would be exceeded (spec.md §4.12). A dot with no matching capability for
// ot is treated as unconstrained — Authorize would already have rejected
// the opcode in that case, so Consume is only ever called after a
// successful Authorize.
func (s *Sandbox) Consume(dot string, ot OpcodeType, memory, cpu, io uint64, wall time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	limits, ok := s.tightestLimitsLocked(dot, ot)
	if !ok {
		return nil
	}
	u := s.usageLocked(dot)
	if limits.Memory > 0 && u.memory+memory > limits.Memory {
		return resourceErr(ResourceMemory, u.memory+memory, limits.Memory)
	}
	if limits.CPU > 0 && u.cpu+cpu > limits.CPU {
		return resourceErr(ResourceCPU, u.cpu+cpu, limits.CPU)
	}
	if limits.IOBytes > 0 && u.io+io > limits.IOBytes {
		return resourceErr(ResourceIO, u.io+io, limits.IOBytes)
	}
	if limits.WallTime > 0 && u.wall+wall > limits.WallTime {
		return errs.New(errs.KindResource, "resource limit exceeded").With(map[string]any{
			"resource": ResourceWallTime, "current": (u.wall + wall).String(), "limit": limits.WallTime.String(),
		})
	}
	u.memory += memory
	u.cpu += cpu
	u.io += io
	u.wall += wall
	return nil
}

func resourceErr(resource string, current, limit uint64) error {
	return errs.New(errs.KindResource, "resource limit exceeded").
		With(map[string]any{"resource": resource, "current": current, "limit": limit})
}

// tightestLimitsLocked composes the most restrictive non-zero limit of each
// kind across every matching, unexpired capability dot holds for ot.
func (s *Sandbox) tightestLimitsLocked(dot string, ot OpcodeType) (ResourceLimits, bool) {
	var best ResourceLimits
	found := false
	now := s.now()
	for _, c := range s.grants[dot] {
		if c.expired(now) || !c.matches(ot) {
			continue
		}
		if !found {
			best = c.ResourceLimits
			found = true
			continue
		}
		best.Memory = tightest(best.Memory, c.ResourceLimits.Memory)
		best.CPU = tightest(best.CPU, c.ResourceLimits.CPU)
		best.IOBytes = tightest(best.IOBytes, c.ResourceLimits.IOBytes)
		if c.ResourceLimits.WallTime > 0 && (best.WallTime == 0 || c.ResourceLimits.WallTime < best.WallTime) {
			best.WallTime = c.ResourceLimits.WallTime
		}
	}
	return best, found
}

func tightest(best, candidate uint64) uint64 {
	if candidate == 0 {
		return best
	}
	if best == 0 || candidate < best {
		return candidate
	}
	return best
}
