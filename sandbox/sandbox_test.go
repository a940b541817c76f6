package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/synerthink/dotlanth/bytecode"
)

func TestAuthorizeDeniesWithoutGrant(t *testing.T) {
	s := New()
	err := s.Authorize("dot-1", OpcodeType{Category: bytecode.FamilyCrypto})
	require.Error(t, err)
	require.EqualValues(t, 1, s.Denials("dot-1"))
}

func TestAuthorizeAllowsMatchingGrant(t *testing.T) {
	s := New()
	s.Grant("dot-1", Capability{ID: "c1", OpcodeType: OpcodeType{Category: bytecode.FamilyCrypto}})
	require.NoError(t, s.Authorize("dot-1", OpcodeType{Category: bytecode.FamilyCrypto}))
	require.EqualValues(t, 0, s.Denials("dot-1"))
}

func TestAuthorizeRejectsExpiredCapability(t *testing.T) {
	s := New()
	past := time.Now().Add(-time.Hour)
	s.Grant("dot-1", Capability{ID: "c1", OpcodeType: OpcodeType{Category: bytecode.FamilyCrypto}, Expiration: &past})
	err := s.Authorize("dot-1", OpcodeType{Category: bytecode.FamilyCrypto})
	require.Error(t, err)
}

func TestAuthorizeEnforcesSecurityLevel(t *testing.T) {
	s := New()
	s.Grant("dot-1", Capability{
		ID:                    "c1",
		OpcodeType:            OpcodeType{Category: bytecode.FamilyCrypto},
		RequiredSecurityLevel: SecurityElevated,
	})
	err := s.Authorize("dot-1", OpcodeType{Category: bytecode.FamilyCrypto})
	require.Error(t, err, "clearance defaults to SecurityLow, below the capability's required level")

	s.SetSecurityLevel("dot-1", SecurityElevated)
	require.NoError(t, s.Authorize("dot-1", OpcodeType{Category: bytecode.FamilyCrypto}))
}

func TestAuthorizeArchZeroMatchesAnyArch(t *testing.T) {
	s := New()
	s.Grant("dot-1", Capability{ID: "c1", OpcodeType: OpcodeType{Category: bytecode.FamilyMemory}})
	require.NoError(t, s.Authorize("dot-1", OpcodeType{Arch: 32, Category: bytecode.FamilyMemory}))
	require.NoError(t, s.Authorize("dot-1", OpcodeType{Arch: 64, Category: bytecode.FamilyMemory}))
}

func TestRevokeRemovesCapability(t *testing.T) {
	s := New()
	ot := OpcodeType{Category: bytecode.FamilyDB}
	s.Grant("dot-1", Capability{ID: "c1", OpcodeType: ot})
	require.NoError(t, s.Authorize("dot-1", ot))
	s.Revoke("dot-1", "c1")
	require.Error(t, s.Authorize("dot-1", ot))
}

func TestConsumeEnforcesResourceLimits(t *testing.T) {
	s := New()
	ot := OpcodeType{Category: bytecode.FamilyCrypto}
	s.Grant("dot-1", Capability{ID: "c1", OpcodeType: ot, ResourceLimits: ResourceLimits{Memory: 100}})

	require.NoError(t, s.Consume("dot-1", ot, 60, 0, 0, 0))
	err := s.Consume("dot-1", ot, 60, 0, 0, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "resource limit exceeded")
}

func TestConsumeTightestLimitAcrossMultipleGrants(t *testing.T) {
	s := New()
	ot := OpcodeType{Category: bytecode.FamilyCrypto}
	s.Grant("dot-1", Capability{ID: "loose", OpcodeType: ot, ResourceLimits: ResourceLimits{Memory: 1000}})
	s.Grant("dot-1", Capability{ID: "tight", OpcodeType: ot, ResourceLimits: ResourceLimits{Memory: 50}})

	err := s.Consume("dot-1", ot, 60, 0, 0, 0)
	require.Error(t, err, "the tighter of the two matching grants' limits governs")
}

func TestConsumeUnconstrainedWithoutMatchingGrant(t *testing.T) {
	s := New()
	require.NoError(t, s.Consume("dot-1", OpcodeType{Category: bytecode.FamilyCrypto}, 1<<40, 0, 0, 0))
}
