package raft_test

import (
	"testing"

	"github.com/vzdtic/raftcore/pkg/raft"
)

func buildJointConfiguration(t *testing.T) *raft.Configuration {
	t.Helper()
	c := raft.NewConfiguration()
	if err := c.Add(1, raft.RoleVoter); err != nil {
		t.Fatalf("add 1: %v", err)
	}
	if err := c.Add(2, raft.RoleVoter); err != nil {
		t.Fatalf("add 2: %v", err)
	}
	if err := c.Add(3, raft.RoleLogger); err != nil {
		t.Fatalf("add 3: %v", err)
	}
	if err := c.JointRemove(3); err != nil {
		t.Fatalf("joint remove 3: %v", err)
	}
	return c
}

// R1: decode(encode(conf)) == conf for every well-formed configuration,
// including an in-flight joint phase.
func TestConfigurationRoundTripsThroughJointPhase(t *testing.T) {
	c := buildJointConfiguration(t)

	decoded, err := raft.DecodeConfiguration(c.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Phase != c.Phase {
		t.Fatalf("phase mismatch: got %v, want %v", decoded.Phase, c.Phase)
	}
	if len(decoded.Servers) != len(c.Servers) {
		t.Fatalf("server count mismatch: got %d, want %d", len(decoded.Servers), len(c.Servers))
	}
	for _, want := range c.Servers {
		got, ok := decoded.Get(want.ID)
		if !ok {
			t.Fatalf("decoded configuration missing server %d", want.ID)
		}
		if got != want {
			t.Fatalf("server %d round-tripped as %+v, want %+v", want.ID, got, want)
		}
	}
}

func TestConfigurationRoundTripsEmptyAndNormal(t *testing.T) {
	empty := raft.NewConfiguration()
	decoded, err := raft.DecodeConfiguration(empty.Encode())
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if len(decoded.Servers) != 0 || decoded.Phase != raft.PhaseNormal {
		t.Fatalf("expected empty NORMAL configuration, got %+v", decoded)
	}

	c := raft.NewConfiguration()
	c.Add(1, raft.RoleVoter)
	c.Add(2, raft.RoleStandby)
	decoded, err = raft.DecodeConfiguration(c.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Phase != raft.PhaseNormal {
		t.Fatalf("expected NORMAL phase, got %v", decoded.Phase)
	}
}

// Legacy short form (no meta block): decode must default to NORMAL
// phase, role_new == role, and group == OLD|NEW.
func TestConfigurationDecodesLegacyShortForm(t *testing.T) {
	legacy := []byte{
		1,                      // version
		2, 0, 0, 0, 0, 0, 0, 0, // n=2, little-endian u64
		7, 0, 0, 0, 0, 0, 0, 0, byte(raft.RoleVoter),
		8, 0, 0, 0, 0, 0, 0, 0, byte(raft.RoleStandby),
	}

	decoded, err := raft.DecodeConfiguration(legacy)
	if err != nil {
		t.Fatalf("decode legacy: %v", err)
	}
	if decoded.Phase != raft.PhaseNormal {
		t.Fatalf("expected legacy decode to default to NORMAL, got %v", decoded.Phase)
	}
	s, ok := decoded.Get(7)
	if !ok {
		t.Fatal("expected server 7 in legacy decode")
	}
	if s.Role != raft.RoleVoter || s.RoleNew != raft.RoleVoter {
		t.Fatalf("expected role==role_new==VOTER, got role=%v role_new=%v", s.Role, s.RoleNew)
	}
	if !s.Group.Has(raft.GroupOld) || !s.Group.Has(raft.GroupNew) {
		t.Fatalf("expected legacy server to belong to both groups, got %v", s.Group)
	}
}

func TestConfigurationEncodePadsToEightBytes(t *testing.T) {
	c := raft.NewConfiguration()
	c.Add(1, raft.RoleVoter)
	encoded := c.Encode()
	if len(encoded)%8 != 0 {
		t.Fatalf("expected encoded configuration padded to an 8-byte boundary, got length %d", len(encoded))
	}
}

func TestConfigurationDecodeRejectsTruncatedInput(t *testing.T) {
	c := raft.NewConfiguration()
	c.Add(1, raft.RoleVoter)
	encoded := c.Encode()

	if _, err := raft.DecodeConfiguration(encoded[:len(encoded)-1]); err == nil {
		t.Fatal("expected decode of a truncated buffer to fail")
	}
}

func TestConfigurationDecodeRejectsUnsupportedVersion(t *testing.T) {
	if _, err := raft.DecodeConfiguration([]byte{99, 0, 0, 0, 0, 0, 0, 0, 0}); err == nil {
		t.Fatal("expected decode to reject an unsupported version byte")
	}
}

func TestRoleNameLiterals(t *testing.T) {
	cases := map[raft.Role]string{
		raft.RoleVoter:   "voter",
		raft.RoleStandby: "standby",
		raft.RoleSpare:   "spare",
		raft.RoleLogger:  "logger",
	}
	for role, want := range cases {
		if got := raft.RoleName(role); got != want {
			t.Errorf("RoleName(%v) = %q, want %q", role, got, want)
		}
	}
}

func TestConfigurationJointToNormalKeepsOnlySurvivingGroup(t *testing.T) {
	c := buildJointConfiguration(t)
	c.JointToNormal(raft.GroupNew)

	if c.Phase != raft.PhaseNormal {
		t.Fatalf("expected NORMAL after collapse, got %v", c.Phase)
	}
	if _, ok := c.Get(3); ok {
		t.Fatal("expected server 3 (removed from NEW) to be dropped after collapse")
	}
	if _, ok := c.Get(1); !ok {
		t.Fatal("expected server 1 (present in NEW) to survive collapse")
	}
}

func TestConfigurationAddRejectsDuplicateAndZeroID(t *testing.T) {
	c := raft.NewConfiguration()
	if err := c.Add(0, raft.RoleVoter); err != raft.ErrBadID {
		t.Fatalf("expected ErrBadID for id 0, got %v", err)
	}
	c.Add(1, raft.RoleVoter)
	if err := c.Add(1, raft.RoleStandby); err != raft.ErrDuplicateID {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}
