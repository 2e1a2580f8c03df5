package raft

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const configWireVersion = 1
const configMetaBlockSize = 256

// Configuration is the ordered list of servers a node currently
// believes make up the cluster, plus whether a joint-consensus
// transition is in flight (§3).
type Configuration struct {
	Servers []Server
	Phase   Phase
}

// NewConfiguration returns an empty NORMAL-phase configuration.
func NewConfiguration() *Configuration {
	return &Configuration{Phase: PhaseNormal}
}

// Copy returns a deep copy safe to mutate independently.
func (c *Configuration) Copy() *Configuration {
	out := &Configuration{Phase: c.Phase, Servers: make([]Server, len(c.Servers))}
	copy(out.Servers, c.Servers)
	return out
}

// IndexOf returns the slice index of id, or len(Servers) if absent —
// matching the source's configurationIndexOf sentinel-by-length idiom.
func (c *Configuration) IndexOf(id uint64) int {
	for i, s := range c.Servers {
		if s.ID == id {
			return i
		}
	}
	return len(c.Servers)
}

// IndexOfVoter is IndexOf restricted to servers counting as a voter in
// group.
func (c *Configuration) IndexOfVoter(id uint64, group Group) int {
	for i, s := range c.Servers {
		if s.ID == id && c.IsVoter(s, group) {
			return i
		}
	}
	return len(c.Servers)
}

// Get returns the server with id, if present.
func (c *Configuration) Get(id uint64) (Server, bool) {
	i := c.IndexOf(id)
	if i == len(c.Servers) {
		return Server{}, false
	}
	return c.Servers[i], true
}

// Add inserts a new server with the given role. Rejects a duplicate id.
func (c *Configuration) Add(id uint64, role Role) error {
	if id == 0 {
		return ErrBadID
	}
	if c.IndexOf(id) != len(c.Servers) {
		return ErrDuplicateID
	}
	c.Servers = append(c.Servers, Server{
		ID: id, Role: role, RoleNew: role, Group: GroupOld | GroupNew,
	})
	return nil
}

// Remove deletes a server by id.
func (c *Configuration) Remove(id uint64) error {
	i := c.IndexOf(id)
	if i == len(c.Servers) {
		return ErrNotFound
	}
	c.Servers = append(c.Servers[:i], c.Servers[i+1:]...)
	return nil
}

// ServerRole returns the effective role of id (its current Role, not
// RoleNew), or an error if absent.
func (c *Configuration) ServerRole(id uint64) (Role, error) {
	s, ok := c.Get(id)
	if !ok {
		return 0, ErrNotFound
	}
	return s.Role, nil
}

// IsVoter reports whether server s counts toward quorum in group.
func (c *Configuration) IsVoter(s Server, group Group) bool {
	if !s.Group.Has(group) {
		return false
	}
	role := s.Role
	if group == GroupNew {
		role = s.RoleNew
	}
	return role == RoleVoter
}

// VoterCount returns the number of servers counting as VOTER in group.
func (c *Configuration) VoterCount(group Group) int {
	n := 0
	for _, s := range c.Servers {
		if c.IsVoter(s, group) {
			n++
		}
	}
	return n
}

// JointRemove marks id as absent from the NEW group, entering or
// extending a joint-consensus transition, without touching its OLD
// membership.
func (c *Configuration) JointRemove(id uint64) error {
	i := c.IndexOf(id)
	if i == len(c.Servers) {
		return ErrNotFound
	}
	c.Servers[i].Group &^= GroupNew
	c.Phase = PhaseJoint
	return nil
}

// JointReset collapses any in-flight joint transition back to a NORMAL
// configuration equal to the OLD group (used to abort a pending
// change).
func (c *Configuration) JointReset() {
	kept := c.Servers[:0]
	for _, s := range c.Servers {
		if !s.Group.Has(GroupOld) {
			continue
		}
		s.Group = GroupOld | GroupNew
		s.Role = s.PreRole
		s.RoleNew = s.Role
		kept = append(kept, s)
	}
	c.Servers = kept
	c.Phase = PhaseNormal
}

// JointToNormal collapses phase to NORMAL using targetGroup (the group
// that survives): members not in targetGroup are dropped, and every
// remaining server's Role becomes its RoleNew.
func (c *Configuration) JointToNormal(targetGroup Group) {
	kept := c.Servers[:0]
	for _, s := range c.Servers {
		if !s.Group.Has(targetGroup) {
			continue
		}
		s.Role = s.RoleNew
		s.Group = GroupOld | GroupNew
		kept = append(kept, s)
	}
	c.Servers = kept
	c.Phase = PhaseNormal
}

// --- wire format (§6) ---
//
// u8  version
// u64 n
// { u64 id; u8 role }×n           legacy tail
// u8[256] meta_block { u32 meta_version, u32 server_version,
//                       u32 server_size, u8 phase, reserved... }
// { u64 id; u8 role; u8 role_new; u8 group }×n
// pad to 8-byte boundary
//
// Decoders accept both the legacy short form (no meta block at all —
// phase=NORMAL, role_new=role, group=OLD|NEW, which is how this package
// represents NORMAL-phase membership) and the long form.

// Encode always emits the long form (R1 requires encode/decode to
// round-trip, which the long form does unconditionally; legacy
// acceptance is a decode-side compatibility concern only).
func (c *Configuration) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(configWireVersion)
	n := uint64(len(c.Servers))
	binary.Write(&buf, binary.LittleEndian, n)
	for _, s := range c.Servers {
		binary.Write(&buf, binary.LittleEndian, s.ID)
		buf.WriteByte(byte(s.Role))
	}
	meta := make([]byte, configMetaBlockSize)
	binary.LittleEndian.PutUint32(meta[0:4], 1) // meta_version
	binary.LittleEndian.PutUint32(meta[4:8], 1) // server_version
	binary.LittleEndian.PutUint32(meta[8:12], 3) // server_size: role+role_new+group bytes
	meta[12] = byte(c.Phase)
	buf.Write(meta)
	for _, s := range c.Servers {
		binary.Write(&buf, binary.LittleEndian, s.ID)
		buf.WriteByte(byte(s.Role))
		buf.WriteByte(byte(s.RoleNew))
		buf.WriteByte(byte(s.Group))
	}
	for buf.Len()%8 != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// DecodeConfiguration parses the wire format, accepting both the legacy
// short form and the long joint-consensus form.
func DecodeConfiguration(data []byte) (*Configuration, error) {
	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated configuration", ErrMalformed)
	}
	if version != configWireVersion {
		return nil, fmt.Errorf("%w: unsupported configuration version %d", ErrMalformed, version)
	}
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: truncated configuration count", ErrMalformed)
	}
	legacy := make([]Server, n)
	for i := range legacy {
		var id uint64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, fmt.Errorf("%w: truncated legacy server", ErrMalformed)
		}
		role, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated legacy server role", ErrMalformed)
		}
		legacy[i] = Server{ID: id, Role: Role(role), RoleNew: Role(role), Group: GroupOld}
	}

	conf := &Configuration{Servers: legacy, Phase: PhaseNormal}

	if r.Len() == 0 {
		// Legacy short form: absence of a meta block means NORMAL phase
		// with role_new==role; NORMAL-phase servers belong to OLD|NEW,
		// the same groups Add gives them.
		for i := range conf.Servers {
			conf.Servers[i].Group = GroupOld | GroupNew
		}
		return conf, nil
	}

	meta := make([]byte, configMetaBlockSize)
	if _, err := r.Read(meta); err != nil {
		return nil, fmt.Errorf("%w: truncated meta block", ErrMalformed)
	}
	phase := Phase(meta[12])

	longForm := make([]Server, n)
	for i := range longForm {
		var id uint64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, fmt.Errorf("%w: truncated long-form server", ErrMalformed)
		}
		role, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated long-form role", ErrMalformed)
		}
		roleNew, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated long-form role_new", ErrMalformed)
		}
		group, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated long-form group", ErrMalformed)
		}
		longForm[i] = Server{ID: id, Role: Role(role), RoleNew: Role(roleNew), Group: Group(group)}
	}

	consumed := len(data) - r.Len()
	if r.Len() != (8-consumed%8)%8 {
		return nil, fmt.Errorf("%w: bad padding after long-form servers", ErrMalformed)
	}

	return &Configuration{Servers: longForm, Phase: phase}, nil
}
