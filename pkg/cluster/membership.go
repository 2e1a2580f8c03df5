// Package cluster gives external callers (RPC handlers, the CLI) a
// thread-safe read-only view of the single authoritative membership
// state the core already owns — raft.Configuration — plus the address
// book a transport needs to turn a server id into a dial target.
// Unlike the teacher's Manager, this package keeps no membership state
// of its own: raft.RaftNode.Configuration() is the source of truth.
package cluster

import (
	"fmt"
	"sync"

	"github.com/vzdtic/raftcore/pkg/raft"
)

// Member is a read-only, display-friendly projection of one
// raft.Server for status output and RPC responses.
type Member struct {
	ID      uint64
	Address string
	Role    string
	Voting  bool
	Leader  bool
}

// Node is the subset of raft.RaftNode a View needs.
type Node interface {
	Configuration() *raft.Configuration
	CurrentLeader() uint64
}

// View renders a Node's current configuration as a list of Members,
// joining in addresses from the AddressBook.
type View struct {
	node Node
	book *AddressBook
}

// NewView returns a View over node using book to resolve addresses.
func NewView(node Node, book *AddressBook) *View {
	return &View{node: node, book: book}
}

// Members returns every server in the current configuration.
func (v *View) Members() []Member {
	conf := v.node.Configuration()
	leader := v.node.CurrentLeader()
	out := make([]Member, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		addr, _ := v.book.Lookup(s.ID)
		out = append(out, Member{
			ID:      s.ID,
			Address: addr,
			Role:    raft.RoleName(s.Role),
			Voting:  conf.IsVoter(s, raft.GroupOld) || conf.IsVoter(s, raft.GroupNew),
			Leader:  s.ID == leader,
		})
	}
	return out
}

// QuorumSize returns the majority size of the OLD group (the group
// always present; during a joint transition NEW additionally applies).
func (v *View) QuorumSize() int {
	conf := v.node.Configuration()
	return conf.VoterCount(raft.GroupOld)/2 + 1
}

// AddressBook maps server ids to dial addresses, used by
// pkg/transport/grpcio and the View above. It is mutated out of band
// (typically from static config or a discovery source), independent of
// raft.Configuration's own membership bookkeeping.
type AddressBook struct {
	mu    sync.RWMutex
	addrs map[uint64]string
}

// NewAddressBook returns an AddressBook seeded from a static map.
func NewAddressBook(seed map[uint64]string) *AddressBook {
	b := &AddressBook{addrs: make(map[uint64]string, len(seed))}
	for id, addr := range seed {
		b.addrs[id] = addr
	}
	return b
}

// Lookup returns the address registered for id.
func (b *AddressBook) Lookup(id uint64) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	addr, ok := b.addrs[id]
	return addr, ok
}

// Set registers or updates id's address.
func (b *AddressBook) Set(id uint64, addr string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addrs[id] = addr
}

// Snapshot returns a copy of the full address table, suitable for
// handing to grpcio.New.
func (b *AddressBook) Snapshot() map[uint64]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[uint64]string, len(b.addrs))
	for id, addr := range b.addrs {
		out[id] = addr
	}
	return out
}

// Remove drops id from the address book.
func (b *AddressBook) Remove(id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.addrs[id]; !ok {
		return fmt.Errorf("cluster: no address registered for server %d", id)
	}
	delete(b.addrs, id)
	return nil
}
