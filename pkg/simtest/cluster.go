package simtest

import (
	"time"

	"github.com/vzdtic/raftcore/pkg/kv"
	"github.com/vzdtic/raftcore/pkg/raft"
)

// Cluster wires N raft.RaftNode instances to a shared DeterministicClock
// and Network, each backed by its own fakeIO and kv.Store, so
// pkg/raft's package tests can drive a whole cluster synchronously
// without goroutines or real time.
type Cluster struct {
	Clock *DeterministicClock
	Net   *Network

	nodes map[uint64]*raft.RaftNode
	ios   map[uint64]*fakeIO
	fsms  map[uint64]*kv.Store

	tickInterval int64
}

// NewCluster builds a Cluster of voters at the given ids, all starting
// in an empty, NORMAL-phase configuration that already lists every id
// as a VOTER — the common "already bootstrapped" starting point most
// protocol tests want; membership-change tests mutate from there via
// AddServer/RemoveServer.
func NewCluster(ids []uint64, configure func(raft.Config) raft.Config) *Cluster {
	clock := NewDeterministicClock()
	net := NewNetwork(clock)

	conf := raft.NewConfiguration()
	for _, id := range ids {
		conf.Add(id, raft.RoleVoter)
	}

	c := &Cluster{
		Clock:        clock,
		Net:          net,
		nodes:        make(map[uint64]*raft.RaftNode),
		ios:          make(map[uint64]*fakeIO),
		fsms:         make(map[uint64]*kv.Store),
		tickInterval: 10,
	}

	for _, id := range ids {
		cfg := raft.DefaultConfig(id)
		if configure != nil {
			cfg = configure(cfg)
		}
		io := newFakeIO(id, clock, net)
		fsm := kv.New()
		node := raft.NewNode(cfg, io, fsm, nil, nil, 0, 0, raft.NewLog(), conf.Copy())
		c.nodes[id] = node
		c.ios[id] = io
		c.fsms[id] = fsm
		net.Register(id, node.Receive)
	}
	return c
}

// AddStandaloneNode constructs a fresh node not yet part of any
// server's Configuration, wires it into the shared clock and network,
// and folds it into the harness so WaitForLeader/Tick/invariant checks
// see it too. Use this to exercise AddServer: the new node must exist
// and be reachable before a leader's catch-up round can make progress
// against it.
func (c *Cluster) AddStandaloneNode(id uint64, configure func(raft.Config) raft.Config) *raft.RaftNode {
	cfg := raft.DefaultConfig(id)
	if configure != nil {
		cfg = configure(cfg)
	}
	io := newFakeIO(id, c.Clock, c.Net)
	fsm := kv.New()
	node := raft.NewNode(cfg, io, fsm, nil, nil, 0, 0, raft.NewLog(), raft.NewConfiguration())
	c.nodes[id] = node
	c.ios[id] = io
	c.fsms[id] = fsm
	c.Net.Register(id, node.Receive)
	return node
}

// Node returns the RaftNode for id.
func (c *Cluster) Node(id uint64) *raft.RaftNode { return c.nodes[id] }

// Store returns the kv.Store FSM backing id.
func (c *Cluster) Store(id uint64) *kv.Store { return c.fsms[id] }

// Nodes returns every node in the cluster, in no particular order.
func (c *Cluster) Nodes() []*raft.RaftNode {
	out := make([]*raft.RaftNode, 0, len(c.nodes))
	for _, n := range c.nodes {
		out = append(out, n)
	}
	return out
}

// Tick advances the clock by one tick interval, running any due network
// events, then calls Tick on every node.
func (c *Cluster) Tick() {
	c.Clock.RunFor(c.tickInterval)
	for _, n := range c.nodes {
		n.Tick()
	}
}

// RunTicks calls Tick n times.
func (c *Cluster) RunTicks(n int) {
	for i := 0; i < n; i++ {
		c.Tick()
	}
}

// RunFor calls Tick enough times to cover duration.
func (c *Cluster) RunFor(duration time.Duration) {
	ticks := int(duration.Milliseconds()/c.tickInterval) + 1
	c.RunTicks(ticks)
}

// Leader returns the id of a node that believes itself Leader, or 0 if
// none does yet.
func (c *Cluster) Leader() uint64 {
	for id, n := range c.nodes {
		if n.State() == raft.Leader {
			return id
		}
	}
	return 0
}

// WaitForLeader ticks the cluster until some node becomes leader or
// maxTicks elapses.
func (c *Cluster) WaitForLeader(maxTicks int) (uint64, bool) {
	for i := 0; i < maxTicks; i++ {
		if l := c.Leader(); l != 0 {
			return l, true
		}
		c.Tick()
	}
	return c.Leader(), c.Leader() != 0
}

// WaitForStableLeader ticks until the same node reports itself leader
// for stableTicks consecutive ticks, guarding against counting a leader
// that is about to lose a check-quorum race.
func (c *Cluster) WaitForStableLeader(maxTicks, stableTicks int) (uint64, bool) {
	var candidate uint64
	run := 0
	for i := 0; i < maxTicks; i++ {
		l := c.Leader()
		if l != 0 && l == candidate {
			run++
		} else {
			candidate = l
			run = 1
		}
		if candidate != 0 && run >= stableTicks {
			return candidate, true
		}
		c.Tick()
	}
	return 0, false
}
