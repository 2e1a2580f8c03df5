package simtest

import (
	"sync"

	"github.com/vzdtic/raftcore/pkg/raft"
)

// Network is an in-memory stand-in for pkg/transport/grpcio: it routes
// raft.Message envelopes between simulated nodes through a
// DeterministicClock, with optional partitions, latency, and drop rate
// so tests can exercise the protocol under adverse network conditions
// without a real socket.
type Network struct {
	mu        sync.Mutex
	clock     *DeterministicClock
	receivers map[uint64]func(raft.Message)
	latency   int64
	dropRate  float64
	partition map[uint64]map[uint64]bool
	rnd       func() float64
}

// NewNetwork returns a Network with zero latency and no drops or
// partitions by default.
func NewNetwork(clock *DeterministicClock) *Network {
	return &Network{
		clock:     clock,
		receivers: make(map[uint64]func(raft.Message)),
		partition: make(map[uint64]map[uint64]bool),
		rnd:       deterministicRand(),
	}
}

// deterministicRand returns a fixed-seed xorshift generator so
// drop-rate decisions stay reproducible without pulling in math/rand's
// global seed state.
func deterministicRand() func() float64 {
	state := uint64(0x2545F4914F6CDD1D)
	return func() float64 {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		return float64(state%1_000_000) / 1_000_000
	}
}

// Register connects id's inbound message handler, typically
// node.Receive.
func (net *Network) Register(id uint64, recv func(raft.Message)) {
	net.mu.Lock()
	defer net.mu.Unlock()
	net.receivers[id] = recv
}

// SetLatency fixes a uniform one-way delivery delay in milliseconds.
func (net *Network) SetLatency(ms int64) {
	net.mu.Lock()
	defer net.mu.Unlock()
	net.latency = ms
}

// SetDropRate sets the fraction (0..1) of messages silently dropped.
func (net *Network) SetDropRate(rate float64) {
	net.mu.Lock()
	defer net.mu.Unlock()
	net.dropRate = rate
}

// Partition splits the cluster: any pair (a, b) with a in one group and
// b in another has its traffic blackholed in both directions until
// Heal is called.
func (net *Network) Partition(groups ...[]uint64) {
	net.mu.Lock()
	defer net.mu.Unlock()
	net.partition = make(map[uint64]map[uint64]bool)
	for gi, group := range groups {
		for _, a := range group {
			for oi, other := range groups {
				if oi == gi {
					continue
				}
				for _, b := range other {
					net.block(a, b)
				}
			}
		}
	}
}

func (net *Network) block(a, b uint64) {
	if net.partition[a] == nil {
		net.partition[a] = make(map[uint64]bool)
	}
	net.partition[a][b] = true
}

// Heal clears all partitions.
func (net *Network) Heal() {
	net.mu.Lock()
	defer net.mu.Unlock()
	net.partition = make(map[uint64]map[uint64]bool)
}

func (net *Network) blocked(a, b uint64) bool {
	return net.partition[a] != nil && net.partition[a][b]
}

// Send implements the raft.IO network half for a single simulated node.
// src identifies the caller for partition lookups.
func (net *Network) Send(src, dst uint64, msg raft.Message, cb func(error)) {
	net.mu.Lock()
	recv, ok := net.receivers[dst]
	blocked := net.blocked(src, dst) || net.blocked(dst, src)
	drop := net.dropRate > 0 && net.rnd() < net.dropRate
	delay := net.latency
	net.mu.Unlock()

	if !ok {
		net.clock.After(0, func() { cb(raft.ErrNoConnection) })
		return
	}
	if blocked || drop {
		// Real networks don't call back on a dropped packet; the
		// core's own timeouts (heartbeat resend, election timeout)
		// are what recover from this, matching a live deployment.
		return
	}
	net.clock.After(delay, func() {
		recv(msg)
		cb(nil)
	})
}
