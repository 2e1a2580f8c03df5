package simtest

import (
	"github.com/vzdtic/raftcore/pkg/raft"
)

// fakeIO is an in-memory raft.IO: storage backed by plain slices/maps
// guarded by the single-threaded driving discipline the core already
// assumes, and networking delegated to a shared Network. It stands in
// for pkg/storage.BoltIO plus pkg/transport/grpcio.Transport combined,
// trading durability for speed and determinism in tests.
type fakeIO struct {
	id    uint64
	clock *DeterministicClock
	net   *Network

	busy bool

	term     uint64
	votedFor uint64

	entries    map[uint64]raft.Entry
	lastStored uint64

	snapMeta  raft.SnapshotMeta
	snapData  []byte
	hasSnap   bool
}

func newFakeIO(id uint64, clock *DeterministicClock, net *Network) *fakeIO {
	return &fakeIO{
		id:      id,
		clock:   clock,
		net:     net,
		entries: make(map[uint64]raft.Entry),
	}
}

func (f *fakeIO) Time() int64 { return f.clock.Now() }

func (f *fakeIO) Send(dst uint64, msg raft.Message, cb func(error)) {
	f.net.Send(f.id, dst, msg, cb)
}

func (f *fakeIO) Append(req raft.AppendRequest, cb func(lastStored uint64, err error)) {
	idx := req.PrevIndex
	for _, e := range req.Entries {
		idx++
		f.entries[idx] = e
	}
	if idx > f.lastStored {
		f.lastStored = idx
	}
	f.clock.After(0, func() { cb(f.lastStored, nil) })
}

func (f *fakeIO) Truncate(fromIndex uint64) error {
	for idx := range f.entries {
		if idx >= fromIndex {
			delete(f.entries, idx)
		}
	}
	if f.lastStored >= fromIndex {
		f.lastStored = fromIndex - 1
	}
	return nil
}

func (f *fakeIO) SetMeta(term uint64, votedFor uint64, cb func(error)) {
	f.term = term
	f.votedFor = votedFor
	f.clock.After(0, func() { cb(nil) })
}

func (f *fakeIO) SnapshotPut(req raft.SnapshotPutRequest, cb func(error)) {
	f.snapMeta = req.Meta
	f.snapData = append([]byte(nil), req.Data...)
	f.hasSnap = true
	cutoff := req.Meta.LastIndex
	if req.Trailing < cutoff {
		cutoff -= req.Trailing
	} else {
		cutoff = 0
	}
	for idx := range f.entries {
		if idx < cutoff {
			delete(f.entries, idx)
		}
	}
	f.clock.After(0, func() { cb(nil) })
}

func (f *fakeIO) SnapshotGet(cb func(meta raft.SnapshotMeta, data []byte, found bool, err error)) {
	meta, data, found := f.snapMeta, f.snapData, f.hasSnap
	f.clock.After(0, func() { cb(meta, data, found, nil) })
}

func (f *fakeIO) State() raft.IOState {
	if f.busy {
		return raft.IOBusy
	}
	return raft.IOAvailable
}

func (f *fakeIO) SetBusy(busy bool) { f.busy = busy }
