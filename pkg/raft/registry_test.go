package raft_test

import (
	"testing"

	"github.com/vzdtic/raftcore/pkg/raft"
)

func TestRegistryFireInvokesCallbackOnce(t *testing.T) {
	r := raft.NewRequestRegistry()
	var fired int
	var got raft.ApplyResult
	r.Enqueue(5, raft.RequestApply, 100, func(res raft.ApplyResult) {
		fired++
		got = res
	})

	r.Fire(5, raft.RequestApply, raft.ApplyResult{Index: 5, Result: []byte("ok")})
	if fired != 1 {
		t.Fatalf("expected callback to fire exactly once, fired %d times", fired)
	}
	if got.Index != 5 || string(got.Result) != "ok" {
		t.Fatalf("unexpected result delivered: %+v", got)
	}

	// Firing again for the same (index, kind) is a no-op: the entry was
	// already removed.
	r.Fire(5, raft.RequestApply, raft.ApplyResult{Index: 5})
	if fired != 1 {
		t.Fatalf("expected no second callback invocation, fired %d times", fired)
	}
}

// Requests of different kinds at the same index are tracked separately:
// RemoveAt takes out only the entry of the kind asked for, and only once.
func TestRegistryRemoveAtIsExclusive(t *testing.T) {
	r := raft.NewRequestRegistry()
	r.Enqueue(1, raft.RequestApply, 0, func(raft.ApplyResult) {})
	r.Enqueue(1, raft.RequestBarrier, 0, func(raft.ApplyResult) {})

	if _, ok := r.RemoveAt(1, raft.RequestApply); !ok {
		t.Fatal("expected to find the RequestApply entry at index 1")
	}
	if _, ok := r.RemoveAt(1, raft.RequestApply); ok {
		t.Fatal("expected the RequestApply entry to already be gone")
	}
	if _, ok := r.RemoveAt(1, raft.RequestBarrier); !ok {
		t.Fatal("expected the distinct RequestBarrier entry at the same index to remain")
	}
}

func TestRegistryDrainFiltersByPredicateWithoutFiring(t *testing.T) {
	r := raft.NewRequestRegistry()
	var fired bool
	r.Enqueue(10, raft.RequestApply, 0, func(raft.ApplyResult) { fired = true })
	r.Enqueue(20, raft.RequestApply, 0, func(raft.ApplyResult) {})

	drained := r.Drain(func(index uint64, kind raft.RequestKind) bool { return index >= 10 && index < 20 })
	if len(drained) != 1 || drained[0].Index != 10 {
		t.Fatalf("expected to drain exactly index 10, got %+v", drained)
	}
	if fired {
		t.Fatal("Drain must not invoke callbacks itself")
	}
	if r.Len() != 1 {
		t.Fatalf("expected one surviving entry, got %d", r.Len())
	}
}

// Leader step-down invariant: every remaining request is failed with the
// supplied error, and none remain outstanding afterward.
func TestRegistryFailAllFailsEveryOutstandingRequest(t *testing.T) {
	r := raft.NewRequestRegistry()
	results := make(map[uint64]error)
	r.Enqueue(1, raft.RequestApply, 0, func(res raft.ApplyResult) { results[1] = res.Err })
	r.Enqueue(2, raft.RequestChange, 0, func(res raft.ApplyResult) { results[2] = res.Err })

	r.FailAll(raft.ErrNotLeader)

	if len(results) != 2 {
		t.Fatalf("expected both callbacks to fire, got %d", len(results))
	}
	for idx, err := range results {
		if err != raft.ErrNotLeader {
			t.Errorf("entry %d: expected ErrNotLeader, got %v", idx, err)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("expected registry to be empty after FailAll, got %d remaining", r.Len())
	}
}

func TestRegistryEnqueueReturnsDistinctIDs(t *testing.T) {
	r := raft.NewRequestRegistry()
	a := r.Enqueue(1, raft.RequestApply, 0, func(raft.ApplyResult) {})
	b := r.Enqueue(2, raft.RequestApply, 0, func(raft.ApplyResult) {})
	if a == b {
		t.Fatal("expected distinct correlation ids across enqueued requests")
	}
}
