package raft_test

import (
	"testing"

	"github.com/vzdtic/raftcore/pkg/kv"
	"github.com/vzdtic/raftcore/pkg/raft"
	"github.com/vzdtic/raftcore/pkg/simtest"
)

func TestProposedCommandReplicatesToAllNodes(t *testing.T) {
	c := simtest.NewCluster([]uint64{1, 2, 3}, nil)
	leaderID, ok := c.WaitForStableLeader(2000, 20)
	if !ok {
		t.Fatal("no leader elected")
	}
	leader := c.Node(leaderID)

	payload, err := kv.EncodeCommand(kv.Command{Kind: kv.OpSet, Key: "foo", Value: []byte("bar")})
	if err != nil {
		t.Fatalf("encode command: %v", err)
	}

	var applyErr error
	applied := false
	err = leader.Propose([][]byte{payload}, func(res raft.ApplyResult) {
		applied = true
		applyErr = res.Err
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	c.RunTicks(200)

	if !applied {
		t.Fatal("propose callback never fired")
	}
	if applyErr != nil {
		t.Fatalf("apply failed: %v", applyErr)
	}

	for _, id := range []uint64{1, 2, 3} {
		v, ok := c.Store(id).Get("foo")
		if !ok {
			t.Fatalf("node %d never applied the command", id)
		}
		if string(v) != "bar" {
			t.Fatalf("node %d has %q, want %q", id, v, "bar")
		}
	}
}

func TestReadBarrierRejectedOnFollower(t *testing.T) {
	c := simtest.NewCluster([]uint64{1, 2, 3}, nil)
	leaderID, ok := c.WaitForStableLeader(2000, 20)
	if !ok {
		t.Fatal("no leader elected")
	}

	var followerID uint64
	for _, n := range c.Nodes() {
		if n.ID() != leaderID {
			followerID = n.ID()
			break
		}
	}

	err := c.Node(followerID).ReadBarrier(func(raft.ApplyResult) {})
	if err != raft.ErrNotLeader {
		t.Fatalf("expected ErrNotLeader from a follower's ReadBarrier, got %v", err)
	}
}

func TestReadBarrierBecomesReadableAfterElection(t *testing.T) {
	c := simtest.NewCluster([]uint64{1, 2, 3}, nil)
	leaderID, ok := c.WaitForStableLeader(2000, 20)
	if !ok {
		t.Fatal("no leader elected")
	}
	leader := c.Node(leaderID)

	// give the no-op barrier entry a chance to commit
	c.RunTicks(100)

	if !leader.Readable() {
		t.Fatal("expected leader to become readable once its term barrier commits")
	}
}
