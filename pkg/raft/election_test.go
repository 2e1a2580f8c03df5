package raft_test

import (
	"testing"

	"github.com/vzdtic/raftcore/pkg/raft"
	"github.com/vzdtic/raftcore/pkg/simtest"
)

func TestElectsASingleLeader(t *testing.T) {
	c := simtest.NewCluster([]uint64{1, 2, 3}, nil)

	leader, ok := c.WaitForStableLeader(2000, 20)
	if !ok {
		t.Fatal("no stable leader elected within tick budget")
	}

	count := 0
	for _, n := range c.Nodes() {
		if n.State() == raft.Leader {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one leader, found %d", count)
	}
	if c.Node(leader).State() != raft.Leader {
		t.Fatalf("WaitForStableLeader returned %d but it is not leader", leader)
	}
}

func TestReelectsAfterLeaderPartition(t *testing.T) {
	c := simtest.NewCluster([]uint64{1, 2, 3}, nil)

	leader1, ok := c.WaitForStableLeader(2000, 20)
	if !ok {
		t.Fatal("no initial leader elected")
	}

	others := []uint64{}
	for _, n := range c.Nodes() {
		if n.ID() != leader1 {
			others = append(others, n.ID())
		}
	}
	c.Net.Partition([]uint64{leader1}, others)

	leader2, ok := c.WaitForStableLeader(3000, 20)
	if !ok {
		t.Fatal("no leader elected among the majority partition")
	}
	if leader2 == leader1 {
		t.Fatalf("expected a new leader after partitioning away %d, got the same node", leader1)
	}

	if c.Node(leader1).State() == raft.Leader {
		t.Fatalf("isolated former leader %d should have stepped down", leader1)
	}
}

func TestElectionBumpsTermAboveZero(t *testing.T) {
	c := simtest.NewCluster([]uint64{1, 2, 3}, nil)
	c.RunTicks(50)

	var maxTerm uint64
	for _, n := range c.Nodes() {
		if n.CurrentTerm() > maxTerm {
			maxTerm = n.CurrentTerm()
		}
	}
	if maxTerm == 0 {
		t.Fatal("expected at least one election to have bumped the term")
	}
}
