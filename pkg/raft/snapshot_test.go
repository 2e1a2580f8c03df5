package raft_test

import (
	"fmt"
	"testing"

	"github.com/vzdtic/raftcore/pkg/kv"
	"github.com/vzdtic/raftcore/pkg/raft"
	"github.com/vzdtic/raftcore/pkg/simtest"
)

func TestSnapshotTrimsAppliedPrefix(t *testing.T) {
	c := simtest.NewCluster([]uint64{1, 2, 3}, func(cfg raft.Config) raft.Config {
		cfg.SnapshotThreshold = 20
		cfg.SnapshotTrailing = 5
		return cfg
	})
	leaderID, ok := c.WaitForStableLeader(2000, 20)
	if !ok {
		t.Fatal("no leader elected")
	}
	leader := c.Node(leaderID)

	for i := 0; i < 40; i++ {
		payload, err := kv.EncodeCommand(kv.Command{Kind: kv.OpSet, Key: fmt.Sprintf("k%d", i), Value: []byte("v")})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if err := leader.Propose([][]byte{payload}, nil); err != nil {
			t.Fatalf("propose %d: %v", i, err)
		}
		c.RunTicks(10)
	}
	c.RunTicks(500)

	if leader.Log().SnapshotIndex() == 0 {
		t.Fatal("expected the leader to have snapshotted at least once after crossing the threshold repeatedly")
	}
	if leader.Log().NumEntries() >= 40 {
		t.Fatalf("expected the in-memory log to have been trimmed, still holds %d entries", leader.Log().NumEntries())
	}
}

func TestLaggingFollowerCatchesUpViaInstallSnapshot(t *testing.T) {
	c := simtest.NewCluster([]uint64{1, 2, 3}, func(cfg raft.Config) raft.Config {
		cfg.SnapshotThreshold = 10
		cfg.SnapshotTrailing = 2
		return cfg
	})
	leaderID, ok := c.WaitForStableLeader(2000, 20)
	if !ok {
		t.Fatal("no leader elected")
	}
	leader := c.Node(leaderID)

	var laggard uint64
	for _, n := range c.Nodes() {
		if n.ID() != leaderID {
			laggard = n.ID()
			break
		}
	}
	others := []uint64{}
	for _, n := range c.Nodes() {
		if n.ID() != laggard {
			others = append(others, n.ID())
		}
	}
	c.Net.Partition([]uint64{laggard}, others)

	for i := 0; i < 30; i++ {
		payload, err := kv.EncodeCommand(kv.Command{Kind: kv.OpSet, Key: fmt.Sprintf("k%d", i), Value: []byte("v")})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if err := leader.Propose([][]byte{payload}, nil); err != nil {
			t.Fatalf("propose %d: %v", i, err)
		}
		c.RunTicks(10)
	}
	c.RunTicks(500)

	c.Net.Heal()
	c.RunTicks(2000)

	if _, found := c.Store(laggard).Get("k29"); !found {
		t.Fatal("rejoined follower never caught up via snapshot install")
	}
}
