package raft_test

import (
	"testing"

	"github.com/vzdtic/raftcore/pkg/raft"
	"github.com/vzdtic/raftcore/pkg/simtest"
)

func TestAddServerPromotesThroughJointConsensus(t *testing.T) {
	c := simtest.NewCluster([]uint64{1, 2, 3}, nil)
	leaderID, ok := c.WaitForStableLeader(2000, 20)
	if !ok {
		t.Fatal("no leader elected")
	}
	leader := c.Node(leaderID)

	c.AddStandaloneNode(4, nil)

	done := false
	var addErr error
	if err := leader.AddServer(4, raft.RoleVoter, func(res raft.ApplyResult) {
		done = true
		addErr = res.Err
	}); err != nil {
		t.Fatalf("AddServer: %v", err)
	}

	c.RunTicks(3000)

	if !done {
		t.Fatal("AddServer callback never fired")
	}
	if addErr != nil {
		t.Fatalf("AddServer failed: %v", addErr)
	}

	conf := leader.Configuration()
	role, err := conf.ServerRole(4)
	if err != nil {
		t.Fatalf("server 4 missing from configuration: %v", err)
	}
	if role != raft.RoleVoter {
		t.Fatalf("server 4 has role %v, want voter", role)
	}
	if conf.Phase != raft.PhaseNormal {
		t.Fatal("configuration should have collapsed back to NORMAL after the joint change completed")
	}
}

func TestConcurrentConfigChangeRejected(t *testing.T) {
	c := simtest.NewCluster([]uint64{1, 2, 3}, nil)
	leaderID, ok := c.WaitForStableLeader(2000, 20)
	if !ok {
		t.Fatal("no leader elected")
	}
	leader := c.Node(leaderID)

	c.AddStandaloneNode(4, nil)
	c.AddStandaloneNode(5, nil)

	if err := leader.AddServer(4, raft.RoleVoter, func(raft.ApplyResult) {}); err != nil {
		t.Fatalf("first AddServer: %v", err)
	}
	err := leader.AddServer(5, raft.RoleVoter, func(raft.ApplyResult) {})
	if err != raft.ErrConfigChangePending {
		t.Fatalf("expected ErrConfigChangePending for a second concurrent change, got %v", err)
	}
}

func TestRemoveServerDropsFromConfiguration(t *testing.T) {
	c := simtest.NewCluster([]uint64{1, 2, 3, 4, 5}, nil)
	leaderID, ok := c.WaitForStableLeader(2000, 20)
	if !ok {
		t.Fatal("no leader elected")
	}
	leader := c.Node(leaderID)

	victim := uint64(0)
	for _, n := range c.Nodes() {
		if n.ID() != leaderID {
			victim = n.ID()
			break
		}
	}

	done := false
	if err := leader.RemoveServer(victim, func(res raft.ApplyResult) {
		done = true
		if res.Err != nil {
			t.Errorf("RemoveServer completed with error: %v", res.Err)
		}
	}); err != nil {
		t.Fatalf("RemoveServer: %v", err)
	}

	c.RunTicks(2000)

	if !done {
		t.Fatal("RemoveServer callback never fired")
	}
	if _, ok := leader.Configuration().Get(victim); ok {
		t.Fatalf("server %d still present in configuration after removal", victim)
	}
}
