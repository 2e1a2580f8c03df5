package raft_test

import (
	"testing"

	"github.com/vzdtic/raftcore/pkg/kv"
	"github.com/vzdtic/raftcore/pkg/raft"
	"github.com/vzdtic/raftcore/pkg/simtest"
)

func TestSafetyInvariantsHoldUnderChurn(t *testing.T) {
	c := simtest.NewCluster([]uint64{1, 2, 3, 4, 5}, nil)
	history := simtest.NewCommitHistory()

	for round := 0; round < 30; round++ {
		c.RunTicks(20)
		if err := simtest.CheckAll(c, history); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if round == 10 {
			if leader := c.Leader(); leader != 0 {
				var other uint64
				for _, n := range c.Nodes() {
					if n.ID() != leader {
						other = n.ID()
						break
					}
				}
				c.Net.Partition([]uint64{leader}, []uint64{other})
			}
		}
		if round == 20 {
			c.Net.Heal()
		}
	}
}

func TestLinearizableSingleSessionHistory(t *testing.T) {
	c := simtest.NewCluster([]uint64{1, 2, 3}, nil)
	leaderID, ok := c.WaitForStableLeader(2000, 20)
	if !ok {
		t.Fatal("no leader elected")
	}
	leader := c.Node(leaderID)

	hist := simtest.NewHistory()

	start1 := c.Clock.Now()
	payload1, err := kv.EncodeCommand(kv.Command{Kind: kv.OpSet, Key: "a", Value: []byte("1")})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := leader.Propose([][]byte{payload1}, func(raft.ApplyResult) {}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	c.RunTicks(100)
	end1 := c.Clock.Now()
	hist.RecordSet(start1, end1, "a", []byte("1"))

	start2 := c.Clock.Now()
	v, found := c.Store(leaderID).Get("a")
	end2 := c.Clock.Now()
	hist.RecordGet(start2, end2, "a", v, found)

	if err := hist.CheckReadYourWrites(); err != nil {
		t.Fatalf("linearizability check failed: %v", err)
	}
}
