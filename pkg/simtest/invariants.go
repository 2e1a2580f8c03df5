package simtest

import (
	"fmt"

	"github.com/vzdtic/raftcore/pkg/raft"
)

// CheckLogMatching verifies that any index committed on more than one
// node holds an identical term everywhere it appears, the property the
// AppendEntries consistency check (S1) is meant to guarantee cluster
// wide.
func CheckLogMatching(c *Cluster) error {
	terms := make(map[uint64]uint64)
	for id, n := range c.nodes {
		last := n.Log().LastIndex()
		for idx := n.Log().SnapshotIndex() + 1; idx <= last; idx++ {
			term := n.Log().TermOf(idx)
			if term == 0 {
				continue
			}
			if prev, ok := terms[idx]; ok && prev != term {
				return fmt.Errorf("simtest: log mismatch at index %d: node %d has term %d, another node has term %d", idx, id, term, prev)
			}
			terms[idx] = term
		}
	}
	return nil
}

// CheckLeaderCompleteness verifies every committed index on every node
// is present, at the same term, in the current leader's log (if a
// leader exists). Restricted to indices still in memory, since a
// snapshotted-away prefix is trivially covered by the anchor it was
// folded into.
func CheckLeaderCompleteness(c *Cluster) error {
	leaderID := c.Leader()
	if leaderID == 0 {
		return nil
	}
	leader := c.nodes[leaderID]
	for id, n := range c.nodes {
		if id == leaderID {
			continue
		}
		commit := n.CommitIndex()
		from := n.Log().SnapshotIndex() + 1
		for idx := from; idx <= commit; idx++ {
			want := n.Log().TermOf(idx)
			if want == 0 {
				continue
			}
			got := leader.Log().TermOf(idx)
			if got == 0 {
				continue // leader already snapshotted past it
			}
			if got != want {
				return fmt.Errorf("simtest: leader %d missing committed entry %d (term %d) known to node %d (term %d)", leaderID, idx, got, id, want)
			}
		}
	}
	return nil
}

// commitHistory tracks each node's highest-ever-observed commit index
// across repeated ObserveCommitMonotonic calls, so regressions can be
// caught mid-test rather than only compared once at the end.
type commitHistory struct {
	max map[uint64]uint64
}

// NewCommitHistory returns an empty commitHistory.
func NewCommitHistory() *commitHistory {
	return &commitHistory{max: make(map[uint64]uint64)}
}

// Observe checks that every node's commit index has not gone backward
// since the last call, matching the commit-index-is-monotonic safety
// property.
func (h *commitHistory) Observe(c *Cluster) error {
	for id, n := range c.nodes {
		ci := n.CommitIndex()
		if prev, ok := h.max[id]; ok && ci < prev {
			return fmt.Errorf("simtest: commit index regressed on node %d: was %d, now %d", id, prev, ci)
		}
		h.max[id] = ci
	}
	return nil
}

// CheckSingleLeaderPerTerm verifies at most one node in the cluster
// currently claims Leader for the highest term observed — a live,
// instantaneous check (distinct from the wire-level at-most-one-grant
// rule enforced inside election.go, which this indirectly exercises).
func CheckSingleLeaderPerTerm(c *Cluster) error {
	var bestTerm uint64
	leaders := map[uint64]uint64{} // term -> leader id
	for id, n := range c.nodes {
		if n.State() != raft.Leader {
			continue
		}
		t := n.CurrentTerm()
		if other, ok := leaders[t]; ok && other != id {
			return fmt.Errorf("simtest: two leaders in term %d: %d and %d", t, other, id)
		}
		leaders[t] = id
		if t > bestTerm {
			bestTerm = t
		}
	}
	return nil
}

// CheckAll runs every structural invariant checker once.
func CheckAll(c *Cluster, history *commitHistory) error {
	if err := CheckLogMatching(c); err != nil {
		return err
	}
	if err := CheckLeaderCompleteness(c); err != nil {
		return err
	}
	if err := CheckSingleLeaderPerTerm(c); err != nil {
		return err
	}
	if history != nil {
		if err := history.Observe(c); err != nil {
			return err
		}
	}
	return nil
}
