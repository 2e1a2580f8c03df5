package metrics

import (
	"time"

	"github.com/vzdtic/raftcore/pkg/raft"
)

// Collector samples a raft.RaftNode on a fixed interval, in the same
// ticker-plus-stop-channel shape as the teacher's metrics Collector.
type Collector struct {
	node   *raft.RaftNode
	stopCh chan struct{}
}

// NewCollector returns a Collector over node.
func NewCollector(node *raft.RaftNode) *Collector {
	return &Collector{node: node, stopCh: make(chan struct{})}
}

// Start begins periodic sampling in a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts sampling.
func (c *Collector) Stop() { close(c.stopCh) }

func (c *Collector) collect() {
	if c.node.IsLeader() {
		IsLeader.Set(1)
	} else {
		IsLeader.Set(0)
	}
	CurrentTerm.Set(float64(c.node.CurrentTerm()))
	CommitIndex.Set(float64(c.node.CommitIndex()))
	AppliedIndex.Set(float64(c.node.LastApplied()))
	LogSize.Set(float64(c.node.Log().NumEntries()))
}
