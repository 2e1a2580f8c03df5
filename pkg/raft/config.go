package raft

import "time"

// Config mirrors the teacher's NodeConfig/DefaultConfig shape
// (pkg/raft/types.go), widened with the knobs §4.3/§4.11/§4.8 need that
// a single-peer-list, no-joint-consensus design never required.
type Config struct {
	ID uint64

	ElectionTimeout      time.Duration
	ElectionTimeoutJitter time.Duration
	HeartbeatTimeout     time.Duration
	InstallSnapshotTimeout time.Duration

	// PreVote enables the pre-vote phase (§4.4). Disabling it makes
	// start() bump the term and canvass directly, matching the
	// "pre_vote disabled" branch in §4.11.
	PreVote bool

	// NoOp, when true, makes a freshly elected leader append a BARRIER
	// entry and gates linearizable reads on its commit (§4.6, Open
	// Question (c)).
	NoOp bool

	// InflightLogThreshold caps outstanding unacknowledged entries in
	// PIPELINE state; 0 disables the cap (§4.3).
	InflightLogThreshold uint64

	// SnapshotThreshold and SnapshotTrailing drive snapshot-after-apply
	// (§4.8) and Log.Snapshot's trailing-entry retention (§4.1).
	SnapshotThreshold uint64
	SnapshotTrailing  uint64

	// MaxCatchUpRounds bounds catch-up without progress (§4.9) before
	// the membership change is aborted.
	MaxCatchUpRounds int

	// ApplyBatchSize is the size of each batch triggerApply() dequeues
	// (§4.8). triggerApply keeps dequeuing batches until last_applied
	// reaches commit_index, so it does not bound how many entries one
	// call applies, and no catch-up hook consumes the batches.
	ApplyBatchSize int
}

// DefaultConfig mirrors the teacher's DefaultConfig constructor,
// widened with the spec's extra knobs.
func DefaultConfig(id uint64) Config {
	return Config{
		ID:                     id,
		ElectionTimeout:        150 * time.Millisecond,
		ElectionTimeoutJitter:  150 * time.Millisecond,
		HeartbeatTimeout:       50 * time.Millisecond,
		InstallSnapshotTimeout: 5 * time.Second,
		PreVote:                true,
		NoOp:                   true,
		InflightLogThreshold:   256,
		SnapshotThreshold:      1000,
		SnapshotTrailing:       100,
		MaxCatchUpRounds:       10,
		ApplyBatchSize:         64,
	}
}
