package raft

// followerState, candidateState and leaderState are the role-specific
// sub-objects; exactly one is live at a time per S4.
type followerState struct {
	electionTimerStart int64
	currentLeader      uint64
}

type candidateState struct {
	votes        map[uint64]bool
	preVote      bool
	electionTimerStart int64
}

type leaderState struct {
	progress   *progressArray
	readable   bool
	change     *membershipChange
	catchup    *catchUpRound
}

// transferState tracks an in-flight leadership transfer (§4.9, §5
// "Cancellation").
type transferState struct {
	targetID uint64
	deadline int64
}

// RaftNode is the per-node Raft state machine (§3). It is
// single-owner: every exported method must be invoked from the single
// thread driving the IO adapter's callbacks and tick (§5); the struct
// itself holds no internal locks.
type RaftNode struct {
	cfg Config
	io  IO
	fsm FSM
	log Logger
	gate CatchUpGate

	id uint64

	currentTerm uint64
	votedFor    uint64

	commitIndex   uint64
	lastApplied   uint64
	lastApplying  uint64

	state State

	raftLog *Log
	conf    *Configuration

	configurationIndex            uint64
	configurationUncommittedIndex uint64
	configurationPrev             *Configuration

	follower  *followerState
	candidate *candidateState
	leader    *leaderState
	transfer  *transferState

	registry *RequestRegistry

	applyInFlight int

	removed bool
}

// NewNode constructs a RaftNode from persisted state (§3 "Lifecycle").
// initialConf must already reflect any CHANGE entries found in the
// supplied log during restore.
func NewNode(cfg Config, io IO, fsm FSM, log Logger, gate CatchUpGate, initialTerm, initialVote uint64, initialLog *Log, initialConf *Configuration) *RaftNode {
	if log == nil {
		log = NewNoopLogger()
	}
	if gate == nil {
		gate = AlwaysPermit()
	}
	if initialLog == nil {
		initialLog = NewLog()
	}
	if initialConf == nil {
		initialConf = NewConfiguration()
	}
	n := &RaftNode{
		cfg:         cfg,
		io:          io,
		fsm:         fsm,
		log:         log,
		gate:        gate,
		id:          cfg.ID,
		currentTerm: initialTerm,
		votedFor:    initialVote,
		state:       Follower,
		raftLog:     initialLog,
		conf:        initialConf,
		registry:    NewRequestRegistry(),
	}
	n.commitIndex = initialLog.SnapshotIndex()
	n.lastApplied = n.commitIndex
	n.lastApplying = n.commitIndex
	n.follower = &followerState{electionTimerStart: io.Time()}
	return n
}

// --- accessors ---

func (n *RaftNode) ID() uint64          { return n.id }
func (n *RaftNode) State() State        { return n.state }
func (n *RaftNode) CurrentTerm() uint64 { return n.currentTerm }
func (n *RaftNode) CommitIndex() uint64 { return n.commitIndex }
func (n *RaftNode) LastApplied() uint64 { return n.lastApplied }
func (n *RaftNode) Log() *Log           { return n.raftLog }
func (n *RaftNode) Configuration() *Configuration { return n.conf.Copy() }
func (n *RaftNode) IsLeader() bool      { return n.state == Leader }
func (n *RaftNode) Removed() bool       { return n.removed }

// CurrentLeader returns the id of the node this follower last heard a
// valid AppendEntries from, or 0 if unknown.
func (n *RaftNode) CurrentLeader() uint64 {
	if n.state == Leader {
		return n.id
	}
	if n.follower != nil {
		return n.follower.currentLeader
	}
	return 0
}

// Readable reports whether a leader is safe to serve linearizable reads
// from (Open Question (c): true only once the no_op barrier commits).
func (n *RaftNode) Readable() bool {
	if n.state != Leader {
		return false
	}
	if !n.cfg.NoOp {
		return true
	}
	return n.leader != nil && n.leader.readable
}

// shutdown transitions the node to UNAVAILABLE on an unrecoverable
// safety violation (§7, §4.11). All in-flight completion callbacks must
// observe this before touching node state again; callers of
// RaftNode methods after this returns ErrShutdown should stop driving
// the node.
func (n *RaftNode) shutdown(reason string) error {
	if n.state == Unavailable {
		return ErrShutdown
	}
	n.log.Error().Str("reason", reason).Msg("raft: shutting down on safety violation")
	n.state = Unavailable
	n.follower = nil
	n.candidate = nil
	n.leader = nil
	n.transfer = nil
	n.registry.FailAll(ErrShutdown)
	return ErrShutdown
}

// persistMeta is the shared async (term, votedFor) write used by both
// election and term-bump handling; io.state=BUSY for the duration
// (§4.5, §5).
func (n *RaftNode) persistMeta(term, votedFor uint64, cb func(error)) {
	n.io.SetBusy(true)
	n.io.SetMeta(term, votedFor, func(err error) {
		n.io.SetBusy(false)
		if err != nil {
			n.shutdown("set_meta failed")
			return
		}
		n.currentTerm = term
		n.votedFor = votedFor
		if cb != nil {
			cb(nil)
		}
	})
}
