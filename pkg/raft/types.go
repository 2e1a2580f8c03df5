package raft

// State is the role a node currently occupies in the consensus protocol.
type State int

const (
	Follower State = iota
	Candidate
	Leader
	Unavailable
)

func (s State) String() string {
	switch s {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Role is a server's membership role. Only VOTER participates in quorum
// counting; LOGGER receives entries without voting; STANDBY is a
// catch-up intermediate on the way to VOTER; SPARE is inert until
// promoted.
type Role uint8

const (
	RoleVoter Role = iota
	RoleStandby
	RoleSpare
	RoleLogger
)

// RoleName maps a role to the literal used in error messages, matching
// the source's role_name() helper.
func RoleName(r Role) string {
	switch r {
	case RoleVoter:
		return "voter"
	case RoleStandby:
		return "standby"
	case RoleSpare:
		return "spare"
	case RoleLogger:
		return "logger"
	default:
		return "unknown"
	}
}

// Group marks joint-consensus membership cohorts. A server can belong to
// OLD, NEW, or both while a configuration change is in flight.
type Group uint8

const (
	GroupOld Group = 1 << iota
	GroupNew
)

func (g Group) Has(o Group) bool { return g&o != 0 }

// Phase is whether a Configuration is mid joint-consensus transition.
type Phase uint8

const (
	PhaseNormal Phase = iota
	PhaseJoint
)

// Server describes one member of a Configuration.
type Server struct {
	ID      uint64
	Role    Role
	RoleNew Role
	Group   Group
	// PreRole records the role held immediately before a pending
	// promotion, so a rejected/aborted change can roll back cleanly.
	PreRole Role
}

// EntryType distinguishes the three kinds of log entry the core knows
// how to apply.
type EntryType uint8

const (
	EntryCommand EntryType = iota
	EntryBarrier
	EntryChange
)

// BatchHeader is carried by entries that were appended as part of a
// client batch so completion callbacks can be coalesced; nil for
// entries appended singly.
type BatchHeader struct {
	BatchID   uint64
	BatchSize uint32
}

// Entry is one immutable unit of the replicated log. It is
// reference-counted while owned by in-flight IO (see Log.Acquire).
type Entry struct {
	Term    uint64
	Type    EntryType
	Payload []byte
	Batch   *BatchHeader
}

// ProgressState is the per-peer replication mode a leader uses to decide
// how aggressively to send entries to a given follower.
type ProgressState uint8

const (
	ProgressProbe ProgressState = iota
	ProgressPipeline
	ProgressSnapshot
)

func (s ProgressState) String() string {
	switch s {
	case ProgressProbe:
		return "probe"
	case ProgressPipeline:
		return "pipeline"
	case ProgressSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Progress is the leader's bookkeeping for a single peer's replication
// state (§4.3).
type Progress struct {
	ID               uint64
	NextIndex        uint64
	MatchIndex       uint64
	SnapshotIndex    uint64
	State            ProgressState
	LastSend         int64
	SnapshotLastSend int64
	RecentRecv       bool
	RecentRecvTime   int64
}

// SnapshotMeta identifies the anchor a snapshot replaces the log tail
// with.
type SnapshotMeta struct {
	LastIndex  uint64
	LastTerm   uint64
	ConfIndex  uint64
	Conf       []byte
	Threshold  uint64
	Trailing   uint64
}

// --- wire messages (§6) ---

type AppendEntriesRequest struct {
	Term         uint64
	SrcID        uint64
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []Entry
	LeaderCommit uint64
}

type AppendEntriesResult struct {
	Term         uint64
	SrcID        uint64
	Rejected     uint64
	LastLogIndex uint64
}

type RequestVoteRequest struct {
	Term          uint64
	CandidateID   uint64
	LastLogIndex  uint64
	LastLogTerm   uint64
	PreVote       bool
	DisruptLeader bool
}

type RequestVoteResult struct {
	Term        uint64
	SrcID       uint64
	VoteGranted bool
	PreVote     bool
}

type InstallSnapshotRequest struct {
	Term      uint64
	SrcID     uint64
	LastIndex uint64
	LastTerm  uint64
	ConfIndex uint64
	Conf      []byte
	Data      []byte
}

type InstallSnapshotResult struct {
	Term         uint64
	SrcID        uint64
	LastLogIndex uint64
}

type TimeoutNowRequest struct {
	Term         uint64
	LastLogIndex uint64
	LastLogTerm  uint64
}

// Message is the envelope handed to receive(); exactly one payload
// field is non-nil.
type Message struct {
	AppendEntries       *AppendEntriesRequest
	AppendEntriesResult *AppendEntriesResult
	RequestVote         *RequestVoteRequest
	RequestVoteResult   *RequestVoteResult
	InstallSnapshot     *InstallSnapshotRequest
	InstallSnapshotResult *InstallSnapshotResult
	TimeoutNow          *TimeoutNowRequest
}
