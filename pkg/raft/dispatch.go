package raft

// Receive is the single entry point for inbound messages (§4.5).
func (n *RaftNode) Receive(msg Message) {
	if n.state == Unavailable || n.io.State() == IOBusy {
		return
	}

	term, voteHint, ok := messageTerm(msg)
	if !ok {
		return
	}

	switch {
	case term > n.currentTerm:
		n.io.SetBusy(true)
		n.io.SetMeta(term, voteHint, func(err error) {
			n.io.SetBusy(false)
			if err != nil {
				n.shutdown("set_meta failed during term bump")
				return
			}
			n.currentTerm = term
			n.votedFor = voteHint
			if n.state != Follower {
				n.becomeFollower()
			}
			n.dispatch(msg)
		})
		return
	case term < n.currentTerm:
		n.dispatch(msg)
		return
	default:
		n.dispatch(msg)
	}
}

// messageTerm extracts (term, vote_hint) by message type. vote_hint is
// the value voted_for resets to once the term bump persists; it is 0
// for every message type, RequestVote included, so the vote itself is
// only recorded by the RequestVote handler after its own checks.
func messageTerm(msg Message) (term uint64, voteHint uint64, ok bool) {
	switch {
	case msg.AppendEntries != nil:
		return msg.AppendEntries.Term, 0, true
	case msg.AppendEntriesResult != nil:
		return msg.AppendEntriesResult.Term, 0, true
	case msg.RequestVote != nil:
		if msg.RequestVote.PreVote {
			// Pre-vote never bumps term or persists a vote hint.
			return 0, 0, false
		}
		return msg.RequestVote.Term, 0, true
	case msg.RequestVoteResult != nil:
		return msg.RequestVoteResult.Term, 0, true
	case msg.InstallSnapshot != nil:
		return msg.InstallSnapshot.Term, 0, true
	case msg.InstallSnapshotResult != nil:
		return msg.InstallSnapshotResult.Term, 0, true
	case msg.TimeoutNow != nil:
		return msg.TimeoutNow.Term, 0, true
	default:
		return 0, 0, false
	}
}

func (n *RaftNode) dispatch(msg Message) {
	switch {
	case msg.RequestVote != nil:
		if msg.RequestVote.PreVote {
			result := n.handleRequestVote(msg.RequestVote)
			n.io.Send(msg.RequestVote.CandidateID, Message{RequestVoteResult: &result}, func(error) {})
			return
		}
		result := n.handleRequestVote(msg.RequestVote)
		if result.VoteGranted {
			// V3/S3: persist the vote before the response is observable.
			n.persistMeta(n.currentTerm, msg.RequestVote.CandidateID, func(error) {
				n.io.Send(msg.RequestVote.CandidateID, Message{RequestVoteResult: &result}, func(error) {})
			})
			return
		}
		n.io.Send(msg.RequestVote.CandidateID, Message{RequestVoteResult: &result}, func(error) {})
	case msg.RequestVoteResult != nil:
		if msg.RequestVoteResult.Term < n.currentTerm {
			return
		}
		n.handleRequestVoteResult(msg.RequestVoteResult)
	case msg.AppendEntries != nil:
		n.handleAppendEntries(msg.AppendEntries)
	case msg.AppendEntriesResult != nil:
		if msg.AppendEntriesResult.Term < n.currentTerm {
			return
		}
		n.handleAppendEntriesResult(msg.AppendEntriesResult)
	case msg.InstallSnapshot != nil:
		n.handleInstallSnapshot(msg.InstallSnapshot)
	case msg.InstallSnapshotResult != nil:
		if msg.InstallSnapshotResult.Term < n.currentTerm {
			return
		}
		n.handleInstallSnapshotResult(msg.InstallSnapshotResult)
	case msg.TimeoutNow != nil:
		n.handleTimeoutNow(msg.TimeoutNow)
	}

	if n.transfer != nil && n.state == Follower && n.follower != nil && n.follower.currentLeader == n.transfer.targetID {
		n.closeTransfer(nil)
	}
}
