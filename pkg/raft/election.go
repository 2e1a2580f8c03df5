package raft

// logUpToDate implements V3: candidate's (lastLogTerm, lastLogIndex) is
// lexicographically >= ours.
func (n *RaftNode) logUpToDate(lastLogTerm, lastLogIndex uint64) bool {
	myTerm := n.raftLog.LastTerm()
	myIndex := n.raftLog.LastIndex()
	if lastLogTerm != myTerm {
		return lastLogTerm > myTerm
	}
	return lastLogIndex >= myIndex
}

// hasLiveLeader is the "no live leader" half of a pre-vote grant: an
// election-timeout interval has not yet elapsed since the last valid
// contact.
func (n *RaftNode) hasLiveLeader() bool {
	if n.follower == nil {
		return false
	}
	return n.io.Time()-n.follower.electionTimerStart < n.cfg.ElectionTimeout.Milliseconds()
}

// startPreVote broadcasts a pre-vote canvass at term+1 without mutating
// any persisted state (§4.4).
func (n *RaftNode) startPreVote() {
	n.candidate = &candidateState{
		votes:              map[uint64]bool{n.id: true},
		preVote:            true,
		electionTimerStart: n.io.Time(),
	}
	n.state = Candidate
	n.broadcastVoteRequests(n.currentTerm+1, true, false)
	n.maybeBecomeLeaderByPreVote()
}

// start is election.start(): promotes a successful pre-vote (or, when
// pre-vote is disabled, an expired follower/candidate timer) into a real
// candidacy — bump term, persist (term, vote=self), broadcast
// RequestVote (§4.4).
func (n *RaftNode) start(disruptLeader bool) {
	newTerm := n.currentTerm + 1
	n.persistMeta(newTerm, n.id, func(error) {
		n.candidate = &candidateState{
			votes:              map[uint64]bool{n.id: true},
			preVote:            false,
			electionTimerStart: n.io.Time(),
		}
		n.state = Candidate
		n.broadcastVoteRequests(newTerm, false, disruptLeader)
		n.maybeBecomeLeaderByVote()
	})
}

func (n *RaftNode) broadcastVoteRequests(term uint64, preVote, disrupt bool) {
	req := RequestVoteRequest{
		Term:          term,
		CandidateID:   n.id,
		LastLogIndex:  n.raftLog.LastIndex(),
		LastLogTerm:   n.raftLog.LastTerm(),
		PreVote:       preVote,
		DisruptLeader: disrupt,
	}
	for _, s := range n.conf.Servers {
		if s.ID == n.id {
			continue
		}
		if !n.conf.IsVoter(s, GroupOld) && !n.conf.IsVoter(s, GroupNew) {
			continue
		}
		dst := s.ID
		n.io.Send(dst, Message{RequestVote: &req}, func(error) {})
	}
}

// tallyGrants is election.tally(i): true once granted votes form a
// majority of VOTERs in every active group.
func (n *RaftNode) tallyGrants(votes map[uint64]bool) bool {
	for _, group := range []Group{GroupOld, GroupNew} {
		total := n.conf.VoterCount(group)
		if total == 0 {
			continue
		}
		granted := 0
		for _, s := range n.conf.Servers {
			if n.conf.IsVoter(s, group) && votes[s.ID] {
				granted++
			}
		}
		if granted*2 <= total {
			return false
		}
	}
	return true
}

func (n *RaftNode) maybeBecomeLeaderByPreVote() {
	if n.candidate == nil || !n.candidate.preVote {
		return
	}
	if !n.tallyGrants(n.candidate.votes) {
		return
	}
	n.start(false)
}

func (n *RaftNode) maybeBecomeLeaderByVote() {
	if n.candidate == nil || n.candidate.preVote {
		return
	}
	if !n.tallyGrants(n.candidate.votes) {
		return
	}
	n.becomeLeader()
}

// handleRequestVote implements vote(args, &granted): V1-V3 plus
// disruption protection.
func (n *RaftNode) handleRequestVote(req *RequestVoteRequest) RequestVoteResult {
	result := RequestVoteResult{Term: n.currentTerm, SrcID: n.id, PreVote: req.PreVote}

	// V1: stale term.
	if req.Term < n.currentTerm {
		return result
	}

	if req.PreVote {
		// Pre-vote never mutates persisted state. Disruption protection:
		// a VOTER with a live leader ignores unless disrupt_leader.
		if n.hasLiveLeader() && !req.DisruptLeader {
			return result
		}
		if n.logUpToDate(req.LastLogTerm, req.LastLogIndex) {
			result.VoteGranted = true
		}
		return result
	}

	if n.hasLiveLeader() && !req.DisruptLeader {
		return result
	}

	// V2: reset vote if the candidate's term is strictly newer.
	if req.Term > n.currentTerm {
		n.votedFor = 0
	}
	result.Term = req.Term

	if (n.votedFor == 0 || n.votedFor == req.CandidateID) && n.logUpToDate(req.LastLogTerm, req.LastLogIndex) {
		result.VoteGranted = true
	}
	return result
}

// handleRequestVoteResult folds a reply into the in-flight candidacy.
func (n *RaftNode) handleRequestVoteResult(res *RequestVoteResult) {
	if n.state != Candidate || n.candidate == nil {
		return
	}
	if res.PreVote != n.candidate.preVote {
		return
	}
	if !res.VoteGranted {
		return
	}
	n.candidate.votes[res.SrcID] = true
	if n.candidate.preVote {
		n.maybeBecomeLeaderByPreVote()
	} else {
		n.maybeBecomeLeaderByVote()
	}
}
