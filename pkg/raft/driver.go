package raft

// Tick advances the per-role timeout logic (§4.11). The caller is
// expected to invoke this on a steady wall-clock cadence (e.g. every
// few milliseconds); it is cheap and idempotent between firings.
func (n *RaftNode) Tick() {
	if n.state == Unavailable {
		return
	}

	now := n.io.Time()
	timeout := n.cfg.ElectionTimeout.Milliseconds()
	if j := n.cfg.ElectionTimeoutJitter.Milliseconds(); j > 0 {
		// Offset each node's timeout by an id- and term-derived amount in
		// [0, jitter) so nodes that start together do not keep timing out
		// on the same tick.
		timeout += int64((n.id*2654435761 + n.currentTerm*40503) % uint64(j))
	}

	switch n.state {
	case Follower:
		if n.follower == nil {
			return
		}
		if now-n.follower.electionTimerStart >= timeout {
			n.electionTimedOut()
		}
	case Candidate:
		if n.candidate == nil {
			return
		}
		if now-n.candidate.electionTimerStart >= timeout {
			n.electionTimedOut()
		}
	case Leader:
		n.tickLeader(now)
	}

	if n.transfer != nil && now >= n.transfer.deadline {
		n.closeTransfer(ErrTimeout)
	}
}

func (n *RaftNode) electionTimedOut() {
	if n.hasLiveLeader() {
		return
	}
	if n.cfg.PreVote {
		n.startPreVote()
		return
	}
	n.start(false)
}

func (n *RaftNode) tickLeader(now int64) {
	if n.leader == nil {
		return
	}
	if n.checkQuorumLoss() {
		n.becomeFollower()
		return
	}
	for i := range n.leader.progress.items {
		p := &n.leader.progress.items[i]
		resetRecentRecv(p)
		if p.ID == n.id {
			continue
		}
		n.maybeReplicateTo(p.ID, now)
	}
	n.checkCatchUpProgress(now)
}

// checkQuorumLoss reports whether too few voters have been heard from
// within the last election timeout to safely remain leader. With a
// trivial single-node cluster the leader always trivially hears from
// itself, so this never fires.
func (n *RaftNode) checkQuorumLoss() bool {
	now := n.io.Time()
	window := n.cfg.ElectionTimeout.Milliseconds()
	for _, group := range []Group{GroupOld, GroupNew} {
		total := n.conf.VoterCount(group)
		if total <= 1 {
			continue
		}
		heard := 0
		for _, s := range n.conf.Servers {
			if !n.conf.IsVoter(s, group) {
				continue
			}
			if s.ID == n.id {
				heard++
				continue
			}
			if p := n.leader.progress.get(s.ID); p != nil && (p.RecentRecv || now-p.RecentRecvTime < window) {
				heard++
			}
		}
		if heard*2 <= total {
			return true
		}
	}
	return false
}

// becomeFollower is convertToFollower (§4.11): drops any leader/
// candidate sub-state, fails outstanding client requests that can no
// longer be honored, and resets the election timer.
func (n *RaftNode) becomeFollower() {
	wasLeader := n.state == Leader
	n.state = Follower
	n.candidate = nil
	if wasLeader {
		n.registry.FailAll(ErrNotLeader)
	}
	n.leader = nil
	if n.transfer != nil {
		n.closeTransfer(ErrNotLeader)
	}
	n.follower = &followerState{electionTimerStart: n.io.Time()}
}

// becomeCandidate is convertToCandidate: it drops follower/leader
// sub-state and starts a real election. Nothing in this package calls
// it; electionTimedOut and handleTimeoutNow call start() directly.
func (n *RaftNode) becomeCandidate() {
	n.follower = nil
	n.leader = nil
	n.start(false)
}

// becomeLeader is convertToLeader (§4.11): builds fresh per-peer
// progress, and, if configured, appends the no_op barrier entry that
// Open Question (c) gates linearizable reads on.
func (n *RaftNode) becomeLeader() {
	n.candidate = nil
	n.follower = nil
	n.state = Leader
	n.leader = &leaderState{
		progress: buildProgressArray(n.conf, n.id, n.raftLog.LastIndex(), n.raftLog.LastStored(), n.io.Time()),
		readable: !n.cfg.NoOp,
	}

	if n.cfg.NoOp {
		index := n.raftLog.Append(n.currentTerm, EntryBarrier, nil)
		n.registry.Enqueue(index, RequestBarrier, n.io.Time(), func(res ApplyResult) {
			if res.Err == nil && n.leader != nil {
				n.leader.readable = true
			}
		})
	}

	n.persistAndReplicateAll()
}
