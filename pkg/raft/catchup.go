package raft

// catchUpRound tracks a single STANDBY promotee's progress toward
// VOTER eligibility (§4.9). It resolves Open Question (a): rather than
// assuming an external placement-group hand-off, each round simply
// asks the CatchUpGate for permission before the leader is allowed to
// push the peer's log into agreement, and gives up after
// cfg.MaxCatchUpRounds rounds without forward progress.
type catchUpRound struct {
	peerID       uint64
	round        int
	startMatch   uint64
	roundDeadline int64
}

// beginCatchUp starts (or restarts) tracking a promotee under the
// current membership change.
func (n *RaftNode) beginCatchUp(peerID uint64, now int64) {
	if n.leader == nil {
		return
	}
	n.leader.catchup = &catchUpRound{
		peerID:        peerID,
		round:         0,
		roundDeadline: now + n.cfg.ElectionTimeout.Milliseconds(),
	}
}

// checkCatchUpProgress is polled from the leader tick (§4.11): the
// actual truncation-causing probe to the promotee is gated by the
// CatchUpGate in maybeReplicateTo; this loop separately consults the
// gate so a denial pauses the round-timeout clock instead of counting
// toward cfg.MaxCatchUpRounds, then promotes or aborts the pending
// change once the outcome is decided.
func (n *RaftNode) checkCatchUpProgress(now int64) {
	if n.leader == nil || n.leader.catchup == nil {
		return
	}
	c := n.leader.catchup
	p := n.leader.progress.get(c.peerID)
	if p == nil {
		n.leader.catchup = nil
		return
	}

	lastIndex := n.raftLog.LastIndex()
	if p.MatchIndex >= lastIndex {
		n.leader.catchup = nil
		n.onCatchUpComplete(c.peerID)
		return
	}
	n.leader.progress.updateMinMatch(n.conf, n.id, c.peerID, lastIndex)

	if !n.gate.Permit(c.peerID, c.round) {
		// Open Question (b): a denied permit is not fatal. Leave the
		// peer's Progress untouched and retry on the next heartbeat
		// rather than aborting the change outright.
		n.log.Debug().Uint64("peer", c.peerID).Int("round", c.round).Msg("raft: catch-up gate denied, retrying")
		c.roundDeadline = now + n.cfg.ElectionTimeout.Milliseconds()
		return
	}

	if now < c.roundDeadline {
		return
	}

	if p.MatchIndex <= c.startMatch {
		c.round++
		if c.round >= n.cfg.MaxCatchUpRounds {
			n.log.Warn().Uint64("peer", c.peerID).Uint64("min_match", n.leader.progress.minMatch).
				Uint64("slowest_peer", n.leader.progress.slowestPeer).Msg("raft: catch-up abandoned, no forward progress")
			n.abortMembershipChange(ErrTimeout)
			n.leader.catchup = nil
			return
		}
	}
	c.startMatch = p.MatchIndex
	c.roundDeadline = now + n.cfg.ElectionTimeout.Milliseconds()
}

func (n *RaftNode) onCatchUpComplete(peerID uint64) {
	if n.leader == nil || n.leader.change == nil || n.leader.change.promoteeID != peerID {
		return
	}
	n.leader.change.caughtUp = true
	if n.leader.change.roleRequested {
		n.startJointChange(peerID, n.leader.change.pendingRole)
	}
}
