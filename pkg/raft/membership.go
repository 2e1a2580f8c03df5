package raft

// membershipChange tracks a client-initiated configuration change
// across its joint-consensus phases (§4.9): OLD -> (OLD,NEW) -> NEW.
type membershipChange struct {
	promoteeID    uint64
	caughtUp      bool
	pendingRole   Role
	roleRequested bool
	jointIndex    uint64
	callback      func(ApplyResult)
}

// canChange reports whether a brand-new configuration change may be
// submitted right now: at most one change may be in flight, and none
// may race a CHANGE entry still awaiting commit.
func (n *RaftNode) canChange() error {
	if n.state != Leader || n.leader == nil {
		return ErrNotLeader
	}
	if n.configurationUncommittedIndex != 0 {
		return ErrConfigChangePending
	}
	if n.leader.change != nil {
		return ErrConfigChangePending
	}
	return nil
}

// canAssign is canChange relaxed to allow Assign to continue the
// catch-up round id itself started via Add, rather than treating that
// still-open membershipChange as a conflicting one.
func (n *RaftNode) canAssign(id uint64) error {
	if n.state != Leader || n.leader == nil {
		return ErrNotLeader
	}
	if n.configurationUncommittedIndex != 0 {
		return ErrConfigChangePending
	}
	if n.leader.change != nil && n.leader.change.promoteeID != id {
		return ErrConfigChangePending
	}
	return nil
}

func (n *RaftNode) submitConfiguration(conf *Configuration) uint64 {
	index := n.raftLog.AppendConfiguration(n.currentTerm, conf.Encode())
	n.applyConfigurationEntry(index, conf.Encode())
	n.persistAndReplicateAll()
	return index
}

// isActivePromotee reports whether id is the server currently being
// caught up or promoted as part of an in-flight membership change —
// the one exception to skipping SPARE replication at §4.6 step 1.
func (n *RaftNode) isActivePromotee(id uint64) bool {
	return n.leader != nil && n.leader.change != nil && n.leader.change.promoteeID == id
}

// Add admits id as an inert SPARE server (§4.9's add(id)) and starts
// the CatchUpGate-driven catch-up round it must complete before it is
// eligible for Assign. cb fires once the admitting configuration entry
// itself commits; it does not wait for catch-up to finish. The
// membershipChange this opens stays live (without a terminal callback
// of its own) so a later Assign for the same id can find it.
func (n *RaftNode) Add(id uint64, cb func(ApplyResult)) error {
	if err := n.canChange(); err != nil {
		return err
	}
	next := n.conf.Copy()
	if err := next.Add(id, RoleSpare); err != nil {
		return err
	}
	n.leader.change = &membershipChange{promoteeID: id}
	n.beginCatchUp(id, n.io.Time())
	index := n.submitConfiguration(next)
	n.registry.Enqueue(index, RequestChange, n.io.Time(), func(res ApplyResult) {
		if res.Err != nil {
			n.leader.change = nil
			n.leader.catchup = nil
		}
		if cb != nil {
			cb(res)
		}
	})
	return nil
}

// Assign requests that id move to role once caught up (§4.9's
// assign(id, role)). id must already be a member: either a SPARE
// admitted by a prior Add, whose in-flight catch-up round this
// continues, or any existing server being handed a new role outright.
// cb fires once the resulting joint-consensus round-trip commits.
func (n *RaftNode) Assign(id uint64, role Role, cb func(ApplyResult)) error {
	if err := n.canAssign(id); err != nil {
		return err
	}
	if _, ok := n.conf.Get(id); !ok {
		return ErrNotFound
	}
	if n.leader.change == nil || n.leader.change.promoteeID != id {
		n.leader.change = &membershipChange{promoteeID: id, callback: cb}
		n.startJointChange(id, role)
		return nil
	}
	n.leader.change.callback = cb
	n.promoteAfterCatchUp(id, role)
	return nil
}

// promoteAfterCatchUp is called once an Add's STANDBY/SPARE admission
// has committed (or Assign is invoked directly against an already
// tracked promotee); it waits for beginCatchUp/checkCatchUpProgress to
// mark the peer caught up before submitting the joint (OLD,NEW)
// reconfiguration that grants the target role in NEW.
func (n *RaftNode) promoteAfterCatchUp(id uint64, role Role) {
	if n.leader == nil || n.leader.change == nil {
		return
	}
	if !n.leader.change.caughtUp {
		// checkCatchUpProgress will call back into this once the
		// promotee's match index reaches the leader's last index; see
		// onCatchUpComplete.
		n.leader.change.pendingRole = role
		n.leader.change.roleRequested = true
		return
	}
	n.startJointChange(id, role)
}

func (n *RaftNode) startJointChange(id uint64, role Role) {
	next := n.conf.Copy()
	for i := range next.Servers {
		if next.Servers[i].ID == id {
			next.Servers[i].PreRole = next.Servers[i].Role
			next.Servers[i].RoleNew = role
		}
	}
	next.Phase = PhaseJoint
	index := n.submitConfiguration(next)
	n.leader.change.jointIndex = index
	n.registry.Enqueue(index, RequestChange, n.io.Time(), func(res ApplyResult) {
		if res.Err != nil {
			n.finishMembershipChange(res)
			return
		}
		n.completeJointChange(GroupNew)
	})
}

func (n *RaftNode) completeJointChange(survivingGroup Group) {
	if n.state != Leader || n.leader == nil {
		return
	}
	next := n.conf.Copy()
	next.JointToNormal(survivingGroup)
	index := n.submitConfiguration(next)
	cb := func(res ApplyResult) { n.finishMembershipChange(res) }
	n.registry.Enqueue(index, RequestChange, n.io.Time(), cb)
}

func (n *RaftNode) finishMembershipChange(res ApplyResult) {
	if n.leader == nil || n.leader.change == nil {
		return
	}
	cb := n.leader.change.callback
	n.leader.change = nil
	n.leader.catchup = nil
	if cb != nil {
		cb(res)
	}
}

func (n *RaftNode) abortMembershipChange(err error) {
	if n.leader == nil || n.leader.change == nil {
		return
	}
	n.finishMembershipChange(ApplyResult{Err: err})
}

// AddServer is the common-case sequencing of Add immediately followed
// by Assign: admit id as SPARE, catch it up, and promote it to role
// once ready, firing cb only once that whole sequence resolves (one
// way or the other) rather than just Add's own commit.
func (n *RaftNode) AddServer(id uint64, role Role, cb func(ApplyResult)) error {
	return n.Add(id, func(res ApplyResult) {
		if res.Err != nil {
			if cb != nil {
				cb(res)
			}
			return
		}
		if err := n.Assign(id, role, cb); err != nil && cb != nil {
			cb(ApplyResult{Err: err})
		}
	})
}

// RemoveServer drops a server via the same joint-consensus sequence,
// skipping the catch-up phase entirely (§4.9's remove(id)).
func (n *RaftNode) RemoveServer(id uint64, cb func(ApplyResult)) error {
	if err := n.canChange(); err != nil {
		return err
	}
	if _, ok := n.conf.Get(id); !ok {
		return ErrNotFound
	}
	n.leader.change = &membershipChange{promoteeID: 0, callback: cb}
	next := n.conf.Copy()
	if err := next.JointRemove(id); err != nil {
		return err
	}
	index := n.submitConfiguration(next)
	n.leader.change.jointIndex = index
	n.registry.Enqueue(index, RequestChange, n.io.Time(), func(res ApplyResult) {
		if res.Err != nil {
			n.finishMembershipChange(res)
			return
		}
		n.completeJointChange(GroupNew)
	})
	return nil
}

// JointPromote atomically promotes id to role while removing removeID,
// both taking effect in the same joint-consensus round-trip (§4.9's
// joint_promote(id, role, remove_id) — e.g. swapping a caught-up
// standby in for a failed voter in one step, per E4). id must already
// be a member in good standing; Assign it through STANDBY first if it
// still needs to catch up.
func (n *RaftNode) JointPromote(id uint64, role Role, removeID uint64, cb func(ApplyResult)) error {
	if err := n.canChange(); err != nil {
		return err
	}
	if _, ok := n.conf.Get(id); !ok {
		return ErrNotFound
	}
	if _, ok := n.conf.Get(removeID); !ok {
		return ErrNotFound
	}
	next := n.conf.Copy()
	for i := range next.Servers {
		if next.Servers[i].ID == id {
			next.Servers[i].PreRole = next.Servers[i].Role
			next.Servers[i].RoleNew = role
		}
	}
	if err := next.JointRemove(removeID); err != nil {
		return err
	}
	n.leader.change = &membershipChange{promoteeID: id, callback: cb}
	index := n.submitConfiguration(next)
	n.leader.change.jointIndex = index
	n.registry.Enqueue(index, RequestChange, n.io.Time(), func(res ApplyResult) {
		if res.Err != nil {
			n.finishMembershipChange(res)
			return
		}
		n.completeJointChange(GroupNew)
	})
	return nil
}

// TransferLeadership asks peerID to become leader: it waits for the
// peer's log to be fully caught up (handled reactively in
// maybeCompleteTransfer) before sending TimeoutNow (§4.9).
func (n *RaftNode) TransferLeadership(peerID uint64, timeout int64) error {
	if n.state != Leader || n.leader == nil {
		return ErrNotLeader
	}
	if _, ok := n.conf.Get(peerID); !ok {
		return ErrNotFound
	}
	n.transfer = &transferState{targetID: peerID, deadline: n.io.Time() + timeout}
	p := n.leader.progress.get(peerID)
	if p != nil && isUpToDate(p, n.raftLog.LastIndex()) {
		n.maybeCompleteTransfer(peerID, p.MatchIndex)
	}
	return nil
}
