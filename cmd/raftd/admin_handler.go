package main

import (
	"github.com/vzdtic/raftcore/pkg/cluster"
	"github.com/vzdtic/raftcore/pkg/kv"
	"github.com/vzdtic/raftcore/pkg/raft"
	"github.com/vzdtic/raftcore/pkg/transport/grpcio"
)

// nodeAdmin implements grpcio.AdminHandler over a local node, backing
// every cobra subcommand that talks to a running raftd. Every node
// touch is marshalled onto loop so it never races the goroutine driving
// Tick and inbound Receive.
type nodeAdmin struct {
	loop  *runLoop
	node  *raft.RaftNode
	store *kv.Store
	view  *cluster.View
	book  *cluster.AddressBook
}

func (a *nodeAdmin) HandleAdmin(req grpcio.AdminRequest) grpcio.AdminResponse {
	switch req.Op {
	case grpcio.OpStatus:
		var resp grpcio.AdminResponse
		a.loop.do(func() {
			resp = grpcio.AdminResponse{
				Leader:      a.node.CurrentLeader(),
				Term:        a.node.CurrentTerm(),
				CommitIndex: a.node.CommitIndex(),
				Members:     a.view.Members(),
			}
		})
		return resp

	case grpcio.OpGet:
		v, found := a.store.Get(req.Key)
		return grpcio.AdminResponse{Value: v, Found: found}

	case grpcio.OpPropose:
		payload, err := kv.EncodeCommand(kv.Command{Kind: kv.OpSet, Key: req.Key, Value: req.Value})
		if err != nil {
			return grpcio.AdminResponse{Err: err.Error()}
		}
		result := make(chan raft.ApplyResult, 1)
		var submitErr error
		a.loop.do(func() {
			submitErr = a.node.Propose([][]byte{payload}, func(res raft.ApplyResult) { result <- res })
		})
		if submitErr != nil {
			return grpcio.AdminResponse{Err: submitErr.Error()}
		}
		res := <-result
		if res.Err != nil {
			return grpcio.AdminResponse{Err: res.Err.Error()}
		}
		return grpcio.AdminResponse{}

	case grpcio.OpAddServer:
		if req.Address != "" {
			a.book.Set(req.ServerID, req.Address)
		}
		result := make(chan raft.ApplyResult, 1)
		var submitErr error
		a.loop.do(func() {
			submitErr = a.node.AddServer(req.ServerID, req.Role, func(res raft.ApplyResult) { result <- res })
		})
		if submitErr != nil {
			return grpcio.AdminResponse{Err: submitErr.Error()}
		}
		res := <-result
		if res.Err != nil {
			return grpcio.AdminResponse{Err: res.Err.Error()}
		}
		return grpcio.AdminResponse{}

	case grpcio.OpRemoveServer:
		result := make(chan raft.ApplyResult, 1)
		var submitErr error
		a.loop.do(func() {
			submitErr = a.node.RemoveServer(req.ServerID, func(res raft.ApplyResult) { result <- res })
		})
		if submitErr != nil {
			return grpcio.AdminResponse{Err: submitErr.Error()}
		}
		res := <-result
		if res.Err != nil {
			return grpcio.AdminResponse{Err: res.Err.Error()}
		}
		if err := a.book.Remove(req.ServerID); err != nil {
			return grpcio.AdminResponse{Err: err.Error()}
		}
		return grpcio.AdminResponse{}

	case grpcio.OpTransferLeader:
		var submitErr error
		a.loop.do(func() {
			submitErr = a.node.TransferLeadership(req.ServerID, req.TimeoutMS)
		})
		if submitErr != nil {
			return grpcio.AdminResponse{Err: submitErr.Error()}
		}
		return grpcio.AdminResponse{}

	default:
		return grpcio.AdminResponse{Err: "raftd: unknown admin op"}
	}
}
