// Package grpcio is the reference network half of raft.IO: it ships
// raft.Message envelopes over google.golang.org/grpc using a
// hand-registered grpc.ServiceDesc and the gob codec in codec.go,
// rather than a protoc-generated stub, since no .proto file exists for
// this wire shape.
package grpcio

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vzdtic/raftcore/pkg/raft"
)

const serviceName = "raftcore.Transport"
const sendMethod = "/" + serviceName + "/Send"

// Envelope is the message sent over the wire; Session is a uuid chosen
// once per Transport and carried on every envelope it sends. The
// receiving side does not read it.
type Envelope struct {
	Src     uint64
	Session uuid.UUID
	Msg     raft.Message
}

// Ack is the empty reply every Send produces; the method is
// fire-and-forget from the caller's point of view (raft.IO.Send's own
// callback already carries the only error that matters).
type Ack struct{}

type transportServer interface {
	Send(ctx context.Context, in *Envelope) (*Ack, error)
}

func sendHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(transportServer).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(transportServer).Send(ctx, req.(*Envelope))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*transportServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: sendHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkg/transport/grpcio/transport.go",
}

// Receiver is satisfied by raft.RaftNode; kept narrow so tests can
// substitute a recorder.
type Receiver interface {
	Receive(msg raft.Message)
}

// Transport is the network half of raft.IO: it dials peers lazily and
// hands inbound envelopes to the local node's Receive. It does not
// implement the storage half of raft.IO; compose it with
// pkg/storage.BoltIO through a small adapter at the call site.
type Transport struct {
	mu      sync.Mutex
	session uuid.UUID
	id      uint64
	addrs   map[uint64]string
	conns   map[uint64]*grpc.ClientConn
	node    Receiver
	server  *grpc.Server
}

// New returns a Transport for node id, dialing peers at the given
// address table on demand.
func New(id uint64, addrs map[uint64]string, node Receiver) *Transport {
	return &Transport{
		session: uuid.New(),
		id:      id,
		addrs:   addrs,
		conns:   make(map[uint64]*grpc.ClientConn),
		node:    node,
	}
}

// Serve starts a grpc.Server listening at listenAddr and blocks until
// it stops; run it in its own goroutine.
func (t *Transport) Serve(listenAddr string) error {
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	t.server = grpc.NewServer()
	grpc.RegisterService(t.server, &serviceDesc, transportImpl{t: t})
	return t.server.Serve(lis)
}

// Stop gracefully shuts down the listening server, if running.
func (t *Transport) Stop() {
	if t.server != nil {
		t.server.GracefulStop()
	}
}

type transportImpl struct {
	t *Transport
}

func (ti transportImpl) Send(_ context.Context, in *Envelope) (*Ack, error) {
	ti.t.node.Receive(in.Msg)
	return &Ack{}, nil
}

func (t *Transport) connFor(dst uint64) (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cc, ok := t.conns[dst]; ok {
		return cc, nil
	}
	addr, ok := t.addrs[dst]
	if !ok {
		return nil, fmt.Errorf("%w: no address for peer %d", raft.ErrNoConnection, dst)
	}
	cc, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	t.conns[dst] = cc
	return cc, nil
}

// Send implements the network half of raft.IO.
func (t *Transport) Send(dst uint64, msg raft.Message, cb func(error)) {
	cc, err := t.connFor(dst)
	if err != nil {
		cb(err)
		return
	}
	in := &Envelope{Src: t.id, Session: t.session, Msg: msg}
	out := new(Ack)
	err = cc.Invoke(context.Background(), sendMethod, in, out, grpc.CallContentSubtype("gob"))
	cb(err)
}
