package main

import (
	"time"

	"github.com/vzdtic/raftcore/pkg/raft"
	"github.com/vzdtic/raftcore/pkg/storage"
	"github.com/vzdtic/raftcore/pkg/transport/grpcio"
)

// compositeIO pairs the storage half of raft.IO (pkg/storage.BoltIO)
// with the network half (pkg/transport/grpcio.Transport), exactly the
// seam transport.go's doc comment calls out: neither package implements
// the full contract alone.
type compositeIO struct {
	*storage.BoltIO
	transport *grpcio.Transport
}

func newCompositeIO(boltIO *storage.BoltIO, transport *grpcio.Transport) *compositeIO {
	return &compositeIO{BoltIO: boltIO, transport: transport}
}

func (c *compositeIO) Send(dst uint64, msg raft.Message, cb func(error)) {
	c.transport.Send(dst, msg, cb)
}

// wallClock adapts time.Now to the IO.Time contract (monotonic
// milliseconds since an arbitrary epoch); a real clock never goes
// backward across the lifetime of one process, which is all raft.IO
// requires of it.
func wallClock() func() int64 {
	start := time.Now()
	return func() int64 { return time.Since(start).Milliseconds() }
}
