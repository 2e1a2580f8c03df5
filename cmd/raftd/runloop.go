package main

// runLoop is the single goroutine that owns a raft.RaftNode, matching
// §5's single-threaded cooperative model: every touch of the node
// (inbound messages, the periodic tick, admin-triggered Propose/
// AddServer/RemoveServer/TransferLeadership calls) is a closure handed
// to this loop rather than called directly from whichever goroutine
// received the triggering event.
type runLoop struct {
	jobs chan func()
	done chan struct{}
}

func newRunLoop() *runLoop {
	return &runLoop{jobs: make(chan func(), 256), done: make(chan struct{})}
}

// run drains jobs until stop is called; intended to be the body of the
// one goroutine that ever touches the node.
func (l *runLoop) run() {
	for {
		select {
		case job := <-l.jobs:
			job()
		case <-l.done:
			return
		}
	}
}

// submit enqueues fn to run on the loop goroutine without waiting for it.
func (l *runLoop) submit(fn func()) {
	select {
	case l.jobs <- fn:
	case <-l.done:
	}
}

// do enqueues fn and blocks until it has run, for callers (admin RPCs)
// that need a result before replying.
func (l *runLoop) do(fn func()) {
	wait := make(chan struct{})
	l.submit(func() {
		fn()
		close(wait)
	})
	<-wait
}

func (l *runLoop) stop() { close(l.done) }
