package coordinator

import (
	"context"
	"sync"

	"tableread/internal/casting"
)

// Ticket tracks one submitted mutation through its commit. The mutation runs
// to completion whether or not anyone waits on the ticket.
type Ticket struct {
	kind string

	once    sync.Once
	done    chan struct{}
	session *casting.Session
	err     error
}

func newTicket(kind string) *Ticket {
	return &Ticket{kind: kind, done: make(chan struct{})}
}

// Kind names the submitted mutation.
func (t *Ticket) Kind() string { return t.kind }

// Done is closed once the commit outcome is known.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the commit completes, returning the canonical snapshot
// the store produced or the failure that rolled the mutation back. A context
// error means the caller stopped waiting, not that the commit was abandoned.
func (t *Ticket) Wait(ctx context.Context) (*casting.Session, error) {
	select {
	case <-t.done:
		return t.session, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Ticket) complete(session *casting.Session, err error) {
	t.once.Do(func() {
		t.session = session
		t.err = err
		close(t.done)
	})
}
