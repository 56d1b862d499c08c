// Package transaction correlates OpenFlow requests with their replies.
// A Registry is owned by exactly one connection, which keeps transaction
// ids scoped the way the protocol scopes them and means every pending
// completion dies with its connection. Expiry is driven from outside by
// a shared timer calling Sweep, so a stalled read loop cannot suppress
// timeout delivery.
package transaction

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ciena/ofcore/openflow"
)

var (
	// ErrTimeout is delivered to a waiter whose transaction passed its
	// deadline without a reply. The connection itself stays up.
	ErrTimeout = errors.New("transaction timed out")

	// ErrClosed is delivered to every waiter when the owning connection
	// closes, and returned by Register afterwards.
	ErrClosed = errors.New("connection closed")

	// ErrDuplicateXID is returned by Register when the id is already
	// outstanding. Ids are only reused after resolution or expiry.
	ErrDuplicateXID = errors.New("transaction id already outstanding")
)

// Result is the terminal outcome of a pending transaction: a reply, or
// an error (ErrTimeout or ErrClosed).
type Result struct {
	Reply openflow.Message
	Err   error
}

// Pending is the completion handle returned by Register. It is resolved
// at most once.
type Pending struct {
	xid      uint32
	deadline time.Time
	done     chan Result
}

// XID returns the transaction id this handle is waiting on.
func (p *Pending) XID() uint32 {
	return p.xid
}

// Done returns a channel that receives the transaction's single Result.
func (p *Pending) Done() <-chan Result {
	return p.done
}

// Wait blocks for the result or for ctx. A context cancellation does
// not remove the registry entry; the reply, timeout, or connection
// close still consumes it.
func (p *Pending) Wait(ctx context.Context) (openflow.Message, error) {
	select {
	case r := <-p.done:
		return r.Reply, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Registry tracks the outstanding requests of one connection.
type Registry struct {
	mu      sync.Mutex
	last    uint32
	pending map[uint32]*Pending
	closed  bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{pending: make(map[uint32]*Pending)}
}

// Allocate returns the next transaction id from the connection's
// monotonically increasing counter, wrapping at the 32 bit boundary.
// Zero is skipped: switches conventionally use it for unsolicited
// messages. An id still outstanding after a full wrap is skipped too.
func (r *Registry) Allocate() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		r.last++
		if r.last == 0 {
			r.last = 1
		}
		if _, busy := r.pending[r.last]; !busy {
			return r.last
		}
	}
}

// Register records an outstanding request and returns its completion
// handle. The deadline is enforced by Sweep, not by Register.
func (r *Registry) Register(xid uint32, deadline time.Time) (*Pending, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if _, busy := r.pending[xid]; busy {
		return nil, ErrDuplicateXID
	}
	p := &Pending{
		xid:      xid,
		deadline: deadline,
		done:     make(chan Result, 1),
	}
	r.pending[xid] = p
	return p, nil
}

// Resolve delivers a reply to the transaction with the given id and
// removes it. It reports false when no such transaction is outstanding,
// which is not an error: unsolicited messages share the inbound path
// and are routed through the event dispatcher instead.
func (r *Registry) Resolve(xid uint32, reply openflow.Message) bool {
	r.mu.Lock()
	p, ok := r.pending[xid]
	if ok {
		delete(r.pending, xid)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	p.done <- Result{Reply: reply}
	return true
}

// Sweep expires every transaction whose deadline is at or before now,
// delivering exactly one ErrTimeout to each, and returns how many were
// expired.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var expired []*Pending
	for xid, p := range r.pending {
		if !p.deadline.After(now) {
			delete(r.pending, xid)
			expired = append(expired, p)
		}
	}
	r.mu.Unlock()
	for _, p := range expired {
		p.done <- Result{Err: ErrTimeout}
	}
	return len(expired)
}

// Len returns the number of outstanding transactions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close fails every outstanding transaction with ErrClosed and rejects
// all future registrations. Safe to call more than once.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	orphans := make([]*Pending, 0, len(r.pending))
	for _, p := range r.pending {
		orphans = append(orphans, p)
	}
	r.pending = make(map[uint32]*Pending)
	r.mu.Unlock()
	for _, p := range orphans {
		p.done <- Result{Err: ErrClosed}
	}
}
