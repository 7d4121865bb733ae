package store

import (
	"context"
	"sync"

	"github.com/loomhq/loom/internal/entry"
)

// MsgStore is the append-only, order-preserving collection of entries
// for one run. Multiple producers may push concurrently; appends are
// serialized internally so snapshots and new-subscriber history are
// always a well-defined prefix of the timeline.
//
// Delivery policy: each subscriber owns an unbounded pending queue
// drained by its own goroutine, so producers never block on a slow
// subscriber and no entry is ever dropped. A lagging subscriber costs
// memory, not correctness.
type MsgStore struct {
	mu      sync.Mutex
	entries []entry.Entry
	subs    map[uint64]*subscriber
	nextSub uint64
	closed  bool
}

type subscriber struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []entry.Entry
	closed  bool
}

func newSubscriber(history []entry.Entry) *subscriber {
	s := &subscriber{pending: history}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *subscriber) enqueue(e entry.Entry) {
	s.mu.Lock()
	s.pending = append(s.pending, e)
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// next blocks until at least one entry is pending or the subscription
// has ended. It returns the drained batch and false once the queue is
// empty and no more entries will arrive.
func (s *subscriber) next() ([]entry.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.pending) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.pending) == 0 {
		return nil, false
	}
	batch := s.pending
	s.pending = nil
	return batch, true
}

// NewMsgStore creates an empty store.
func NewMsgStore() *MsgStore {
	return &MsgStore{subs: map[uint64]*subscriber{}}
}

// Push appends a pre-sequenced entry and wakes all live subscribers.
// Live producers should prefer Append; Push exists for replaying
// entries that already carry their sequence numbers. Pushing to a
// closed store is a no-op.
//
// Subscriber queues are filled while the store lock is held so that two
// concurrent pushes cannot reach a subscriber out of append order. The
// enqueue never blocks, so producers are not stalled by consumers.
func (m *MsgStore) Push(e entry.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.entries = append(m.entries, e)
	for _, s := range m.subs {
		s.enqueue(e)
	}
}

// Append assigns the next sequence number from p and commits the entry
// in one step. Assignment happens under the store lock, so entries from
// concurrent producers always land in the exact order their numbers
// were issued; sequence order and store order cannot diverge. The
// committed entry is returned. Appending to a closed store is a no-op.
func (m *MsgStore) Append(p *IndexProvider, e entry.Entry) entry.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return e
	}
	e.Seq = p.Next()
	m.entries = append(m.entries, e)
	for _, s := range m.subs {
		s.enqueue(e)
	}
	return e
}

// GetAll returns a snapshot of all entries committed so far, in
// sequence order. The snapshot is always prefix-consistent.
func (m *MsgStore) GetAll() []entry.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entry.Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of committed entries.
func (m *MsgStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// LastSeq returns the highest committed sequence number, or zero for an
// empty store.
func (m *MsgStore) LastSeq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return 0
	}
	return m.entries[len(m.entries)-1].Seq
}

// Closed reports whether Close has been called.
func (m *MsgStore) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Subscribe returns a channel that first yields every entry committed
// so far, then every entry pushed afterwards, with nothing skipped or
// duplicated across the transition. The channel closes once the store
// is closed and the subscriber has drained its queue, or when ctx is
// cancelled. Each call starts again from full history; an individual
// subscription is consumed once.
func (m *MsgStore) Subscribe(ctx context.Context) <-chan entry.Entry {
	m.mu.Lock()
	history := make([]entry.Entry, len(m.entries))
	copy(history, m.entries)
	sub := newSubscriber(history)
	if m.closed {
		sub.closed = true
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = sub
	m.mu.Unlock()

	out := make(chan entry.Entry)

	// Unblock the drain goroutine if the subscriber's context ends
	// while it is parked on the condition variable.
	stop := context.AfterFunc(ctx, sub.close)

	go func() {
		defer func() {
			stop()
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(out)
		}()
		for {
			batch, ok := sub.next()
			if !ok {
				return
			}
			for _, e := range batch {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Close marks the timeline complete. Live subscribers receive whatever
// is still queued, then their channels close. Close is idempotent.
func (m *MsgStore) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, s := range m.subs {
		s.close()
	}
	m.mu.Unlock()
}
