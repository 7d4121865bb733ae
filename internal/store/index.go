// Package store holds the ordered entry timeline for one run and the
// sequence counter that makes interleaving from concurrent producers
// deterministic.
package store

import "sync/atomic"

// IndexProvider issues strictly increasing sequence numbers. It is safe
// for concurrent use by multiple producers (the stdout and stderr
// drains run concurrently) and cannot fail.
type IndexProvider struct {
	counter atomic.Uint64
}

// NewIndexProvider returns a provider whose first Next is 1.
func NewIndexProvider() *IndexProvider {
	return &IndexProvider{}
}

// StartFrom returns a provider whose first Next is one past the highest
// sequence number already present in s. Reattaching log processing to a
// resumed run therefore never collides with prior entries.
func StartFrom(s *MsgStore) *IndexProvider {
	p := &IndexProvider{}
	p.counter.Store(s.LastSeq())
	return p
}

// Next returns the next sequence number. No two calls ever return the
// same value.
func (p *IndexProvider) Next() uint64 {
	return p.counter.Add(1)
}

// Current returns the most recently issued sequence number, or the
// starting point if Next has not been called.
func (p *IndexProvider) Current() uint64 {
	return p.counter.Load()
}
