// Package events implements the one-shot "wait for an external decision"
// gate used by the receiver side of a transfer while it waits for the user
// to accept or reject an incoming file (the pending-incoming resolver).
package events

import "sync"

// DecisionGate lets one goroutine block until another goroutine supplies a
// decision, exactly once. It is a one-shot "wait until processed" signal
// that also carries a value.
type DecisionGate struct {
	done   chan struct{}
	once   sync.Once
	accept bool
}

// NewDecisionGate returns a gate that blocks Wait until Resolve is called.
func NewDecisionGate() *DecisionGate {
	return &DecisionGate{done: make(chan struct{})}
}

// Resolve supplies the decision and releases the waiter. Only the first
// call has an effect; it reports whether this call was the one that took
// effect (false means the gate was already resolved, e.g. the connection
// died before the user responded).
func (g *DecisionGate) Resolve(accept bool) bool {
	resolved := false
	g.once.Do(func() {
		g.accept = accept
		resolved = true
		close(g.done)
	})
	return resolved
}

// Wait blocks until Resolve is called and returns the decision.
func (g *DecisionGate) Wait() bool {
	<-g.done
	return g.accept
}

// Done returns a channel that is closed once Resolve has been called, so
// callers can select on resolution without blocking.
func (g *DecisionGate) Done() <-chan struct{} {
	return g.done
}
