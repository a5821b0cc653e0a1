package mcp

import (
	"fmt"
	"sync"
)

type callResult struct {
	resp *Response
	err  error
}

// pendingTracker correlates in-flight request ids with their waiting callers.
type pendingTracker struct {
	mu     sync.Mutex
	calls  map[string]chan callResult
	failed error
}

func newPendingTracker() *pendingTracker {
	return &pendingTracker{calls: make(map[string]chan callResult)}
}

// add reserves a response slot for the given request id.
func (p *pendingTracker) add(id string) (chan callResult, error) {
	if id == "" {
		return nil, fmt.Errorf("mcp: request id is empty")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed != nil {
		return nil, p.failed
	}
	if _, exists := p.calls[id]; exists {
		return nil, fmt.Errorf("mcp: duplicate request id %q", id)
	}
	ch := make(chan callResult, 1)
	p.calls[id] = ch
	return ch, nil
}

// deliver hands the response to the waiting caller, if any.
func (p *pendingTracker) deliver(id string, res callResult) {
	p.mu.Lock()
	ch, ok := p.calls[id]
	if ok {
		delete(p.calls, id)
	}
	p.mu.Unlock()
	if ok {
		ch <- res
	}
}

// cancel forgets a pending call whose caller gave up.
func (p *pendingTracker) cancel(id string) {
	p.mu.Lock()
	delete(p.calls, id)
	p.mu.Unlock()
}

// failAll wakes every pending caller with err and rejects future adds.
func (p *pendingTracker) failAll(err error) {
	if err == nil {
		err = ErrTransportClosed
	}
	p.mu.Lock()
	if p.failed == nil {
		p.failed = err
	}
	calls := p.calls
	p.calls = make(map[string]chan callResult)
	p.mu.Unlock()

	for _, ch := range calls {
		ch <- callResult{err: err}
	}
}
