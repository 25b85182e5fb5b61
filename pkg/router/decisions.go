package router

import (
	"container/list"
	"sync"
	"time"
)

// DefaultDecisionLogSize bounds how many executed decisions can receive feedback.
const DefaultDecisionLogSize = 1024

type loggedDecision struct {
	id      string
	backend string
	elapsed time.Duration
}

// decisionLog keeps the backend and elapsed time of recent executions,
// evicting the oldest entry beyond its capacity.
type decisionLog struct {
	mu      sync.Mutex
	cap     int
	order   *list.List
	entries map[string]*list.Element
}

func newDecisionLog(capacity int) *decisionLog {
	if capacity <= 0 {
		capacity = DefaultDecisionLogSize
	}
	return &decisionLog{
		cap:     capacity,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (l *decisionLog) add(id, backend string, elapsed time.Duration) {
	if id == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.entries[id]; ok {
		el.Value = loggedDecision{id: id, backend: backend, elapsed: elapsed}
		l.order.MoveToBack(el)
		return
	}
	l.entries[id] = l.order.PushBack(loggedDecision{id: id, backend: backend, elapsed: elapsed})
	for l.order.Len() > l.cap {
		oldest := l.order.Front()
		l.order.Remove(oldest)
		delete(l.entries, oldest.Value.(loggedDecision).id)
	}
}

// take removes and returns the entry, so feedback applies once per decision.
func (l *decisionLog) take(id string) (loggedDecision, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	el, ok := l.entries[id]
	if !ok {
		return loggedDecision{}, false
	}
	l.order.Remove(el)
	delete(l.entries, id)
	return el.Value.(loggedDecision), true
}

func (l *decisionLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
