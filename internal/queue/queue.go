// Package queue holds the ordered working set of undecided candidates.
package queue

import (
	"sync"

	"github.com/sells-group/trustfeed/internal/model"
)

// Queue is an ordered set of candidates keyed by title. Safe for concurrent
// use.
type Queue struct {
	mu    sync.Mutex
	items []model.Candidate
	index map[string]int
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{index: make(map[string]int)}
}

// Load replaces the queue contents with batch, preserving provider order.
// When titles repeat, the first occurrence wins and later ones are dropped.
// It returns the number of duplicates dropped.
func (q *Queue) Load(batch []model.Candidate) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = make([]model.Candidate, 0, len(batch))
	q.index = make(map[string]int, len(batch))
	dropped := 0
	for _, c := range batch {
		if _, dup := q.index[c.Title]; dup {
			dropped++
			continue
		}
		q.index[c.Title] = len(q.items)
		q.items = append(q.items, c)
	}
	return dropped
}

// Accept removes the candidate with title and returns it. ok is false, and
// nothing changes, if no such candidate is queued.
func (q *Queue) Accept(title string) (c model.Candidate, ok bool) {
	return q.remove(title)
}

// Reject removes the candidate with title. Rejecting an absent title is a
// no-op that returns false.
func (q *Queue) Reject(title string) bool {
	_, ok := q.remove(title)
	return ok
}

func (q *Queue) remove(title string) (model.Candidate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i, ok := q.index[title]
	if !ok {
		return model.Candidate{}, false
	}
	c := q.items[i]
	q.items = append(q.items[:i], q.items[i+1:]...)
	delete(q.index, title)
	for j := i; j < len(q.items); j++ {
		q.index[q.items[j].Title] = j
	}
	return c, true
}

// Contains reports whether title is queued.
func (q *Queue) Contains(title string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.index[title]
	return ok
}

// Len returns the number of queued candidates.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// List returns a copy of the queue in order.
func (q *Queue) List() []model.Candidate {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.Candidate, len(q.items))
	copy(out, q.items)
	return out
}
