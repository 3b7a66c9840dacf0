package jobs

import "sync"

type SubmitOutcome int

const (
	Accepted SubmitOutcome = iota
	DuplicateDropped
)

func (o SubmitOutcome) String() string {
	if o == DuplicateDropped {
		return "duplicate-dropped"
	}
	return "accepted"
}

// Queue is the deduplicating intake for pending jobs. The first submission of a
// key wins; later submissions of the same key are dropped until the key is
// drained or removed.
type Queue struct {
	mu      sync.Mutex
	pending []Job
	seen    map[JobKey]struct{}
}

func NewQueue() *Queue {
	return &Queue{seen: make(map[JobKey]struct{})}
}

func (q *Queue) Submit(job Job) SubmitOutcome {
	key := job.Key()

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.seen[key]; ok {
		return DuplicateDropped
	}
	q.seen[key] = struct{}{}
	q.pending = append(q.pending, job)
	return Accepted
}

// Drain empties the queue and its seen-set atomically and returns the jobs in
// submission order.
func (q *Queue) Drain() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.pending
	q.pending = nil
	q.seen = make(map[JobKey]struct{}, len(out))
	return out
}

// Remove forgets key so it can be resubmitted. A pending job with that key is
// dropped as well so the no-duplicate invariant holds.
func (q *Queue) Remove(key JobKey) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.seen[key]; !ok {
		return false
	}
	delete(q.seen, key)
	for i, job := range q.pending {
		if job.Key() == key {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	return true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
