package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store holds queued jobs ordered by priority and insertion.
type Store interface {
	// Push inserts the job and assigns its Seq.
	Push(ctx context.Context, job *Job) error
	// PopDue removes and returns the first job in queue order that is due at
	// now. Future jobs stay in place. It returns nil when nothing is due.
	PopDue(ctx context.Context, now time.Time) (*Job, error)
	Len(ctx context.Context) (int, error)
}

// DeadLetterStore is implemented by stores that keep dropped jobs for inspection.
type DeadLetterStore interface {
	Bury(ctx context.Context, job *Job, reason string) error
}

// MemoryStore is a process-local Store for single-instance and test use.
type MemoryStore struct {
	mu   sync.Mutex
	jobs []*Job
	seq  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Push(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	stored := *job
	stored.Seq = s.seq
	job.Seq = s.seq

	i := sort.Search(len(s.jobs), func(i int) bool { return before(&stored, s.jobs[i]) })
	s.jobs = append(s.jobs, nil)
	copy(s.jobs[i+1:], s.jobs[i:])
	s.jobs[i] = &stored
	return nil
}

func (s *MemoryStore) PopDue(_ context.Context, now time.Time) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, job := range s.jobs {
		if !job.Due(now) {
			continue
		}
		s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
		return job, nil
	}
	return nil, nil
}

func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs), nil
}
