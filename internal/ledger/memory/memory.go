// Package memory is an in-process ledger backend used for development
// and tests. It applies the same validation and ordering rules as the
// durable backends.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"tcontrol/internal/core"
	"tcontrol/internal/ledger"
)

// record pairs a job with its insertion sequence so listings can break
// same-date ties the way the SQLite store does with created_at.
type record struct {
	job core.Job
	seq int64
}

type Store struct {
	mu       sync.Mutex
	jobs     map[string]record
	nextSeq  int64
	settings *core.BusinessSettings
}

func New() *Store {
	return &Store{jobs: make(map[string]record)}
}

func (s *Store) CreateJob(_ context.Context, job core.Job) (core.Job, error) {
	if err := job.Validate(); err != nil {
		return core.Job{}, err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	s.jobs[job.ID] = record{job: job, seq: s.nextSeq}
	return job, nil
}

func (s *Store) UpdateJob(_ context.Context, job core.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.jobs[job.ID]
	if !ok {
		return ledger.ErrJobNotFound
	}
	// Edits keep the original insertion position.
	s.jobs[job.ID] = record{job: job, seq: existing.seq}
	return nil
}

func (s *Store) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return ledger.ErrJobNotFound
	}
	delete(s.jobs, id)
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return core.Job{}, ledger.ErrJobNotFound
	}
	return rec.job, nil
}

func (s *Store) ListJobs(_ context.Context) ([]core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]record, 0, len(s.jobs))
	for _, rec := range s.jobs {
		recs = append(recs, rec)
	}
	// Newest date first; same-date ties by insertion order, newest
	// first, matching the SQLite store's created_at ordering.
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].job.Date.Equal(recs[j].job.Date.Time) {
			return recs[i].job.Date.After(recs[j].job.Date.Time)
		}
		return recs[i].seq > recs[j].seq
	})
	out := make([]core.Job, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.job)
	}
	return out, nil
}

func (s *Store) GetSettings(_ context.Context) (core.BusinessSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return core.DefaultSettings(), nil
	}
	return *s.settings, nil
}

func (s *Store) SaveSettings(_ context.Context, settings core.BusinessSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}
