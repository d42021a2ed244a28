// Package logstore keeps a bounded, queryable history of job log entries in memory.
package logstore

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"jobrelay/internal/domain/job"
	"jobrelay/internal/platform/clock"
)

// MaxEntriesPerJob bounds each job's log; the oldest entries are evicted first.
const MaxEntriesPerJob = 100

// Sink receives a copy of every appended entry.
type Sink interface {
	Archive(ctx context.Context, e job.Entry) error
}

// Option configures Store.
type Option func(*Store)

// WithClock sets the clock used to timestamp entries.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger used for sink failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSink mirrors entries to sink through a queue of the given size.
func WithSink(sink Sink, queue int) Option {
	return func(s *Store) {
		if sink == nil {
			return
		}
		if queue <= 0 {
			queue = 256
		}
		s.sink = sink
		s.queue = make(chan job.Entry, queue)
	}
}

// WithSinkTimeout bounds a single sink write.
func WithSinkTimeout(d time.Duration) Option {
	return func(s *Store) { s.sinkTimeout = d }
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string][]job.Entry
	seq     uint64
	clock   clock.Clock
	log     *slog.Logger

	sink        Sink
	sinkTimeout time.Duration
	queue       chan job.Entry
	closeOnce   sync.Once
	closed      bool
	done        chan struct{}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries:     make(map[string][]job.Entry),
		clock:       clock.New(),
		log:         slog.Default(),
		sinkTimeout: 5 * time.Second,
		done:        make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "logstore")
	if s.sink != nil {
		go s.drain()
	} else {
		close(s.done)
	}
	return s
}

// Append records payload under jobID and returns the stored entry.
func (s *Store) Append(jobID string, p job.Payload) job.Entry {
	s.mu.Lock()
	s.seq++
	e := job.Entry{Seq: s.seq, Timestamp: s.clock.Now(), JobID: jobID, Payload: p}
	list := append(s.entries[jobID], e)
	if over := len(list) - MaxEntriesPerJob; over > 0 {
		list = append(list[:0:0], list[over:]...)
	}
	s.entries[jobID] = list
	if s.queue != nil && !s.closed {
		select {
		case s.queue <- e:
		default:
			s.log.Warn("archive queue full, entry dropped", "job_id", jobID, "seq", e.Seq)
		}
	}
	s.mu.Unlock()
	return e
}

// GetByJob returns the entries of one job in insertion order.
func (s *Store) GetByJob(jobID string) []job.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.entries[jobID]
	out := make([]job.Entry, len(list))
	copy(out, list)
	return out
}

// GetAll returns every entry, newest first. Entries with equal timestamps
// keep the order they were appended in.
func (s *Store) GetAll() []job.Entry {
	s.mu.Lock()
	out := make([]job.Entry, 0, s.countLocked())
	for _, list := range s.entries {
		out = append(out, list...)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// Len reports how many entries are held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked()
}

func (s *Store) countLocked() int {
	n := 0
	for _, list := range s.entries {
		n += len(list)
	}
	return n
}

// Close stops accepting entries for the sink and waits until queued ones
// are written or ctx is done.
func (s *Store) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		if s.queue != nil {
			close(s.queue)
		}
		s.mu.Unlock()
	})
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) drain() {
	defer close(s.done)
	for e := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.sinkTimeout)
		if err := s.sink.Archive(ctx, e); err != nil {
			s.log.Error("archive entry", "job_id", e.JobID, "event", e.Payload.Event, "error", err)
		}
		cancel()
	}
}
