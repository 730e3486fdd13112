// Package store holds the snapshot container behind every resource store.
//
// A Store owns one Snapshot and runs verbs against it. Each verb marks the
// snapshot as loading, performs at most one remote call, and settles in
// exactly one of success or error. IsLoading is reset on every path.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ganjinghwan/erecipehub/core/remoteerr"
)

// Snapshot is the observable state of a store. Error is empty when unset.
type Snapshot[T any] struct {
	Data      T
	IsLoading bool
	Error     string
}

// ResumePolicy decides what happens when verbs on one store overlap.
type ResumePolicy int

const (
	// LastWriteWins lets whichever verb settles last define the snapshot.
	LastWriteWins ResumePolicy = iota
	// DiscardStale drops the outcome of a verb that was overtaken by a newer one.
	DiscardStale
)

// ParseResumePolicy maps a config value to a policy.
func ParseResumePolicy(s string) (ResumePolicy, error) {
	switch s {
	case "", "last_write_wins":
		return LastWriteWins, nil
	case "discard_stale":
		return DiscardStale, nil
	default:
		return LastWriteWins, fmt.Errorf("unknown resume policy %q", s)
	}
}

// Persister saves committed data between runs.
type Persister interface {
	Save(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
}

// Commit transforms the previous data into the committed data.
type Commit[T any] func(prev T) T

// Call performs the remote work of a verb and returns how to commit it.
type Call[T any] func(ctx context.Context) (Commit[T], error)

type Store[T any] struct {
	name    string
	policy  ResumePolicy
	persist Persister
	log     logrus.FieldLogger

	mu       sync.RWMutex
	snap     Snapshot[T]
	gen      uint64
	inflight int
}

type Option func(*options)

type options struct {
	policy  ResumePolicy
	persist Persister
	log     logrus.FieldLogger
}

func WithResumePolicy(p ResumePolicy) Option {
	return func(o *options) { o.policy = p }
}

func WithPersister(p Persister) Option {
	return func(o *options) { o.persist = p }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// New creates a store named name holding initial data.
func New[T any](name string, initial T, opts ...Option) *Store[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = l
	}
	return &Store[T]{
		name:    name,
		policy:  o.policy,
		persist: o.persist,
		log:     o.log.WithField("store", name),
		snap:    Snapshot[T]{Data: initial},
	}
}

// Snapshot returns a copy of the current snapshot. Reference types inside
// Data are shared and must be treated as read-only.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Data returns the committed data.
func (s *Store[T]) Data() T {
	return s.Snapshot().Data
}

// Run executes one verb. The returned error is nil or a *remoteerr.Error.
func (s *Store[T]) Run(ctx context.Context, verb string, call Call[T]) (err error) {
	gen := s.begin()
	log := s.log.WithField("verb", verb)
	log.Debug("verb started")

	var commit Commit[T]
	defer func() {
		if r := recover(); r != nil {
			err = remoteerr.FromTransport(fmt.Errorf("%s %s: panic: %v", s.name, verb, r))
			commit = nil
		}
		if err != nil {
			err = remoteerr.Normalize(err)
		}
		data, committed := s.settle(gen, commit, err)
		if err != nil {
			log.WithField("messages", remoteerr.Messages(err)).Warn("verb failed")
			return
		}
		log.Debug("verb settled")
		if committed {
			s.save(ctx, data)
		}
	}()

	commit, err = call(ctx)
	return err
}

// Hydrate restores previously persisted data. A missing entry is not an error.
func (s *Store[T]) Hydrate(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	raw, err := s.persist.Load(ctx, s.name)
	if err != nil {
		return fmt.Errorf("load %s snapshot: %w", s.name, err)
	}
	if len(raw) == 0 {
		return nil
	}
	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decode %s snapshot: %w", s.name, err)
	}
	s.mu.Lock()
	s.snap.Data = data
	s.mu.Unlock()
	return nil
}

func (s *Store[T]) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.inflight++
	s.snap.IsLoading = true
	s.snap.Error = ""
	return s.gen
}

func (s *Store[T]) settle(gen uint64, commit Commit[T], err error) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--

	stale := s.policy == DiscardStale && gen != s.gen
	if s.policy == DiscardStale {
		s.snap.IsLoading = s.inflight > 0
	} else {
		s.snap.IsLoading = false
	}
	if stale {
		s.log.WithField("generation", gen).Debug("discarding stale verb outcome")
		var zero T
		return zero, false
	}

	if err != nil {
		s.snap.Error = err.Error()
		var zero T
		return zero, false
	}
	s.snap.Error = ""
	if commit == nil {
		return s.snap.Data, false
	}
	s.snap.Data = commit(s.snap.Data)
	return s.snap.Data, true
}

func (s *Store[T]) save(ctx context.Context, data T) {
	if s.persist == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		s.log.WithError(err).Warn("encode snapshot")
		return
	}
	if err := s.persist.Save(ctx, s.name, raw); err != nil {
		s.log.WithError(err).Warn("persist snapshot")
	}
}
