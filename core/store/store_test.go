package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganjinghwan/erecipehub/core/remoteerr"
)

type memPersister struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func (m *memPersister) Save(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[name] = data
	return nil
}

func (m *memPersister) Load(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[name], m.err
}

func set(v string) Commit[string] {
	return func(string) string { return v }
}

func TestRun_Success(t *testing.T) {
	t.Parallel()

	s := New("events", "old")
	err := s.Run(context.Background(), "get", func(ctx context.Context) (Commit[string], error) {
		snap := s.Snapshot()
		assert.True(t, snap.IsLoading)
		assert.Empty(t, snap.Error)
		return set("new"), nil
	})
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, "new", snap.Data)
	assert.False(t, snap.IsLoading)
	assert.Empty(t, snap.Error)
}

func TestRun_FailureKeepsData(t *testing.T) {
	t.Parallel()

	s := New("events", "kept")
	err := s.Run(context.Background(), "get", func(ctx context.Context) (Commit[string], error) {
		return nil, remoteerr.FromApplication(404, []string{"Not found"})
	})

	var re *remoteerr.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []string{"Not found"}, re.Messages)

	snap := s.Snapshot()
	assert.Equal(t, "kept", snap.Data)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, "Not found", snap.Error)
}

func TestRun_PlainErrorIsNormalized(t *testing.T) {
	t.Parallel()

	s := New("cook", 0)
	err := s.Run(context.Background(), "get", func(ctx context.Context) (Commit[int], error) {
		return nil, errors.New("boom")
	})

	var re *remoteerr.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, remoteerr.KindTransport, re.Kind)
	assert.Equal(t, "boom", s.Snapshot().Error)
}

func TestRun_PanicResetsLoading(t *testing.T) {
	t.Parallel()

	s := New("events", "kept")
	err := s.Run(context.Background(), "update", func(ctx context.Context) (Commit[string], error) {
		panic("synchronous failure")
	})

	require.Error(t, err)
	assert.True(t, remoteerr.IsKind(err, remoteerr.KindTransport))
	snap := s.Snapshot()
	assert.False(t, snap.IsLoading)
	assert.Equal(t, "kept", snap.Data)
	assert.NotEmpty(t, snap.Error)
}

func TestRun_SuccessClearsPreviousError(t *testing.T) {
	t.Parallel()

	s := New("events", "")
	_ = s.Run(context.Background(), "get", func(ctx context.Context) (Commit[string], error) {
		return nil, errors.New("first")
	})
	require.NotEmpty(t, s.Snapshot().Error)

	require.NoError(t, s.Run(context.Background(), "get", func(ctx context.Context) (Commit[string], error) {
		return set("ok"), nil
	}))
	assert.Empty(t, s.Snapshot().Error)
}

// overlap starts a slow verb, runs a fast verb to completion while the slow
// one is suspended, then releases the slow one.
func overlap(t *testing.T, s *Store[string]) {
	t.Helper()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- s.Run(context.Background(), "get", func(ctx context.Context) (Commit[string], error) {
			close(entered)
			<-release
			return set("slow"), nil
		})
	}()
	<-entered

	require.NoError(t, s.Run(context.Background(), "update", func(ctx context.Context) (Commit[string], error) {
		return set("fast"), nil
	}))
	close(release)
	require.NoError(t, <-done)
}

func TestRun_LastWriteWins(t *testing.T) {
	t.Parallel()

	s := New("events", "")
	overlap(t, s)

	snap := s.Snapshot()
	assert.Equal(t, "slow", snap.Data)
	assert.False(t, snap.IsLoading)
}

func TestRun_DiscardStale(t *testing.T) {
	t.Parallel()

	s := New("events", "", WithResumePolicy(DiscardStale))
	overlap(t, s)

	snap := s.Snapshot()
	assert.Equal(t, "fast", snap.Data)
	assert.False(t, snap.IsLoading)
}

func TestPersistAndHydrate(t *testing.T) {
	t.Parallel()

	p := &memPersister{}
	s := New("cook", map[string]int{}, WithPersister(p))
	require.NoError(t, s.Run(context.Background(), "get", func(ctx context.Context) (Commit[map[string]int], error) {
		return func(map[string]int) map[string]int { return map[string]int{"experience": 7} }, nil
	}))

	fresh := New("cook", map[string]int{}, WithPersister(p))
	require.NoError(t, fresh.Hydrate(context.Background()))
	assert.Equal(t, 7, fresh.Data()["experience"])
}

func TestHydrate_MissingEntry(t *testing.T) {
	t.Parallel()

	s := New("cook", "initial", WithPersister(&memPersister{}))
	require.NoError(t, s.Hydrate(context.Background()))
	assert.Equal(t, "initial", s.Data())
}

func TestPersistFailureDoesNotFailVerb(t *testing.T) {
	t.Parallel()

	s := New("cook", "", WithPersister(&memPersister{err: errors.New("disk full")}))
	err := s.Run(context.Background(), "get", func(ctx context.Context) (Commit[string], error) {
		return set("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", s.Data())
}

func TestParseResumePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParseResumePolicy("discard_stale")
	require.NoError(t, err)
	assert.Equal(t, DiscardStale, p)

	p, err = ParseResumePolicy("")
	require.NoError(t, err)
	assert.Equal(t, LastWriteWins, p)

	_, err = ParseResumePolicy("newest")
	assert.Error(t, err)
}
