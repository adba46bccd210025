package sessions

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	opened, closed atomic.Int32
}

func (o *countingObserver) SessionOpened() { o.opened.Add(1) }
func (o *countingObserver) SessionClosed() { o.closed.Add(1) }

func TestOpenLookupClose(t *testing.T) {
	obs := &countingObserver{}
	reg := NewRegistry(WithObserver(obs))

	s, err := reg.Open(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, s.SessionID())
	assert.Equal(t, StateOpen, s.State())
	assert.False(t, s.CreatedAt().IsZero())

	got, err := reg.Lookup(s.SessionID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	assert.True(t, reg.Close(s.SessionID()))
	assert.False(t, reg.Close(s.SessionID()))
	assert.Equal(t, StateClosed, s.State())

	_, err = reg.Lookup(s.SessionID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.EqualValues(t, 1, obs.opened.Load())
	assert.EqualValues(t, 1, obs.closed.Load())
}

func TestCloseCancelsSessionContext(t *testing.T) {
	reg := NewRegistry()
	s, err := reg.Open(context.Background())
	require.NoError(t, err)

	reg.Close(s.SessionID())
	select {
	case <-s.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("session context not canceled")
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestIdentifiersNeverReused(t *testing.T) {
	// The generator repeats itself; the registry must skip ids it already issued.
	seq := []string{"a", "a", "b", "a", "b", "c"}
	var i int
	reg := NewRegistry(WithIDGenerator(func() string {
		id := seq[i%len(seq)]
		i++
		return id
	}))

	first, err := reg.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", first.SessionID())
	reg.Close("a")

	second, err := reg.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", second.SessionID())

	third, err := reg.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c", third.SessionID())
}

func TestWriteAfterCloseFails(t *testing.T) {
	reg := NewRegistry(WithQueueSize(1))
	s, err := reg.Open(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.WriteMessage(context.Background(), []byte(`{}`)))
	assert.Equal(t, []byte(`{}`), <-s.Messages())

	reg.Close(s.SessionID())
	assert.ErrorIs(t, s.WriteMessage(context.Background(), []byte(`{}`)), ErrSessionClosed)
}

func TestBlockedWriteReleasedByClose(t *testing.T) {
	reg := NewRegistry(WithQueueSize(1))
	s, err := reg.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.WriteMessage(context.Background(), []byte("1")))

	errCh := make(chan error, 1)
	go func() { errCh <- s.WriteMessage(context.Background(), []byte("2")) }()

	time.Sleep(20 * time.Millisecond)
	reg.Close(s.SessionID())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked writer was not released")
	}
}

func TestConcurrentOpensAreDistinct(t *testing.T) {
	const n = 200
	reg := NewRegistry()

	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := reg.Open(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			ids[i] = s.SessionID()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for _, id := range ids {
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
	assert.Equal(t, n, reg.Len())
}

func TestConcurrentOpenCloseLookup(t *testing.T) {
	const workers = 32
	const rounds = 50
	reg := NewRegistry()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				s, err := reg.Open(context.Background())
				if !assert.NoError(t, err) {
					return
				}
				got, err := reg.Lookup(s.SessionID())
				if assert.NoError(t, err, "open session vanished") {
					assert.Same(t, s, got)
				}
				assert.True(t, reg.Close(s.SessionID()))
				_, err = reg.Lookup(s.SessionID())
				assert.True(t, errors.Is(err, ErrSessionNotFound), "closed session survived")
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, reg.Len())
}

func TestCloseAll(t *testing.T) {
	obs := &countingObserver{}
	reg := NewRegistry(WithObserver(obs))
	var open []*Session
	for i := 0; i < 5; i++ {
		s, err := reg.Open(context.Background())
		require.NoError(t, err, strconv.Itoa(i))
		open = append(open, s)
	}

	reg.CloseAll()
	assert.Zero(t, reg.Len())
	for _, s := range open {
		assert.Equal(t, StateClosed, s.State())
	}
	assert.EqualValues(t, 5, obs.closed.Load())
}

func TestOpenWithCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRegistry().Open(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
