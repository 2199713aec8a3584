package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskkeeper/taskkeeper/internal/logging"
)

type fakeStore struct {
	calls atomic.Int64
	err   error
}

func (f *fakeStore) SweepExpired(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	return 2, nil
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRun_SweepsImmediatelyAndOnTicks(t *testing.T) {
	store := &fakeStore{}
	s := New(store, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.calls.Load() >= 3 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}
}

func TestRun_KeepsGoingAfterErrors(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	s := New(store, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	s.Run(ctx)

	assert.GreaterOrEqual(t, store.calls.Load(), int64(2))
}
