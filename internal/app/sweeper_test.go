package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedExpirer struct {
	mu      sync.Mutex
	results []int
	err     error
	calls   int
}

func (e *scriptedExpirer) ExpireStale(context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return 0, e.err
	}
	if len(e.results) == 0 {
		return 0, nil
	}
	n := e.results[0]
	e.results = e.results[1:]
	return n, nil
}

func (e *scriptedExpirer) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func TestSweeper_DrainsBacklog(t *testing.T) {
	e := &scriptedExpirer{results: []int{100, 100, 7}}
	s := NewSweeper(e, time.Hour)

	s.sweep(context.Background())
	assert.Equal(t, 4, e.callCount())
	assert.False(t, s.LastRun().IsZero())
}

func TestSweeper_ErrorStopsPass(t *testing.T) {
	e := &scriptedExpirer{err: errors.New("db down")}
	s := NewSweeper(e, time.Hour)

	s.sweep(context.Background())
	assert.Equal(t, 1, e.callCount())
	assert.True(t, s.LastRun().IsZero())
}

func TestSweeper_RunStopsWithContext(t *testing.T) {
	e := &scriptedExpirer{}
	s := NewSweeper(e, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return e.callCount() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestNewSweeper_DefaultInterval(t *testing.T) {
	assert.Equal(t, time.Minute, NewSweeper(&scriptedExpirer{}, 0).Interval())
}
