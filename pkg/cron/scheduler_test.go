package cron

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_AddJob(t *testing.T) {
	s := NewScheduler(nil)

	require.NoError(t, s.AddJob("xp", "@every 1m", func() error { return nil }))
	assert.Equal(t, "@every 1m", s.Schedule("xp"))

	err := s.AddJob("xp", "@every 1m", func() error { return nil })
	assert.ErrorIs(t, err, ErrDuplicateJob)

	err = s.AddJob("bad", "not a schedule", func() error { return nil })
	assert.Error(t, err)
	assert.Empty(t, s.Schedule("bad"))
}

func TestScheduler_AcceptsSecondsField(t *testing.T) {
	s := NewScheduler(nil)
	assert.NoError(t, s.AddJob("six", "0 0 */6 * * *", func() error { return nil }))
	assert.NoError(t, s.AddJob("five", "*/5 * * * *", func() error { return nil }))
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	s := NewScheduler(nil)

	var runs atomic.Int32
	require.NoError(t, s.AddJob("tick", "@every 1s", func() error {
		runs.Add(1)
		return nil
	}))

	assert.True(t, s.NextRun("tick").IsZero(), "no next run before start")

	s.Start()
	defer s.Stop()

	assert.False(t, s.NextRun("tick").IsZero())
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_RunNowSkipsOverlap(t *testing.T) {
	s := NewScheduler(nil)

	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	require.NoError(t, s.AddJob("slow", "@every 1h", func() error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	}))

	done := make(chan bool)
	go func() { done <- s.RunNow("slow") }()

	<-started
	assert.True(t, s.IsRunning("slow"))
	assert.False(t, s.RunNow("slow"), "overlapping run is skipped")

	close(release)
	assert.True(t, <-done)
	assert.False(t, s.IsRunning("slow"))
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_RunNowUnknownAndFailing(t *testing.T) {
	s := NewScheduler(nil)
	assert.False(t, s.RunNow("missing"))
	assert.False(t, s.IsRunning("missing"))
	assert.True(t, s.NextRun("missing").IsZero())

	require.NoError(t, s.AddJob("fail", "@every 1h", func() error { return errors.New("boom") }))
	assert.True(t, s.RunNow("fail"))
	assert.False(t, s.IsRunning("fail"))
}
