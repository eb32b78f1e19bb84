package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/docs-notifier/app/pipeline"
	"github.com/lysyi3m/docs-notifier/app/source"
)

type fakeTask struct {
	Task
	executions atomic.Int32
	failures   int32
	done       chan struct{}
}

func newFakeTask(sourceName string, failures int32) *fakeTask {
	return &fakeTask{
		Task:     NewTask(TaskTypeCheckSource, sourceName),
		failures: failures,
		done:     make(chan struct{}, 10),
	}
}

func (t *fakeTask) Execute(ctx context.Context) error {
	n := t.executions.Add(1)
	defer func() { t.done <- struct{}{} }()

	if n <= t.failures {
		return errors.New("temporary failure")
	}
	return nil
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()

	configCache := source.NewConfigCache(t.TempDir())
	require.NoError(t, configCache.Run())

	return NewScheduler(configCache, nil, pipeline.Environment{DataDir: t.TempDir()}, time.Hour, 2)
}

func waitDone(t *testing.T, task *fakeTask, timeout time.Duration) {
	t.Helper()

	select {
	case <-task.done:
	case <-time.After(timeout):
		t.Fatalf("Expected task %s to run within %v", task.GetSourceName(), timeout)
	}
}

func TestEnqueueTaskRejectsBusySource(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.EnqueueTask(newFakeTask("fia", 0)))
	assert.True(t, s.IsBusy("fia"))

	err := s.EnqueueTask(newFakeTask("fia", 0))
	assert.ErrorIs(t, err, ErrSourceBusy)

	assert.NoError(t, s.EnqueueTask(newFakeTask("releases", 0)))
	assert.False(t, s.IsBusy("other"))
}

func TestSchedulerExecutesAndReleases(t *testing.T) {
	s := newTestScheduler(t)
	s.Start()
	defer s.Stop()

	task := newFakeTask("fia", 0)
	require.NoError(t, s.EnqueueTask(task))
	waitDone(t, task, 5*time.Second)

	assert.Eventually(t, func() bool { return !s.IsBusy("fia") }, 5*time.Second, 10*time.Millisecond)
	assert.NoError(t, s.EnqueueTask(newFakeTask("fia", 0)), "source must be free again")
}

func TestSchedulerRetriesAndKeepsSlot(t *testing.T) {
	s := newTestScheduler(t)
	s.Start()
	defer s.Stop()

	task := newFakeTask("fia", 1)
	require.NoError(t, s.EnqueueTask(task))

	waitDone(t, task, 5*time.Second)
	assert.True(t, s.IsBusy("fia"), "slot is held while the retry waits")

	waitDone(t, task, 5*time.Second)
	assert.Equal(t, int32(2), task.executions.Load())
	assert.Equal(t, 1, task.GetRetryCount())
	assert.Eventually(t, func() bool { return !s.IsBusy("fia") }, 5*time.Second, 10*time.Millisecond)
}

func TestSchedulerReleasesAfterFinalFailure(t *testing.T) {
	s := newTestScheduler(t)
	s.Start()
	defer s.Stop()

	task := newFakeTask("fia", 100)
	task.MaxRetries = 0
	require.NoError(t, s.EnqueueTask(task))

	waitDone(t, task, 5*time.Second)
	assert.Eventually(t, func() bool { return !s.IsBusy("fia") }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), task.executions.Load())
}

func TestCheckSourceUnknown(t *testing.T) {
	s := newTestScheduler(t)

	assert.Error(t, s.CheckSource("missing", TriggerAPI))
	assert.Error(t, s.ResetLedger("missing"))
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{40, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := RetryDelay(tt.attempt); got != tt.expected {
			t.Errorf("RetryDelay(%d): expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}
