// fftransform/task/manager_test.go
package task

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fftransform/config"
	"fftransform/ffmpeg"
	"fftransform/transform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExecutor is a mock implementation of the Executor interface for testing.
type mockExecutor struct {
	execFunc func(ctx context.Context, job *transform.Job) (*ffmpeg.Outcome, error)
}

func (m *mockExecutor) Execute(ctx context.Context, job *transform.Job) (*ffmpeg.Outcome, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, job)
	}
	return &ffmpeg.Outcome{Diagnostics: "mock output", OutputExists: true, OutputSize: 1}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		MaxConcurrency:      1,
		FFTimeout:           10 * time.Second,
		OutputLocalLifetime: 1 * time.Hour,
	}
}

// newJob builds a job with a real scope directory so release can be observed.
func newJob(t *testing.T) *transform.Job {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scope")
	require.NoError(t, os.Mkdir(dir, 0o700))
	return &transform.Job{
		ID:   NewID(),
		Args: []string{"-vf", "scale=720:-1"},
		Scope: &transform.Scope{
			Dir:        dir,
			InputPath:  filepath.Join(dir, "input.mp4"),
			OutputPath: filepath.Join(dir, "output.mp4"),
		},
	}
}

func dirExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func startManager(t *testing.T, cfg *config.Config, exec Executor) *Manager {
	t.Helper()
	mgr, err := NewManager(cfg, exec)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mgr.Start(ctx)
	return mgr
}

func waitForStatus(t *testing.T, mgr *Manager, id string, want Status) *Task {
	t.Helper()
	var got *Task
	require.Eventually(t, func() bool {
		var ok bool
		got, ok = mgr.Get(id)
		return ok && got.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return got
}

func TestTaskManager_Submit(t *testing.T) {
	mgr, err := NewManager(testConfig(), &mockExecutor{})
	require.NoError(t, err)

	job := newJob(t)
	task, err := mgr.Submit(job)
	require.NoError(t, err)
	assert.Equal(t, job.ID, task.ID)
	assert.Equal(t, StatusQueued, task.Status)

	retrievedTask, found := mgr.Get(task.ID)
	assert.True(t, found)
	assert.Equal(t, task.ID, retrievedTask.ID)
	assert.Len(t, mgr.List(), 1)
}

func TestTaskManager_SubmitQueueFull(t *testing.T) {
	mgr, err := NewManager(testConfig(), &mockExecutor{})
	require.NoError(t, err)

	for i := 0; i < queueSize; i++ {
		_, err := mgr.Submit(newJob(t))
		require.NoError(t, err)
	}
	_, err = mgr.Submit(newJob(t))
	require.Error(t, err)
	assert.Equal(t, ffmpeg.KindOverloaded, ffmpeg.KindOf(err))
	assert.Len(t, mgr.List(), queueSize)
}

func TestTaskManager_ProcessTask(t *testing.T) {
	t.Run("successful processing keeps the output", func(t *testing.T) {
		mgr := startManager(t, testConfig(), &mockExecutor{
			execFunc: func(ctx context.Context, job *transform.Job) (*ffmpeg.Outcome, error) {
				time.Sleep(10 * time.Millisecond)
				return &ffmpeg.Outcome{Diagnostics: "success log", OutputExists: true, OutputSize: 10}, nil
			},
		})

		job := newJob(t)
		task, err := mgr.Submit(job)
		require.NoError(t, err)

		processed := waitForStatus(t, mgr, task.ID, StatusCompleted)
		assert.Equal(t, "success log", processed.Diagnostics)
		assert.Equal(t, job.Scope.OutputPath, processed.OutputPath)
		assert.True(t, dirExists(job.Scope.Dir))

		path, err := mgr.FilePath(task.ID)
		require.NoError(t, err)
		assert.Equal(t, job.Scope.OutputPath, path)
	})

	t.Run("failed processing releases the scope", func(t *testing.T) {
		mgr := startManager(t, testConfig(), &mockExecutor{
			execFunc: func(ctx context.Context, job *transform.Job) (*ffmpeg.Outcome, error) {
				out := &ffmpeg.Outcome{ExitCode: 1, Diagnostics: "error log"}
				return out, out.Err()
			},
		})

		job := newJob(t)
		task, err := mgr.Submit(job)
		require.NoError(t, err)

		processed := waitForStatus(t, mgr, task.ID, StatusFailed)
		assert.Equal(t, ffmpeg.KindProcessFailure, processed.ErrorKind)
		assert.Equal(t, "error log", processed.Error)
		assert.False(t, dirExists(job.Scope.Dir))

		_, err = mgr.FilePath(task.ID)
		assert.Error(t, err)
	})

	t.Run("internal errors are not exposed", func(t *testing.T) {
		mgr := startManager(t, testConfig(), &mockExecutor{
			execFunc: func(ctx context.Context, job *transform.Job) (*ffmpeg.Outcome, error) {
				return nil, errors.New("open /secret/path: permission denied")
			},
		})

		task, err := mgr.Submit(newJob(t))
		require.NoError(t, err)

		processed := waitForStatus(t, mgr, task.ID, StatusFailed)
		assert.Equal(t, ffmpeg.KindInternal, processed.ErrorKind)
		assert.Equal(t, "internal server error", processed.Error)
	})
}

func TestTaskManager_Cancel(t *testing.T) {
	t.Run("cancel queued task", func(t *testing.T) {
		cfg := testConfig()
		// With no slots the worker loop never picks the task up.
		cfg.MaxConcurrency = 0
		mgr := startManager(t, cfg, &mockExecutor{})

		job := newJob(t)
		task, err := mgr.Submit(job)
		require.NoError(t, err)
		require.NoError(t, mgr.Cancel(task.ID))

		canceledTask, found := mgr.Get(task.ID)
		require.True(t, found)
		assert.Equal(t, StatusCanceled, canceledTask.Status)
		assert.False(t, dirExists(job.Scope.Dir))
	})

	t.Run("cancel processing task", func(t *testing.T) {
		processingStarted := make(chan struct{})
		mgr := startManager(t, testConfig(), &mockExecutor{
			execFunc: func(ctx context.Context, job *transform.Job) (*ffmpeg.Outcome, error) {
				close(processingStarted)
				<-ctx.Done()
				return nil, ctx.Err()
			},
		})

		job := newJob(t)
		task, err := mgr.Submit(job)
		require.NoError(t, err)
		<-processingStarted

		require.NoError(t, mgr.Cancel(task.ID))

		waitForStatus(t, mgr, task.ID, StatusCanceled)
		assert.False(t, dirExists(job.Scope.Dir))
	})

	t.Run("cannot cancel completed task", func(t *testing.T) {
		mgr := startManager(t, testConfig(), &mockExecutor{})

		task, err := mgr.Submit(newJob(t))
		require.NoError(t, err)
		waitForStatus(t, mgr, task.ID, StatusCompleted)

		err = mgr.Cancel(task.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot cancel task in state: completed")
	})

	t.Run("unknown task", func(t *testing.T) {
		mgr, err := NewManager(testConfig(), &mockExecutor{})
		require.NoError(t, err)
		assert.ErrorIs(t, mgr.Cancel("nope"), ErrNotFound)
	})
}

func TestTaskManager_Sweep(t *testing.T) {
	mgr := startManager(t, testConfig(), &mockExecutor{})

	job := newJob(t)
	task, err := mgr.Submit(job)
	require.NoError(t, err)
	waitForStatus(t, mgr, task.ID, StatusCompleted)

	mgr.sweep(time.Now())
	_, found := mgr.Get(task.ID)
	assert.True(t, found, "fresh output must survive a sweep")

	mgr.sweep(time.Now().Add(2 * time.Hour))
	_, found = mgr.Get(task.ID)
	assert.False(t, found)
	assert.False(t, dirExists(job.Scope.Dir))
}

func TestTaskManager_ShutdownReleasesScopes(t *testing.T) {
	mgr, err := NewManager(testConfig(), &mockExecutor{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	job := newJob(t)
	task, err := mgr.Submit(job)
	require.NoError(t, err)
	waitForStatus(t, mgr, task.ID, StatusCompleted)

	cancel()
	require.Eventually(t, func() bool { return !dirExists(job.Scope.Dir) }, 2*time.Second, 10*time.Millisecond)
}
