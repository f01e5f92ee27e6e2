package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fftransform/config"
	"fftransform/ffmpeg"
	"fftransform/logging"
	"fftransform/transform"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
)

const queueSize = 100

// ErrNotFound is returned for unknown task ids.
var ErrNotFound = errors.New("task not found")

// Executor runs a staged job. *transform.Service implements it.
type Executor interface {
	Execute(ctx context.Context, job *transform.Job) (*ffmpeg.Outcome, error)
}

type Manager struct {
	cfg            *config.Config
	mu             sync.Mutex // guards the fields of stored tasks
	tasks          sync.Map
	taskQueue      chan *Task
	concurrencySem chan struct{}
	executor       Executor
	logger         zerolog.Logger
}

func NewManager(cfg *config.Config, executor Executor) (*Manager, error) {
	if cfg.MaxConcurrency < 0 {
		return nil, fmt.Errorf("invalid max concurrency %d", cfg.MaxConcurrency)
	}
	return &Manager{
		cfg:            cfg,
		taskQueue:      make(chan *Task, queueSize),
		concurrencySem: make(chan struct{}, cfg.MaxConcurrency),
		executor:       executor,
		logger:         logging.WithComponent("task"),
	}, nil
}

// NewID returns a fresh task id.
func NewID() string {
	return fmt.Sprintf("%s_%d", shortuuid.New(), time.Now().Unix())
}

func (m *Manager) Start(ctx context.Context) {
	m.logger.Info().Int("max_concurrency", m.cfg.MaxConcurrency).Msg("task manager started")
	go m.cleanupLoop(ctx)
	go m.workerLoop(ctx)
}

// workerLoop pulls tasks from the queue and processes them.
func (m *Manager) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("worker loop shutting down")
			return
		case t := <-m.taskQueue:
			select {
			case m.concurrencySem <- struct{}{}:
			case <-ctx.Done():
				m.logger.Info().Msg("worker loop shutting down")
				return
			}
			go func(t *Task) {
				defer func() { <-m.concurrencySem }()
				m.processTask(ctx, t)
			}(t)
		}
	}
}

// processTask runs a single task and records the result.
func (m *Manager) processTask(parentCtx context.Context, t *Task) {
	taskCtx, cancel := context.WithCancel(logging.ContextWithTaskID(parentCtx, t.ID))
	defer cancel()
	logger := m.logger.With().Str(logging.FieldTaskID, t.ID).Logger()

	m.mu.Lock()
	if t.Status == StatusCanceled {
		m.mu.Unlock()
		logger.Info().Msg("task was canceled before processing")
		return
	}
	t.Status = StatusProcessing
	t.StartedAt = time.Now()
	t.cancelFunc = cancel
	m.mu.Unlock()

	logger.Info().Msg("processing task")
	out, err := m.executor.Execute(taskCtx, t.job)

	m.mu.Lock()
	defer m.mu.Unlock()
	t.cancelFunc = nil
	t.CompletedAt = time.Now()
	if out != nil {
		t.Diagnostics = out.Diagnostics
	}

	switch {
	case err == nil:
		logger.Info().Msg("task completed")
		t.Status = StatusCompleted
		t.OutputPath = t.job.Scope.OutputPath
		return
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		logger.Info().Err(err).Msg("task canceled or timed out")
		t.Status = StatusCanceled
		t.Error = "task was canceled or timed out"
	default:
		logger.Warn().Err(err).Msg("task failed")
		t.Status = StatusFailed
		t.ErrorKind = ffmpeg.KindOf(err)
		t.Error = ffmpeg.DetailOf(err)
	}
	m.release(t)
}

// cleanupLoop periodically drops completed tasks whose output outlived
// OutputLocalLifetime. On shutdown it releases every remaining scope.
func (m *Manager) cleanupLoop(ctx context.Context) {
	interval := m.cfg.OutputLocalLifetime / 4
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("cleanup loop shutting down")
			m.releaseAll()
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

func (m *Manager) sweep(now time.Time) {
	m.tasks.Range(func(key, value any) bool {
		t := value.(*Task)
		m.mu.Lock()
		expired := t.Terminal() && now.Sub(t.CompletedAt) > m.cfg.OutputLocalLifetime
		if expired {
			m.logger.Info().Str(logging.FieldTaskID, t.ID).Msg("removing expired task output")
			m.release(t)
			t.OutputPath = ""
		}
		m.mu.Unlock()
		if expired {
			m.tasks.Delete(key)
		}
		return true
	})
}

func (m *Manager) releaseAll() {
	m.tasks.Range(func(_, value any) bool {
		t := value.(*Task)
		m.mu.Lock()
		if t.cancelFunc != nil {
			t.cancelFunc()
		}
		m.release(t)
		m.mu.Unlock()
		return true
	})
}

// release removes the task's scope. Callers hold m.mu.
func (m *Manager) release(t *Task) {
	if t.job == nil {
		return
	}
	if err := t.job.Close(); err != nil {
		m.logger.Error().Err(err).Str(logging.FieldTaskID, t.ID).Msg("failed to release task scope")
	}
}

// Submit queues a staged job. The manager takes ownership of the job's scope.
func (m *Manager) Submit(job *transform.Job) (*Task, error) {
	t := &Task{
		ID:        job.ID,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
		job:       job,
	}

	m.tasks.Store(t.ID, t)
	select {
	case m.taskQueue <- t:
	default:
		m.tasks.Delete(t.ID)
		return nil, ffmpeg.NewError(ffmpeg.KindOverloaded, "task queue is full", nil)
	}
	m.logger.Info().Str(logging.FieldTaskID, t.ID).Msg("task submitted to queue")
	return m.snapshot(t), nil
}

func (m *Manager) Get(taskID string) (*Task, bool) {
	if val, ok := m.tasks.Load(taskID); ok {
		return m.snapshot(val.(*Task)), true
	}
	return nil, false
}

func (m *Manager) List() []*Task {
	taskList := []*Task{}
	m.tasks.Range(func(_, value any) bool {
		taskList = append(taskList, m.snapshot(value.(*Task)))
		return true
	})
	return taskList
}

func (m *Manager) Cancel(taskID string) error {
	val, ok := m.tasks.Load(taskID)
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}

	t := val.(*Task)
	m.mu.Lock()
	defer m.mu.Unlock()

	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return fmt.Errorf("cannot cancel task in state: %s", t.Status)
	case StatusQueued:
		t.Status = StatusCanceled
		t.Error = "canceled by user while in queue"
		t.CompletedAt = time.Now()
		m.release(t)
		m.logger.Info().Str(logging.FieldTaskID, t.ID).Msg("task marked as canceled in queue")
	case StatusProcessing:
		if t.cancelFunc == nil {
			return fmt.Errorf("task %s is processing but has no cancellation handle", t.ID)
		}
		t.cancelFunc()
		m.logger.Info().Str(logging.FieldTaskID, t.ID).Msg("cancellation signal sent to running task")
	}
	return nil
}

// FilePath returns the output artifact of a completed task.
func (m *Manager) FilePath(taskID string) (string, error) {
	t, ok := m.Get(taskID)
	if !ok {
		return "", fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if t.Status != StatusCompleted || t.OutputPath == "" {
		return "", fmt.Errorf("task %s has no output in state: %s", taskID, t.Status)
	}
	return t.OutputPath, nil
}

func (m *Manager) snapshot(t *Task) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *t
	c.job = nil
	c.cancelFunc = nil
	return &c
}
