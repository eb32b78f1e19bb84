package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/docs-notifier/app/database"
	"github.com/lysyi3m/docs-notifier/app/pipeline"
	"github.com/lysyi3m/docs-notifier/app/source"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

var ErrSourceBusy = errors.New("source already has a queued or running task")

const (
	taskTimeout   = 10 * time.Minute
	maxRetryDelay = 30 * time.Second
)

type Scheduler struct {
	configCache *source.ConfigCache
	runRepo     database.RunRepository
	env         pipeline.Environment
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	// A source holds its slot from enqueue until its task settles, retries included,
	// so its ledger never has two writers.
	mu     sync.Mutex
	active map[string]TaskType
}

func NewScheduler(configCache *source.ConfigCache, runRepo database.RunRepository, env pipeline.Environment,
	interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		configCache: configCache,
		runRepo:     runRepo,
		env:         env,
		interval:    interval,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
		active:      make(map[string]TaskType),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// EnqueueTask queues a task unless its source already has one in flight.
func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if !s.acquire(task) {
		return ErrSourceBusy
	}

	if err := s.push(task); err != nil {
		s.release(task)
		return err
	}
	return nil
}

func (s *Scheduler) CheckSource(name, trigger string) error {
	sourceConfig, err := s.configCache.GetConfig(name)
	if err != nil {
		return err
	}
	return s.EnqueueTask(NewCheckSourceTask(sourceConfig, s.env, s.runRepo, trigger))
}

func (s *Scheduler) ResetLedger(name string) error {
	if _, err := s.configCache.GetConfig(name); err != nil {
		return err
	}
	return s.EnqueueTask(NewResetLedgerTask(name, s.env.DataDir))
}

func (s *Scheduler) IsBusy(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.active[name]
	return ok
}

func (s *Scheduler) acquire(task TaskInterface) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.active[task.GetSourceName()]; busy {
		return false
	}
	s.active[task.GetSourceName()] = task.GetType()
	return true
}

func (s *Scheduler) release(task TaskInterface) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, task.GetSourceName())
}

func (s *Scheduler) push(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	sourceConfigs := s.configCache.GetEnabledConfigs()
	if len(sourceConfigs) == 0 {
		slog.Debug("No enabled source configurations found")
		return
	}

	slog.Debug("Processing source configurations", "count", len(sourceConfigs))

	for _, sourceConfig := range sourceConfigs {
		s.enqueueCheck(sourceConfig, TriggerScheduler)
	}
}

func (s *Scheduler) enqueueTasks() {
	sourceConfigs := s.configCache.GetEnabledConfigs()
	if len(sourceConfigs) == 0 {
		slog.Debug("No enabled source configurations found")
		return
	}

	now := time.Now()
	for _, sourceConfig := range sourceConfigs {
		due, err := s.isDue(sourceConfig, now)
		if err != nil {
			slog.Warn("Failed to get last run from database, skipping", "source", sourceConfig.Name, "error", err)
			continue
		}
		if !due {
			continue
		}
		s.enqueueCheck(sourceConfig, TriggerScheduler)
	}
}

func (s *Scheduler) isDue(sourceConfig *source.Config, now time.Time) (bool, error) {
	if s.runRepo == nil {
		return true, nil
	}

	lastRun, err := s.runRepo.GetLastRun(sourceConfig.Name)
	if err != nil {
		return false, err
	}
	if lastRun == nil {
		return true, nil
	}

	nextCheck := lastRun.StartedAt.Add(sourceConfig.RefreshInterval())
	if nextCheck.After(now) {
		slog.Debug("Source not due for check yet", "source", sourceConfig.Name, "next_check_at", nextCheck)
		return false, nil
	}
	return true, nil
}

func (s *Scheduler) enqueueCheck(sourceConfig *source.Config, trigger string) {
	err := s.EnqueueTask(NewCheckSourceTask(sourceConfig, s.env, s.runRepo, trigger))
	switch {
	case errors.Is(err, ErrSourceBusy):
		slog.Debug("Source check already in flight", "source", sourceConfig.Name)
	case err != nil:
		slog.Warn("Failed to enqueue CheckSourceTask", "source", sourceConfig.Name, "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.release(task)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "source", task.GetSourceName(), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		s.release(task)
		if task.GetMaxRetries() > 0 && task.GetRetryCount() >= task.GetMaxRetries() {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "source", task.GetSourceName(), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
		return
	}

	task.IncrementRetryCount()
	retryDelay := RetryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.release(task)
		case <-time.After(retryDelay):
			if retryErr := s.push(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				s.release(task)
			}
		}
	}()
}

// RetryDelay doubles from one second per attempt, capped at 30 seconds.
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		return maxRetryDelay
	}
	return min(time.Duration(1<<uint(attempt-1))*time.Second, maxRetryDelay)
}
