// Package scheduler runs the sync job on a cron schedule and on demand,
// never more than one run at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pfrederiksen/troopcal/internal/logger"
)

// ErrBusy is returned when a run is requested while one is in progress
var ErrBusy = errors.New("a sync is already running")

// Job is one unit of scheduled work
type Job func(ctx context.Context) error

// Scheduler triggers a Job from a cron expression or manually
type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	job     Job
	running sync.Mutex

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New parses spec (standard 5-field cron or a descriptor such as
// "@every 6h") and prepares a scheduler for job
func New(spec string, job Job) (*Scheduler, error) {
	l := cronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		job: job,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	id, err := s.cron.AddFunc(spec, func() {
		if err := s.RunNow(s.context()); err != nil && !errors.Is(err, ErrBusy) {
			logger.Error("Scheduled sync failed", logger.Fields{"schedule": spec}, err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Start begins firing on schedule. Runs receive a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	logger.Info("Scheduler started", logger.Fields{"next": s.Next().Format(time.RFC3339)})
}

// Stop halts the schedule, cancels a run in progress and waits for it
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

// Next is the time of the next scheduled run, zero before Start
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// RunNow runs the job synchronously unless a run is already in progress
func (s *Scheduler) RunNow(ctx context.Context) error {
	if !s.running.TryLock() {
		return ErrBusy
	}
	defer s.running.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()
	return s.job(ctx)
}

// Trigger starts a run in the background. It returns ErrBusy when a run is
// already in progress.
func (s *Scheduler) Trigger() error {
	if !s.running.TryLock() {
		return ErrBusy
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Unlock()

		logger.Info("Manual sync triggered", nil)
		if err := s.job(s.context()); err != nil {
			logger.Error("Manual sync failed", nil, err)
		}
	}()
	return nil
}

// cronLogger routes cron's own messages to the application logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, kvFields(keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, kvFields(keysAndValues), err)
}

func kvFields(kv []interface{}) logger.Fields {
	fields := make(logger.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
