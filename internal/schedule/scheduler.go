// Package schedule reruns the package build on a cron schedule and exposes
// its state over HTTP.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled build run
type Job func(ctx context.Context) error

// State is a snapshot of the scheduler
type State struct {
	Running   bool      `json:"running"`
	Runs      int       `json:"runs"`
	LastStart time.Time `json:"last_start,omitempty"`
	LastEnd   time.Time `json:"last_end,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	NextRun   time.Time `json:"next_run,omitempty"`
}

// Scheduler runs a job on a cron spec. A run that is still going when the
// next one is due causes that next run to be skipped.
type Scheduler struct {
	cron    *cron.Cron
	entryID cron.EntryID
	job     Job
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	mu    sync.Mutex
	state State
}

// New creates a scheduler. spec accepts standard five field cron
// expressions and descriptors such as @daily or @every 6h.
func New(spec string, job Job, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		job:    job,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	id, err := s.cron.AddFunc(spec, func() { s.RunNow(s.ctx) })
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.entryID = id
	return s, nil
}

// Start begins scheduling in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Time("next_run", s.cron.Entry(s.entryID).Next))
}

// Stop cancels a running job and waits for it to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow runs the job synchronously and updates the state
func (s *Scheduler) RunNow(ctx context.Context) error {
	s.mu.Lock()
	s.state.Running = true
	s.state.LastStart = time.Now()
	s.mu.Unlock()

	err := s.job(ctx)

	s.mu.Lock()
	s.state.Running = false
	s.state.Runs++
	s.state.LastEnd = time.Now()
	s.state.LastError = ""
	if err != nil {
		s.state.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled build failed", zap.Error(err))
	}
	return err
}

// State returns a snapshot including the next planned run
func (s *Scheduler) State() State {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()

	st.NextRun = s.cron.Entry(s.entryID).Next
	return st
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
