// Package jobs runs actions on cron schedules as a lifecycle service.
package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	useractions "github.com/R3E-Network/action_layer/internal/app/actions/users"
	"github.com/R3E-Network/action_layer/internal/app/metrics"
	"github.com/R3E-Network/action_layer/internal/app/system"
	"github.com/R3E-Network/action_layer/pkg/action"
	"github.com/R3E-Network/action_layer/pkg/logger"
	"github.com/R3E-Network/action_layer/pkg/result"
)

var _ system.Service = (*Scheduler)(nil)

// Job is a named unit of scheduled work.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) result.Result
}

// Scheduler dispatches jobs with robfig/cron.
type Scheduler struct {
	log  *logger.Logger
	cron *cron.Cron

	mu      sync.Mutex
	jobs    map[string]Job
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// NewScheduler creates a scheduler. Panicking jobs are recovered and logged.
func NewScheduler(log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("jobs")
	}
	cronLog := cron.PrintfLogger(log)
	return &Scheduler{
		log:  log,
		cron: cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		jobs: make(map[string]Job),
		ctx:  context.Background(),
	}
}

// Add registers job. The schedule accepts standard five-field expressions
// and descriptors such as @hourly.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job requires a name and a run function")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Schedule, func() { s.dispatch(job) }); err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name, err)
	}
	s.jobs[job.Name] = job
	return nil
}

// RunNow runs the named job immediately and returns its result.
func (s *Scheduler) RunNow(ctx context.Context, name string) (result.Result, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return result.Result{}, fmt.Errorf("job %s not found", name)
	}
	return s.run(ctx, job), nil
}

func (s *Scheduler) Name() string { return "jobs" }

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.running = true
	s.cron.Start()
	s.log.WithField("jobs", len(s.jobs)).Info("scheduler started")
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	select {
	case <-s.cron.Stop().Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) dispatch(job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.run(ctx, job)
}

func (s *Scheduler) run(ctx context.Context, job Job) result.Result {
	res := job.Run(ctx)
	metrics.RecordJobRun(job.Name, res.IsSuccess())

	entry := s.log.WithContext(ctx).WithField("job", job.Name).WithField("status", res.StatusCode())
	if res.IsSuccess() {
		entry.WithField("data", res.Data()).Info(res.Message())
	} else {
		entry.WithField("errors", res.Errors()).Warn(res.Message())
	}
	return res
}

// ReportJob runs the users report action as the system caller.
func ReportJob(actions *useractions.Set, schedule string) Job {
	return Job{
		Name:     "users.report",
		Schedule: schedule,
		Run: func(ctx context.Context) result.Result {
			return useractions.Run(ctx, actions, actions.Report, action.NewCaller("system"), struct{}{})
		},
	}
}
