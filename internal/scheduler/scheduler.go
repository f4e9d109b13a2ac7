// Package scheduler runs config-defined maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a scheduled job as read from configuration.
type Job struct {
	Name     string `yaml:"name" json:"name"`
	Schedule string `yaml:"schedule" json:"schedule"` // cron spec or descriptor, e.g. "@every 15m"
	Action   string `yaml:"action" json:"action"`
	Limit    int    `yaml:"limit,omitempty" json:"limit,omitempty"`
}

// Action performs one run of a job and returns a short summary.
type Action func(ctx context.Context, job Job) (string, error)

type entry struct {
	job    Job
	action Action
	mu     sync.Mutex // one run at a time per job
}

// Scheduler owns a cron runner and the registered actions.
type Scheduler struct {
	actions map[string]Action
	logger  *zap.Logger
	cron    *cron.Cron

	mu   sync.RWMutex
	jobs map[string]*entry

	ctx    context.Context
	cancel context.CancelFunc
}

func New(actions map[string]Action, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		actions: actions,
		logger:  logger,
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		jobs:    make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start validates every job before scheduling any of them, then starts the cron runner.
func (s *Scheduler) Start(jobs []Job) error {
	for _, j := range jobs {
		if err := s.validate(j); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range jobs {
		if _, dup := s.jobs[j.Name]; dup {
			return fmt.Errorf("job %q defined twice", j.Name)
		}
		e := &entry{job: j, action: s.actions[j.Action]}
		if _, err := s.cron.AddFunc(j.Schedule, func() { s.execute(s.ctx, e) }); err != nil {
			return fmt.Errorf("schedule job %q: %w", j.Name, err)
		}
		s.jobs[j.Name] = e
		s.logger.Info("job scheduled", zap.String("job", j.Name), zap.String("schedule", j.Schedule))
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) validate(j Job) error {
	if j.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if _, err := cron.ParseStandard(j.Schedule); err != nil {
		return fmt.Errorf("invalid schedule for job %q: %w", j.Name, err)
	}
	if _, ok := s.actions[j.Action]; !ok {
		return fmt.Errorf("job %q: unknown action %q", j.Name, j.Action)
	}
	return nil
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunNow runs a job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	e, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("job %q not found", name)
	}
	return s.execute(ctx, e)
}

// ListJobs returns the scheduled jobs.
func (s *Scheduler) ListJobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, e.job)
	}
	return out
}

func (s *Scheduler) execute(ctx context.Context, e *entry) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	log := s.logger.With(zap.String("job", e.job.Name))
	summary, err := e.action(ctx, e.job)
	if err != nil {
		log.Error("job failed", zap.Error(err))
		return "", err
	}
	log.Info("job finished", zap.String("summary", summary))
	return summary, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.SugaredLogger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
