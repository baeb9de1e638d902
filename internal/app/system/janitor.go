package system

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/storefront/pkg/logger"
)

// Job is a named periodic task.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context)
}

// Janitor runs housekeeping jobs on cron schedules.
type Janitor struct {
	log  *logger.Logger
	jobs []Job

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

func NewJanitor(log *logger.Logger, jobs ...Job) *Janitor {
	if log == nil {
		log = logger.NewDefault("janitor")
	}
	return &Janitor{log: log, jobs: jobs}
}

func (j *Janitor) Name() string { return "janitor" }

// Start validates every schedule and begins running jobs.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{j.log})))
	for _, job := range j.jobs {
		job := job
		if _, err := c.AddFunc(job.Schedule, func() {
			j.log.WithField("job", job.Name).Debug("running job")
			job.Run(runCtx)
		}); err != nil {
			cancel()
			return fmt.Errorf("schedule %s: %w", job.Name, err)
		}
	}
	c.Start()
	j.cron = c
	j.cancel = cancel
	j.log.WithField("jobs", len(j.jobs)).Info("janitor started")
	return nil
}

// Stop waits for running jobs to finish or ctx to expire.
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	c, cancel := j.cron, j.cancel
	j.cron, j.cancel = nil, nil
	j.mu.Unlock()
	if c == nil {
		return nil
	}

	done := c.Stop()
	defer cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct{ log *logger.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kv(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(kv(keysAndValues)).Error(msg)
}

func kv(pairs []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out[fmt.Sprint(pairs[i])] = pairs[i+1]
	}
	return out
}
