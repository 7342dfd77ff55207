package cron

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/latoulicious/lofi-bot/pkg/logging"
)

var ErrDuplicateJob = errors.New("job already scheduled")

// Scheduler runs named jobs on cron schedules. A job that is still running
// when its next tick fires is skipped for that tick.
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger

	mutex sync.RWMutex
	jobs  map[string]*job
}

type job struct {
	name    string
	spec    string
	entryID cron.EntryID
	fn      func() error

	mutex   sync.Mutex
	running bool
}

// NewScheduler creates a scheduler. Schedules accept an optional seconds
// field and descriptors such as "@every 1m".
func NewScheduler(logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NullLogger()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithParser(cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		logger: logger.With(logging.String("component", "cron")),
		jobs:   make(map[string]*job),
	}
}

// AddJob schedules fn under name.
func (s *Scheduler) AddJob(name, spec string, fn func() error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	j := &job{name: name, spec: spec, fn: fn}
	entryID, err := s.cron.AddFunc(spec, func() { s.run(j) })
	if err != nil {
		return fmt.Errorf("failed to schedule %s with %q: %w", name, spec, err)
	}
	j.entryID = entryID
	s.jobs[name] = j

	s.logger.Info("Scheduled job", logging.String("job", name), logging.String("schedule", spec))
	return nil
}

// RunNow runs the named job immediately on the calling goroutine, honouring
// the overlap guard. It reports whether the job ran.
func (s *Scheduler) RunNow(name string) bool {
	s.mutex.RLock()
	j, ok := s.jobs[name]
	s.mutex.RUnlock()
	if !ok {
		return false
	}
	return s.run(j)
}

func (s *Scheduler) run(j *job) bool {
	j.mutex.Lock()
	if j.running {
		j.mutex.Unlock()
		s.logger.Debug("Job still running, skipping", logging.String("job", j.name))
		return false
	}
	j.running = true
	j.mutex.Unlock()

	defer func() {
		j.mutex.Lock()
		j.running = false
		j.mutex.Unlock()
	}()

	start := time.Now()
	if err := j.fn(); err != nil {
		s.logger.Error("Job failed",
			logging.String("job", j.name),
			logging.Duration("duration", time.Since(start)),
			logging.Error(err))
		return true
	}

	s.logger.Debug("Job completed",
		logging.String("job", j.name),
		logging.Duration("duration", time.Since(start)))
	return true
}

// Start starts the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling new runs and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// NextRun returns the next scheduled run of the named job, or the zero
// time if it is unknown or the scheduler is not started.
func (s *Scheduler) NextRun(name string) time.Time {
	s.mutex.RLock()
	j, ok := s.jobs[name]
	s.mutex.RUnlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(j.entryID).Next
}

// IsRunning returns whether the named job is currently executing
func (s *Scheduler) IsRunning(name string) bool {
	s.mutex.RLock()
	j, ok := s.jobs[name]
	s.mutex.RUnlock()
	if !ok {
		return false
	}

	j.mutex.Lock()
	defer j.mutex.Unlock()
	return j.running
}

// Schedule returns the cron spec of the named job
func (s *Scheduler) Schedule(name string) string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if j, ok := s.jobs[name]; ok {
		return j.spec
	}
	return ""
}
