package control

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
)

// Scheduler runs a task at a fixed period.
type Scheduler interface {
	// Schedule registers task; it must be called before Start.
	Schedule(period time.Duration, task func(now time.Time)) error
	Start()
	// Stop halts scheduling and waits for a running task to return.
	Stop()
}

// CronScheduler runs the task on a gocron scheduler in singleton mode, so
// invocations never overlap.
type CronScheduler struct {
	s     *gocron.Scheduler
	clock clock.Clock
	job   *gocron.Job
}

// NewCronScheduler returns a gocron backed scheduler. Task timestamps come
// from clk.
func NewCronScheduler(clk clock.Clock) *CronScheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &CronScheduler{s: s, clock: clk}
}

// Schedule implements Scheduler.
func (cs *CronScheduler) Schedule(period time.Duration, task func(now time.Time)) error {
	if cs.job != nil {
		return errors.New("task already scheduled")
	}
	job, err := cs.s.Every(period).Do(func() {
		task(cs.clock.Now())
	})
	if err != nil {
		return errors.Wrap(err, "error setting up cron")
	}
	cs.job = job
	return nil
}

// Start implements Scheduler.
func (cs *CronScheduler) Start() {
	cs.s.StartAsync()
}

// Stop implements Scheduler.
func (cs *CronScheduler) Stop() {
	cs.s.Stop()
	if cs.job != nil {
		cs.s.RemoveByReference(cs.job)
		cs.job = nil
	}
}

// ClockScheduler runs the task from a clock ticker.
type ClockScheduler struct {
	clock  clock.Clock
	period time.Duration
	task   func(time.Time)

	mu      sync.Mutex
	stop    chan struct{}
	workers sync.WaitGroup
}

// NewClockScheduler returns a ticker based scheduler on clk.
func NewClockScheduler(clk clock.Clock) *ClockScheduler {
	return &ClockScheduler{clock: clk}
}

// Schedule implements Scheduler.
func (cs *ClockScheduler) Schedule(period time.Duration, task func(now time.Time)) error {
	if period <= 0 {
		return errors.Errorf("invalid period %v", period)
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.task != nil {
		return errors.New("task already scheduled")
	}
	cs.period = period
	cs.task = task
	return nil
}

// Start implements Scheduler. It is a no-op without a task or when running.
func (cs *ClockScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.task == nil || cs.stop != nil {
		return
	}
	ticker := cs.clock.Ticker(cs.period)
	stop := make(chan struct{})
	cs.stop = stop
	task := cs.task

	waitCh := make(chan struct{})
	cs.workers.Add(1)
	go func() {
		defer cs.workers.Done()
		defer ticker.Stop()
		close(waitCh)
		for {
			select {
			case <-stop:
				return
			case t := <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				task(t)
			}
		}
	}()
	<-waitCh
}

// Stop implements Scheduler.
func (cs *ClockScheduler) Stop() {
	cs.mu.Lock()
	stop := cs.stop
	cs.stop = nil
	cs.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	cs.workers.Wait()
}
