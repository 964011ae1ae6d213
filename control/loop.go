package control

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Loop drives a Controller from a Scheduler.
type Loop struct {
	controller *Controller
	scheduler  Scheduler
	logger     *zap.SugaredLogger

	mu        sync.Mutex
	running   bool
	stopped   bool
	cancelCtx context.Context
	cancel    context.CancelFunc
}

// NewLoop returns a stopped loop.
func NewLoop(logger *zap.SugaredLogger, controller *Controller, scheduler Scheduler) *Loop {
	return &Loop{
		controller: controller,
		scheduler:  scheduler,
		logger:     logger.Named("loop"),
	}
}

// Start schedules the controller at its nominal period. A loop can only be
// started once.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return ErrLoopRunning
	}
	if l.stopped {
		return errors.New("control loop was stopped")
	}
	l.cancelCtx, l.cancel = context.WithCancel(context.Background())
	period := l.controller.Period()
	if err := l.scheduler.Schedule(period, l.tick); err != nil {
		l.cancel()
		return errors.Wrap(err, "could not schedule controller")
	}
	l.logger.Infow("starting control loop", "period", period)
	l.running = true
	l.scheduler.Start()
	return nil
}

func (l *Loop) tick(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.controller.Tick(l.cancelCtx, now)
}

// Stop halts the loop. After Stop returns no tick is in progress and none
// will emit a command. Stop is idempotent.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.stopped = true
	l.cancel()
	l.mu.Unlock()

	l.scheduler.Stop()
	l.logger.Info("control loop stopped")
}

// Running reports whether the loop is scheduled.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
