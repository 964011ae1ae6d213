package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tuomaz/speedcontrol/control"
)

type options struct {
	target      float64
	noPrompt    bool
	debug       bool
	clockTicker bool
	envFile     string
}

func signalHandler(logger *zap.SugaredLogger, cancel context.CancelFunc, sigs chan os.Signal) {
	sig := <-sigs
	logger.Infow("exiting...", "signal", sig.String())
	cancel()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "speedcontrol",
		Short:         "Closed-loop speed controller driven through Home Assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.debug)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			targetSet := cmd.Flags().Changed("target")
			if err := run(logger, opts, targetSet); err != nil {
				logger.Errorw("speedcontrol failed", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&opts.target, "target", 0, "wanted speed between 0.0 and 1.0")
	cmd.Flags().BoolVar(&opts.noPrompt, "no-prompt", false, "do not ask for a target speed")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "development logging at debug level")
	cmd.Flags().BoolVar(&opts.clockTicker, "clock-ticker", false, "drive the loop from a ticker instead of the cron scheduler")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "optional file with environment variables")
	return cmd
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not build logger")
	}
	return logger.Sugar(), nil
}

func run(logger *zap.SugaredLogger, opts *options, targetSet bool) error {
	if err := loadDotEnv(opts.envFile); err != nil {
		return err
	}
	s, err := readEnv(os.LookupEnv)
	if err != nil {
		return err
	}
	if targetSet {
		if err := control.ValidateTarget(opts.target); err != nil {
			return errors.Wrap(err, "--target")
		}
		target := opts.target
		s.controller.Target = &target
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go signalHandler(logger, cancel, sigs)

	// The HA connection outlives ctx: it is closed only after the loop has
	// stopped, so no tick talks to a closed client.
	haCtx, haCancel := context.WithCancel(context.Background())
	defer haCancel()

	haService := newHaService(haCtx, logger, s.haURI, s.haToken)
	speed := control.NewSpeedState()
	speedService := newSpeedService(haCtx, logger, haService, s.speedSensor, speed)
	actuator := newHaActuator(logger, haService, s.commandEntity)

	controller, err := control.NewController(logger, s.controller, speed, actuator)
	if err != nil {
		return err
	}

	if !controller.Active() && !opts.noPrompt {
		target, ok, err := promptTarget()
		if err != nil {
			return err
		}
		if ok {
			if err := controller.SetTarget(target); err != nil {
				return err
			}
		}
	}
	if !controller.Active() {
		logger.Warn("wanted speed is not set, controller stays inert")
	}

	var scheduler control.Scheduler
	if opts.clockTicker {
		scheduler = control.NewClockScheduler(clock.New())
	} else {
		scheduler = control.NewCronScheduler(clock.New())
	}
	loop := control.NewLoop(logger, controller, scheduler)
	if err := loop.Start(); err != nil {
		return err
	}
	haService.sendNotification("Speed control started", s.notifyDevice)

	logger.Info("start main loop")
	<-ctx.Done()
	shutdown(loop, haCancel, speedService.done)
	logger.Info("end main loop")
	return nil
}

type stopper interface {
	Stop()
}

// shutdown stops the control loop before closing the HA connection, then
// waits for the speed feed to drain.
func shutdown(loop stopper, closeHA context.CancelFunc, feedDone <-chan struct{}) {
	loop.Stop()
	closeHA()
	<-feedDone
}
