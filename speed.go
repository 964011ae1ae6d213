package main

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/tuomaz/speedcontrol/control"
)

// speedService feeds speed sensor updates into the shared speed state.
type speedService struct {
	ctx    context.Context
	sensor string
	speed  *control.SpeedState
	logger *zap.SugaredLogger

	haChannel chan *stateChange
	done      chan struct{}
}

func newSpeedService(ctx context.Context, logger *zap.SugaredLogger, ha *haService, sensor string, speed *control.SpeedState) *speedService {
	haChannel := make(chan *stateChange, 1)
	ha.subscribe(sensor, haChannel)

	speedService := &speedService{
		ctx:       ctx,
		sensor:    sensor,
		speed:     speed,
		logger:    logger.Named("speed"),
		haChannel: haChannel,
		done:      make(chan struct{}),
	}

	go speedService.run()

	return speedService
}

func (ss *speedService) run() {
	defer close(ss.done)
Loop:
	for {
		select {
		case <-ss.ctx.Done():
			break Loop
		case change, ok := <-ss.haChannel:
			if !ok {
				break Loop
			}
			ss.handle(change)
		}
	}
}

func (ss *speedService) handle(change *stateChange) {
	value, err := parseSpeed(change.state)
	if err != nil {
		ss.logger.Warnw("ignoring speed update", "entity", change.entity, "error", err)
		return
	}
	ss.speed.Update(value)
}

func parseSpeed(state interface{}) (float64, error) {
	if state == nil {
		return 0, errors.New("missing speed")
	}
	value, err := cast.ToFloat64E(state)
	if err != nil {
		return 0, errors.Wrapf(err, "malformed speed %q", cast.ToString(state))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.Errorf("malformed speed %v", value)
	}
	return value, nil
}
