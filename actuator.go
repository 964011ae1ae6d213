package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/tuomaz/speedcontrol/control"
)

type commandSink interface {
	publishCommand(ctx context.Context, entity string, value float64) error
}

// haActuator publishes controller output to a Home Assistant entity.
type haActuator struct {
	sink   commandSink
	entity string
	logger *zap.SugaredLogger
}

func newHaActuator(logger *zap.SugaredLogger, sink commandSink, entity string) *haActuator {
	return &haActuator{sink: sink, entity: entity, logger: logger.Named("actuator")}
}

func (a *haActuator) Publish(ctx context.Context, cmd control.ControlCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// input_number.set_value carries only the value; the frame id stays in the log.
	a.logger.Debugw("publishing command", "entity", a.entity, "value", cmd.Value, "frame_id", cmd.FrameID)
	return a.sink.publishCommand(ctx, a.entity, cmd.Value)
}
