package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tuomaz/speedcontrol/control"
)

func TestParseSpeed(t *testing.T) {
	v, err := parseSpeed("0.42")
	require.NoError(t, err)
	assert.Equal(t, 0.42, v)

	v, err = parseSpeed(1.5)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	for _, bad := range []interface{}{"unavailable", "", nil, "NaN", "+Inf"} {
		_, err := parseSpeed(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestSpeedService_UpdatesState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := zaptest.NewLogger(t).Sugar()
	ha := &haService{context: ctx, logger: logger}
	speed := control.NewSpeedState()

	ss := newSpeedService(ctx, logger, ha, "sensor.speed", speed)

	ha.dispatch(&stateChange{entity: "sensor.speed", state: "0.3"})
	assert.Eventually(t, func() bool { return speed.Read() == 0.3 }, time.Second, time.Millisecond)

	ha.dispatch(&stateChange{entity: "sensor.speed", state: "unknown"})
	ha.dispatch(&stateChange{entity: "sensor.other", state: "0.9"})
	ha.dispatch(&stateChange{entity: "sensor.speed", state: "0.6"})
	assert.Eventually(t, func() bool { return speed.Read() == 0.6 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-ss.done:
	case <-time.After(time.Second):
		t.Fatal("speed service did not stop")
	}
}
