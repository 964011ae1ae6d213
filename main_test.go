package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type orderedStopper struct {
	mu     sync.Mutex
	steps  []string
	haCtx  context.Context
	haOpen bool
}

func (o *orderedStopper) record(step string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.steps = append(o.steps, step)
}

func (o *orderedStopper) Stop() {
	o.haOpen = o.haCtx.Err() == nil
	o.record("loop stopped")
}

func TestShutdown_StopsLoopBeforeClosingHA(t *testing.T) {
	haCtx, haCancel := context.WithCancel(context.Background())
	loop := &orderedStopper{haCtx: haCtx}

	ss := newSpeedService(haCtx, zaptest.NewLogger(t).Sugar(), newTestHaService(t), "sensor.speed", nil)

	finished := make(chan struct{})
	go func() {
		shutdown(loop, func() {
			loop.record("ha closed")
			haCancel()
		}, ss.done)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not return")
	}
	require.Equal(t, []string{"loop stopped", "ha closed"}, loop.steps)
	assert.True(t, loop.haOpen, "HA connection closed while the loop was still running")
	assert.Error(t, haCtx.Err())
}
