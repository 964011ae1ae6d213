package control

import "go.uber.org/atomic"

// SpeedState holds the most recently observed speed. Writers and readers never
// block each other; the last write wins.
type SpeedState struct {
	current *atomic.Float64
}

// NewSpeedState returns a SpeedState reading 0.
func NewSpeedState() *SpeedState {
	return &SpeedState{current: atomic.NewFloat64(0)}
}

// Update overwrites the stored speed.
func (s *SpeedState) Update(value float64) {
	s.current.Store(value)
}

// Read returns the latest stored speed.
func (s *SpeedState) Read() float64 {
	return s.current.Load()
}
