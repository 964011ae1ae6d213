package control

import "github.com/pkg/errors"

var (
	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid controller config")
	// ErrTargetOutOfRange is returned for a target speed outside [MinTarget, MaxTarget].
	ErrTargetOutOfRange = errors.New("target speed out of range")
	// ErrTargetAlreadySet is returned when SetTarget is called on an active controller.
	ErrTargetAlreadySet = errors.New("target speed already set")
	// ErrLoopRunning is returned when Start is called on a running loop.
	ErrLoopRunning = errors.New("control loop already running")
)
