package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/tuomaz/speedcontrol/control"
)

const (
	defaultSpeedSensor   = "sensor.speed"
	defaultCommandEntity = "input_number.speed_command"
)

type settings struct {
	haURI         string
	haToken       string
	speedSensor   string
	commandEntity string
	notifyDevice  string
	controller    control.Config
}

// loadDotEnv reads an optional .env file into the process environment.
// Variables that are already set win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return errors.Wrapf(godotenv.Load(path), "could not load %s", path)
}

func readEnv(lookup func(string) (string, bool)) (*settings, error) {
	s := &settings{
		speedSensor:   defaultSpeedSensor,
		commandEntity: defaultCommandEntity,
		controller:    control.DefaultConfig(),
	}

	value, ok := lookup("HAURI")
	if !ok || value == "" {
		return nil, errors.New("no Home Assistant URI found")
	}
	s.haURI = value

	value, ok = lookup("HATOKEN")
	if !ok || value == "" {
		return nil, errors.New("no Home Assistant auth token found")
	}
	s.haToken = value

	if value, ok := lookup("SPEED_SENSOR"); ok {
		s.speedSensor = value
	}
	if value, ok := lookup("SPEED_COMMAND"); ok {
		s.commandEntity = value
	}
	if value, ok := lookup("NOTIFY_DEVICE"); ok {
		s.notifyDevice = value
	}

	if value, ok := lookup("TARGET_SPEED"); ok && value != "" {
		target, err := parseTarget(value)
		if err != nil {
			return nil, errors.Wrap(err, "TARGET_SPEED")
		}
		s.controller.Target = &target
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"KP", &s.controller.Kp},
		{"KI", &s.controller.Ki},
		{"KD", &s.controller.Kd},
		{"INTEGRAL_MIN", &s.controller.IntegralMin},
		{"INTEGRAL_MAX", &s.controller.IntegralMax},
	}
	for _, f := range floats {
		value, ok := lookup(f.name)
		if !ok {
			continue
		}
		v, err := cast.ToFloat64E(value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", f.name)
		}
		*f.dst = v
	}

	if value, ok := lookup("PERIOD"); ok {
		period, err := cast.ToDurationE(value)
		if err != nil {
			return nil, errors.Wrap(err, "invalid PERIOD")
		}
		s.controller.Period = period
	}

	if value, ok := lookup("FIXED_STEP"); ok {
		fixed, err := cast.ToBoolE(value)
		if err != nil {
			return nil, errors.Wrap(err, "invalid FIXED_STEP")
		}
		s.controller.FixedStep = fixed
	}

	if err := s.controller.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseTarget(value string) (float64, error) {
	target, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid target speed %q", value)
	}
	if err := control.ValidateTarget(target); err != nil {
		return 0, err
	}
	return target, nil
}
