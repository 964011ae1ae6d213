package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuomaz/speedcontrol/control"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func TestReadEnv_Defaults(t *testing.T) {
	s, err := readEnv(lookupFrom(map[string]string{
		"HAURI":   "ws://localhost:8123",
		"HATOKEN": "token",
	}))
	require.NoError(t, err)
	assert.Equal(t, defaultSpeedSensor, s.speedSensor)
	assert.Equal(t, defaultCommandEntity, s.commandEntity)
	assert.Nil(t, s.controller.Target)
	assert.Equal(t, control.DefaultConfig(), s.controller)
}

func TestReadEnv_Overrides(t *testing.T) {
	s, err := readEnv(lookupFrom(map[string]string{
		"HAURI":         "ws://localhost:8123",
		"HATOKEN":       "token",
		"SPEED_SENSOR":  "sensor.wheel_speed",
		"SPEED_COMMAND": "input_number.throttle",
		"NOTIFY_DEVICE": "mobile_app_phone",
		"TARGET_SPEED":  "0.4",
		"KP":            "1.2",
		"KI":            "0",
		"KD":            "0.1",
		"INTEGRAL_MIN":  "-2",
		"INTEGRAL_MAX":  "2",
		"PERIOD":        "20ms",
		"FIXED_STEP":    "true",
	}))
	require.NoError(t, err)
	assert.Equal(t, "sensor.wheel_speed", s.speedSensor)
	assert.Equal(t, "input_number.throttle", s.commandEntity)
	assert.Equal(t, "mobile_app_phone", s.notifyDevice)
	require.NotNil(t, s.controller.Target)
	assert.Equal(t, 0.4, *s.controller.Target)
	assert.Equal(t, 1.2, s.controller.Kp)
	assert.Equal(t, 0.0, s.controller.Ki)
	assert.Equal(t, 0.1, s.controller.Kd)
	assert.Equal(t, -2.0, s.controller.IntegralMin)
	assert.Equal(t, 2.0, s.controller.IntegralMax)
	assert.Equal(t, 20*time.Millisecond, s.controller.Period)
	assert.True(t, s.controller.FixedStep)
}

func TestReadEnv_Errors(t *testing.T) {
	base := map[string]string{"HAURI": "ws://ha", "HATOKEN": "token"}
	with := func(key, value string) map[string]string {
		env := map[string]string{}
		for k, v := range base {
			env[k] = v
		}
		env[key] = value
		return env
	}

	_, err := readEnv(lookupFrom(map[string]string{"HATOKEN": "token"}))
	assert.Error(t, err)
	_, err = readEnv(lookupFrom(map[string]string{"HAURI": "ws://ha"}))
	assert.Error(t, err)

	_, err = readEnv(lookupFrom(with("TARGET_SPEED", "1.5")))
	assert.ErrorIs(t, err, control.ErrTargetOutOfRange)
	_, err = readEnv(lookupFrom(with("TARGET_SPEED", "fast")))
	assert.Error(t, err)
	_, err = readEnv(lookupFrom(with("KP", "high")))
	assert.Error(t, err)
	_, err = readEnv(lookupFrom(with("INTEGRAL_MIN", "5")))
	assert.ErrorIs(t, err, control.ErrInvalidConfig)
	_, err = readEnv(lookupFrom(with("PERIOD", "soon")))
	assert.Error(t, err)
	_, err = readEnv(lookupFrom(with("FIXED_STEP", "maybe")))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SPEEDCONTROL_TEST_VALUE=42\n"), 0o600))
	t.Setenv("SPEEDCONTROL_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("SPEEDCONTROL_TEST_VALUE"))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "42", os.Getenv("SPEEDCONTROL_TEST_VALUE"))
}

func TestAnswerToTarget(t *testing.T) {
	target, ok, err := answerToTarget(" 0.75 ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.75, target)

	_, ok, err = answerToTarget("")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, validateAnswer("2"))
	assert.Error(t, validateAnswer("abc"))
	assert.NoError(t, validateAnswer("0"))
	assert.NoError(t, validateAnswer("1.0"))
}
