package main

import (
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
)

// promptTarget asks the operator for the wanted speed. An empty answer
// returns ok == false and leaves the controller inert.
func promptTarget() (target float64, ok bool, err error) {
	var answer string
	input := huh.NewInput().
		Title("Please type wanted speed between 0.0 and 1.0").
		Description("Leave empty to start without a target.").
		Value(&answer).
		Validate(validateAnswer)
	if err := input.Run(); err != nil {
		return 0, false, errors.Wrap(err, "could not read target speed")
	}
	return answerToTarget(answer)
}

func validateAnswer(answer string) error {
	_, _, err := answerToTarget(answer)
	return err
}

func answerToTarget(answer string) (float64, bool, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return 0, false, nil
	}
	target, err := parseTarget(answer)
	if err != nil {
		return 0, false, err
	}
	return target, true, nil
}
