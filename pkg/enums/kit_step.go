package enums

import "fmt"

// KitStep is the current stage of a kit composition session.
type KitStep string

const (
	KitStepSelecting  KitStep = "selecting"
	KitStepReviewing  KitStep = "reviewing"
	KitStepConfirming KitStep = "confirming"
)

var validKitSteps = []KitStep{
	KitStepSelecting,
	KitStepReviewing,
	KitStepConfirming,
}

// String implements fmt.Stringer.
func (k KitStep) String() string {
	return string(k)
}

// IsValid reports whether the value is a known KitStep.
func (k KitStep) IsValid() bool {
	for _, candidate := range validKitSteps {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseKitStep converts raw input into a KitStep.
func ParseKitStep(value string) (KitStep, error) {
	for _, candidate := range validKitSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid kit step %q", value)
}
