package utils

import (
	"github.com/pkg/errors"
)

// NewOutOfRangeError is used when a configured or measured value falls outside [min, max].
func NewOutOfRangeError(name string, value, min, max float64) error {
	return errors.Errorf("%s must be within [%v, %v] but got %v", name, min, max, value)
}
