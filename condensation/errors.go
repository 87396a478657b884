package condensation

import (
	"errors"
	"fmt"
)

// ErrMissingData is matched by every input validation failure, so callers can
// skip a cycle with a single errors.Is check.
var ErrMissingData = errors.New("missing data")

// MissingDataError reports a required numeric input that was absent or non-numeric.
type MissingDataError struct {
	Field string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("missing data: %s is not available", e.Field)
}

func (e *MissingDataError) Is(target error) bool {
	return target == ErrMissingData
}

// DegenerateInputError reports a humidity value outside (0, 100], for which the
// dewpoint is undefined.
type DegenerateInputError struct {
	Field string
	Value float64
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("degenerate input: %s=%g is outside (0, 100]", e.Field, e.Value)
}

func (e *DegenerateInputError) Is(target error) bool {
	return target == ErrMissingData
}
