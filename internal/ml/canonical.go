package ml

import (
	"fmt"
	"math"

	"hoopcast/internal/common"
)

// CheckCanonical runs m on the canonical synthetic input and requires a finite result.
// A panic inside the model is reported as a failed check.
func CheckCanonical(m Regressor) (pred float64, err error) {
	if m == nil {
		return 0, fmt.Errorf("%w: nil model", ErrCanonicalCheck)
	}
	defer func() {
		if r := recover(); r != nil {
			pred, err = 0, fmt.Errorf("%w: model panicked: %v", ErrCanonicalCheck, r)
		}
	}()

	pred, err = m.Predict(common.CanonicalInput())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCanonicalCheck, err)
	}
	if math.IsNaN(pred) || math.IsInf(pred, 0) {
		return 0, fmt.Errorf("%w: non-finite output %v", ErrCanonicalCheck, pred)
	}
	return pred, nil
}
