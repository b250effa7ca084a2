package ml

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStatistic          = errors.New("invalid statistic")
	ErrInvalidFeatureInput       = errors.New("invalid feature input")
	ErrSerializationVerification = errors.New("serialization verification failed")
	ErrNoValidPredictions        = errors.New("no valid predictions")
	ErrCanonicalCheck            = errors.New("canonical input check failed")
	ErrEmptyDataset              = errors.New("empty dataset")
)

// FeatureInputError names the prediction feature that was missing or not numeric.
type FeatureInputError struct {
	Key    string
	Reason string
}

func (e *FeatureInputError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidFeatureInput, e.Key, e.Reason)
}

func (e *FeatureInputError) Unwrap() error { return ErrInvalidFeatureInput }
