// Package ml trains, persists and serves the per-statistic regression models.
// Every (athlete, statistic) pair owns one forest model on disk; the Store
// commits models with a write-verify-rename protocol and reports unusable
// artifacts as absent rather than failing, so predictions degrade per statistic.
package ml

// Regressor is a fitted model that maps one feature vector to an estimate.
type Regressor interface {
	Predict(features []float64) (float64, error)
}

// ModelSource loads the committed model for an (athlete, statistic) pair.
// Absence is reported through LoadResult, never as an error.
type ModelSource interface {
	Load(athlete, stat string) LoadResult
}
