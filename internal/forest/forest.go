// Package forest implements a seeded random forest of CART regression trees.
//
// Trees are stored as flat node slices with exported fields so a fitted
// Forest can be gob-encoded and restored without any custom marshalling.
package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var (
	ErrNotFitted       = errors.New("forest is not fitted")
	ErrFeatureMismatch = errors.New("feature count mismatch")
	ErrEmptyTraining   = errors.New("no training samples")
)

// Params controls forest construction. Zero values select the defaults.
type Params struct {
	NEstimators     int
	Seed            int64
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 means all features
	NoBootstrap     bool
}

func (p Params) withDefaults() Params {
	if p.NEstimators <= 0 {
		p.NEstimators = 100
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	return p
}

// Forest is a fitted ensemble. The prediction is the mean of all tree outputs.
type Forest struct {
	Params    Params
	NFeatures int
	Trees     []Tree
}

// New returns an unfitted forest.
func New(p Params) *Forest {
	return &Forest{Params: p.withDefaults()}
}

// Fit trains the forest on rows of X with targets y. Each tree draws its own
// seed from a generator seeded with Params.Seed, so fits are reproducible.
func (f *Forest) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return ErrEmptyTraining
	}
	if len(X) != len(y) {
		return fmt.Errorf("%d rows but %d targets", len(X), len(y))
	}
	nf := len(X[0])
	if nf == 0 {
		return fmt.Errorf("%w: rows have no features", ErrFeatureMismatch)
	}
	for i, row := range X {
		if len(row) != nf {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrFeatureMismatch, i, len(row), nf)
		}
	}

	p := f.Params.withDefaults()
	rng := rand.New(rand.NewSource(p.Seed))
	trees := make([]Tree, p.NEstimators)
	n := len(X)

	for t := range trees {
		treeRng := rand.New(rand.NewSource(rng.Int63()))

		idx := make([]int, n)
		if p.NoBootstrap {
			for i := range idx {
				idx[i] = i
			}
		} else {
			for i := range idx {
				idx[i] = treeRng.Intn(n)
			}
		}

		b := &builder{X: X, y: y, params: p, nFeatures: nf, rng: treeRng}
		b.grow(idx, 0)
		trees[t] = Tree{Nodes: b.nodes}
	}

	f.Params = p
	f.NFeatures = nf
	f.Trees = trees
	return nil
}

// Predict returns the ensemble estimate for a single feature vector.
func (f *Forest) Predict(x []float64) (float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return 0, ErrNotFitted
	}
	if len(x) != f.NFeatures {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, len(x), f.NFeatures)
	}
	var sum float64
	for i := range f.Trees {
		v, err := f.Trees[i].predict(x)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += v
	}
	return sum / float64(len(f.Trees)), nil
}

// PredictBatch predicts every row of X.
func (f *Forest) PredictBatch(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		v, err := f.Predict(x)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Validate checks the structural integrity of a (possibly decoded) forest.
func (f *Forest) Validate() error {
	if f == nil || len(f.Trees) == 0 {
		return ErrNotFitted
	}
	if f.NFeatures <= 0 {
		return fmt.Errorf("%w: forest declares %d features", ErrFeatureMismatch, f.NFeatures)
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(f.NFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
