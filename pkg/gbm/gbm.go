// Package gbm implements gradient-boosted regression trees for
// least-squares regression.
//
// The algorithm is plain gradient boosting: start from the target mean,
// then repeatedly fit a shallow regression tree to the current residuals
// and add a damped fraction of its prediction. Fitting is fully
// deterministic: no subsampling, no random feature selection, so the
// same matrix always yields the same model.
//
// The implementation is intentionally self-contained. Callers treat it
// as an opaque capability: Fit(matrix, targets) then Predict(row).
package gbm

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Options controls the boosting run.
type Options struct {
	// Trees is the number of boosting rounds. Defaults to 60.
	Trees int

	// MaxDepth limits each tree's depth. Defaults to 3.
	MaxDepth int

	// LearningRate damps each tree's contribution. Defaults to 0.1.
	LearningRate float64

	// MinSamplesLeaf is the smallest sample count a leaf may hold.
	// Defaults to 2.
	MinSamplesLeaf int
}

func (o Options) withDefaults() Options {
	if o.Trees <= 0 {
		o.Trees = 60
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = 3
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.1
	}
	if o.MinSamplesLeaf <= 0 {
		o.MinSamplesLeaf = 2
	}
	return o
}

// Model is a fitted boosted-tree ensemble. It is immutable after Fit and
// safe for concurrent Predict calls.
type Model struct {
	base  float64
	rate  float64
	trees []*node
	width int
}

// Fit trains a boosted ensemble on the given matrix and targets.
// Every row of x must have the same width, and len(x) must equal len(y).
func Fit(x [][]float64, y []float64, opts Options) (*Model, error) {
	if len(x) == 0 {
		return nil, errors.New("gbm: training matrix is empty")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("gbm: %d rows but %d targets", len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return nil, errors.New("gbm: rows have no features")
	}
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("gbm: row %d has %d features, want %d", i, len(row), width)
		}
	}

	opts = opts.withDefaults()

	m := &Model{
		base:  stat.Mean(y, nil),
		rate:  opts.LearningRate,
		trees: make([]*node, 0, opts.Trees),
		width: width,
	}

	// Residuals start as the deviation from the base prediction and
	// shrink as trees are added.
	residuals := make([]float64, len(y))
	for i, target := range y {
		residuals[i] = target - m.base
	}

	indices := make([]int, len(y))
	for i := range indices {
		indices[i] = i
	}

	for t := 0; t < opts.Trees; t++ {
		tree := buildNode(x, residuals, indices, opts.MaxDepth, opts.MinSamplesLeaf)
		m.trees = append(m.trees, tree)

		for i, row := range x {
			residuals[i] -= m.rate * tree.predict(row)
		}
	}

	return m, nil
}

// Predict returns the ensemble prediction for one feature row.
func (m *Model) Predict(row []float64) (float64, error) {
	if len(row) != m.width {
		return 0, fmt.Errorf("gbm: row has %d features, model trained on %d", len(row), m.width)
	}
	pred := m.base
	for _, tree := range m.trees {
		pred += m.rate * tree.predict(row)
	}
	return pred, nil
}

// NumFeatures returns the feature width the model was trained on.
func (m *Model) NumFeatures() int {
	return m.width
}
