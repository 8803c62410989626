package gbm

import (
	"math"
	"sort"
)

// node is one regression tree node. Leaves carry the mean residual of
// their samples; internal nodes route rows by a single threshold.
type node struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *node
	right     *node
}

func (n *node) predict(row []float64) float64 {
	for !n.leaf {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// buildNode grows a tree over the rows named by indices, splitting to
// minimize the summed squared error of the two sides. It stops at the
// depth limit, when a split cannot leave minLeaf samples on each side,
// or when no split improves on the parent.
func buildNode(x [][]float64, residuals []float64, indices []int, depth, minLeaf int) *node {
	mean := meanAt(residuals, indices)

	if depth <= 0 || len(indices) < 2*minLeaf {
		return &node{leaf: true, value: mean}
	}

	feature, threshold, ok := bestSplit(x, residuals, indices, minLeaf)
	if !ok {
		return &node{leaf: true, value: mean}
	}

	var left, right []int
	for _, i := range indices {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &node{
		feature:   feature,
		threshold: threshold,
		left:      buildNode(x, residuals, left, depth-1, minLeaf),
		right:     buildNode(x, residuals, right, depth-1, minLeaf),
	}
}

// bestSplit scans every feature and every boundary between consecutive
// distinct values, tracking the split with the lowest total squared
// error. Prefix sums over the sorted order make each feature scan
// linear after sorting.
func bestSplit(x [][]float64, residuals []float64, indices []int, minLeaf int) (feature int, threshold float64, ok bool) {
	bestSSE := math.Inf(1)

	order := make([]int, len(indices))

	for f := 0; f < len(x[indices[0]]); f++ {
		copy(order, indices)
		sort.Slice(order, func(a, b int) bool {
			return x[order[a]][f] < x[order[b]][f]
		})

		// Running sums from the left side of the candidate split.
		var leftSum, leftSq float64
		var totalSum, totalSq float64
		for _, i := range order {
			totalSum += residuals[i]
			totalSq += residuals[i] * residuals[i]
		}

		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			leftSum += residuals[i]
			leftSq += residuals[i] * residuals[i]

			// Can't split between equal feature values.
			if x[order[pos]][f] == x[order[pos+1]][f] {
				continue
			}

			nLeft := pos + 1
			nRight := len(order) - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq

			// SSE of a side = sum(r²) - (sum(r))²/n.
			sse := (leftSq - leftSum*leftSum/float64(nLeft)) +
				(rightSq - rightSum*rightSum/float64(nRight))

			if sse < bestSSE {
				bestSSE = sse
				feature = f
				threshold = (x[order[pos]][f] + x[order[pos+1]][f]) / 2
				ok = true
			}
		}
	}

	return feature, threshold, ok
}

func meanAt(values []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range indices {
		sum += values[i]
	}
	return sum / float64(len(indices))
}
