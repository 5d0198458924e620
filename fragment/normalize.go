package fragment

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// minScale is the smallest standard deviation kept as a column scale.
const minScale = 1e-6

// Normalization holds per-column statistics. Normalize maps a vector to
// (v-Mean)/Scale and InverseNormalize undoes it.
type Normalization struct {
	Mean  []float32
	Scale []float32
}

// IdentityNormalization returns statistics that leave d-dimensional vectors unchanged.
func IdentityNormalization(d int) Normalization {
	n := Normalization{Mean: make([]float32, d), Scale: make([]float32, d)}
	for i := range n.Scale {
		n.Scale[i] = 1
	}
	return n
}

// ComputeNormalization returns the column mean and standard deviation of
// vectors. Columns whose deviation is below 1e-6 get a scale of 1. It panics
// on an empty input.
func ComputeNormalization(vectors [][]float32) Normalization {
	if len(vectors) == 0 {
		panic("fragment: no vectors to normalize")
	}
	d := len(vectors[0])
	n := Normalization{Mean: make([]float32, d), Scale: make([]float32, d)}
	column := make([]float64, len(vectors))
	for c := 0; c < d; c++ {
		for i, v := range vectors {
			column[i] = float64(v[c])
		}
		mean, std := stat.MeanStdDev(column, nil)
		if math.IsNaN(std) || std < minScale {
			std = 1
		}
		n.Mean[c] = float32(mean)
		n.Scale[c] = float32(std)
	}
	return n
}

// Dimension returns the number of columns.
func (n Normalization) Dimension() int { return len(n.Mean) }

// Normalize writes the normalized src into dst. dst and src may alias.
func (n Normalization) Normalize(dst, src []float32) {
	for i, mean := range n.Mean {
		dst[i] = (src[i] - mean) / n.Scale[i]
	}
}

// InverseNormalize writes the de-normalized src into dst. dst and src may alias.
func (n Normalization) InverseNormalize(dst, src []float32) {
	for i, mean := range n.Mean {
		dst[i] = src[i]*n.Scale[i] + mean
	}
}
