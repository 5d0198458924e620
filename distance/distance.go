package distance

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// b must be at least as long as a.
func SquaredL2(a, b []float32) float32 {
	b = b[:len(a)]

	var dist float32
	for i := range a {
		d := a[i] - b[i]
		dist += d * d
	}

	return dist
}

// SquaredL2Float64 is SquaredL2 with a float64 accumulator, used where many
// small terms are summed (training objectives).
func SquaredL2Float64(a, b []float32) float64 {
	b = b[:len(a)]

	var dist float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		dist += d * d
	}

	return dist
}
