package kmeans

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/hupe1980/motionvq/distance"
)

const (
	// splitEpsilon is the relative perturbation applied when a populated
	// centroid is cloned into an empty slot.
	splitEpsilon = 1.0 / 1024

	// attemptSeedStride decorrelates the initial permutation of successive attempts.
	attemptSeedStride = 15486557

	// splitDrawsPerCluster bounds the probabilistic search for a split donor.
	// Past the bound recovery falls back to round-robin selection.
	splitDrawsPerCluster = 64
)

// Settings controls a clustering run.
type Settings struct {
	// NumAttempts is the number of independent runs; the one with the lowest
	// final objective is kept. Values below 1 are treated as 1.
	NumAttempts int
	// NumIterations is the number of Lloyd iterations per attempt.
	NumIterations int
	// Seed drives the initial permutation and split sampling.
	Seed int64
}

// DefaultSettings returns the settings used when none are given.
func DefaultSettings() Settings {
	return Settings{
		NumAttempts:   1,
		NumIterations: 25,
		Seed:          1234,
	}
}

// IterationStats describes one completed Lloyd iteration.
type IterationStats struct {
	Attempt   int
	Iteration int
	// Objective is the total squared error of the assignment step.
	Objective float64
	// Imbalance is k * sum(count^2) / n^2; 1.0 means perfectly balanced.
	Imbalance float64
	// Splits is the number of empty clusters recovered in this iteration.
	Splits int
}

// IterationFunc observes training progress. It may be nil.
type IterationFunc func(stats IterationStats)

// Result is the outcome of Train.
type Result struct {
	// Centroids holds k*d values, row-major.
	Centroids []float32
	// Objective is the final total squared error of the kept attempt.
	Objective float64
	// Imbalance of the kept attempt's final assignment.
	Imbalance float64
	// Counts per centroid after the final iteration. Empty-cluster recovery
	// moves half of a donor's count to the cluster it split off, so these are
	// attributed counts, not a fresh nearest-centroid tally. Every count is at
	// least 1 when n >= k, and they always sum to n.
	Counts []int
	// Attempt is the index of the kept attempt.
	Attempt int
	// Objectives lists the final objective of every attempt.
	Objectives []float64
}

// Train clusters n = len(vectors)/d vectors into k centroids.
//
// Preconditions (k > 0, d > 0, a non-empty input whose length is a multiple of d)
// are programming errors and panic. The only error returned is ctx.Err(), checked
// between attempts and iterations.
func Train(ctx context.Context, vectors []float32, d, k int, settings Settings, onIteration IterationFunc) (*Result, error) {
	if d <= 0 {
		panic(fmt.Sprintf("kmeans: dimension must be positive, got %d", d))
	}
	if k <= 0 {
		panic(fmt.Sprintf("kmeans: k must be positive, got %d", k))
	}
	if len(vectors) == 0 || len(vectors)%d != 0 {
		panic(fmt.Sprintf("kmeans: %d values is not a non-empty multiple of dimension %d", len(vectors), d))
	}

	attempts := max(settings.NumAttempts, 1)

	var best *Result
	objectives := make([]float64, 0, attempts)

	for a := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := trainAttempt(ctx, vectors, d, k, a, settings, onIteration)
		if err != nil {
			return nil, err
		}

		objectives = append(objectives, res.Objective)
		if best == nil || res.Objective < best.Objective {
			best = res
		}
	}

	best.Objectives = objectives
	return best, nil
}

func trainAttempt(ctx context.Context, vectors []float32, d, k, attempt int, settings Settings, onIteration IterationFunc) (*Result, error) {
	n := len(vectors) / d
	seed := settings.Seed + int64(attempt)*attemptSeedStride
	rng := rand.New(rand.NewSource(seed))

	centroids := make([]float32, k*d)
	perm := rng.Perm(n)
	for i := range k {
		src := perm[i%n]
		copy(centroids[i*d:(i+1)*d], vectors[src*d:(src+1)*d])
	}

	assign := make([]int, n)
	counts := make([]int, k)
	sums := make([]float64, k*d)

	res := &Result{Centroids: centroids, Counts: counts, Attempt: attempt}

	if settings.NumIterations <= 0 {
		res.Objective = assignAll(vectors, centroids, d, assign, counts)
		res.Imbalance = imbalance(counts, n)
		return res, nil
	}

	for iter := range settings.NumIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res.Objective = assignAll(vectors, centroids, d, assign, counts)
		res.Imbalance = imbalance(counts, n)

		computeMeans(vectors, d, assign, counts, sums, centroids)
		splits := splitEmpty(centroids, counts, d, n, rng)

		if onIteration != nil {
			onIteration(IterationStats{
				Attempt:   attempt,
				Iteration: iter,
				Objective: res.Objective,
				Imbalance: res.Imbalance,
				Splits:    splits,
			})
		}
	}

	return res, nil
}

// assignAll assigns every vector to its nearest centroid, fills counts and
// returns the total squared error.
func assignAll(vectors, centroids []float32, d int, assign, counts []int) float64 {
	clear(counts)

	var objective float64
	n := len(assign)
	for i := range n {
		c, dist := Nearest(vectors[i*d:(i+1)*d], centroids, d)
		assign[i] = c
		counts[c]++
		objective += float64(dist)
	}
	return objective
}

// computeMeans replaces every populated centroid with the mean of its members.
// Empty centroids keep their previous value until split recovery overwrites them.
func computeMeans(vectors []float32, d int, assign, counts []int, sums []float64, centroids []float32) {
	clear(sums)

	for i, c := range assign {
		vec := vectors[i*d : (i+1)*d]
		row := sums[c*d : (c+1)*d]
		for j, v := range vec {
			row[j] += float64(v)
		}
	}

	for c, cnt := range counts {
		if cnt == 0 {
			continue
		}
		inv := 1 / float64(cnt)
		row := sums[c*d : (c+1)*d]
		dst := centroids[c*d : (c+1)*d]
		for j := range dst {
			dst[j] = float32(row[j] * inv)
		}
	}
}

// splitEmpty recovers every empty cluster by cloning a populated donor chosen
// with probability (count-1)/(n-k), perturbing both copies symmetrically and
// splitting the donor's count between them. It returns the number of splits.
func splitEmpty(centroids []float32, counts []int, d, n int, rng *rand.Rand) int {
	k := len(counts)
	splits := 0
	cursor := 0

	for ci := range k {
		if counts[ci] != 0 {
			continue
		}

		cj := -1
		if n > k {
			cj = drawDonor(counts, n, rng)
		}
		if cj < 0 {
			cj, cursor = roundRobinDonor(counts, cursor)
		}
		if cj < 0 {
			// n < k: every populated cluster holds a single vector.
			continue
		}

		dst := centroids[ci*d : (ci+1)*d]
		src := centroids[cj*d : (cj+1)*d]
		copy(dst, src)
		for j := range dst {
			if j%2 == 0 {
				dst[j] *= 1 + splitEpsilon
				src[j] *= 1 - splitEpsilon
			} else {
				dst[j] *= 1 - splitEpsilon
				src[j] *= 1 + splitEpsilon
			}
		}

		counts[ci] = counts[cj] / 2
		counts[cj] -= counts[ci]
		splits++
	}

	return splits
}

// drawDonor cycles through the clusters accepting cj with probability
// (counts[cj]-1)/(n-k). Returns -1 when no donor was accepted within the draw budget.
func drawDonor(counts []int, n int, rng *rand.Rand) int {
	k := len(counts)
	denom := float32(n - k)
	budget := splitDrawsPerCluster * k

	cj := 0
	for range budget {
		p := (float32(counts[cj]) - 1) / denom
		if rng.Float32() < p {
			return cj
		}
		cj = (cj + 1) % k
	}
	return -1
}

// roundRobinDonor returns the next cluster at or after cursor holding more than
// one vector, and the cursor to resume from.
func roundRobinDonor(counts []int, cursor int) (int, int) {
	k := len(counts)
	for i := range k {
		cj := (cursor + i) % k
		if counts[cj] > 1 {
			return cj, (cj + 1) % k
		}
	}
	return -1, cursor
}

func imbalance(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	var sum float64
	for _, c := range counts {
		sum += float64(c) * float64(c)
	}
	return sum * float64(len(counts)) / (float64(n) * float64(n))
}

// Nearest returns the index of the centroid closest to vec by squared L2
// distance, and that distance. The first index wins ties.
func Nearest(vec, centroids []float32, d int) (int, float32) {
	k := len(centroids) / d
	best := 0
	minDist := float32(math.MaxFloat32)

	for j := range k {
		dist := distance.SquaredL2(vec, centroids[j*d:(j+1)*d])
		if dist < minDist {
			minDist = dist
			best = j
		}
	}

	return best, minDist
}
