package paletteextract

import (
	"math"
	"math/rand"
)

// point3D is a point in RGB space, adapted from tinct's
// internal/colour/kmeans.go point3D/distance helpers.
type point3D struct {
	R, G, B float64
}

func (p point3D) distance(other point3D) float64 {
	dr := p.R - other.R
	dg := p.G - other.G
	db := p.B - other.B
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// kmeansCluster runs k-means++ initialized k-means clustering on points and
// returns cluster centroids with their relative weights. Grounded on tinct's
// KMeansExtractor.kmeans/initializeCentroidsKMeansPlusPlus/
// recalculateCentroids/findNearestCentroid, generalized to take an explicit
// *rand.Rand so extraction is reproducible given Options.Seed (spec §4.2
// requires deterministic output for a fixed seed and input).
func kmeansCluster(points []point3D, k int, rng *rand.Rand) ([]point3D, []float64) {
	const maxIterations = 20
	const convergence = 2.0

	centroids := kmeansPlusPlusInit(points, k, rng)
	assignments := make([]int, len(points))

	for iter := 0; iter < maxIterations; iter++ {
		changed := 0
		for i, p := range points {
			nearest := nearestCentroid(p, centroids)
			if assignments[i] != nearest {
				assignments[i] = nearest
				changed++
			}
		}
		if float64(changed)/float64(len(points)) < 0.01 {
			break
		}

		newCentroids := recalculateCentroids(points, assignments, k, rng)
		totalMovement := 0.0
		for i := range centroids {
			totalMovement += centroids[i].distance(newCentroids[i])
		}
		centroids = newCentroids
		if totalMovement/float64(k) < convergence {
			break
		}
	}

	weights := make([]float64, k)
	for _, a := range assignments {
		weights[a]++
	}
	total := float64(len(assignments))
	for i := range weights {
		weights[i] /= total
	}
	return centroids, weights
}

func kmeansPlusPlusInit(points []point3D, k int, rng *rand.Rand) []point3D {
	if len(points) == 0 || k == 0 {
		return []point3D{}
	}

	centroids := make([]point3D, 0, k)
	centroids = append(centroids, points[rng.Intn(len(points))])

	for len(centroids) < k {
		distances := make([]float64, len(points))
		totalDistance := 0.0
		for i, p := range points {
			minDist := math.MaxFloat64
			for _, c := range centroids {
				if d := p.distance(c); d < minDist {
					minDist = d
				}
			}
			distances[i] = minDist * minDist
			totalDistance += distances[i]
		}

		if totalDistance == 0 {
			last := centroids[len(centroids)-1]
			centroids = append(centroids, point3D{R: last.R + 0.1, G: last.G + 0.1, B: last.B + 0.1})
			continue
		}

		target := rng.Float64() * totalDistance
		cumulative := 0.0
		for i, d := range distances {
			cumulative += d
			if cumulative >= target {
				centroids = append(centroids, points[i])
				break
			}
		}
	}
	return centroids
}

func nearestCentroid(p point3D, centroids []point3D) int {
	minDist := math.MaxFloat64
	nearest := 0
	for i, c := range centroids {
		if d := p.distance(c); d < minDist {
			minDist = d
			nearest = i
		}
	}
	return nearest
}

func recalculateCentroids(points []point3D, assignments []int, k int, rng *rand.Rand) []point3D {
	sums := make([]point3D, k)
	counts := make([]int, k)
	for i, p := range points {
		c := assignments[i]
		sums[c].R += p.R
		sums[c].G += p.G
		sums[c].B += p.B
		counts[c]++
	}

	centroids := make([]point3D, k)
	for i := 0; i < k; i++ {
		if counts[i] > 0 {
			centroids[i] = point3D{R: sums[i].R / float64(counts[i]), G: sums[i].G / float64(counts[i]), B: sums[i].B / float64(counts[i])}
		} else {
			centroids[i] = points[rng.Intn(len(points))]
		}
	}
	return centroids
}
