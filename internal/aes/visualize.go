package aes

import (
	"context"
	"math"
	"time"

	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

const (
	pcaIterations    = 20
	knnRefineRounds  = 100
	knnRepulsionPool = 50
)

// IsVisualizationCacheStale implements §4.4.4's
// is_visualization_cache_stale: true if no config exists, its track_count
// disagrees with the current embedding count, or any embedding lacks
// viz_x.
func (s *Service) IsVisualizationCacheStale(ctx context.Context) (bool, error) {
	cfg, ok, err := s.vizConfig.GetVisualizationConfig(ctx)
	if err != nil {
		return false, radioerr.Wrap(radioerr.Persistence, "load visualization config", err)
	}
	if !ok {
		return true, nil
	}
	recs, err := s.embeddings.ListEmbeddings(ctx)
	if err != nil {
		return false, radioerr.Wrap(radioerr.Persistence, "list embeddings", err)
	}
	if cfg.TrackCount != len(recs) {
		return true, nil
	}
	for _, r := range recs {
		if r.VizX == nil {
			return true, nil
		}
	}
	return false, nil
}

// RebuildVisualizationCache implements §4.4.4's rebuild_visualization_cache:
// mean-center, extract top-2 principal components by power iteration with
// deflation, project, compute k-NN, run force-directed refinement, and
// normalize to [-1, 1] per axis.
func (s *Service) RebuildVisualizationCache(ctx context.Context) error {
	recs, err := s.embeddings.ListEmbeddings(ctx)
	if err != nil {
		return radioerr.Wrap(radioerr.Persistence, "list embeddings", err)
	}
	if len(recs) == 0 {
		return nil
	}

	mean := computeMean(recs)
	centered := make([][VectorDim]float32, len(recs))
	for i, r := range recs {
		for j := range centered[i] {
			centered[i][j] = r.Vector[j] - mean[j]
		}
	}

	pc1, pc2 := powerIterationPCA(centered)

	coords := make([][2]float64, len(recs))
	for i, c := range centered {
		var x, y float32
		for j := range c {
			x += c[j] * pc1[j]
			y += c[j] * pc2[j]
		}
		coords[i] = [2]float64{float64(x), float64(y)}
	}

	k := 15
	if k > len(recs)-1 {
		k = len(recs) - 1
	}
	neighbours := computeKNNIndices(recs, k)
	forceDirectedRefine(coords, neighbours)
	normalizeCoords(coords)

	for i, r := range recs {
		x, y := coords[i][0], coords[i][1]
		r.VizX, r.VizY = &x, &y
		if err := s.embeddings.PutEmbedding(ctx, r); err != nil {
			return radioerr.Wrap(radioerr.Persistence, "persist projected embedding", err)
		}
	}

	return s.vizConfig.PutVisualizationConfig(ctx, model.VisualizationConfig{
		PC1:        pc1,
		PC2:        pc2,
		Mean:       mean,
		TrackCount: len(recs),
		UpdatedAt:  time.Now(),
	})
}

func computeMean(recs []model.EmbeddingRecord) [VectorDim]float32 {
	var mean [VectorDim]float32
	for _, r := range recs {
		for j := range mean {
			mean[j] += r.Vector[j]
		}
	}
	n := float32(len(recs))
	for j := range mean {
		mean[j] /= n
	}
	return mean
}

// powerIterationPCA finds the top two principal components of centered via
// 20 power-iteration steps with explicit deflation, using deterministic
// seeded initial vectors so repeated rebuilds are reproducible.
func powerIterationPCA(centered [][VectorDim]float32) ([VectorDim]float32, [VectorDim]float32) {
	pc1 := seedVector(7, 11)
	for iter := 0; iter < pcaIterations; iter++ {
		pc1 = iteratePower(centered, pc1)
	}

	deflated := make([][VectorDim]float32, len(centered))
	for i, row := range centered {
		var dot float32
		for j := range row {
			dot += row[j] * pc1[j]
		}
		for j := range row {
			deflated[i][j] = row[j] - dot*pc1[j]
		}
	}

	pc2 := seedVector(13, 17)
	for iter := 0; iter < pcaIterations; iter++ {
		pc2 = iteratePower(deflated, pc2)
	}

	return pc1, pc2
}

func seedVector(mul, add int) [VectorDim]float32 {
	var v [VectorDim]float32
	for i := range v {
		v[i] = float32((i*mul+add)%100) / 100
	}
	return normalizeVector(v)
}

func iteratePower(rows [][VectorDim]float32, pc [VectorDim]float32) [VectorDim]float32 {
	var next [VectorDim]float32
	for _, row := range rows {
		var dot float32
		for j := range row {
			dot += row[j] * pc[j]
		}
		for j := range row {
			next[j] += row[j] * dot
		}
	}
	return normalizeVector(next)
}

// computeKNNIndices returns, for each record, the indices of its k nearest
// neighbours in 100-d, via a bounded max-heap per point (compute_knn).
func computeKNNIndices(recs []model.EmbeddingRecord, k int) [][]int {
	n := len(recs)
	neighbours := make([][]int, n)
	for i := 0; i < n; i++ {
		exclude := map[string]bool{recs[i].TrackID: true}
		cands := nearestK(recs[i].Vector, recs, k, exclude)
		idx := make([]int, len(cands))
		for j, c := range cands {
			idx[j] = indexOf(recs, c.trackID)
		}
		neighbours[i] = idx
	}
	return neighbours
}

func indexOf(recs []model.EmbeddingRecord, trackID string) int {
	for i, r := range recs {
		if r.TrackID == trackID {
			return i
		}
	}
	return -1
}

// forceDirectedRefine runs 100 iterations of attractive-to-neighbour /
// repulsive-from-rotating-subset refinement over the initial PCA layout,
// with a learning rate linearly decaying from 0.5 to 0.
func forceDirectedRefine(coords [][2]float64, neighbours [][]int) {
	n := len(coords)
	if n == 0 {
		return
	}
	for iter := 0; iter < knnRefineRounds; iter++ {
		lr := 0.5 * (1 - float64(iter)/float64(knnRefineRounds))
		forces := make([][2]float64, n)

		for i, nbrs := range neighbours {
			for _, j := range nbrs {
				if j < 0 {
					continue
				}
				dx := coords[j][0] - coords[i][0]
				dy := coords[j][1] - coords[i][1]
				forces[i][0] += 0.1 * dx
				forces[i][1] += 0.1 * dy
			}

			poolSize := knnRepulsionPool
			if poolSize > n {
				poolSize = n
			}
			offset := (i + iter) % n
			for p := 0; p < poolSize; p++ {
				j := (offset + p) % n
				if j == i {
					continue
				}
				dx := coords[i][0] - coords[j][0]
				dy := coords[i][1] - coords[j][1]
				distSq := dx*dx + dy*dy
				if distSq < 1e-6 {
					distSq = 1e-6
				}
				repulsion := 0.001 / distSq
				dist := math.Sqrt(distSq)
				forces[i][0] += repulsion * dx / dist
				forces[i][1] += repulsion * dy / dist
			}
		}

		for i := range coords {
			coords[i][0] += lr * forces[i][0]
			coords[i][1] += lr * forces[i][1]
		}
	}
}

func normalizeCoords(coords [][2]float64) {
	if len(coords) == 0 {
		return
	}
	maxX, maxY := math.Abs(coords[0][0]), math.Abs(coords[0][1])
	for _, c := range coords {
		if v := math.Abs(c[0]); v > maxX {
			maxX = v
		}
		if v := math.Abs(c[1]); v > maxY {
			maxY = v
		}
	}
	if maxX < 1e-9 {
		maxX = 1
	}
	if maxY < 1e-9 {
		maxY = 1
	}
	for i := range coords {
		coords[i][0] /= maxX
		coords[i][1] /= maxY
	}
}
