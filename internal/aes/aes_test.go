package aes

import (
	"math"
	"testing"

	"github.com/arung-agamani/denpa-radio/internal/model"
)

func TestNormalizeVector_UnitNorm(t *testing.T) {
	var v [VectorDim]float32
	for i := range v {
		v[i] = float32(i + 1)
	}
	normalized := normalizeVector(v)

	var sumSq float64
	for _, x := range normalized {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if diff := math.Abs(norm - 1); diff > 1e-4 {
		t.Fatalf("expected unit norm, got %.6f", norm)
	}
}

func TestSimilarityFromDistance_Bounds(t *testing.T) {
	if s := similarityFromDistance(0); s != 1 {
		t.Errorf("distance 0 should map to similarity 1, got %f", s)
	}
	if s := similarityFromDistance(2); s != 0 {
		t.Errorf("distance 2 (max for unit vectors) should map to similarity 0, got %f", s)
	}
}

func TestNearestK_ExcludesAndBounds(t *testing.T) {
	pool := make([]model.EmbeddingRecord, 5)
	for i := range pool {
		var v [VectorDim]float32
		v[0] = float32(i)
		pool[i] = model.EmbeddingRecord{TrackID: idFor(i), Vector: normalizeVector(v)}
	}

	var query [VectorDim]float32
	query[0] = 0
	query = normalizeVector(query)

	results := nearestK(query, pool, 2, map[string]bool{idFor(0): true})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.trackID == idFor(0) {
			t.Fatal("excluded track id leaked into results")
		}
	}
}

func idFor(i int) string {
	return string(rune('a' + i))
}
