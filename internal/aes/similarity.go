package aes

import (
	"container/heap"
	"context"
	"math"

	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// Match is one similarity search result.
type Match struct {
	TrackID    string
	Similarity float32
}

// l2Distance computes Euclidean distance between two unit-norm vectors.
func l2Distance(a, b [VectorDim]float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sqrtf32(sum)
}

// similarityFromDistance maps L2 distance over unit vectors to [0, 1]
// similarity, per §4.4.3: sim = 1 - dist/2.
func similarityFromDistance(dist float32) float32 {
	return 1 - dist/2
}

func normalizeVector(v [VectorDim]float32) [VectorDim]float32 {
	var sumSq float32
	for _, x := range v {
		sumSq += x * x
	}
	norm := sqrtf32(sumSq)
	if norm < 1e-10 {
		return v
	}
	var out [VectorDim]float32
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func sqrtf32(x float32) float32 {
	if x <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(x)))
}

// candidate is a heap element: a track id at a given distance from a
// query vector. The heap is a bounded max-heap on distance, so popping the
// max keeps only the k smallest distances, per compute_knn's MaxDist.
type candidate struct {
	trackID string
	dist    float32
}

type maxDistHeap []candidate

func (h maxDistHeap) Len() int            { return len(h) }
func (h maxDistHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist } // max-heap
func (h maxDistHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxDistHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *maxDistHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// nearestK returns the k nearest (by L2 distance) entries in pool to query,
// excluding any track id in exclude, using a bounded max-heap so memory
// stays O(k) regardless of pool size.
func nearestK(query [VectorDim]float32, pool []model.EmbeddingRecord, k int, exclude map[string]bool) []candidate {
	h := &maxDistHeap{}
	heap.Init(h)
	for _, rec := range pool {
		if exclude[rec.TrackID] {
			continue
		}
		d := l2Distance(query, rec.Vector)
		if h.Len() < k {
			heap.Push(h, candidate{trackID: rec.TrackID, dist: d})
		} else if h.Len() > 0 && d < (*h)[0].dist {
			heap.Pop(h)
			heap.Push(h, candidate{trackID: rec.TrackID, dist: d})
		}
	}
	out := make([]candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(candidate)
	}
	return out
}

func genreSet(genres []string) map[string]bool {
	m := make(map[string]bool, len(genres))
	for _, g := range genres {
		m[g] = true
	}
	return m
}

func sharesGenre(a, b map[string]bool) bool {
	if len(a) == 0 {
		return true // no genre constraint to enforce
	}
	for g := range b {
		if a[g] {
			return true
		}
	}
	return false
}

// FindSimilar implements §4.4.4's find_similar: k nearest vectors to
// track_id's embedding, excluding the source and any id in exclude, post-
// filtered to results sharing at least one genre with the source.
func (s *Service) FindSimilar(ctx context.Context, trackID string, k int, exclude []string) ([]Match, error) {
	source, ok, err := s.embeddings.GetEmbedding(ctx, trackID)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Persistence, "load source embedding", err)
	}
	if !ok {
		return nil, radioerr.New(radioerr.NotFound, "no embedding for track "+trackID)
	}

	sourceTrack, _, err := s.metadata.GetTrack(ctx, trackID)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Persistence, "load source track metadata", err)
	}
	var sourceGenres map[string]bool
	if sourceTrack != nil {
		sourceGenres = genreSet(sourceTrack.Genres)
	}

	pool, err := s.embeddings.ListEmbeddings(ctx)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Persistence, "list embeddings", err)
	}

	excl := make(map[string]bool, len(exclude)+1)
	excl[trackID] = true
	for _, id := range exclude {
		excl[id] = true
	}

	return s.filteredNearest(ctx, source.Vector, pool, k, excl, sourceGenres), nil
}

// filteredNearest finds nearest neighbours and drops any whose track
// doesn't share a genre with allowedGenres, re-querying in batches so a
// genre-sparse neighbourhood still converges on k results when possible.
func (s *Service) filteredNearest(ctx context.Context, query [VectorDim]float32, pool []model.EmbeddingRecord, k int, exclude map[string]bool, allowedGenres map[string]bool) []Match {
	if len(allowedGenres) == 0 {
		cands := nearestK(query, pool, k, exclude)
		return toMatches(cands)
	}

	var matches []Match
	localExclude := make(map[string]bool, len(exclude))
	for id := range exclude {
		localExclude[id] = true
	}
	remaining := pool
	for len(matches) < k {
		cands := nearestK(query, remaining, k-len(matches), localExclude)
		if len(cands) == 0 {
			break
		}
		progressed := false
		for _, c := range cands {
			localExclude[c.trackID] = true
			track, _, err := s.metadata.GetTrack(ctx, c.trackID)
			if err != nil || track == nil {
				continue
			}
			if sharesGenre(allowedGenres, genreSet(track.Genres)) {
				matches = append(matches, Match{TrackID: c.trackID, Similarity: similarityFromDistance(c.dist)})
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func toMatches(cands []candidate) []Match {
	out := make([]Match, len(cands))
	for i, c := range cands {
		out[i] = Match{TrackID: c.trackID, Similarity: similarityFromDistance(c.dist)}
	}
	return out
}

// FindTransitionTracks implements §4.4.4's find_transition_tracks: for each
// interpolation point between from and to's vectors, picks the nearest
// track not already chosen, genre-filtered by the union of both endpoints'
// genres.
func (s *Service) FindTransitionTracks(ctx context.Context, fromID, toID string, count int, exclude []string) ([]string, error) {
	from, ok, err := s.embeddings.GetEmbedding(ctx, fromID)
	if err != nil || !ok {
		return nil, radioerr.New(radioerr.NotFound, "no embedding for track "+fromID)
	}
	to, ok, err := s.embeddings.GetEmbedding(ctx, toID)
	if err != nil || !ok {
		return nil, radioerr.New(radioerr.NotFound, "no embedding for track "+toID)
	}

	fromTrack, _, _ := s.metadata.GetTrack(ctx, fromID)
	toTrack, _, _ := s.metadata.GetTrack(ctx, toID)
	allowedGenres := map[string]bool{}
	if fromTrack != nil {
		for g := range genreSet(fromTrack.Genres) {
			allowedGenres[g] = true
		}
	}
	if toTrack != nil {
		for g := range genreSet(toTrack.Genres) {
			allowedGenres[g] = true
		}
	}

	pool, err := s.embeddings.ListEmbeddings(ctx)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Persistence, "list embeddings", err)
	}

	excl := make(map[string]bool, len(exclude)+2)
	excl[fromID] = true
	excl[toID] = true
	for _, id := range exclude {
		excl[id] = true
	}

	var result []string
	for i := 1; i <= count; i++ {
		t := float32(i) / float32(count+1)
		var interp [VectorDim]float32
		for j := range interp {
			interp[j] = from.Vector[j]*(1-t) + to.Vector[j]*t
		}
		interp = normalizeVector(interp)

		matches := s.filteredNearest(ctx, interp, pool, 1, excl, allowedGenres)
		if len(matches) == 0 {
			continue
		}
		result = append(result, matches[0].TrackID)
		excl[matches[0].TrackID] = true
	}
	return result, nil
}

// FindSimilarToSeeds implements §4.4.4's find_similar_to_seeds: the
// centroid of every seed's vector, normalized, k nearest, genre-filtered by
// the union of seed genres. This is the curator's primary gap-fill
// operator.
func (s *Service) FindSimilarToSeeds(ctx context.Context, seedIDs []string, k int, exclude []string) ([]Match, error) {
	if len(seedIDs) == 0 {
		return nil, radioerr.New(radioerr.Validation, "find_similar_to_seeds requires at least one seed")
	}

	var centroid [VectorDim]float32
	allowedGenres := map[string]bool{}
	n := 0
	for _, id := range seedIDs {
		rec, ok, err := s.embeddings.GetEmbedding(ctx, id)
		if err != nil {
			return nil, radioerr.Wrap(radioerr.Persistence, "load seed embedding", err)
		}
		if !ok {
			continue
		}
		for i := range centroid {
			centroid[i] += rec.Vector[i]
		}
		n++
		if track, ok, _ := s.metadata.GetTrack(ctx, id); ok && track != nil {
			for g := range genreSet(track.Genres) {
				allowedGenres[g] = true
			}
		}
	}
	if n == 0 {
		return nil, radioerr.New(radioerr.NotFound, "no embedded seeds to compute centroid")
	}
	for i := range centroid {
		centroid[i] /= float32(n)
	}
	centroid = normalizeVector(centroid)

	pool, err := s.embeddings.ListEmbeddings(ctx)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Persistence, "list embeddings", err)
	}

	excl := make(map[string]bool, len(seedIDs)+len(exclude))
	for _, id := range seedIDs {
		excl[id] = true
	}
	for _, id := range exclude {
		excl[id] = true
	}

	return s.filteredNearest(ctx, centroid, pool, k, excl, allowedGenres), nil
}
