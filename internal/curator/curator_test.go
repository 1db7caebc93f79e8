package curator

import (
	"context"
	"fmt"
	"testing"

	"github.com/arung-agamani/denpa-radio/internal/aes"
	"github.com/arung-agamani/denpa-radio/internal/model"
)

// fakeOracle returns a fixed reply regardless of prompt content, and counts
// how many times it was asked (each SelectSeeds call asks at least once).
type fakeOracle struct {
	replies []string
	calls   int
}

func (f *fakeOracle) Ask(ctx context.Context, prompt string) (string, error) {
	reply := f.replies[f.calls%len(f.replies)]
	f.calls++
	return reply, nil
}

// fakeLibrary is an in-memory LibrarySource over a fixed track set.
type fakeLibrary struct {
	tracks []model.Track
}

func (f *fakeLibrary) FindExactMatch(ctx context.Context, title, artist string) (*model.Track, bool, error) {
	for i := range f.tracks {
		if f.tracks[i].Title == title && f.tracks[i].Artist == artist {
			return &f.tracks[i], true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeLibrary) FuzzyCandidates(ctx context.Context, title, artist string, limit int) ([]model.Track, error) {
	return f.tracks, nil
}

func (f *fakeLibrary) AllGenres(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, t := range f.tracks {
		for _, g := range t.Genres {
			if !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	return out, nil
}

func (f *fakeLibrary) GenreFilteredSample(ctx context.Context, genres []string, limit int, exclude []string) ([]model.Track, error) {
	return f.tracks, nil
}

func (f *fakeLibrary) RandomSample(ctx context.Context, limit int, exclude []string) ([]model.Track, error) {
	return nil, nil
}

func (f *fakeLibrary) RandomTrackIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	for i := 0; i < limit && i < len(f.tracks); i++ {
		ids = append(ids, f.tracks[i].ID)
	}
	return ids, nil
}

func (f *fakeLibrary) TracksSharingGenre(ctx context.Context, genres []string, exclude []string, limit int) ([]string, error) {
	excl := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excl[id] = true
	}
	allowed := make(map[string]bool, len(genres))
	for _, g := range genres {
		allowed[g] = true
	}
	var out []string
	for _, t := range f.tracks {
		if excl[t.ID] || len(out) >= limit {
			continue
		}
		for _, g := range t.Genres {
			if allowed[g] {
				out = append(out, t.ID)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeLibrary) CountTracks(ctx context.Context) (int, error) {
	return len(f.tracks), nil
}

// fakeAES is a minimal EmbeddingService stand-in that fills gaps with a
// centroid-blind round robin over a fixed candidate pool, enough to exercise
// fillGapsBetweenSeeds' interleaving logic without real embeddings.
type fakeAES struct {
	total, withEmb int
	pool           []string
}

func (f *fakeAES) ProcessTrack(ctx context.Context, trackID string) error { return nil }

func (f *fakeAES) FindSimilarToSeeds(ctx context.Context, seedIDs []string, k int, exclude []string) ([]aes.Match, error) {
	excl := map[string]bool{}
	for _, id := range seedIDs {
		excl[id] = true
	}
	for _, id := range exclude {
		excl[id] = true
	}
	var out []aes.Match
	for _, id := range f.pool {
		if len(out) >= k {
			break
		}
		if excl[id] {
			continue
		}
		out = append(out, aes.Match{TrackID: id, Similarity: 0.9})
	}
	return out, nil
}

func (f *fakeAES) FindSimilar(ctx context.Context, trackID string, k int, exclude []string) ([]aes.Match, error) {
	return nil, nil
}

func (f *fakeAES) GetStatus(ctx context.Context) (aes.Status, error) {
	return aes.Status{TotalTracks: f.total, WithEmbeddings: f.withEmb}, nil
}

func makeTracks(n int, genre string) []model.Track {
	tracks := make([]model.Track, n)
	for i := range tracks {
		tracks[i] = model.Track{
			ID:     fmt.Sprintf("t%d", i),
			Title:  fmt.Sprintf("Song %d", i),
			Artist: fmt.Sprintf("Artist %d", i),
			Genres: []string{genre},
		}
	}
	return tracks
}

// TestCurate_HybridPath exercises Scenario D's shape: sufficient coverage,
// seeds come back from the library-pick path (since the fake oracle's
// "ideal songs" never exact/fuzzy match a synthetic library), and gap-fill
// draws from the AES similarity pool.
func TestCurate_HybridPath(t *testing.T) {
	lib := &fakeLibrary{tracks: makeTracks(20, "chill")}
	libraryPickReply := `{"selected_ids": ["t0", "t1", "t2"], "reasoning": "fits"}`
	oracle := &fakeOracle{replies: []string{
		`{"songs": []}`, // try_ideal_songs: no ideal songs verify
		`{"relevant_genres": ["chill"], "reasoning": "ok"}`,
		libraryPickReply,
	}}

	pool := make([]string, 0, 17)
	for i := 3; i < 20; i++ {
		pool = append(pool, fmt.Sprintf("t%d", i))
	}
	svc := &fakeAES{total: 20, withEmb: 10, pool: pool}

	cur := New(NewSeedSelector(oracle, lib), svc, lib, DefaultConfig())

	progress := make(chan Progress, 32)
	playlist, err := cur.CurateWithProgress(context.Background(), "late-night chill", 20, progress)
	if err != nil {
		t.Fatalf("curate: %v", err)
	}
	if len(playlist) != 20 {
		t.Fatalf("expected playlist length 20, got %d", len(playlist))
	}
	if playlist[0] != "t0" {
		t.Fatalf("expected playlist to begin with a seed, got %s", playlist[0])
	}

	var sawCompleted bool
	for p := range drain(progress) {
		if p.Step == Completed {
			sawCompleted = true
			if p.Method != "hybrid" {
				t.Fatalf("expected hybrid method, got %s", p.Method)
			}
		}
	}
	if !sawCompleted {
		t.Fatal("expected a Completed progress event")
	}
}

// TestCurate_FallbackUnderLowCoverage exercises Scenario E: coverage well
// below min_embedding_coverage forces the LLM-only path, and the final
// progress event reports method "llm".
func TestCurate_FallbackUnderLowCoverage(t *testing.T) {
	lib := &fakeLibrary{tracks: makeTracks(300, "ambient")}
	oracle := &fakeOracle{replies: []string{
		`{"songs": []}`,
		`{"relevant_genres": ["ambient"], "reasoning": "ok"}`,
		`{"selected_ids": ["t0", "t1", "t2"], "reasoning": "fits"}`,
	}}
	svc := &fakeAES{total: 300, withEmb: 1} // 0.3% coverage, below default 3%

	cur := New(NewSeedSelector(oracle, lib), svc, lib, DefaultConfig())

	progress := make(chan Progress, 32)
	playlist, err := cur.CurateWithProgress(context.Background(), "deep focus", 10, progress)
	if err != nil {
		t.Fatalf("curate: %v", err)
	}
	if len(playlist) > 10 {
		t.Fatalf("expected playlist length <= 10, got %d", len(playlist))
	}

	var method string
	for p := range drain(progress) {
		if p.Step == Completed {
			method = p.Method
		}
	}
	if method != "llm" {
		t.Fatalf("expected llm fallback method, got %q", method)
	}
}

func drain(ch chan Progress) chan Progress {
	close(ch)
	return ch
}
