package library

import (
	"context"
	"sync"
	"testing"

	"github.com/arung-agamani/denpa-radio/internal/model"
)

type fakeSource struct {
	tracks []model.Track
	err    error
}

func (f *fakeSource) SearchTracks(ctx context.Context, query string, count int) ([]model.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tracks, nil
}

type fakeTrackStore struct {
	mu     sync.Mutex
	tracks map[string]model.Track
}

func newFakeTrackStore() *fakeTrackStore {
	return &fakeTrackStore{tracks: map[string]model.Track{}}
}

func (f *fakeTrackStore) PutTrack(ctx context.Context, t model.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks[t.ID] = t
	return nil
}

func (f *fakeTrackStore) ListTracks(ctx context.Context) ([]model.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Track, 0, len(f.tracks))
	for _, t := range f.tracks {
		out = append(out, t)
	}
	return out, nil
}

type fakeOracle struct {
	reply string
}

func (f *fakeOracle) Ask(ctx context.Context, prompt string) (string, error) {
	return f.reply, nil
}

func TestSyncFullUpsertsTracks(t *testing.T) {
	src := &fakeSource{tracks: []model.Track{
		{ID: "1", Title: "A"},
		{ID: "2", Title: "B"},
	}}
	st := newFakeTrackStore()
	idx := New(src, st, nil)

	progressCh := make(chan SyncProgress, 10)
	n, err := idx.SyncFull(context.Background(), progressCh)
	if err != nil {
		t.Fatalf("sync full: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 synced tracks, got %d", n)
	}

	tracks, _ := st.ListTracks(context.Background())
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks stored, got %d", len(tracks))
	}

	var sawCompleted bool
	close(progressCh)
	for p := range progressCh {
		if p.Step == SyncCompleted {
			sawCompleted = true
		}
	}
	if !sawCompleted {
		t.Fatal("expected a Completed progress event")
	}
}

func TestSyncFullGuardsAgainstConcurrentSync(t *testing.T) {
	idx := New(&fakeSource{}, newFakeTrackStore(), nil)
	idx.syncing.Store(true)

	n, err := idx.SyncFull(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected no error when sync already in progress: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 synced when already in progress, got %d", n)
	}
}

func TestAnalyzeUnanalyzedSkipsWhenNoAnalyzer(t *testing.T) {
	idx := New(&fakeSource{}, newFakeTrackStore(), nil)
	n, err := idx.AnalyzeUnanalyzed(context.Background(), 10)
	if err != nil || n != 0 {
		t.Fatalf("expected no-op without analyzer, got n=%d err=%v", n, err)
	}
}

func TestAnalyzeUnanalyzedMarksTracks(t *testing.T) {
	st := newFakeTrackStore()
	for _, id := range []string{"a", "b", "c"} {
		_ = st.PutTrack(context.Background(), model.Track{ID: id, Title: id})
	}

	reply := "```json\n{\"mood_tags\":[\"chill\"],\"energy_level\":0.4,\"danceability\":0.3,\"valence\":0.6,\"song_type\":[\"ballad\"],\"themes\":[\"love\"],\"acousticness\":0.7,\"instrumentalness\":0.1}\n```"
	analyzer := NewAnalyzer(&fakeOracle{reply: reply})
	idx := New(&fakeSource{}, st, analyzer)

	n, err := idx.AnalyzeUnanalyzed(context.Background(), 10)
	if err != nil {
		t.Fatalf("analyze unanalyzed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 tracks analyzed, got %d", n)
	}

	tracks, _ := st.ListTracks(context.Background())
	for _, tr := range tracks {
		if !tr.AIAnalyzed {
			t.Fatalf("track %s not marked analyzed", tr.ID)
		}
		if tr.EnergyLevel != 0.4 {
			t.Fatalf("unexpected energy level for %s: %v", tr.ID, tr.EnergyLevel)
		}
	}
}
