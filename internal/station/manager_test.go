package station

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arung-agamani/denpa-radio/internal/broadcast"
	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/pipeline"
)

type fakeStationStore struct {
	mu       sync.Mutex
	stations map[string]model.Station
	history  []model.PlaylistHistoryEntry
}

func newFakeStationStore() *fakeStationStore {
	return &fakeStationStore{stations: map[string]model.Station{}}
}

func (f *fakeStationStore) PutStation(ctx context.Context, st model.Station) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stations[st.ID] = st
	return nil
}

func (f *fakeStationStore) GetStation(ctx context.Context, id string) (*model.Station, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stations[id]
	if !ok {
		return nil, false, nil
	}
	return &st, true, nil
}

func (f *fakeStationStore) ListStations(ctx context.Context) ([]model.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Station, 0, len(f.stations))
	for _, st := range f.stations {
		out = append(out, st)
	}
	return out, nil
}

func (f *fakeStationStore) AppendPlaylistHistory(ctx context.Context, entry model.PlaylistHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, entry)
	return nil
}

type fakeTrackLookup struct {
	tracks map[string]model.Track
}

func (f *fakeTrackLookup) GetTrack(ctx context.Context, id string) (*model.Track, bool, error) {
	t, ok := f.tracks[id]
	if !ok {
		return nil, false, nil
	}
	return &t, true, nil
}

type fakeCurator struct {
	ids []string
}

func (f *fakeCurator) Curate(ctx context.Context, query string, limit int) ([]string, error) {
	if limit < len(f.ids) {
		return f.ids[:limit], nil
	}
	return f.ids, nil
}

type fakeFetcher struct{}

func (f *fakeFetcher) FetchPCM(ctx context.Context, trackID string) (*model.PCM, error) {
	return &model.PCM{Samples: make([]float32, 4410*2), SampleRate: 44100, Channels: 2}, nil
}

func newTestManager(t *testing.T) (*Manager, *fakeStationStore) {
	t.Helper()
	store := newFakeStationStore()
	lookup := &fakeTrackLookup{tracks: map[string]model.Track{
		"t1": {ID: "t1", Title: "Song 1", Artist: "Artist 1"},
		"t2": {ID: "t2", Title: "Song 2", Artist: "Artist 2"},
	}}
	cur := &fakeCurator{ids: []string{"t1", "t2"}}
	fetch := &fakeFetcher{}

	m := New(store, lookup, cur, fetch,
		pipeline.Config{SampleRate: 44100, Channels: 2, BufferSeconds: 2},
		broadcast.Config{SegmentDuration: 2 * time.Second, PlaylistLength: 3})
	return m, store
}

func TestStartStopStation(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	_ = store.PutStation(ctx, model.Station{ID: "s1", Name: "Test Station"})

	if err := m.StartStation(ctx, "s1"); err != nil {
		t.Fatalf("start station: %v", err)
	}

	if _, ok := m.Broadcaster("s1"); !ok {
		t.Fatal("expected broadcaster for started station")
	}

	st, ok, err := store.GetStation(ctx, "s1")
	if err != nil || !ok || !st.Active {
		t.Fatalf("expected station marked active: %+v, ok=%v, err=%v", st, ok, err)
	}

	if err := m.StopStation(ctx, "s1"); err != nil {
		t.Fatalf("stop station: %v", err)
	}

	if _, ok := m.Broadcaster("s1"); ok {
		t.Fatal("expected no broadcaster after stop")
	}

	st, ok, err = store.GetStation(ctx, "s1")
	if err != nil || !ok || st.Active {
		t.Fatalf("expected station marked inactive: %+v, ok=%v, err=%v", st, ok, err)
	}
}

func TestStartStationUnknownID(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.StartStation(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown station id")
	}
}

func TestSkipTrackRequiresActiveStation(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.SkipTrack("not-active"); err == nil {
		t.Fatal("expected error skipping an inactive station")
	}
}

func TestLoadActiveStationsStartsOnlyActive(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	_ = store.PutStation(ctx, model.Station{ID: "active1", Name: "Active", Active: true})
	_ = store.PutStation(ctx, model.Station{ID: "inactive1", Name: "Inactive", Active: false})

	if err := m.LoadActiveStations(ctx); err != nil {
		t.Fatalf("load active stations: %v", err)
	}

	if _, ok := m.Broadcaster("active1"); !ok {
		t.Fatal("expected active station to be started")
	}
	if _, ok := m.Broadcaster("inactive1"); ok {
		t.Fatal("expected inactive station to remain stopped")
	}

	m.StopStation(ctx, "active1")
}
