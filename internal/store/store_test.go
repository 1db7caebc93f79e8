package store

import (
	"context"
	"testing"

	"github.com/arung-agamani/denpa-radio/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTrackRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	track := model.Track{ID: "t1", Title: "Song", Artist: "Artist", Genres: []string{"chill"}}
	if err := s.PutTrack(ctx, track); err != nil {
		t.Fatalf("put track: %v", err)
	}

	got, ok, err := s.GetTrack(ctx, "t1")
	if err != nil || !ok {
		t.Fatalf("get track: %v, ok=%v", err, ok)
	}
	if got.Title != "Song" {
		t.Fatalf("unexpected track: %+v", got)
	}

	count, err := s.CountTracks(ctx)
	if err != nil || count != 1 {
		t.Fatalf("count tracks: %d, %v", count, err)
	}
}

func TestEmbeddingRoundTripClearsFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PutEmbeddingFailure(ctx, model.EmbeddingFailure{TrackID: "t1", ErrorMessage: "boom", AttemptCount: 1}); err != nil {
		t.Fatalf("put failure: %v", err)
	}
	if _, ok, _ := s.GetEmbeddingFailure(ctx, "t1"); !ok {
		t.Fatal("expected failure recorded")
	}

	var vec [100]float32
	vec[0] = 1
	if err := s.PutEmbedding(ctx, model.EmbeddingRecord{TrackID: "t1", Vector: vec}); err != nil {
		t.Fatalf("put embedding: %v", err)
	}

	if _, ok, _ := s.GetEmbeddingFailure(ctx, "t1"); ok {
		t.Fatal("expected failure cleared after successful embedding")
	}

	rec, ok, err := s.GetEmbedding(ctx, "t1")
	if err != nil || !ok || rec.Vector[0] != 1 {
		t.Fatalf("get embedding: %+v, ok=%v, err=%v", rec, ok, err)
	}

	count, err := s.CountEmbeddings(ctx)
	if err != nil || count != 1 {
		t.Fatalf("count embeddings: %d, %v", count, err)
	}
}

func TestListUnembeddedTrackIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.PutTrack(ctx, model.Track{ID: id, Title: id}); err != nil {
			t.Fatalf("put track %s: %v", id, err)
		}
	}
	var vec [100]float32
	if err := s.PutEmbedding(ctx, model.EmbeddingRecord{TrackID: "b", Vector: vec}); err != nil {
		t.Fatalf("put embedding: %v", err)
	}

	ids, err := s.ListUnembeddedTrackIDs(ctx, 10)
	if err != nil {
		t.Fatalf("list unembedded: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 unembedded tracks, got %v", ids)
	}
	for _, id := range ids {
		if id == "b" {
			t.Fatal("embedded track leaked into unembedded list")
		}
	}
}

func TestFindExactMatch_CaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.PutTrack(ctx, model.Track{ID: "t1", Title: "Bohemian Rhapsody", Artist: "Queen"}); err != nil {
		t.Fatalf("put track: %v", err)
	}

	track, ok, err := s.FindExactMatch(ctx, "bohemian rhapsody", "QUEEN")
	if err != nil || !ok {
		t.Fatalf("find exact match: %v, ok=%v", err, ok)
	}
	if track.ID != "t1" {
		t.Fatalf("unexpected match: %+v", track)
	}
}

func TestPlaylistHistoryAppendAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AppendPlaylistHistory(ctx, model.PlaylistHistoryEntry{StationID: "s1", TrackID: "t1"}); err != nil {
		t.Fatalf("append history: %v", err)
	}
	if err := s.AppendPlaylistHistory(ctx, model.PlaylistHistoryEntry{StationID: "s1", TrackID: "t2", Skipped: true}); err != nil {
		t.Fatalf("append history: %v", err)
	}
	if err := s.AppendPlaylistHistory(ctx, model.PlaylistHistoryEntry{StationID: "s2", TrackID: "t3"}); err != nil {
		t.Fatalf("append history: %v", err)
	}

	entries, err := s.ListPlaylistHistory(ctx, "s1")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for s1, got %d", len(entries))
	}
}

func TestStationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st := model.Station{ID: "s1", Name: "Chill", TrackIDs: []string{"t1", "t2"}}
	if err := s.PutStation(ctx, st); err != nil {
		t.Fatalf("put station: %v", err)
	}

	got, ok, err := s.GetStation(ctx, "s1")
	if err != nil || !ok || got.Name != "Chill" {
		t.Fatalf("get station: %+v, ok=%v, err=%v", got, ok, err)
	}

	stations, err := s.ListStations(ctx)
	if err != nil || len(stations) != 1 {
		t.Fatalf("list stations: %v, %v", stations, err)
	}
}

func TestFuzzyCandidates_RanksByTitleArtistSimilarity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	target := model.Track{ID: "match", Title: "Bohemian Rhapsody", Artist: "Queen"}
	if err := s.PutTrack(ctx, target); err != nil {
		t.Fatalf("put track: %v", err)
	}
	for i := 0; i < fuzzyCandidateFillerCount; i++ {
		filler := model.Track{ID: fillerID(i), Title: fillerID(i) + " unrelated title", Artist: "Someone Else"}
		if err := s.PutTrack(ctx, filler); err != nil {
			t.Fatalf("put filler track: %v", err)
		}
	}

	candidates, err := s.FuzzyCandidates(ctx, "Bohemian Rapsody", "Queen", 5)
	if err != nil {
		t.Fatalf("fuzzy candidates: %v", err)
	}
	if len(candidates) != 5 {
		t.Fatalf("expected 5 candidates, got %d", len(candidates))
	}
	if candidates[0].ID != "match" {
		t.Fatalf("expected the near-exact match to rank first, got %+v", candidates[0])
	}
}

const fuzzyCandidateFillerCount = 20

func fillerID(i int) string {
	return "filler-" + string(rune('a'+i))
}
