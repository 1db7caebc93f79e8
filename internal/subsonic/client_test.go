package subsonic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearchTracksParsesSongs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"subsonic-response": {
				"status": "ok",
				"searchResult3": {
					"song": [
						{"id": "1", "title": "Song A", "artist": "Artist A", "album": "Album A", "genre": "Rock", "year": 2001, "duration": 210, "path": "a.mp3"},
						{"id": "2", "title": "Song B", "artist": "Artist B", "album": "Album B", "genres": [{"name": "Jazz"}, {"name": "Fusion"}], "duration": 180, "path": "b.mp3"}
					]
				}
			}
		}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "user", "pass")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	tracks, err := c.SearchTracks(context.Background(), "query", 10)
	if err != nil {
		t.Fatalf("search tracks: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}
	if tracks[0].Genres[0] != "Rock" {
		t.Fatalf("expected legacy genre fallback, got %v", tracks[0].Genres)
	}
	if len(tracks[1].Genres) != 2 || tracks[1].Genres[0] != "Jazz" {
		t.Fatalf("expected new-style genres array, got %v", tracks[1].Genres)
	}
}

func TestSearchTracksErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"subsonic-response": {"status": "failed", "error": {"code": 40, "message": "Wrong username or password"}}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "user", "pass")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := c.SearchTracks(context.Background(), "query", 10); err == nil {
		t.Fatal("expected error for failed subsonic status")
	}
}

func TestGenresFallsBackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "user", "pass")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	genres, err := c.Genres(context.Background())
	if err != nil {
		t.Fatalf("genres: %v", err)
	}
	if len(genres) == 0 {
		t.Fatal("expected non-empty fallback genre list")
	}
}

func TestStreamURLIncludesAuthParams(t *testing.T) {
	c, err := New("http://media.local", "user", "pass")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	u := c.StreamURL("track-1")
	if !strings.Contains(u, "id=track-1") || !strings.Contains(u, "u=user") {
		t.Fatalf("unexpected stream url: %s", u)
	}
}
