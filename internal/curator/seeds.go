package curator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arung-agamani/denpa-radio/internal/curator/oracle"
	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// LibrarySource is the narrow read surface the curator needs from the
// track library, grounded on seed_selector.rs's direct SQL queries:
// exact/fuzzy lookup, genre enumeration, and genre/random sampling.
// internal/store implements this.
type LibrarySource interface {
	FindExactMatch(ctx context.Context, title, artist string) (*model.Track, bool, error)
	FuzzyCandidates(ctx context.Context, title, artist string, limit int) ([]model.Track, error)
	AllGenres(ctx context.Context) ([]string, error)
	GenreFilteredSample(ctx context.Context, genres []string, limit int, exclude []string) ([]model.Track, error)
	RandomSample(ctx context.Context, limit int, exclude []string) ([]model.Track, error)
	RandomTrackIDs(ctx context.Context, limit int) ([]string, error)
	TracksSharingGenre(ctx context.Context, genres []string, exclude []string, limit int) ([]string, error)
	CountTracks(ctx context.Context) (int, error)
}

// fuzzyCandidateScanLimit bounds how many candidate tracks the store returns
// for trigram scoring in Go, per the resource bounds in §5.
const fuzzyCandidateScanLimit = 200

const (
	relevantGenreSampleSize = 160
	randomGenreSampleSize   = 40
	fuzzyThreshold          = 0.4
)

type idealSong struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Reason string `json:"reason,omitempty"`
}

type idealSongsResponse struct {
	Songs []idealSong `json:"songs"`
}

type genreSelectionResponse struct {
	RelevantGenres []string `json:"relevant_genres"`
}

type libraryPicksResponse struct {
	SelectedIDs []string `json:"selected_ids"`
}

// SeedSelector implements §4.5 steps 2-3: ask the LLM oracle for ideal
// songs, verify each against the library (exact, then trigram-fuzzy), and
// fall back to a genre-guided library sample when too few verify.
type SeedSelector struct {
	oracle oracle.Oracle
	lib    LibrarySource
}

// NewSeedSelector builds a SeedSelector over the given oracle and library.
func NewSeedSelector(o oracle.Oracle, lib LibrarySource) *SeedSelector {
	return &SeedSelector{oracle: o, lib: lib}
}

// SelectSeeds implements select_seeds: try ideal-song verification first,
// then top up from a library sample, and spread the results evenly across
// totalPlaylistSize by setting each seed's Position.
func (ss *SeedSelector) SelectSeeds(ctx context.Context, query string, seedCount, totalPlaylistSize int) ([]model.VerifiedSeed, error) {
	seeds, err := ss.tryIdealSongs(ctx, query, seedCount*2)
	if err != nil {
		return nil, err
	}

	if len(seeds) < seedCount {
		needed := seedCount - len(seeds)
		exclude := make([]string, len(seeds))
		for i, s := range seeds {
			exclude[i] = s.TrackID
		}
		more, err := ss.pickFromLibrary(ctx, query, needed, exclude)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, more...)
	}

	interval := 0
	if len(seeds) > 1 {
		interval = totalPlaylistSize / len(seeds)
	}
	for i := range seeds {
		seeds[i].Position = i * interval
	}
	return seeds, nil
}

func (ss *SeedSelector) tryIdealSongs(ctx context.Context, query string, count int) ([]model.VerifiedSeed, error) {
	ideals, err := ss.getIdealSongs(ctx, query, count)
	if err != nil {
		return nil, err
	}

	var verified []model.VerifiedSeed
	for _, ideal := range ideals {
		if track, ok, err := ss.lib.FindExactMatch(ctx, ideal.Title, ideal.Artist); err == nil && ok {
			verified = append(verified, model.VerifiedSeed{
				TrackID:   track.ID,
				Title:     track.Title,
				Artist:    track.Artist,
				Genres:    track.Genres,
				MatchType: model.MatchExact,
			})
			continue
		}

		if track, ok := ss.findFuzzyMatch(ctx, ideal.Title, ideal.Artist); ok {
			verified = append(verified, model.VerifiedSeed{
				TrackID:   track.ID,
				Title:     track.Title,
				Artist:    track.Artist,
				Genres:    track.Genres,
				MatchType: model.MatchFuzzy,
			})
		}
	}
	return verified, nil
}

// findFuzzyMatch scans a bounded candidate set and keeps the best-scoring
// track whose title and artist both clear fuzzyThreshold, mirroring
// find_fuzzy_match's "similarity(title) > 0.4 AND similarity(artist) > 0.4,
// order by sum desc" query without needing a trigram index in the store.
func (ss *SeedSelector) findFuzzyMatch(ctx context.Context, title, artist string) (*model.Track, bool) {
	candidates, err := ss.lib.FuzzyCandidates(ctx, title, artist, fuzzyCandidateScanLimit)
	if err != nil || len(candidates) == 0 {
		return nil, false
	}

	var best *model.Track
	bestScore := -1.0
	for i := range candidates {
		c := &candidates[i]
		ts := TrigramSimilarity(title, c.Title)
		as := TrigramSimilarity(artist, c.Artist)
		if ts <= fuzzyThreshold || as <= fuzzyThreshold {
			continue
		}
		if score := ts + as; score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best, best != nil
}

func (ss *SeedSelector) getIdealSongs(ctx context.Context, query string, count int) ([]idealSong, error) {
	prompt := fmt.Sprintf(`You are a music expert. For the query %q, list %d SPECIFIC songs that would be PERFECT examples.

These should be definitive, well-known examples - songs that ANYONE who knows this genre/mood/style would recognize as quintessential.

Focus on:
1. Songs that perfectly embody the requested vibe
2. Different artists to add variety
3. Songs likely to be in a personal music library

Respond with ONLY a JSON object:
{
  "songs": [
    {"title": "Song Title", "artist": "Artist Name", "reason": "Why this is perfect"},
    ...
  ]
}`, query, count)

	var resp idealSongsResponse
	if err := ss.askJSON(ctx, prompt, &resp); err != nil {
		return nil, err
	}
	return resp.Songs, nil
}

// pickFromLibrary implements pick_from_library: ask for relevant genres,
// sample 80% from those genres and 20% uniformly at random, then ask the
// LLM to choose exactly `count` ids from that sample.
func (ss *SeedSelector) pickFromLibrary(ctx context.Context, query string, count int, exclude []string) ([]model.VerifiedSeed, error) {
	allGenres, err := ss.lib.AllGenres(ctx)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Persistence, "list genres", err)
	}
	if len(allGenres) == 0 {
		return nil, nil
	}

	relevantGenres, err := ss.getRelevantGenres(ctx, query, allGenres)
	if err != nil {
		relevantGenres = nil
	}

	sample, err := ss.lib.GenreFilteredSample(ctx, relevantGenres, relevantGenreSampleSize, exclude)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Persistence, "sample by genre", err)
	}
	randomSample, err := ss.lib.RandomSample(ctx, randomGenreSampleSize, exclude)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Persistence, "random sample", err)
	}

	seen := make(map[string]bool, len(sample))
	for _, t := range sample {
		seen[t.ID] = true
	}
	for _, t := range randomSample {
		if !seen[t.ID] {
			sample = append(sample, t)
			seen[t.ID] = true
		}
	}
	if len(sample) == 0 {
		return nil, nil
	}

	var lines []string
	for _, t := range sample {
		lines = append(lines, fmt.Sprintf("%s: %s - %s [%s]", t.ID, t.Artist, t.Title, strings.Join(t.Genres, ", ")))
	}

	prompt := fmt.Sprintf(`You are selecting seed songs for a radio station. Query: %q

AVAILABLE TRACKS IN LIBRARY:
%s

Select EXACTLY %d tracks that are PERFECT examples of %q.

These seeds will be distributed throughout a playlist, with an AI filling the gaps with sonically similar music. So pick tracks that:
1. Perfectly match the requested vibe
2. Are diverse enough to create interesting transitions
3. Represent different aspects of the request

IMPORTANT: Only return IDs from the list above.

Respond with ONLY a JSON object:
{
  "selected_ids": ["id1", "id2", ...],
  "reasoning": "Brief explanation of why these tracks were chosen"
}`, query, strings.Join(lines, "\n"), count, query)

	var resp libraryPicksResponse
	if err := ss.askJSON(ctx, prompt, &resp); err != nil {
		return nil, err
	}

	byID := make(map[string]model.Track, len(sample))
	for _, t := range sample {
		byID[t.ID] = t
	}

	var seeds []model.VerifiedSeed
	for _, id := range resp.SelectedIDs {
		if track, ok := byID[id]; ok {
			seeds = append(seeds, model.VerifiedSeed{
				TrackID:   track.ID,
				Title:     track.Title,
				Artist:    track.Artist,
				Genres:    track.Genres,
				MatchType: model.MatchLibraryPick,
			})
		}
	}
	return seeds, nil
}

func (ss *SeedSelector) getRelevantGenres(ctx context.Context, query string, allGenres []string) ([]string, error) {
	prompt := fmt.Sprintf(`You are selecting music genres for a playlist. Query: %q

AVAILABLE GENRES IN LIBRARY:
%s

Select the genres that would be MOST APPROPRIATE for %q.

Select between 5-15 genres that best match the query. Be selective - don't include genres that don't fit.

Respond with ONLY a JSON object:
{
  "relevant_genres": ["genre1", "genre2", ...],
  "reasoning": "Brief explanation"
}`, query, strings.Join(allGenres, ", "), query)

	var resp genreSelectionResponse
	if err := ss.askJSON(ctx, prompt, &resp); err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(allGenres))
	for _, g := range allGenres {
		allowed[strings.ToLower(g)] = true
	}
	var valid []string
	for _, g := range resp.RelevantGenres {
		if allowed[strings.ToLower(g)] {
			valid = append(valid, g)
		}
	}
	if len(valid) == 0 {
		max := len(allGenres)
		if max > 20 {
			max = 20
		}
		return allGenres[:max], nil
	}
	return valid, nil
}

// askJSON sends prompt to the oracle and unmarshals the first JSON object
// in its reply into out.
func (ss *SeedSelector) askJSON(ctx context.Context, prompt string, out interface{}) error {
	reply, err := ss.oracle.Ask(ctx, prompt)
	if err != nil {
		return radioerr.Wrap(radioerr.ExternalApi, "ask oracle", err)
	}
	obj, ok := ExtractFirstJSONObject(reply)
	if !ok {
		return radioerr.New(radioerr.ExternalApi, "oracle reply contained no JSON object")
	}
	if err := json.Unmarshal([]byte(obj), out); err != nil {
		return radioerr.Wrap(radioerr.ExternalApi, "decode oracle JSON", err)
	}
	return nil
}
