package store

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/arung-agamani/denpa-radio/internal/curator"
	"github.com/arung-agamani/denpa-radio/internal/model"
)

// FindExactMatch implements curator.LibrarySource: case-insensitive exact
// title+artist match, grounded on find_exact_match's "LOWER(title) =
// LOWER($1) AND LOWER(artist) = LOWER($2)".
func (s *Store) FindExactMatch(ctx context.Context, title, artist string) (*model.Track, bool, error) {
	tracks, err := s.ListTracks(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range tracks {
		if strings.EqualFold(tracks[i].Title, title) && strings.EqualFold(tracks[i].Artist, artist) {
			return &tracks[i], true, nil
		}
	}
	return nil, false, nil
}

// FuzzyCandidates returns the top-limit tracks by combined title+artist
// trigram similarity to the query, for the caller to re-verify against its
// own per-field threshold. Badger has no trigram index (the original
// find_fuzzy_match runs a real pg_trgm similarity() query over the whole
// table instead), so this scores every track in Go and keeps the best
// matches rather than handing back an arbitrary, relevance-blind prefix of
// the library.
func (s *Store) FuzzyCandidates(ctx context.Context, title, artist string, limit int) ([]model.Track, error) {
	tracks, err := s.ListTracks(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || len(tracks) <= limit {
		return tracks, nil
	}

	type scored struct {
		track model.Track
		score float64
	}
	ranked := make([]scored, len(tracks))
	for i, t := range tracks {
		ranked[i] = scored{
			track: t,
			score: curator.TrigramSimilarity(title, t.Title) + curator.TrigramSimilarity(artist, t.Artist),
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	top := make([]model.Track, limit)
	for i := 0; i < limit; i++ {
		top[i] = ranked[i].track
	}
	return top, nil
}

// AllGenres returns every distinct genre across the library, sorted the way
// get_all_genres returns them (ascending).
func (s *Store) AllGenres(ctx context.Context) ([]string, error) {
	tracks, err := s.ListTracks(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, t := range tracks {
		for _, g := range t.Genres {
			if !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// GenreFilteredSample returns up to limit tracks carrying at least one of
// genres, excluding ids in exclude, in randomized order (ORDER BY RANDOM()
// in get_genre_filtered_sample).
func (s *Store) GenreFilteredSample(ctx context.Context, genres []string, limit int, exclude []string) ([]model.Track, error) {
	if len(genres) == 0 {
		return s.RandomSample(ctx, limit, exclude)
	}
	tracks, err := s.ListTracks(ctx)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(genres))
	for _, g := range genres {
		allowed[g] = true
	}
	excl := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excl[id] = true
	}

	var matched []model.Track
	for _, t := range tracks {
		if excl[t.ID] {
			continue
		}
		for _, g := range t.Genres {
			if allowed[g] {
				matched = append(matched, t)
				break
			}
		}
	}
	shuffleTracks(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// RandomSample returns up to limit tracks, excluding exclude, in randomized
// order.
func (s *Store) RandomSample(ctx context.Context, limit int, exclude []string) ([]model.Track, error) {
	tracks, err := s.ListTracks(ctx)
	if err != nil {
		return nil, err
	}
	excl := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excl[id] = true
	}
	var out []model.Track
	for _, t := range tracks {
		if !excl[t.ID] {
			out = append(out, t)
		}
	}
	shuffleTracks(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RandomTrackIDs implements get_random_tracks: the ultimate fallback when
// even seed selection produces nothing.
func (s *Store) RandomTrackIDs(ctx context.Context, limit int) ([]string, error) {
	tracks, err := s.RandomSample(ctx, limit, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids, nil
}

// TracksSharingGenre returns up to limit track ids (excluding exclude) that
// share at least one genre with genres, for the LLM-only fallback's
// genre-padding step.
func (s *Store) TracksSharingGenre(ctx context.Context, genres []string, exclude []string, limit int) ([]string, error) {
	sample, err := s.GenreFilteredSample(ctx, genres, limit, exclude)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(sample))
	for i, t := range sample {
		ids[i] = t.ID
	}
	return ids, nil
}

func shuffleTracks(tracks []model.Track) {
	rand.Shuffle(len(tracks), func(i, j int) { tracks[i], tracks[j] = tracks[j], tracks[i] })
}
