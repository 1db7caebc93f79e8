package store

import (
	"context"

	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// PutTrack upserts one library_index row, per §6.
func (s *Store) PutTrack(ctx context.Context, t model.Track) error {
	return s.putJSON(prefixTrack+t.ID, t)
}

// GetTrack implements aes.MetadataStore and station.TrackLookup.
func (s *Store) GetTrack(ctx context.Context, trackID string) (*model.Track, bool, error) {
	var t model.Track
	ok, err := s.getJSON(prefixTrack+trackID, &t)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &t, true, nil
}

// DeleteTrack removes a library_index row (a track pulled from the upstream
// library).
func (s *Store) DeleteTrack(ctx context.Context, trackID string) error {
	return s.deleteKey(prefixTrack + trackID)
}

// CountTracks implements aes.MetadataStore.
func (s *Store) CountTracks(ctx context.Context) (int, error) {
	return s.countPrefix(prefixTrack)
}

// ListTracks returns every track, for curator sampling and library sync
// reconciliation. Bounded resource use is the caller's responsibility
// (§5's "LLM prompt candidates capped at 100 tracks").
func (s *Store) ListTracks(ctx context.Context) ([]model.Track, error) {
	var out []model.Track
	err := s.iteratePrefix(prefixTrack, func(raw []byte) error {
		var t model.Track
		if err := unmarshalInto(raw, &t); err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Persistence, "list tracks", err)
	}
	return out, nil
}

// ListUnembeddedTrackIDs implements aes.TrackLister: every track id with no
// corresponding embedding record, up to maxTracks.
func (s *Store) ListUnembeddedTrackIDs(ctx context.Context, maxTracks int) ([]string, error) {
	tracks, err := s.ListTracks(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, t := range tracks {
		if maxTracks > 0 && len(ids) >= maxTracks {
			break
		}
		if _, ok, err := s.GetEmbedding(ctx, t.ID); err == nil && !ok {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}
