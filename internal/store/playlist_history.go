package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// AppendPlaylistHistory records one played (or skipped) track for a
// station, per §6's playlist_history table. The key embeds a random suffix
// since (station, track) pairs repeat across a station's lifetime.
func (s *Store) AppendPlaylistHistory(ctx context.Context, entry model.PlaylistHistoryEntry) error {
	key := fmt.Sprintf("%s%s:%s", prefixPlaylistHist, entry.StationID, uuid.NewString())
	return s.putJSON(key, entry)
}

// ListPlaylistHistory returns every history entry for a station, in
// whatever order Badger's prefix iteration yields (insertion order is not
// guaranteed; callers needing chronological order should sort on PlayedAt).
func (s *Store) ListPlaylistHistory(ctx context.Context, stationID string) ([]model.PlaylistHistoryEntry, error) {
	var out []model.PlaylistHistoryEntry
	err := s.iteratePrefix(prefixPlaylistHist+stationID+":", func(raw []byte) error {
		var e model.PlaylistHistoryEntry
		if err := unmarshalInto(raw, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Persistence, "list playlist history", err)
	}
	return out, nil
}
