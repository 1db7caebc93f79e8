package store

import (
	"context"

	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// PutStation upserts a station record, per §6's `stations` table.
func (s *Store) PutStation(ctx context.Context, st model.Station) error {
	return s.putJSON(prefixStation+st.ID, st)
}

// GetStation returns one station by id.
func (s *Store) GetStation(ctx context.Context, stationID string) (*model.Station, bool, error) {
	var st model.Station
	ok, err := s.getJSON(prefixStation+stationID, &st)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &st, true, nil
}

// ListStations returns every persisted station, for station manager
// startup reconciliation.
func (s *Store) ListStations(ctx context.Context) ([]model.Station, error) {
	var out []model.Station
	err := s.iteratePrefix(prefixStation, func(raw []byte) error {
		var st model.Station
		if err := unmarshalInto(raw, &st); err != nil {
			return err
		}
		out = append(out, st)
		return nil
	})
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Persistence, "list stations", err)
	}
	return out, nil
}

// DeleteStation removes a station record.
func (s *Store) DeleteStation(ctx context.Context, stationID string) error {
	return s.deleteKey(prefixStation + stationID)
}
