package store

import (
	"context"

	"github.com/arung-agamani/denpa-radio/internal/model"
)

// GetVisualizationConfig implements aes.VisualizationConfigStore. The
// config is a singleton stored under a fixed key (§6's "id=1 PK").
func (s *Store) GetVisualizationConfig(ctx context.Context) (*model.VisualizationConfig, bool, error) {
	var cfg model.VisualizationConfig
	ok, err := s.getJSON(keyVizConfig, &cfg)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &cfg, true, nil
}

// PutVisualizationConfig implements aes.VisualizationConfigStore.
func (s *Store) PutVisualizationConfig(ctx context.Context, cfg model.VisualizationConfig) error {
	return s.putJSON(keyVizConfig, cfg)
}
