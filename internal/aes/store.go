package aes

import (
	"context"

	"github.com/arung-agamani/denpa-radio/internal/model"
)

// EmbeddingStore is the persistence contract AES needs for embeddings and
// retry bookkeeping (§6's track_embeddings / embedding_failures tables).
// internal/store.Store satisfies this.
type EmbeddingStore interface {
	GetEmbedding(ctx context.Context, trackID string) (*model.EmbeddingRecord, bool, error)
	PutEmbedding(ctx context.Context, rec model.EmbeddingRecord) error
	ListEmbeddings(ctx context.Context) ([]model.EmbeddingRecord, error)
	CountEmbeddings(ctx context.Context) (int, error)
	PutEmbeddingFailure(ctx context.Context, f model.EmbeddingFailure) error
	GetEmbeddingFailure(ctx context.Context, trackID string) (*model.EmbeddingFailure, bool, error)
}

// MetadataStore is the narrow library_index read contract AES needs to
// genre-filter similarity results.
type MetadataStore interface {
	GetTrack(ctx context.Context, trackID string) (*model.Track, bool, error)
	CountTracks(ctx context.Context) (int, error)
}

// VisualizationConfigStore persists the singleton PCA projection basis.
type VisualizationConfigStore interface {
	GetVisualizationConfig(ctx context.Context) (*model.VisualizationConfig, bool, error)
	PutVisualizationConfig(ctx context.Context, cfg model.VisualizationConfig) error
}
