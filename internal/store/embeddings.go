package store

import (
	"context"

	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// GetEmbedding implements aes.EmbeddingStore.
func (s *Store) GetEmbedding(ctx context.Context, trackID string) (*model.EmbeddingRecord, bool, error) {
	var rec model.EmbeddingRecord
	ok, err := s.getJSON(prefixEmbedding+trackID, &rec)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &rec, true, nil
}

// PutEmbedding implements aes.EmbeddingStore. On success it clears any
// retryable failure row for the same track, since a completed embedding
// supersedes prior attempts.
func (s *Store) PutEmbedding(ctx context.Context, rec model.EmbeddingRecord) error {
	if err := s.putJSON(prefixEmbedding+rec.TrackID, rec); err != nil {
		return err
	}
	_ = s.deleteKey(prefixEmbedFail + rec.TrackID)
	return nil
}

// ListEmbeddings implements aes.EmbeddingStore. Bounded by library size,
// which is the personal-library scale §11's domain stack discussion
// assumes for brute-force L2 similarity scans.
func (s *Store) ListEmbeddings(ctx context.Context) ([]model.EmbeddingRecord, error) {
	var out []model.EmbeddingRecord
	err := s.iteratePrefix(prefixEmbedding, func(raw []byte) error {
		var rec model.EmbeddingRecord
		if err := unmarshalInto(raw, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Persistence, "list embeddings", err)
	}
	return out, nil
}

// CountEmbeddings implements aes.EmbeddingStore.
func (s *Store) CountEmbeddings(ctx context.Context) (int, error) {
	return s.countPrefix(prefixEmbedding)
}

// PutEmbeddingFailure implements aes.EmbeddingStore.
func (s *Store) PutEmbeddingFailure(ctx context.Context, f model.EmbeddingFailure) error {
	return s.putJSON(prefixEmbedFail+f.TrackID, f)
}

// GetEmbeddingFailure implements aes.EmbeddingStore.
func (s *Store) GetEmbeddingFailure(ctx context.Context, trackID string) (*model.EmbeddingFailure, bool, error) {
	var f model.EmbeddingFailure
	ok, err := s.getJSON(prefixEmbedFail+trackID, &f)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &f, true, nil
}
