package aes

import (
	"context"
	"time"

	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// ModelVersion identifies the embedding model's feature contract (§4.4.1);
// bumped whenever the preprocessing or model changes incompatibly.
const ModelVersion = "deej-ai-v1"

// Service is the Audio Encoder Service for one deployment: preprocessing,
// a session pool, and the persistence/metadata contracts it depends on.
type Service struct {
	source     SourceClient
	pool       *SessionPool
	embeddings EmbeddingStore
	metadata   MetadataStore
	vizConfig  VisualizationConfigStore

	indexer *Indexer
}

// New constructs the Audio Encoder Service. The caller owns pool's lifetime.
func New(source SourceClient, pool *SessionPool, embeddings EmbeddingStore, metadata MetadataStore, vizConfig VisualizationConfigStore) *Service {
	s := &Service{
		source:     source,
		pool:       pool,
		embeddings: embeddings,
		metadata:   metadata,
		vizConfig:  vizConfig,
	}
	s.indexer = newIndexer(s)
	return s
}

// Indexer returns the process-wide embedding indexer control surface.
func (s *Service) Indexer() *Indexer { return s.indexer }

// ProcessTrack implements §4.4.4's process_track: idempotent (skips if a
// record already exists), fetches and preprocesses the audio, runs
// inference, L2-normalizes, and upserts the embedding (or a retry row on
// failure).
func (s *Service) ProcessTrack(ctx context.Context, trackID string) error {
	if _, ok, err := s.embeddings.GetEmbedding(ctx, trackID); err != nil {
		return radioerr.Wrap(radioerr.Persistence, "check existing embedding", err)
	} else if ok {
		return nil
	}

	start := time.Now()
	vector, err := s.computeEmbedding(ctx, trackID)
	if err != nil {
		_ = s.recordFailure(ctx, trackID, err)
		return err
	}

	rec := model.EmbeddingRecord{
		TrackID:        trackID,
		Vector:         vector,
		ComputedAt:     time.Now(),
		ProcessingTime: time.Since(start),
	}
	if err := s.embeddings.PutEmbedding(ctx, rec); err != nil {
		return radioerr.Wrap(radioerr.Persistence, "persist embedding", err)
	}

	s.maybeProjectSingle(ctx, trackID, vector)
	return nil
}

func (s *Service) computeEmbedding(ctx context.Context, trackID string) ([VectorDim]float32, error) {
	raw, err := s.source.StreamTrack(ctx, trackID)
	if err != nil {
		return [VectorDim]float32{}, radioerr.Wrap(radioerr.SourceFetch, "fetch audio for embedding", err)
	}
	spec, err := preprocess(raw)
	if err != nil {
		return [VectorDim]float32{}, err
	}
	vector, err := s.pool.Infer(ctx, spec)
	if err != nil {
		return [VectorDim]float32{}, radioerr.Wrap(radioerr.Internal, "run embedding inference", err)
	}
	return normalizeVector(vector), nil
}

func (s *Service) recordFailure(ctx context.Context, trackID string, cause error) error {
	existing, ok, _ := s.embeddings.GetEmbeddingFailure(ctx, trackID)
	attempt := 1
	if ok && existing != nil {
		attempt = existing.AttemptCount + 1
	}
	return s.embeddings.PutEmbeddingFailure(ctx, model.EmbeddingFailure{
		TrackID:      trackID,
		ErrorMessage: cause.Error(),
		ErrorType:    radioerr.KindOf(cause).String(),
		AttemptCount: attempt,
		LastAttempt:  time.Now(),
	})
}

// maybeProjectSingle projects a freshly computed embedding onto the cached
// PCA basis, if one exists, so newly added tracks appear in the 2-D map
// without waiting for a full rebuild.
func (s *Service) maybeProjectSingle(ctx context.Context, trackID string, vector [VectorDim]float32) {
	cfg, ok, err := s.vizConfig.GetVisualizationConfig(ctx)
	if err != nil || !ok {
		return
	}
	x, y := projectOntoBasis(vector, *cfg)
	rec, ok, err := s.embeddings.GetEmbedding(ctx, trackID)
	if err != nil || !ok {
		return
	}
	rec.VizX, rec.VizY = &x, &y
	_ = s.embeddings.PutEmbedding(ctx, *rec)
}

func projectOntoBasis(vector [VectorDim]float32, cfg model.VisualizationConfig) (float64, float64) {
	var centered [VectorDim]float32
	for i := range centered {
		centered[i] = vector[i] - cfg.Mean[i]
	}
	var x, y float32
	for i := range centered {
		x += centered[i] * cfg.PC1[i]
		y += centered[i] * cfg.PC2[i]
	}
	return float64(x), float64(y)
}

// Status is the AES operator-facing summary, per get_status.
type Status struct {
	TotalTracks     int
	WithEmbeddings  int
	Pending         int
	Failed          int
	CoveragePercent float64
	ModelVersion    string
}

// GetStatus implements §4.4.4's get_status.
func (s *Service) GetStatus(ctx context.Context) (Status, error) {
	total, err := s.metadata.CountTracks(ctx)
	if err != nil {
		return Status{}, radioerr.Wrap(radioerr.Persistence, "count tracks", err)
	}
	withEmbeddings, err := s.embeddings.CountEmbeddings(ctx)
	if err != nil {
		return Status{}, radioerr.Wrap(radioerr.Persistence, "count embeddings", err)
	}

	coverage := 0.0
	if total > 0 {
		coverage = float64(withEmbeddings) / float64(total) * 100
	}

	return Status{
		TotalTracks:     total,
		WithEmbeddings:  withEmbeddings,
		Pending:         total - withEmbeddings,
		CoveragePercent: coverage,
		ModelVersion:    ModelVersion,
	}, nil
}
