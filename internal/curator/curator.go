package curator

import (
	"context"

	"github.com/arung-agamani/denpa-radio/internal/aes"
	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// ProgressStep tags one curation progress event, per §4.5's progress
// channel: Started | CheckingEmbeddings | SelectingSeeds | SeedsSelected |
// GeneratingEmbeddings | FillingGaps | Completed | Error.
type ProgressStep string

const (
	Started              ProgressStep = "started"
	CheckingEmbeddings    ProgressStep = "checking_embeddings"
	SelectingSeeds        ProgressStep = "selecting_seeds"
	SeedsSelected         ProgressStep = "seeds_selected"
	GeneratingEmbeddings  ProgressStep = "generating_embeddings"
	FillingGaps           ProgressStep = "filling_gaps"
	Completed             ProgressStep = "completed"
	Error                 ProgressStep = "error"
)

// Progress is one event on the curation progress channel. Fields not
// relevant to Step are left zero; callers switch on Step.
type Progress struct {
	Step            ProgressStep
	Message         string
	CoveragePercent float32
	SeedCount       int
	Seeds           []string // "Artist - Title"
	Current, Total  int
	TrackName       string
	TrackIDs        []string
	Method          string
}

// EmbeddingService is the narrow AES surface the curator needs: processing
// seeds that lack embeddings and similarity search for gap-fill.
type EmbeddingService interface {
	ProcessTrack(ctx context.Context, trackID string) error
	FindSimilarToSeeds(ctx context.Context, seedIDs []string, k int, exclude []string) ([]aes.Match, error)
	FindSimilar(ctx context.Context, trackID string, k int, exclude []string) ([]aes.Match, error)
	GetStatus(ctx context.Context) (aes.Status, error)
}

// Config holds the tunables of HybridCurationConfig in §4.5.
type Config struct {
	SeedCount          int
	PlaylistSize       int
	MinEmbeddingCoverage float64 // 0.0-1.0, default 0.03
	FallbackEnabled    bool
}

// DefaultConfig matches the original service's defaults.
func DefaultConfig() Config {
	return Config{
		SeedCount:            5,
		PlaylistSize:         50,
		MinEmbeddingCoverage: 0.03,
		FallbackEnabled:      true,
	}
}

// Curator implements §4.5: hybrid LLM-seed + embedding-similarity playlist
// curation, with an LLM-only fallback when embedding coverage is too low or
// the embedding service is unavailable.
type Curator struct {
	seeds *SeedSelector
	aes   EmbeddingService // nil means "audio encoder not available"
	lib   LibrarySource
	cfg   Config
}

// New builds a Curator. aesSvc may be nil, which forces the LLM-only path
// regardless of coverage.
func New(seeds *SeedSelector, aesSvc EmbeddingService, lib LibrarySource, cfg Config) *Curator {
	return &Curator{seeds: seeds, aes: aesSvc, lib: lib, cfg: cfg}
}

// Curate runs curation without progress reporting.
func (c *Curator) Curate(ctx context.Context, query string, limit int) ([]string, error) {
	return c.CurateWithProgress(ctx, query, limit, nil)
}

// sendProgress is a non-blocking best-effort publish: a caller's progress
// sink that is slow or absent never aborts curation, per §4.5.
func sendProgress(sink chan<- Progress, p Progress) {
	if sink == nil {
		return
	}
	select {
	case sink <- p:
	default:
	}
}

// CurateWithProgress implements the full algorithm of §4.5: coverage check,
// seed selection, gap fill by embedding similarity, and an LLM-only
// fallback path when coverage is too low or seed selection comes up empty.
func (c *Curator) CurateWithProgress(ctx context.Context, query string, limit int, progress chan<- Progress) ([]string, error) {
	sendProgress(progress, Progress{Step: Started, Message: "Starting hybrid curation...", TrackName: query})

	coverage, err := c.embeddingCoverage(ctx)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, Progress{
		Step:            CheckingEmbeddings,
		Message:         "audio embedding coverage computed",
		CoveragePercent: float32(coverage * 100),
	})

	if c.aes == nil || coverage < c.cfg.MinEmbeddingCoverage {
		if !c.cfg.FallbackEnabled && c.aes != nil {
			// Proceed with hybrid anyway; coverage is low but not disqualifying.
		} else {
			return c.fallbackCuration(ctx, query, limit, progress)
		}
	}

	sendProgress(progress, Progress{Step: SelectingSeeds, Message: "AI is selecting perfect seed songs..."})
	seeds, err := c.seeds.SelectSeeds(ctx, query, c.cfg.SeedCount, limit)
	if err != nil {
		sendProgress(progress, Progress{Step: Error, Message: err.Error()})
		return nil, err
	}
	if len(seeds) == 0 {
		return c.fallbackCuration(ctx, query, limit, progress)
	}

	sendProgress(progress, Progress{
		Step:      SeedsSelected,
		Message:   "selected seed tracks",
		SeedCount: len(seeds),
		Seeds:     seedLabels(seeds),
	})

	playlist, err := c.fillGapsBetweenSeeds(ctx, seeds, limit, progress)
	if err != nil {
		sendProgress(progress, Progress{Step: Error, Message: err.Error()})
		return nil, err
	}

	sendProgress(progress, Progress{
		Step:      Completed,
		Message:   "playlist ready",
		TrackIDs:  playlist,
		SeedCount: len(seeds),
		Method:    "hybrid",
	})
	return playlist, nil
}

func (c *Curator) embeddingCoverage(ctx context.Context) (float64, error) {
	if c.aes == nil {
		return 0, nil
	}
	status, err := c.aes.GetStatus(ctx)
	if err != nil {
		return 0, radioerr.Wrap(radioerr.Persistence, "get aes status", err)
	}
	if status.TotalTracks == 0 {
		return 0, nil
	}
	return float64(status.WithEmbeddings) / float64(status.TotalTracks), nil
}

// fillGapsBetweenSeeds implements fill_gaps_between_seeds: embed any
// unembedded seed inline, then find tracks_to_fill tracks similar to the
// seed centroid, and interleave seed / gap-of-neighbours / seed / ...
func (c *Curator) fillGapsBetweenSeeds(ctx context.Context, seeds []model.VerifiedSeed, totalSize int, progress chan<- Progress) ([]string, error) {
	if c.aes == nil {
		return nil, radioerr.New(radioerr.Internal, "audio encoder not available")
	}

	total := len(seeds)
	for i, seed := range seeds {
		sendProgress(progress, Progress{
			Step:      GeneratingEmbeddings,
			Message:   "generating audio embedding",
			Current:   i + 1,
			Total:     total,
			TrackName: seed.Artist + " - " + seed.Title,
		})
		if err := c.aes.ProcessTrack(ctx, seed.TrackID); err != nil {
			// Non-fatal: the seed still appears in the playlist even if its
			// own embedding failed, matching the original's warn-and-continue.
			continue
		}
	}

	seedIDs := make([]string, len(seeds))
	for i, s := range seeds {
		seedIDs[i] = s.TrackID
	}

	tracksToFill := totalSize - len(seeds)
	if tracksToFill < 0 {
		tracksToFill = 0
	}

	sendProgress(progress, Progress{
		Step:    FillingGaps,
		Message: "finding tracks similar to the seed centroid",
		Current: 1,
		Total:   1,
	})

	similar, err := c.aes.FindSimilarToSeeds(ctx, seedIDs, tracksToFill, nil)
	if err != nil {
		similar = nil
	}

	numGaps := len(seeds)
	tracksPerGap := 0
	remainder := 0
	if numGaps > 0 {
		tracksPerGap = tracksToFill / numGaps
		remainder = tracksToFill % numGaps
	}

	playlist := make([]string, 0, totalSize)
	pos := 0
	for i, seed := range seeds {
		playlist = append(playlist, seed.TrackID)

		gapSize := tracksPerGap
		if i < remainder {
			gapSize++
		}
		for g := 0; g < gapSize && pos < len(similar); g++ {
			playlist = append(playlist, similar[pos].TrackID)
			pos++
		}
	}
	return playlist, nil
}

// fallbackCuration implements §4.5 step 5: when embeddings are unavailable
// or too sparse, seed selection alone plus genre-sharing padding (or pure
// random tracks if even seed selection fails).
func (c *Curator) fallbackCuration(ctx context.Context, query string, limit int, progress chan<- Progress) ([]string, error) {
	sendProgress(progress, Progress{Step: SelectingSeeds, Message: "using LLM-only curation (low embedding coverage)"})

	seedCount := c.cfg.SeedCount
	if seedCount > limit {
		seedCount = limit
	}
	seeds, err := c.seeds.SelectSeeds(ctx, query, seedCount, limit)
	if err != nil {
		seeds = nil
	}

	if len(seeds) == 0 {
		ids, err := c.lib.RandomTrackIDs(ctx, limit)
		if err != nil {
			return nil, radioerr.Wrap(radioerr.Persistence, "random track fallback", err)
		}
		sendProgress(progress, Progress{Step: Completed, Message: "selected random tracks", TrackIDs: ids, Method: "random"})
		return ids, nil
	}

	sendProgress(progress, Progress{
		Step:      SeedsSelected,
		Message:   "AI selected seed tracks",
		SeedCount: len(seeds),
		Seeds:     seedLabels(seeds),
	})

	playlist := make([]string, len(seeds))
	var genres []string
	for i, s := range seeds {
		playlist[i] = s.TrackID
		genres = append(genres, s.Genres...)
	}

	remaining := limit - len(playlist)
	if remaining > 0 {
		more, err := c.lib.TracksSharingGenre(ctx, genres, playlist, remaining)
		if err == nil {
			playlist = append(playlist, more...)
		}
	}

	sendProgress(progress, Progress{
		Step:      Completed,
		Message:   "playlist ready",
		TrackIDs:  playlist,
		SeedCount: len(seeds),
		Method:    "llm",
	})
	return playlist, nil
}

func seedLabels(seeds []model.VerifiedSeed) []string {
	labels := make([]string, len(seeds))
	for i, s := range seeds {
		labels[i] = s.Artist + " - " + s.Title
	}
	return labels
}
