package aes

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// Indexer is the process-wide embedding-indexer control state machine
// (§4.4.5): Idle -> Running -> {Paused <-> Running} -> Stopping -> Idle.
// It is a singleton per Service, guarded by a single RWMutex, read on the
// hot path (the batch worker polling between tracks) and written only on
// operator commands.
type Indexer struct {
	svc *Service

	mu    sync.RWMutex
	state model.IndexerState
}

func newIndexer(svc *Service) *Indexer {
	return &Indexer{svc: svc, state: model.IndexerIdle}
}

// State returns the current control state.
func (idx *Indexer) State() model.IndexerState {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.state
}

// TrackLister enumerates candidate track ids lacking an embedding; the
// caller (internal/library) supplies this so AES stays decoupled from the
// library_index schema.
type TrackLister interface {
	ListUnembeddedTrackIDs(ctx context.Context, maxTracks int) ([]string, error)
}

// Start transitions Idle -> Running and launches the batch worker over up
// to maxTracks unembedded tracks. Returns Conflict if not currently Idle.
func (idx *Indexer) Start(ctx context.Context, lister TrackLister, maxTracks int) error {
	idx.mu.Lock()
	if idx.state != model.IndexerIdle {
		idx.mu.Unlock()
		return radioerr.New(radioerr.Conflict, "indexer is not idle")
	}
	idx.state = model.IndexerRunning
	idx.mu.Unlock()

	trackIDs, err := lister.ListUnembeddedTrackIDs(ctx, maxTracks)
	if err != nil {
		idx.mu.Lock()
		idx.state = model.IndexerIdle
		idx.mu.Unlock()
		return radioerr.Wrap(radioerr.Persistence, "list unembedded tracks", err)
	}

	go idx.runBatch(ctx, trackIDs)
	return nil
}

// Pause transitions Running -> Paused. Returns Conflict otherwise.
func (idx *Indexer) Pause() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.state != model.IndexerRunning {
		return radioerr.New(radioerr.Conflict, "indexer is not running")
	}
	idx.state = model.IndexerPaused
	return nil
}

// Resume transitions Paused -> Running. Returns Conflict otherwise.
func (idx *Indexer) Resume() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.state != model.IndexerPaused {
		return radioerr.New(radioerr.Conflict, "indexer is not paused")
	}
	idx.state = model.IndexerRunning
	return nil
}

// Stop transitions {Running, Paused} -> Stopping; the batch worker drains
// its current track and then moves to Idle on its own. Returns Conflict
// from any other state.
func (idx *Indexer) Stop() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.state != model.IndexerRunning && idx.state != model.IndexerPaused {
		return radioerr.New(radioerr.Conflict, "indexer is not running or paused")
	}
	idx.state = model.IndexerStopping
	return nil
}

func (idx *Indexer) runBatch(ctx context.Context, trackIDs []string) {
	for _, trackID := range trackIDs {
		for {
			state := idx.State()
			if state == model.IndexerStopping {
				idx.mu.Lock()
				idx.state = model.IndexerIdle
				idx.mu.Unlock()
				return
			}
			if state == model.IndexerPaused {
				time.Sleep(500 * time.Millisecond)
				continue
			}
			break
		}

		if err := idx.svc.ProcessTrack(ctx, trackID); err != nil {
			slog.Warn("aes indexer: track processing failed", "track_id", trackID, "error", err)
		}
	}

	idx.mu.Lock()
	if idx.state == model.IndexerRunning || idx.state == model.IndexerPaused {
		idx.state = model.IndexerIdle
	} else if idx.state == model.IndexerStopping {
		idx.state = model.IndexerIdle
	}
	idx.mu.Unlock()
}
