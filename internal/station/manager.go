// Package station owns the per-station (AP, AB, refill task) lifecycle:
// starting, stopping, skipping, and periodically resyncing each station's
// playlist from the curator. Grounded on station_manager.rs's
// start_station/stop_station/skip_track/play_next_track contract, adapted
// from Rust's shared-state-behind-RwLock model onto per-station handles
// that own their own goroutines, per §9's cyclic-ownership note.
package station

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/arung-agamani/denpa-radio/internal/broadcast"
	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/pipeline"
	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

const (
	refillCheckInterval = 5 * time.Second
	refillLowWatermark  = 3 // QueueLength() at or below this triggers a refill
	refillBatchSize     = 10
)

// Curator is the narrow dependency the manager needs from internal/curator.
type Curator interface {
	Curate(ctx context.Context, query string, limit int) ([]string, error)
}

// TrackLookup resolves track ids into full records, satisfied by
// internal/store.Store.
type TrackLookup interface {
	GetTrack(ctx context.Context, id string) (*model.Track, bool, error)
}

// Fetcher is the AP-level PCM fetch dependency, satisfied by internal/asa.Adapter.
type Fetcher = pipeline.Fetcher

// StationStore is the subset of internal/store.Store the manager persists
// station state through.
type StationStore interface {
	PutStation(ctx context.Context, st model.Station) error
	GetStation(ctx context.Context, id string) (*model.Station, bool, error)
	ListStations(ctx context.Context) ([]model.Station, error)
	AppendPlaylistHistory(ctx context.Context, entry model.PlaylistHistoryEntry) error
}

// runtime holds the live (AP, AB) pair and refill goroutine state for one
// active station, grounded on ActiveStation's current_track/started_at
// fields plus the manager's own Pipeline/Broadcaster handles.
type runtime struct {
	pipeline    *pipeline.Pipeline
	broadcaster *broadcast.Broadcaster
	cancel      context.CancelFunc
}

// Manager owns every active station's runtime state, grounded on
// StationManager's active_stations map (here a plain mutex-guarded map
// rather than Arc<RwLock<HashMap<...>>>, since Go has no async runtime to
// hand the lock across).
type Manager struct {
	store    StationStore
	tracks   TrackLookup
	curator  Curator
	fetch    Fetcher
	apConfig pipeline.Config
	abConfig broadcast.Config

	mu       sync.RWMutex
	runtimes map[string]*runtime

	cronRunner *cron.Cron
}

// New builds a Manager. apConfig/abConfig are applied to every station's
// Pipeline/Broadcaster.
func New(store StationStore, tracks TrackLookup, curator Curator, fetch Fetcher, apConfig pipeline.Config, abConfig broadcast.Config) *Manager {
	return &Manager{
		store:    store,
		tracks:   tracks,
		curator:  curator,
		fetch:    fetch,
		apConfig: apConfig,
		abConfig: abConfig,
		runtimes: make(map[string]*runtime),
	}
}

// LoadActiveStations starts every station persisted as Active=true, per
// StationManager::load_active_stations.
func (m *Manager) LoadActiveStations(ctx context.Context) error {
	stations, err := m.store.ListStations(ctx)
	if err != nil {
		return radioerr.Wrap(radioerr.Persistence, "list stations", err)
	}

	for _, st := range stations {
		if !st.Active {
			continue
		}
		if err := m.StartStation(ctx, st.ID); err != nil {
			slog.Error("failed to start station", "station_id", st.ID, "error", err)
		}
	}
	return nil
}

// StartStation brings up a station's (AP, AB, refill task) triple and marks
// it active, per start_station.
func (m *Manager) StartStation(ctx context.Context, stationID string) error {
	m.mu.Lock()
	if _, exists := m.runtimes[stationID]; exists {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	st, ok, err := m.store.GetStation(ctx, stationID)
	if err != nil {
		return radioerr.Wrap(radioerr.Persistence, "get station", err)
	}
	if !ok {
		return radioerr.New(radioerr.NotFound, fmt.Sprintf("station %s not found", stationID))
	}

	runCtx, cancel := context.WithCancel(context.Background())

	p := pipeline.New(m.apConfig, m.fetch)
	b := broadcast.New(m.abConfig, p, st.ID)

	rt := &runtime{pipeline: p, broadcaster: b, cancel: cancel}
	m.mu.Lock()
	m.runtimes[stationID] = rt
	m.mu.Unlock()

	if err := m.refill(ctx, st, p); err != nil {
		slog.Warn("initial curation failed", "station_id", stationID, "error", err)
	}

	go p.Start(runCtx)
	go b.Start(runCtx)
	go m.refillLoop(runCtx, st, p)

	st.Active = true
	st.UpdatedAt = time.Now()
	if err := m.store.PutStation(ctx, *st); err != nil {
		return radioerr.Wrap(radioerr.Persistence, "persist station active state", err)
	}

	slog.Info("started station", "station_id", stationID, "name", st.Name)
	return nil
}

// StopStation tears down a station's runtime and marks it inactive, per
// stop_station. Cancelling runCtx drops the producer and consumer tasks
// and, with them, every reference the cycle in §9 describes.
func (m *Manager) StopStation(ctx context.Context, stationID string) error {
	m.mu.Lock()
	rt, ok := m.runtimes[stationID]
	if ok {
		delete(m.runtimes, stationID)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	rt.cancel()
	rt.broadcaster.Shutdown()

	st, exists, err := m.store.GetStation(ctx, stationID)
	if err != nil {
		return radioerr.Wrap(radioerr.Persistence, "get station", err)
	}
	if !exists {
		return nil
	}
	st.Active = false
	st.UpdatedAt = time.Now()
	if err := m.store.PutStation(ctx, *st); err != nil {
		return radioerr.Wrap(radioerr.Persistence, "persist station inactive state", err)
	}

	slog.Info("stopped station", "station_id", stationID)
	return nil
}

// SkipTrack advances a station's AP to the next queued track, per
// skip_track.
func (m *Manager) SkipTrack(stationID string) error {
	rt, ok := m.runtimeFor(stationID)
	if !ok {
		return radioerr.New(radioerr.NotFound, fmt.Sprintf("station %s not active", stationID))
	}
	rt.pipeline.Skip()
	return nil
}

// NowPlaying returns the currently playing track's state for a station,
// per get_now_playing (minus the heartbeat-driven listener count, which
// has no equivalent in this pull-based HLS model).
func (m *Manager) NowPlaying(stationID string) (*model.TrackState, bool) {
	rt, ok := m.runtimeFor(stationID)
	if !ok {
		return nil, false
	}
	return rt.pipeline.CurrentTrack(), true
}

// Broadcaster returns the live Broadcaster for a station, for the HTTP
// control surface to serve HLS playlists/segments and visualization
// subscriptions from.
func (m *Manager) Broadcaster(stationID string) (*broadcast.Broadcaster, bool) {
	rt, ok := m.runtimeFor(stationID)
	if !ok {
		return nil, false
	}
	return rt.broadcaster, true
}

func (m *Manager) runtimeFor(stationID string) (*runtime, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.runtimes[stationID]
	return rt, ok
}

// refillLoop is the per-station refill task from §9: it watches AP's queue
// length and tops it up from the curator whenever it runs low, never
// holding a lock across the curation call (a suspension point per §5's
// "never hold a write lock across a suspension").
func (m *Manager) refillLoop(ctx context.Context, st *model.Station, p *pipeline.Pipeline) {
	ticker := time.NewTicker(refillCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.QueueLength() > refillLowWatermark {
				continue
			}
			if err := m.refill(ctx, st, p); err != nil {
				slog.Warn("refill failed", "station_id", st.ID, "error", err)
			}
		}
	}
}

// refill curates refillBatchSize more tracks and enqueues them, recording
// each as playlist history, per play_next_track's insert-then-update flow.
func (m *Manager) refill(ctx context.Context, st *model.Station, p *pipeline.Pipeline) error {
	query := curationQuery(st)
	ids, err := m.curator.Curate(ctx, query, refillBatchSize)
	if err != nil {
		return radioerr.Wrap(radioerr.Internal, "curate refill batch", err)
	}

	for _, id := range ids {
		track, ok, err := m.tracks.GetTrack(ctx, id)
		if err != nil || !ok {
			continue
		}
		p.QueueTrack(model.QueuedTrack{TrackID: track.ID, Title: track.Title, Artist: track.Artist})

		if err := m.store.AppendPlaylistHistory(ctx, model.PlaylistHistoryEntry{
			StationID: st.ID,
			TrackID:   track.ID,
			PlayedAt:  time.Now(),
		}); err != nil {
			slog.Warn("failed to record playlist history", "station_id", st.ID, "track_id", track.ID, "error", err)
		}
	}
	return nil
}

func curationQuery(st *model.Station) string {
	if st.Description != "" {
		return st.Description
	}
	return st.Name
}

// StartResyncCron schedules a periodic full resync of every active
// station's playlist, adapted from internal/playlist/scheduler.go's ticker
// loop onto github.com/robfig/cron/v3, per SPEC_FULL §11.
func (m *Manager) StartResyncCron(spec string) error {
	m.cronRunner = cron.New()
	_, err := m.cronRunner.AddFunc(spec, func() {
		m.mu.RLock()
		ids := make([]string, 0, len(m.runtimes))
		for id := range m.runtimes {
			ids = append(ids, id)
		}
		m.mu.RUnlock()

		for _, id := range ids {
			st, ok, err := m.store.GetStation(context.Background(), id)
			if err != nil || !ok {
				continue
			}
			rt, ok := m.runtimeFor(id)
			if !ok {
				continue
			}
			if err := m.refill(context.Background(), st, rt.pipeline); err != nil {
				slog.Warn("cron resync failed", "station_id", id, "error", err)
			}
		}
	})
	if err != nil {
		return radioerr.Wrap(radioerr.Internal, "schedule resync cron", err)
	}
	m.cronRunner.Start()
	return nil
}

// StopResyncCron halts the cron scheduler, if running.
func (m *Manager) StopResyncCron() {
	if m.cronRunner != nil {
		m.cronRunner.Stop()
	}
}
