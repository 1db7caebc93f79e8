// Package pipeline implements the Audio Pipeline (AP, §4.2): a per-station
// producer that owns a bounded FIFO of PCM samples, pulling tracks from a
// queue, decoding them via ASA, and presenting a continuous sample stream
// to the broadcaster.
//
// Grounded on original_source/backend/src/services/audio_pipeline.rs:
// AudioBuffer, BufferedTrack, PipelineState, PipelineEvent and the
// producer loop's drain-commands / fetch-when-below-half-capacity /
// sleep-500ms-or-50ms structure.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arung-agamani/denpa-radio/internal/model"
)

// Fetcher is the narrow dependency AP needs from ASA.
type Fetcher interface {
	FetchPCM(ctx context.Context, trackID string) (*model.PCM, error)
}

type commandKind int

const (
	cmdSkip commandKind = iota
	cmdStop
)

type command struct {
	kind  commandKind
	track model.QueuedTrack
}

// Config carries the fixed parameters of one pipeline instance.
type Config struct {
	SampleRate    int
	Channels      int
	BufferSeconds float64
}

// Pipeline is the Audio Pipeline for one station.
type Pipeline struct {
	cfg    Config
	fetch  Fetcher
	maxLen int

	mu      sync.Mutex // guards buffer + current, per §5's single RW-lock discipline
	buffer  []float32
	current *model.BufferedTrack

	queueMu sync.Mutex
	queue   []model.QueuedTrack

	controlCh chan command

	subMu     sync.Mutex
	subs      map[uint64]chan Event
	nextSubID uint64

	runningMu sync.RWMutex
	running   bool
}

func New(cfg Config, fetch Fetcher) *Pipeline {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}
	if cfg.BufferSeconds == 0 {
		cfg.BufferSeconds = 10.0
	}
	return &Pipeline{
		cfg:       cfg,
		fetch:     fetch,
		maxLen:    int(cfg.BufferSeconds * float64(cfg.SampleRate) * float64(cfg.Channels)),
		controlCh: make(chan command, 16),
		subs:      make(map[uint64]chan Event),
	}
}

// QueueTrack enqueues at the tail. Never blocks logically: the queue is an
// unbounded mutex-guarded slice.
func (p *Pipeline) QueueTrack(t model.QueuedTrack) {
	p.queueMu.Lock()
	p.queue = append(p.queue, t)
	p.queueMu.Unlock()
}

// QueueLength returns the number of tracks waiting to be fetched.
func (p *Pipeline) QueueLength() int {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	return len(p.queue)
}

func (p *Pipeline) popQueue() (model.QueuedTrack, bool) {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	if len(p.queue) == 0 {
		return model.QueuedTrack{}, false
	}
	t := p.queue[0]
	p.queue = p.queue[1:]
	return t, true
}

// Skip discards the current track's remaining samples and arranges for the
// next queued track to load. Non-blocking; safe from any goroutine.
func (p *Pipeline) Skip() {
	select {
	case p.controlCh <- command{kind: cmdSkip}:
	default:
	}
}

// Stop terminates the producer task. Non-blocking; safe from any goroutine.
func (p *Pipeline) Stop() {
	select {
	case p.controlCh <- command{kind: cmdStop}:
	default:
	}
}

// CurrentTrack returns a snapshot of the currently playing track, or nil.
func (p *Pipeline) CurrentTrack() *model.TrackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	return &model.TrackState{
		TrackID:      p.current.TrackID,
		Title:        p.current.Title,
		Artist:       p.current.Artist,
		DurationSecs: p.current.DurationSecs(p.cfg.SampleRate, p.cfg.Channels),
		PositionSecs: p.current.PositionSecs(p.cfg.SampleRate, p.cfg.Channels),
	}
}

// ReadSamples drains up to len(out) interleaved samples from the head of
// the internal buffer, advances the current track's consumed-sample count,
// and emits TrackEnded if the track is now fully drained. Returns the
// number of samples copied; 0 if nothing is available.
func (p *Pipeline) ReadSamples(out []float32) int {
	p.mu.Lock()
	if len(p.buffer) == 0 || p.current == nil {
		p.mu.Unlock()
		return 0
	}
	n := len(out)
	if n > len(p.buffer) {
		n = len(p.buffer)
	}
	copy(out[:n], p.buffer[:n])
	p.buffer = p.buffer[n:]
	p.current.ConsumedSamples += n

	var endedID string
	ended := p.current.ConsumedSamples >= p.current.TotalSamples
	if ended {
		endedID = p.current.TrackID
		p.current = nil
	}
	p.mu.Unlock()

	if ended {
		p.emit(Event{Kind: EventTrackEnded, TrackID: endedID})
	}
	return n
}

// BufferLevel returns current occupancy as a fraction of capacity.
func (p *Pipeline) BufferLevel() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxLen == 0 {
		return 0
	}
	return float64(len(p.buffer)) / float64(p.maxLen)
}

// Subscribe registers a new lossy event receiver. The caller must call
// Unsubscribe when done.
func (p *Pipeline) Subscribe() (<-chan Event, uint64) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	id := p.nextSubID
	p.nextSubID++
	ch := make(chan Event, 64)
	p.subs[id] = ch
	return ch, id
}

func (p *Pipeline) Unsubscribe(id uint64) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	if ch, ok := p.subs[id]; ok {
		delete(p.subs, id)
		close(ch)
	}
}

func (p *Pipeline) emit(ev Event) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber drops the event; it must never block the producer.
		}
	}
}

func (p *Pipeline) setRunning(v bool) {
	p.runningMu.Lock()
	p.running = v
	p.runningMu.Unlock()
}

func (p *Pipeline) Running() bool {
	p.runningMu.RLock()
	defer p.runningMu.RUnlock()
	return p.running
}

// Start runs the producer loop until ctx is cancelled or Stop() is called.
// It blocks; callers run it in its own goroutine.
func (p *Pipeline) Start(ctx context.Context) {
	p.setRunning(true)
	defer p.setRunning(false)

	for {
		if stop := p.drainControl(); stop {
			p.emit(Event{Kind: EventStopped})
			return
		}

		select {
		case <-ctx.Done():
			p.emit(Event{Kind: EventStopped})
			return
		default:
		}

		p.mu.Lock()
		occupancy := len(p.buffer)
		hasCurrent := p.current != nil
		p.mu.Unlock()

		if occupancy < p.maxLen/2 && !hasCurrent {
			track, ok := p.popQueue()
			if !ok {
				sleepOrDone(ctx, 500*time.Millisecond)
				continue
			}

			pcm, err := p.fetch.FetchPCM(ctx, track.TrackID)
			if err != nil {
				slog.Warn("track decode failed, advancing queue",
					"track_id", track.TrackID, "error", err)
				p.emit(Event{Kind: EventError, Err: err})
				continue
			}

			p.mu.Lock()
			p.current = &model.BufferedTrack{
				TrackID:      track.TrackID,
				Title:        track.Title,
				Artist:       track.Artist,
				TotalSamples: len(pcm.Samples),
			}
			p.buffer = append(p.buffer, pcm.Samples...)
			p.mu.Unlock()

			p.emit(Event{Kind: EventTrackStarted, State: model.TrackState{
				TrackID: track.TrackID,
				Title:   track.Title,
				Artist:  track.Artist,
				DurationSecs: float64(len(pcm.Samples)/p.cfg.Channels) / float64(p.cfg.SampleRate),
			}})
		} else {
			sleepOrDone(ctx, 50*time.Millisecond)
		}
	}
}

// drainControl processes every pending control command without blocking.
// Returns true if a Stop command was observed.
func (p *Pipeline) drainControl() bool {
	for {
		select {
		case cmd := <-p.controlCh:
			switch cmd.kind {
			case cmdSkip:
				p.doSkip()
			case cmdStop:
				return true
			}
		default:
			return false
		}
	}
}

func (p *Pipeline) doSkip() {
	p.mu.Lock()
	var skippedID string
	if p.current != nil {
		skippedID = p.current.TrackID
	}
	p.buffer = p.buffer[:0]
	p.current = nil
	p.mu.Unlock()

	if skippedID != "" {
		p.emit(Event{Kind: EventTrackEnded, TrackID: skippedID})
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
