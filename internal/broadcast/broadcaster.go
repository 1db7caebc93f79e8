// Package broadcast implements the Audio Broadcaster (AB, §4.3): it
// consumes PCM from one AP, drives a persistent MP3 encoder on a dedicated
// worker, maintains a sliding-window HLS segment buffer, and publishes
// real-time visualization frames.
//
// Grounded on original_source/backend/src/services/audio_broadcaster.rs
// (AudioBroadcaster, BroadcasterState, HlsSegment, the encoding loop's
// clear_buffers / pipeline-event-drain / real-time-pacing / segment-window
// structure) and on the teacher's internal/radio/stream.go for the
// client-subscriber broadcast idiom (buffered per-subscriber channels,
// non-blocking fan-out, RWMutex-guarded state).
package broadcast

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arung-agamani/denpa-radio/internal/mp3"
	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/pipeline"
)

const (
	frameSamples = 1152 * mp3.Channels // one MP3 frame, interleaved

	vizRateHz       = 30
	fftSize         = 2048
	spectrumBars    = 64
	beatHistoryLen  = 43 // ~1.4s at 30Hz
	beatMinInterval = 150 * time.Millisecond
	maxLeadSegments = 3
	vizChanCapacity = 100
)

// PipelineSource is the narrow dependency AB needs from AP.
type PipelineSource interface {
	ReadSamples(out []float32) int
	Subscribe() (<-chan pipeline.Event, uint64)
	Unsubscribe(id uint64)
	Skip()
	CurrentTrack() *model.TrackState
}

// Config carries the fixed parameters of one broadcaster instance.
type Config struct {
	SegmentDuration time.Duration // nominal; actual is frame-aligned, see SamplesPerSegment
	PlaylistLength  int
}

// Broadcaster is the Audio Broadcaster for one station.
type Broadcaster struct {
	cfg      Config
	src      PipelineSource
	encoder  *mp3.Encoder
	station  string

	samplesPerSegment int
	actualSegmentSecs float64

	mu    sync.RWMutex
	state model.BroadcasterState

	vizMu     sync.Mutex
	vizSubs   map[uint64]chan VisualizationData
	nextVizID uint64

	running   atomic.Bool
	startedAt atomic.Int64 // unix millis

	clearBuffers atomic.Bool
}

// New constructs a broadcaster. station is used only for log context.
func New(cfg Config, src PipelineSource, station string) *Broadcaster {
	if cfg.SegmentDuration <= 0 {
		cfg.SegmentDuration = 2 * time.Second
	}
	if cfg.PlaylistLength <= 0 {
		cfg.PlaylistLength = 5
	}

	samplesPerSegment, actualSecs := segmentSizing(cfg.SegmentDuration.Seconds())

	b := &Broadcaster{
		cfg:               cfg,
		src:               src,
		encoder:           mp3.New(),
		station:           station,
		samplesPerSegment: samplesPerSegment,
		actualSegmentSecs: actualSecs,
		vizSubs:           make(map[uint64]chan VisualizationData),
	}
	b.state.Segments = make([]model.HlsSegment, 0, cfg.PlaylistLength+2)
	return b
}

// segmentSizing computes samples_per_segment and actual_segment_duration
// per §4.3.2: segments must be a whole number of MP3 frames.
func segmentSizing(segmentDurationSecs float64) (int, float64) {
	rawSamples := int(math.Round(segmentDurationSecs * mp3.SampleRate * mp3.Channels))
	segments := int(math.Ceil(float64(rawSamples) / float64(frameSamples)))
	if segments < 1 {
		segments = 1
	}
	samplesPerSegment := segments * frameSamples
	actualSecs := float64(samplesPerSegment) / float64(mp3.SampleRate*mp3.Channels)
	return samplesPerSegment, actualSecs
}

// ActualSegmentDuration returns the frame-aligned segment duration that
// replaces the configured nominal value in playlist rendering and pacing.
func (b *Broadcaster) ActualSegmentDuration() float64 {
	return b.actualSegmentSecs
}

// Running reports whether the broadcast loop is active.
func (b *Broadcaster) Running() bool {
	return b.running.Load()
}

// Skip performs §4.3.4's skip protocol: mark buffers for clearing, reset the
// encoder, skip the pipeline, clear the sliding window and mark a pending
// discontinuity, then wait briefly for the first post-skip segment.
func (b *Broadcaster) Skip(ctx context.Context) error {
	b.clearBuffers.Store(true)

	if err := b.encoder.Reset(); err != nil {
		slog.Warn("broadcaster: encoder reset failed during skip", "station", b.station, "error", err)
	}

	b.src.Skip()

	b.mu.Lock()
	dropped := uint64(len(b.state.Segments))
	b.state.Segments = b.state.Segments[:0]
	b.state.MediaSequence += dropped
	b.state.DiscontinuityPending = true
	targetSeq := b.state.NextSequence
	b.mu.Unlock()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		b.mu.RLock()
		have := len(b.state.Segments) > 0 && b.state.NextSequence > targetSeq
		b.mu.RUnlock()
		if have {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil // timeout: spec says return success regardless
}

// Stop terminates the broadcast loop started by Start.
func (b *Broadcaster) Stop() {
	b.running.Store(false)
}

// Shutdown stops the loop and releases the encoder worker.
func (b *Broadcaster) Shutdown() {
	b.Stop()
	if err := b.encoder.Shutdown(); err != nil {
		slog.Warn("broadcaster: encoder shutdown failed", "station", b.station, "error", err)
	}
}

// Start runs the broadcast loop until ctx is cancelled, Stop is called, or
// the pipeline reports Stopped. It blocks; callers run it in its own
// goroutine.
func (b *Broadcaster) Start(ctx context.Context) {
	if b.running.Swap(true) {
		return // already running
	}
	defer b.running.Store(false)

	b.startedAt.Store(time.Now().UnixMilli())
	broadcastStart := time.Now()

	events, subID := b.src.Subscribe()
	defer b.src.Unsubscribe(subID)

	sampleBuf := make([]float32, 0, b.samplesPerSegment)
	vizBuf := make([]float32, 0, mp3.SampleRate/vizRateHz*mp3.Channels)
	var history []float64
	var lastBeat time.Duration
	var currentTrackID string

	readBuf := make([]float32, 4096)
	samplesPerViz := mp3.SampleRate / vizRateHz * mp3.Channels

	for b.running.Load() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if b.clearBuffers.Swap(false) {
			sampleBuf = sampleBuf[:0]
			vizBuf = vizBuf[:0]
			history = history[:0]
		}

		drainPipelineEvents(events, &currentTrackID, b)
		if !b.running.Load() {
			return
		}

		n := b.src.ReadSamples(readBuf)
		if n == 0 {
			sleepOrDone(ctx, 10*time.Millisecond)
			continue
		}
		sampleBuf = append(sampleBuf, readBuf[:n]...)
		vizBuf = append(vizBuf, readBuf[:n]...)

		for len(vizBuf) >= samplesPerViz {
			window := vizBuf[:samplesPerViz]
			timestamp := time.Since(time.UnixMilli(b.startedAt.Load()))
			spectrum, level := computeVisualization(window)
			beat := detectBeat(level, &history, &lastBeat, timestamp)
			b.publishViz(VisualizationData{
				TimestampMs: timestamp.Milliseconds(),
				Spectrum:    spectrum,
				Level:       level,
				Beat:        beat,
				TrackID:     currentTrackID,
			})
			vizBuf = vizBuf[samplesPerViz:]
		}

		if len(sampleBuf) >= b.samplesPerSegment {
			b.paceRealTime(broadcastStart)

			segmentSamples := sampleBuf[:b.samplesPerSegment]
			sampleBuf = append(sampleBuf[:0], sampleBuf[b.samplesPerSegment:]...)

			payload, err := b.encoder.Encode(segmentSamples)
			if err != nil {
				slog.Warn("broadcaster: segment encode failed, dropping", "station", b.station, "error", err)
				continue
			}
			if len(payload) == 0 {
				continue
			}
			maxBound := int(1.25*float64(len(segmentSamples)/mp3.Channels)) + 7200
			if len(payload) > maxBound {
				slog.Warn("broadcaster: segment exceeded defensive bound, dropping", "station", b.station)
				continue
			}

			b.appendSegment(payload, currentTrackID)
		}
	}
}

func drainPipelineEvents(events <-chan pipeline.Event, currentTrackID *string, b *Broadcaster) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case pipeline.EventTrackStarted:
				*currentTrackID = ev.State.TrackID
				b.mu.Lock()
				b.state.CurrentTrackID = ev.State.TrackID
				b.mu.Unlock()
			case pipeline.EventStopped:
				b.running.Store(false)
				return
			case pipeline.EventError:
				slog.Warn("broadcaster: pipeline error", "station", b.station, "error", ev.Err)
			}
		default:
			return
		}
	}
}

func (b *Broadcaster) paceRealTime(broadcastStart time.Time) {
	b.mu.RLock()
	nextSeq := b.state.NextSequence
	b.mu.RUnlock()

	expectedMs := float64(nextSeq) * b.actualSegmentSecs * 1000
	elapsedMs := float64(time.Since(broadcastStart).Milliseconds())
	maxLeadMs := float64(maxLeadSegments) * b.actualSegmentSecs * 1000

	if elapsedMs+maxLeadMs < expectedMs {
		wait := time.Duration(expectedMs-elapsedMs-maxLeadMs) * time.Millisecond
		time.Sleep(wait)
	}
}

func (b *Broadcaster) appendSegment(payload []byte, trackID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seq := b.state.NextSequence
	b.state.NextSequence++
	b.state.Segments = append(b.state.Segments, model.HlsSegment{
		Sequence:     seq,
		DurationSecs: b.actualSegmentSecs,
		Payload:      payload,
		TrackID:      trackID,
	})

	for len(b.state.Segments) > b.cfg.PlaylistLength+2 {
		b.state.Segments = b.state.Segments[1:]
		b.state.MediaSequence++
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
