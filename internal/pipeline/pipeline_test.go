package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/denpa-radio/internal/model"
)

// fakeFetcher returns a constant (0.5) PCM vector of the configured length,
// letting tests assert on sample counts without decoding real audio.
type fakeFetcher struct {
	samplesPerTrack map[string]int
}

func (f *fakeFetcher) FetchPCM(ctx context.Context, trackID string) (*model.PCM, error) {
	n := f.samplesPerTrack[trackID]
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.5
	}
	return &model.PCM{Samples: samples, SampleRate: 44100, Channels: 2}, nil
}

func TestPipeline_ConcatenatesTracksInOrder(t *testing.T) {
	fetcher := &fakeFetcher{samplesPerTrack: map[string]int{
		"a": 2000,
		"b": 3000,
	}}
	p := New(Config{SampleRate: 44100, Channels: 2, BufferSeconds: 1}, fetcher)

	events, subID := p.Subscribe()
	defer p.Unsubscribe(subID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	p.QueueTrack(model.QueuedTrack{TrackID: "a"})
	p.QueueTrack(model.QueuedTrack{TrackID: "b"})

	var drained []float32
	out := make([]float32, 512)
	deadline := time.Now().Add(3 * time.Second)
	endedCount := 0
	var endedIDs []string
	for time.Now().Before(deadline) && endedCount < 2 {
		n := p.ReadSamples(out)
		if n > 0 {
			drained = append(drained, out[:n]...)
		}
		select {
		case ev := <-events:
			if ev.Kind == EventTrackEnded {
				endedCount++
				endedIDs = append(endedIDs, ev.TrackID)
			}
		case <-time.After(5 * time.Millisecond):
		}
	}

	assert.Equal(t, 2, endedCount)
	assert.Equal(t, []string{"a", "b"}, endedIDs)
	assert.Len(t, drained, 5000)
}

func TestPipeline_SkipEmitsTrackEndedAndClearsBuffer(t *testing.T) {
	fetcher := &fakeFetcher{samplesPerTrack: map[string]int{"a": 100000, "b": 10}}
	p := New(Config{SampleRate: 44100, Channels: 2, BufferSeconds: 10}, fetcher)

	events, subID := p.Subscribe()
	defer p.Unsubscribe(subID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	p.QueueTrack(model.QueuedTrack{TrackID: "a"})

	require.Eventually(t, func() bool {
		return p.CurrentTrack() != nil
	}, time.Second, 5*time.Millisecond)

	p.Skip()

	var sawEnded bool
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-events:
			if ev.Kind == EventTrackEnded && ev.TrackID == "a" {
				sawEnded = true
			}
		case <-time.After(5 * time.Millisecond):
		}
		if sawEnded {
			break
		}
	}
	assert.True(t, sawEnded)
	assert.Equal(t, 0.0, p.BufferLevel())
}

func TestPipeline_ReadSamplesReturnsZeroWhenEmpty(t *testing.T) {
	p := New(Config{SampleRate: 44100, Channels: 2, BufferSeconds: 10}, &fakeFetcher{})
	out := make([]float32, 10)
	assert.Equal(t, 0, p.ReadSamples(out))
}
