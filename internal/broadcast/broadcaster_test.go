package broadcast

import (
	"testing"

	"github.com/arung-agamani/denpa-radio/internal/model"
	"github.com/arung-agamani/denpa-radio/internal/pipeline"
)

// fakeSource is a minimal PipelineSource double confirming the interface is
// satisfiable; the playlist/segment tests in this file exercise state
// rendering directly and never call Start.
type fakeSource struct{}

func (fakeSource) ReadSamples(out []float32) int                  { return 0 }
func (fakeSource) Subscribe() (<-chan pipeline.Event, uint64)     { return nil, 0 }
func (fakeSource) Unsubscribe(id uint64)                          {}
func (fakeSource) Skip()                                          {}
func (fakeSource) CurrentTrack() *model.TrackState                { return nil }

var _ PipelineSource = fakeSource{}

func TestSegmentSizing_FrameAligned(t *testing.T) {
	samples, actual := segmentSizing(2.0)

	// 2.0s * 44100 * 2 = 176400 raw samples; frame = 1152*2 = 2304;
	// ceil(176400/2304) = 77 frames -> 77*2304 = 177408 samples.
	if samples != 177408 {
		t.Fatalf("samples_per_segment: want 177408, got %d", samples)
	}
	const want = 2.0 + 2.0/175.0 // 177408 / 88200
	if diff := actual - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("actual_segment_duration: want %.10f, got %.10f", want, actual)
	}
}

// TestRenderPlaylist_ScenarioF reproduces spec §8 Scenario F: a bit-exact
// playlist render with media_sequence 42, three segments, and a pending
// discontinuity, followed by a second render with the flag consumed.
func TestRenderPlaylist_ScenarioF(t *testing.T) {
	b := &Broadcaster{actualSegmentSecs: 2.0087}
	b.state = model.BroadcasterState{
		MediaSequence:        42,
		NextSequence:         45,
		DiscontinuityPending: true,
		Segments: []model.HlsSegment{
			{Sequence: 42, DurationSecs: 2.0087},
			{Sequence: 43, DurationSecs: 2.0087},
			{Sequence: 44, DurationSecs: 2.0087},
		},
	}

	want := "#EXTM3U\n" +
		"#EXT-X-VERSION:3\n" +
		"#EXT-X-TARGETDURATION:3\n" +
		"#EXT-X-MEDIA-SEQUENCE:42\n" +
		"#EXT-X-DISCONTINUITY\n" +
		"#EXTINF:2.009,\n" +
		"segment/42.mp3\n" +
		"#EXTINF:2.009,\n" +
		"segment/43.mp3\n" +
		"#EXTINF:2.009,\n" +
		"segment/44.mp3\n"

	got := b.RenderPlaylist()
	if got != want {
		t.Fatalf("playlist mismatch:\n--- want ---\n%s\n--- got ---\n%s", want, got)
	}

	// Second render, no intervening skip: discontinuity must not reappear.
	second := b.RenderPlaylist()
	if strContains(second, "#EXT-X-DISCONTINUITY") {
		t.Fatalf("discontinuity line reappeared on second render:\n%s", second)
	}
}

func TestGetSegment_OutOfWindowIsAbsent(t *testing.T) {
	b := &Broadcaster{}
	b.state = model.BroadcasterState{
		MediaSequence: 10,
		NextSequence:  13,
		Segments: []model.HlsSegment{
			{Sequence: 10},
			{Sequence: 11},
			{Sequence: 12},
		},
	}

	if _, ok := b.GetSegment(9); ok {
		t.Fatal("sequence below media_sequence must be absent")
	}
	if _, ok := b.GetSegment(13); ok {
		t.Fatal("sequence >= next_sequence must be absent")
	}
	if seg, ok := b.GetSegment(11); !ok || seg.Sequence != 11 {
		t.Fatal("sequence within window must be present")
	}
}

func strContains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
