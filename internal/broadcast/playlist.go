package broadcast

import (
	"fmt"
	"math"
	"strings"

	"github.com/arung-agamani/denpa-radio/internal/model"
)

// RenderPlaylist produces the HLS media playlist exactly per §4.3.6 /
// Scenario F. Rendering consumes DiscontinuityPending: the first call after
// a skip emits #EXT-X-DISCONTINUITY once, and clears the flag.
func (b *Broadcaster) RenderPlaylist() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	sb.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(&sb, "#EXT-X-TARGETDURATION:%d\n", int(math.Ceil(b.actualSegmentSecs)))
	fmt.Fprintf(&sb, "#EXT-X-MEDIA-SEQUENCE:%d\n", b.state.MediaSequence)

	discontinuity := b.state.DiscontinuityPending
	b.state.DiscontinuityPending = false

	for i, seg := range b.state.Segments {
		if i == 0 && discontinuity {
			sb.WriteString("#EXT-X-DISCONTINUITY\n")
		}
		fmt.Fprintf(&sb, "#EXTINF:%.3f,\n", seg.DurationSecs)
		fmt.Fprintf(&sb, "segment/%d.mp3\n", seg.Sequence)
	}

	return sb.String()
}

// GetSegment performs §4.3.7's lookup: a sequence outside the live window
// returns (zero, false), which the HTTP boundary maps to 404.
func (b *Broadcaster) GetSegment(sequence uint64) (model.HlsSegment, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if sequence < b.state.MediaSequence || sequence >= b.state.NextSequence {
		return model.HlsSegment{}, false
	}
	for _, seg := range b.state.Segments {
		if seg.Sequence == sequence {
			return seg, true
		}
	}
	return model.HlsSegment{}, false
}

// SegmentCount returns the number of segments currently in the sliding window.
func (b *Broadcaster) SegmentCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.state.Segments)
}
