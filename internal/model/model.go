// Package model holds the shared data types of §3 of the specification:
// the plain records that flow between ASA, AP, AB, AES and CUR. None of
// these types carry behaviour beyond small pure helpers (String,
// PositionSecs, DurationSecs); they are passed by value or pointer between
// components that each own their own concurrency discipline.
package model

import "time"

// Track is persisted library metadata, immutable from the pipeline's
// perspective.
type Track struct {
	ID            string
	Title         string
	Artist        string
	Album         string
	Year          int
	DurationSecs  int
	Genres        []string
	Path          string
	MoodTags      []string
	EnergyLevel   float64
	Danceability  float64
	Valence       float64
	Acousticness  float64
	Instrumental  float64
	SongType      []string
	Themes        []string
	AIAnalyzed    bool
}

// PCM is a finite, interleaved-stereo float32 sample vector in [-1, 1] at
// 44100 Hz. len(Samples) is always a multiple of Channels.
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// QueuedTrack is enqueued into an AP's FIFO.
type QueuedTrack struct {
	TrackID string
	Title   string
	Artist  string
}

// TrackState is the AP-observable snapshot of the currently playing track.
type TrackState struct {
	TrackID      string
	Title        string
	Artist       string
	DurationSecs float64
	PositionSecs float64
}

// BufferedTrack is AP-internal bookkeeping for the track currently being
// drained out of the PCM ring. 0 <= ConsumedSamples <= TotalSamples.
type BufferedTrack struct {
	TrackID         string
	Title           string
	Artist          string
	TotalSamples    int
	ConsumedSamples int
}

// PositionSecs derives sample-accurate position from consumed samples.
func (b *BufferedTrack) PositionSecs(sampleRate, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := b.ConsumedSamples / channels
	return float64(frames) / float64(sampleRate)
}

// DurationSecs derives total duration from total samples.
func (b *BufferedTrack) DurationSecs(sampleRate, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := b.TotalSamples / channels
	return float64(frames) / float64(sampleRate)
}

// HlsSegment is one self-synchronized slice of the live stream.
type HlsSegment struct {
	Sequence     uint64
	DurationSecs float64
	Payload      []byte
	TrackID      string
}

// BroadcasterState is the pure data shape behind AB's sliding window;
// Broadcaster in internal/broadcast owns the concurrency around it.
type BroadcasterState struct {
	Segments            []HlsSegment
	NextSequence         uint64
	MediaSequence        uint64
	CurrentTrackID       string
	DiscontinuityPending bool
}

// EmbeddingRecord is a persisted unit-length 100-d audio embedding.
type EmbeddingRecord struct {
	TrackID         string
	Vector          [100]float32
	ComputedAt      time.Time
	ProcessingTime  time.Duration
	VizX            *float64
	VizY            *float64
}

// EmbeddingFailure records a retryable per-track embedding failure.
type EmbeddingFailure struct {
	TrackID      string
	ErrorMessage string
	ErrorType    string
	AttemptCount int
	LastAttempt  time.Time
}

// VisualizationConfig is the process-wide 2-D projection basis (singleton).
type VisualizationConfig struct {
	PC1        [100]float32
	PC2        [100]float32
	Mean       [100]float32
	TrackCount int
	UpdatedAt  time.Time
}

// MatchType tags how a VerifiedSeed was matched against the library.
type MatchType int

const (
	MatchExact MatchType = iota
	MatchFuzzy
	MatchLibraryPick
)

func (m MatchType) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchFuzzy:
		return "fuzzy"
	case MatchLibraryPick:
		return "library_pick"
	default:
		return "unknown"
	}
}

// VerifiedSeed is a curator seed track matched to a real library entry.
type VerifiedSeed struct {
	TrackID   string
	Title     string
	Artist    string
	Genres    []string
	MatchType MatchType
	Position  int
}

// PlaylistHistoryEntry records one played (or skipped) track for a station,
// per §6's playlist_history table.
type PlaylistHistoryEntry struct {
	StationID string
	TrackID   string
	PlayedAt  time.Time
	Skipped   bool
}

// StationConfig holds the tunables a station's (AP, AB) pair is built with.
type StationConfig struct {
	SegmentDurationSecs float64
	PlaylistLength      int
	BufferSeconds       int
}

// Station is the persisted description of one radio station, per §6's
// `stations` table: its identity, curation inputs, and an ordered track
// list (TrackIDs), which internal/station neither reads nor writes.
type Station struct {
	ID          string
	Path        string
	Name        string
	Description string
	Genres      []string
	MoodTags    []string
	TrackIDs    []string
	Config      StationConfig
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IndexerState is the process-wide embedding-indexer control state (§4.4.5).
type IndexerState int

const (
	IndexerIdle IndexerState = iota
	IndexerRunning
	IndexerPaused
	IndexerStopping
)

func (s IndexerState) String() string {
	switch s {
	case IndexerRunning:
		return "running"
	case IndexerPaused:
		return "paused"
	case IndexerStopping:
		return "stopping"
	default:
		return "idle"
	}
}
