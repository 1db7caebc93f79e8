package pipeline

import "github.com/arung-agamani/denpa-radio/internal/model"

// EventKind tags the closed set of events an AP publishes (§9: tagged
// variant, exhaustively matched, not an open interface hierarchy).
type EventKind int

const (
	EventTrackStarted EventKind = iota
	EventTrackEnded
	EventStopped
	EventError
)

// Event is a pipeline event as described in §4.2's subscribe() contract.
type Event struct {
	Kind     EventKind
	State    model.TrackState // valid for EventTrackStarted
	TrackID  string           // valid for EventTrackEnded
	Err      error            // valid for EventError
}
