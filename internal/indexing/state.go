package indexing

import (
	"fmt"
	"time"

	"github.com/standardbeagle/scriptref/internal/index"
)

// State is the readiness of the index
type State int32

const (
	// StateEmpty means no rebuild has completed since creation or the last reset
	StateEmpty State = iota
	// StatePopulating means a rebuild is in flight; queries answer ErrNotReady
	StatePopulating
	// StateReady means the store reflects a complete scan plus every change since
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePopulating:
		return "populating"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Stats is a point-in-time snapshot of coordinator activity
type Stats struct {
	State      State  `json:"state"`
	Generation uint64 `json:"generation"`

	PendingUpserts int `json:"pendingUpserts"`
	PendingDeletes int `json:"pendingDeletes"`

	Rebuilds            int64         `json:"rebuilds"`
	DocumentsEnumerated int           `json:"documentsEnumerated"`
	DocumentsScanned    int64         `json:"documentsScanned"`
	ReadFailures        int64         `json:"readFailures"`
	UnchangedSkips      int64         `json:"unchangedSkips"`
	EventsApplied       int64         `json:"eventsApplied"`
	EventsBuffered      int64         `json:"eventsBuffered"`
	LastRebuildDuration time.Duration `json:"lastRebuildDuration"`
	LastRebuildAt       time.Time     `json:"lastRebuildAt"`
	LastError           string        `json:"lastError,omitempty"`

	Store index.Stats `json:"store"`
}

// MarshalText renders the state by name in JSON output
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
