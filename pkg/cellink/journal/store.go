// Package journal records per-node outcomes of scheduler runs.
//
// A journal holds one entry per (run, node): which nodes ran, which died,
// how long each forward computation took and the error it raised. It never
// stores graph structure or node payloads.
package journal

import (
	"errors"
	"time"
)

// Node statuses recorded in an Entry.
const (
	StatusRan  = "ran"
	StatusDead = "dead"
)

// Entry is the journaled outcome of one node in one run.
type Entry struct {
	RunID  string
	NodeID string
	// Node is the surface name of the node.
	Node  string
	Layer int
	// Status is StatusRan or StatusDead.
	Status string
	// Success is the forward result of a node that ran without error.
	Success    bool
	Error      string
	DurationMs float64

	// Sequence and Timestamp are assigned by the store.
	Sequence  int
	Timestamp time.Time
}

// Store persists journal entries. Implementations must be safe for
// concurrent use.
type Store interface {
	// Record stores e, replacing any entry for the same (RunID, NodeID).
	// The stored entry gets the next sequence number of its run.
	Record(e Entry) error

	// Get returns the entry for (runID, nodeID), or ErrNotFound.
	Get(runID, nodeID string) (Entry, error)

	// List returns every entry of a run ordered by sequence. An unknown run
	// yields an empty slice.
	List(runID string) ([]Entry, error)

	// DeleteRun removes every entry of a run.
	DeleteRun(runID string) error

	// Close releases the store's resources.
	Close() error
}

var (
	// ErrNotFound indicates no entry exists for the requested key.
	ErrNotFound = errors.New("journal entry not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
