package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/crossbar/internal/matrix"
)

// Availability describes how far the stored status can be trusted.
//
// Stale always means there is a last good status to fall back on. Failures
// before the first success therefore leave the store Uninitialized, with the
// error in Snapshot.LastError; readers tell "connecting" from "unreachable"
// by checking LastError.
type Availability int

const (
	// Uninitialized means no fetch has succeeded yet.
	Uninitialized Availability = iota
	// Fresh means the most recent fetch succeeded.
	Fresh
	// Stale means the most recent fetch failed; Status is the last good value.
	Stale
)

func (a Availability) String() string {
	switch a {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "uninitialized"
	}
}

// Snapshot represents the latest matrix data available to readers.
type Snapshot struct {
	Status              matrix.Status
	Availability        Availability
	LastUpdated         time.Time // last attempt, successful or not
	LastSuccess         time.Time
	LastError           error
	ConsecutiveFailures int
	Generation          uint64 // bumped on every successful update
}

// HasStatus reports whether Status holds data from a successful fetch.
func (s Snapshot) HasStatus() bool {
	return s.Availability != Uninitialized
}

// IsOffline returns true when the device has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Update replaces the stored snapshot. When err is non-nil the previous
// status is kept, availability drops to Stale (or stays Uninitialized) and
// the error is recorded for visibility.
func (s *Store) Update(status *matrix.Status, err error) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.snapshot.LastUpdated = now

	if err != nil || status == nil {
		if err == nil {
			err = fmt.Errorf("empty status")
		}
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		if s.snapshot.Availability == Fresh {
			s.snapshot.Availability = Stale
		}
		return s.cloneLocked()
	}

	s.snapshot.Status = status.Clone()
	s.snapshot.Availability = Fresh
	s.snapshot.LastSuccess = now
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
	s.snapshot.Generation++
	return s.cloneLocked()
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloneLocked()
}

func (s *Store) cloneLocked() Snapshot {
	snap := s.snapshot
	snap.Status = s.snapshot.Status.Clone()
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}
