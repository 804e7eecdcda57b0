// Package state provides thread-safe state management for crossbar.
//
// # Overview
//
// This package implements the store that sits between the reconciliation
// coordinator (the only writer) and every reader: the TUI, the HTTP API and
// the MQTT bridge. Readers never talk to the device; they read snapshots.
//
// # Architecture
//
//	Producer (Coordinator):        Consumers:
//	┌────────────────────┐        ┌──────────────────┐
//	│ FetchStatus()      │        │ TUI tick         │
//	│      ↓             │        │ GET /api/status  │
//	│ store.Update()     │───────→│ store.Snapshot() │
//	│      ↓             │ (mutex)│ MQTT publish     │
//	│ next tick / write  │        └──────────────────┘
//	└────────────────────┘
//
// # Availability
//
// Each Snapshot carries an Availability:
//
//   - Uninitialized: no fetch has succeeded yet. Failures before the first
//     success are recorded in LastError but leave the state here.
//   - Fresh: the latest fetch succeeded.
//   - Stale: the latest fetch failed. Status still holds the last good data.
//
// # Copy Semantics
//
// Update stores a deep copy of the status it is given and Snapshot returns a
// deep copy of what is stored, so a reader sees either the previous or the
// next status in full and can never modify the stored one. LastError is
// re-wrapped so callers do not share the error value either.
//
// # Document
//
// Snapshot.Document renders a JSON-ready view (routes as output/input pairs,
// label arrays, timestamps, last error) used by the HTTP API and the MQTT
// bridge so both publish the same shape.
package state
