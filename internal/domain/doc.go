// Package domain contains the core domain entities and value objects for trackship.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (HTTP, SQLite, logging) and
// contains only the data model and its rules.
//
// # Entities
//
//   - [Sample]: A persisted position reading with its synced flag
//   - [Position]: A reading produced by a position source, not yet persisted
//   - [Outcome]: The result code of one capture-persist-sync cycle
//   - [CycleReport]: What happened during one cycle, for observers
//
// # Design Principles
//
// Samples are immutable after insert except for the one-way synced transition.
// Coordinates are passed through unvalidated.
package domain
