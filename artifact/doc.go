// Package artifact contains concrete implementations of core.ArtifactStore.
//
// The canonical ArtifactStore interface lives in the core package to keep
// domain contracts central. Implementation packages like this one provide
// storage backends that can be swapped without touching calling code. The
// sales agent uses the store to keep CSV exports of large query results
// addressable per session.
package artifact
