// Package storage persists the roster, daily rank snapshots and report
// schedules.
//
// Drivers:
//   - "sqlite": modernc.org/sqlite file database, schema managed by goose
//   - "memory": process-local maps, used by tests and dry runs
package storage
