// Package database stores the sync history in SQLite.
//
// Every non-dry run is saved as one row of the runs table, keyed by a UUID
// and carrying the full report as JSON, plus one synced_files row per
// attempted download. The history command reads both back.
//
// The driver is modernc.org/sqlite, which needs no cgo. The database is a
// single file in the XDG data directory.
package database
