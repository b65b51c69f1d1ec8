// Package database stores the history of crawl runs in SQLite.
//
// Each finished run is saved with its summary counts and the full report as
// JSON, and every image saved by a run is recorded per host so that later
// runs can be compared. The history is never read back into a crawl: every
// run starts with an empty frontier.
//
// The driver is modernc.org/sqlite (no CGO). The database is a single file
// in the XDG data directory.
package database
