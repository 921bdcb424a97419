// Package storage keeps the history of sync runs in a bbolt database.
//
// Every run's Report is stored under its start time, so the newest run is
// the last key. The event IDs of the most recent successfully written feed
// are stored alongside, for added/removed reporting on the next run.
// The default location is ~/.troopcal/troopcal.db.
package storage
