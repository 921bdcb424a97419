// Package cli implements the command-line interface for troopcal.
//
// The cli package provides the Cobra-based commands: sync writes the calendar
// file once, serve keeps it fresh on a cron schedule behind an HTTP endpoint,
// and links, parse, inspect and runs help debug a troop site, a saved page,
// a written feed or the run history. Results are printed as text or JSON.
package cli
