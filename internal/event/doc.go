// Package event provides the normalized calendar event produced from a
// TroopWebHost detail page.
//
// Each event carries a deterministic SHA1-based ID generated from its source
// URL and summary, so regenerating the feed from an unchanged portal yields
// identical calendar UIDs. The package also holds the short-form date and
// 12-hour clock parsing used by the detail parser, and a diff of event IDs
// between two runs for reporting.
package event
