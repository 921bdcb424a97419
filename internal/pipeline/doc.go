// Package pipeline runs one calendar sync: fetch the listing, extract detail
// links, fetch and parse every detail page, serialize the calendar and write
// it. Each run produces a Report for logging and monitoring.
package pipeline
