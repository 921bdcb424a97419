// Package scraper extracts events from TroopWebHost pages.
//
// The portal expresses links to event detail pages inconsistently: plain
// anchors, inline LinkTo('FormDetail.aspx?...') click handlers on anchors or
// table rows, and references that only show up in raw markup. ExtractLinks
// runs three independent passes over a listing page and merges them.
// ParseDetail flattens one detail page to text and recovers the date, time,
// location and description with layered regex fallbacks.
//
// Both functions are pure: they take HTML strings and plain option values
// and never touch the network or the filesystem.
package scraper
