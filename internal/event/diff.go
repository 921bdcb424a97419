package event

import "sort"

// DiffResult contains the IDs that appeared or disappeared between two runs
type DiffResult struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Diff compares the IDs of the current events against the IDs recorded by
// the previous run. A nil previous set means there is nothing to compare
// against and every current event counts as added.
func Diff(previous []string, current []*Event) *DiffResult {
	result := &DiffResult{
		Added:   make([]string, 0),
		Removed: make([]string, 0),
	}

	prev := make(map[string]bool, len(previous))
	for _, id := range previous {
		prev[id] = true
	}

	seen := make(map[string]bool, len(current))
	for _, evt := range current {
		if seen[evt.ID] {
			continue
		}
		seen[evt.ID] = true
		if !prev[evt.ID] {
			result.Added = append(result.Added, evt.ID)
		}
	}

	for id := range prev {
		if !seen[id] {
			result.Removed = append(result.Removed, id)
		}
	}

	// Sort for consistent output
	sort.Strings(result.Added)
	sort.Strings(result.Removed)

	return result
}

// IDs returns the ID of every event, in order
func IDs(events []*Event) []string {
	ids := make([]string, 0, len(events))
	for _, evt := range events {
		ids = append(ids, evt.ID)
	}
	return ids
}
