package cli

import (
	"testing"
	"time"

	"github.com/pfrederiksen/troopcal/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortFixture() []*event.Event {
	loc := time.FixedZone("", -5*3600)
	return []*event.Event{
		event.NewTimedEvent("troop meeting", "u1", time.Date(2026, 3, 5, 19, 0, 0, 0, loc), "", ""),
		event.NewAllDayEvent("Campout", "u2", time.Date(2026, 2, 14, 0, 0, 0, 0, loc), "", ""),
		event.NewTimedEvent("Board of Review", "u3", time.Date(2026, 3, 5, 19, 0, 0, 0, loc), "", ""),
		event.NewAllDayEvent("Campout", "u4", time.Date(2026, 1, 10, 0, 0, 0, 0, loc), "", ""),
	}
}

func summaries(events []*event.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Summary+"@"+e.Start.Format("01-02"))
	}
	return out
}

func TestSortEvents(t *testing.T) {
	tests := []struct {
		name  string
		order SortOrder
		want  []string
	}{
		{
			name:  "by date",
			order: SortByDate,
			want:  []string{"Campout@01-10", "Campout@02-14", "Board of Review@03-05", "troop meeting@03-05"},
		},
		{
			name:  "by title",
			order: SortByTitle,
			want:  []string{"Board of Review@03-05", "Campout@01-10", "Campout@02-14", "troop meeting@03-05"},
		},
		{
			name:  "unknown order keeps input",
			order: SortOrder("none"),
			want:  []string{"troop meeting@03-05", "Campout@02-14", "Board of Review@03-05", "Campout@01-10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := sortFixture()
			sortEvents(events, tt.order)
			assert.Equal(t, tt.want, summaries(events))
		})
	}
}

func TestParseSortOrder(t *testing.T) {
	order, err := parseSortOrder("Title")
	require.NoError(t, err)
	assert.Equal(t, SortByTitle, order)

	order, err = parseSortOrder("")
	require.NoError(t, err)
	assert.Equal(t, SortByDate, order)

	_, err = parseSortOrder("state")
	assert.Error(t, err)
}
