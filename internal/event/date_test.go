package event

import (
	"testing"
	"time"
)

var testLoc = time.FixedZone("", -5*3600)

func TestFindShortDate(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantYear  int
		wantMonth time.Month
		wantDay   int
		wantOK    bool
	}{
		{
			name:      "four digit year",
			text:      "Meeting 3/5/2026 at 7:00 PM",
			wantYear:  2026,
			wantMonth: time.March,
			wantDay:   5,
			wantOK:    true,
		},
		{
			name:      "two digit year with leading zeros",
			text:      "Date: 01/17/26",
			wantYear:  2026,
			wantMonth: time.January,
			wantDay:   17,
			wantOK:    true,
		},
		{
			name:      "month first, not day first",
			text:      "4/11/26",
			wantYear:  2026,
			wantMonth: time.April,
			wantDay:   11,
			wantOK:    true,
		},
		{
			name:      "first token wins",
			text:      "Starts 6/1/26 ends 6/3/26",
			wantYear:  2026,
			wantMonth: time.June,
			wantDay:   1,
			wantOK:    true,
		},
		{
			name:   "month out of range",
			text:   "13/05/2026",
			wantOK: false,
		},
		{
			name:   "day past end of month",
			text:   "2/30/26",
			wantOK: false,
		},
		{
			name:   "three digit year",
			text:   "1/2/202",
			wantOK: false,
		},
		{
			name:   "no token",
			text:   "No date here",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindShortDate(tt.text, testLoc)
			if ok != tt.wantOK {
				t.Fatalf("FindShortDate(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Year() != tt.wantYear || got.Month() != tt.wantMonth || got.Day() != tt.wantDay {
				t.Errorf("FindShortDate(%q) = %v, want %d-%02d-%02d", tt.text, got, tt.wantYear, tt.wantMonth, tt.wantDay)
			}
			if got.Hour() != 0 || got.Minute() != 0 {
				t.Errorf("expected local midnight, got %v", got)
			}
			if got.Location() != testLoc {
				t.Errorf("expected configured location, got %v", got.Location())
			}
		})
	}
}

func TestFindTitleDate(t *testing.T) {
	tests := []struct {
		title  string
		want   time.Time
		wantOK bool
	}{
		{"Campout (02/14/26)", time.Date(2026, 2, 14, 0, 0, 0, 0, testLoc), true},
		{"Court of Honor (11/03/2025)", time.Date(2025, 11, 3, 0, 0, 0, 0, testLoc), true},
		{"Single digits (2/4/26)", time.Time{}, false},
		{"Invalid (02/31/26)", time.Time{}, false},
		{"No annotation", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got, ok := FindTitleDate(tt.title, testLoc)
			if ok != tt.wantOK {
				t.Fatalf("FindTitleDate(%q) ok = %v, want %v", tt.title, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("FindTitleDate(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}

func TestFindClock(t *testing.T) {
	tests := []struct {
		text       string
		wantHour   int
		wantMinute int
		wantOK     bool
	}{
		{"at 7:00 PM", 19, 0, true},
		{"at 7:00PM", 19, 0, true},
		{"10:30 am sharp", 10, 30, true},
		{"12:15 AM", 0, 15, true},
		{"12:45 pm", 12, 45, true},
		{"13:00 PM", 0, 0, false},
		{"7:75 PM", 0, 0, false},
		{"19:00", 0, 0, false},
		{"no time", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			h, m, ok := FindClock(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("FindClock(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if ok && (h != tt.wantHour || m != tt.wantMinute) {
				t.Errorf("FindClock(%q) = %d:%02d, want %d:%02d", tt.text, h, m, tt.wantHour, tt.wantMinute)
			}
		})
	}
}

func TestStripTitleDate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Campout (02/14/26)", "Campout"},
		{"Campout (2/4/2026)  ", "Campout"},
		{"  Summer Camp  ", "Summer Camp"},
		{"(02/14/26) Leading date stays", "(02/14/26) Leading date stays"},
		{"Hike (2/14/26) Part 2", "Hike (2/14/26) Part 2"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := StripTitleDate(tt.input); got != tt.expected {
				t.Errorf("StripTitleDate(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExpandYear(t *testing.T) {
	if y, ok := ExpandYear(26, 2); !ok || y != 2026 {
		t.Errorf("ExpandYear(26, 2) = %d, %v", y, ok)
	}
	if y, ok := ExpandYear(1999, 4); !ok || y != 1999 {
		t.Errorf("ExpandYear(1999, 4) = %d, %v", y, ok)
	}
	if _, ok := ExpandYear(202, 3); ok {
		t.Error("three digit years should be rejected")
	}
}
