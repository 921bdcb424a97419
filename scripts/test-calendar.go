package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pfrederiksen/troopcal/internal/calendar"
	"github.com/pfrederiksen/troopcal/internal/event"
)

func main() {
	est := time.FixedZone("", -5*3600)

	// Sample events covering both shapes a troop site produces
	events := []*event.Event{
		event.NewAllDayEvent(
			"Spring Campout",
			"https://www.troopwebhost.org/FormDetail.aspx?Form_ID=182&ID=1",
			time.Date(2026, 4, 10, 0, 0, 0, 0, est),
			"Camp Resolute",
			"Pack your rain gear; dinner, hike, campfire.",
		),
		event.NewTimedEvent(
			"Troop Meeting",
			"https://www.troopwebhost.org/FormDetail.aspx?Form_ID=182&ID=2",
			time.Date(2026, 3, 5, 19, 0, 0, 0, est),
			"St. Mary's Parish Hall",
			"Bring your handbook.",
		),
	}

	icsContent := calendar.Serialize(events, time.Now(), calendar.Options{Name: "Troop Calendar (sample)"})
	if _, err := calendar.Validate(icsContent); err != nil {
		fmt.Fprintf(os.Stderr, "Generated calendar does not parse: %v\n", err)
		os.Exit(1)
	}

	filename := "test-troop-calendar.ics"
	if err := os.WriteFile(filename, []byte(icsContent), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Generated calendar file: %s\n\n", filename)
	fmt.Println("Test it by:")
	fmt.Println("1. Open the .ics file with your calendar app (double-click)")
	fmt.Println("2. Or import it into Google Calendar, Apple Calendar, or Outlook")
	fmt.Println("\nFile contents preview:")
	fmt.Println("---")
	fmt.Print(icsContent)
}
