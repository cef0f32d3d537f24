// Package calendar renders persisted events as iCalendar (.ics) files per
// RFC 5545.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/sydney-events/internal/event"
)

// defaultEventLength is assumed when a source gives a start time only.
const defaultEventLength = 2 * time.Hour

// GenerateICS generates an iCalendar (.ics) file for a catalog event.
func GenerateICS(rec *event.Record) string {
	var ics strings.Builder
	writeCalendarHeader(&ics, "")
	writeEvent(&ics, rec)
	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

// GenerateBulkICS renders one calendar containing all the given events.
// Returns the empty string when there are no events.
func GenerateBulkICS(events []*event.Record, calendarName string) string {
	if len(events) == 0 {
		return ""
	}
	var ics strings.Builder
	writeCalendarHeader(&ics, calendarName)
	for _, rec := range events {
		writeEvent(&ics, rec)
	}
	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

func writeCalendarHeader(ics *strings.Builder, name string) {
	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//Sydney Events//sydney-events//EN\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	if name != "" {
		ics.WriteString(fmt.Sprintf("X-WR-CALNAME:%s\r\n", escapeICS(name)))
	}
}

func writeEvent(ics *strings.Builder, rec *event.Record) {
	ics.WriteString("BEGIN:VEVENT\r\n")

	ics.WriteString(fmt.Sprintf("UID:%d@sydney-events\r\n", rec.ID))
	ics.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICSTime(time.Now().UTC())))

	// Prefer the resolved timestamp; fall back to parsing the raw string,
	// then to one week out so the entry still imports.
	start := rec.DateTime
	if start.IsZero() {
		start = event.ParseDate(rec.DateString)
	}
	if start.IsZero() {
		day := time.Now().AddDate(0, 0, 7)
		start = time.Date(day.Year(), day.Month(), day.Day(), 19, 0, 0, 0, time.UTC)
	}
	end := start.Add(defaultEventLength)

	ics.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICSTime(start)))
	ics.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICSTime(end)))

	ics.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICS(rec.Title)))

	description := rec.Description
	if raw := rec.DateString; raw != "" {
		description = fmt.Sprintf("Date: %s\n%s", raw, description)
	}
	if description != "" {
		ics.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICS(description)))
	}

	if location := formatLocation(rec); location != "" {
		ics.WriteString(fmt.Sprintf("LOCATION:%s\r\n", escapeICS(location)))
	}

	if rec.SourceURL != "" {
		ics.WriteString(fmt.Sprintf("URL:%s\r\n", rec.SourceURL))
	}

	status := "CONFIRMED"
	if rec.Status == event.StatusInactive {
		status = "CANCELLED"
	}
	ics.WriteString(fmt.Sprintf("STATUS:%s\r\n", status))

	ics.WriteString("SEQUENCE:0\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")

	ics.WriteString("END:VEVENT\r\n")
}

// formatLocation joins the venue parts that are present.
func formatLocation(rec *event.Record) string {
	parts := make([]string, 0, 3)
	if rec.VenueName != "" {
		parts = append(parts, rec.VenueName)
	}
	if rec.VenueAddress != "" {
		parts = append(parts, rec.VenueAddress)
	}
	if len(parts) == 0 && rec.City != "" {
		parts = append(parts, rec.City)
	}
	return strings.Join(parts, ", ")
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Per RFC 5545 section 3.3.11
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
