// Package window implements the daily crawl-window gate. All outbound
// fetches are permitted only inside a fixed UTC time range; the gate is a
// pure function of the supplied instant so it stays testable.
package window

import (
	"fmt"
	"time"
)

// SAST is the display timezone for the status endpoint (UTC+2, no DST).
var SAST = time.FixedZone("SAST", 2*60*60)

// CrawlWindow is an immutable daily time range in UTC.
//
// The lower bound is hour-granular and the upper bound is minute-granular:
// any minute within the start hour is admitted, while the closing boundary
// cuts off at EndHour:EndMinute. The original service behaves this way and
// the asymmetry is kept for compatibility.
type CrawlWindow struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

// Default is the process-wide crawl window, 04:00-08:45 UTC.
var Default = CrawlWindow{StartHour: 4, StartMinute: 0, EndHour: 8, EndMinute: 45}

// IsWithin reports whether now falls inside the window. The caller supplies
// the instant; the gate never reads the clock itself.
func (w CrawlWindow) IsWithin(now time.Time) bool {
	utc := now.UTC()
	hour, minute := utc.Hour(), utc.Minute()

	if hour < w.StartHour || hour > w.EndHour {
		return false
	}
	if hour == w.EndHour && minute > w.EndMinute {
		return false
	}
	return true
}

// Describe returns the gate decision together with a human-readable message.
// It is used both for the pre-crawl check and before every paginated
// follow-up fetch.
func (w CrawlWindow) Describe(now time.Time) (bool, string) {
	utc := now.UTC()
	if !w.IsWithin(now) {
		return false, fmt.Sprintf("Outside crawling hours. Current UTC: %s", utc.Format("15:04"))
	}
	return true, fmt.Sprintf("Within allowed window. Current UTC: %s", utc.Format("15:04"))
}

// LabelUTC returns the window formatted as "HH:MM-HH:MM" in UTC.
func (w CrawlWindow) LabelUTC() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.StartHour, w.StartMinute, w.EndHour, w.EndMinute)
}

// LabelSAST returns the window formatted as "HH:MM-HH:MM" shifted to SAST.
func (w CrawlWindow) LabelSAST() string {
	_, offset := time.Now().In(SAST).Zone()
	shift := offset / 3600
	return fmt.Sprintf("%02d:%02d-%02d:%02d",
		(w.StartHour+shift)%24, w.StartMinute,
		(w.EndHour+shift)%24, w.EndMinute)
}

// FormatUTC renders now for the status endpoint, e.g. "2026-01-02 04:30:00 UTC".
func FormatUTC(now time.Time) string {
	return now.UTC().Format("2006-01-02 15:04:05") + " UTC"
}

// FormatSAST renders now in SAST for the status endpoint.
func FormatSAST(now time.Time) string {
	return now.In(SAST).Format("2006-01-02 15:04:05") + " SAST"
}
