package ics

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"homedash/internal/fault"
	appLog "homedash/internal/log"
	"homedash/internal/model"
)

// Finding is a future event the full parser sees but the bounded parser
// did not return.
type Finding struct {
	Summary string
	Start   time.Time
	End     time.Time
	Reason  string
}

// Report compares one feed under both parsers.
type Report struct {
	Bounded []model.Event
	// Upcoming counts events the full parser considers not yet ended.
	Upcoming int
	Missed   []Finding
}

// Audit parses body with Parse (capacity events) and with a complete
// RFC 5545 parser, and lists future events only the latter found. It reads
// the whole body into memory and is meant for the command line, not for
// the refresh cycle.
func Audit(body io.Reader, now time.Time, capacity int) (Report, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return Report{}, fault.Transport("ics: audit read", err)
	}

	var rep Report
	bounded, err := Parse(bytes.NewReader(data), now, make([]model.Event, capacity))
	if err != nil {
		return Report{}, err
	}
	rep.Bounded = bounded

	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return rep, fault.Decode("ics: audit parse", err)
	}

	seen := make(map[string]bool, len(bounded))
	for _, ev := range bounded {
		seen[auditKey(ev.Start, ev.Summary)] = true
	}

	for _, ve := range cal.Events() {
		f, ok := inspect(ve, now)
		if !ok {
			continue
		}
		rep.Upcoming++
		if seen[auditKey(f.Start, truncateSummary(f.Summary))] {
			continue
		}
		if f.Reason == "" {
			if len(bounded) == capacity {
				f.Reason = "output capacity reached"
			} else {
				f.Reason = "line longer than 160 bytes or folded"
			}
		}
		rep.Missed = append(rep.Missed, f)
	}

	appLog.Info("ics audit completed",
		"bounded", len(rep.Bounded),
		"upcoming", rep.Upcoming,
		"missed", len(rep.Missed),
	)
	return rep, nil
}

// inspect extracts the fields of ve and names the feature the bounded
// parser does not support, if any. ok is false for past or undated events.
func inspect(ve *ical.VEvent, now time.Time) (Finding, bool) {
	var f Finding
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		f.Summary = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return f, false
	}
	dt := ve.GetProperty(ical.ComponentPropertyDtStart)
	start = floatingIn(start, dt, now.Location())
	end, err := ve.GetEndAt()
	if err != nil {
		end = start
	} else {
		end = floatingIn(end, ve.GetProperty(ical.ComponentPropertyDtEnd), now.Location())
	}
	if end.Before(now) {
		return f, false
	}
	f.Start = start.In(now.Location())
	f.End = end.In(now.Location())

	switch {
	case ve.GetProperty(ical.ComponentPropertyRrule) != nil:
		f.Reason = "recurrence rule"
	case dt != nil && isAllDay(dt):
		f.Reason = "all-day date value"
	case dt != nil && len(dt.ICalParameters["TZID"]) > 0:
		f.Reason = "TZID parameter " + dt.ICalParameters["TZID"][0]
	case ve.GetProperty(ical.ComponentPropertyDtEnd) == nil:
		f.Reason = "no DTEND"
	}
	return f, true
}

// floatingIn moves a value without Z or TZID, which the full parser reads in
// time.Local, to the same wall clock in loc.
func floatingIn(t time.Time, p *ical.IANAProperty, loc *time.Location) time.Time {
	if p == nil || strings.HasSuffix(p.Value, "Z") || len(p.ICalParameters["TZID"]) > 0 {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
}

func isAllDay(p *ical.IANAProperty) bool {
	if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func truncateSummary(s string) string {
	var acc accumulator
	acc.appendSummary([]byte(s))
	return string(acc.summary[:acc.summaryLen])
}

func auditKey(start time.Time, summary string) string {
	return fmt.Sprintf("%d|%s", start.Unix(), summary)
}
