// Package ics extracts upcoming events from an iCalendar stream using a
// fixed amount of memory: one 160-byte line buffer and one event
// accumulator, regardless of the size of the feed.
//
// Only BEGIN:VEVENT, END:VEVENT, DTSTART, DTEND and SUMMARY lines are
// interpreted. Folded continuation lines, recurrence rules and TZID
// parameters are not supported; see Audit for a full-parser comparison.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"
	"unicode/utf8"

	"homedash/internal/fault"
	appLog "homedash/internal/log"
	"homedash/internal/model"
)

// LineCapacity is the longest line, excluding its terminator, the scanner
// keeps. Longer lines are skipped whole.
const LineCapacity = 160

const timestampLayout = "20060102T150405"

var (
	errInvalidUTF8  = errors.New("line is not valid UTF-8")
	errMissingColon = errors.New("property has no value separator")
)

var (
	beginEvent = []byte("BEGIN:VEVENT")
	endEvent   = []byte("END:VEVENT")
	dtStart    = []byte("DTSTART")
	dtEnd      = []byte("DTEND")
	summary    = []byte("SUMMARY:")
)

type parserState int

const (
	scanningForEvent parserState = iota
	insideEvent
)

// accumulator is the event under construction. The summary lives in a
// fixed array so a hostile feed cannot grow it.
type accumulator struct {
	start, end       time.Time
	hasStart, hasEnd bool
	summary          [model.MaxSummaryLength]byte
	summaryLen       int
}

func (a *accumulator) appendSummary(text []byte) {
	room := len(a.summary) - a.summaryLen
	if room <= 0 {
		return
	}
	if len(text) > room {
		text = text[:room]
		// Never cut a multi-byte rune in half.
		for len(text) > 0 && !utf8.Valid(text) {
			text = text[:len(text)-1]
		}
	}
	a.summaryLen += copy(a.summary[a.summaryLen:], text)
}

func (a *accumulator) event() model.Event {
	return model.Event{
		Start:   a.start,
		End:     a.end,
		Summary: string(a.summary[:a.summaryLen]),
	}
}

// Parse reads r line by line and stores every complete event whose end is
// not before now into dst, in stream order. It returns dst[:n].
//
// Parsing stops as soon as dst is full; no further bytes are read from r.
// Reaching the end of the stream is not an error. Malformed DTSTART/DTEND
// values drop only the event they belong to. Invalid UTF-8 in a line aborts
// the whole call with a Decode fault; read errors are Transport faults.
//
// Timestamps are YYYYMMDDThhmmss, optionally followed by Z for UTC.
// Without Z the value is taken to be in now's location.
func Parse(r io.Reader, now time.Time, dst []model.Event) ([]model.Event, error) {
	if len(dst) == 0 {
		return dst[:0], nil
	}

	p := parser{
		lines: newLineScanner(r),
		now:   now,
		loc:   now.Location(),
		dst:   dst,
	}
	events, err := p.run()
	appLog.Debug("ics parse completed",
		"event_count", len(events),
		"dropped", p.dropped,
		"overlong_lines", p.lines.skipped,
		"lines", p.lines.lineNo,
	)
	return events, err
}

type parser struct {
	lines  *lineScanner
	now    time.Time
	loc    *time.Location
	dst    []model.Event
	filled int
	state  parserState
	acc    accumulator

	dropped int
}

func (p *parser) run() ([]model.Event, error) {
	for {
		line, err := p.lines.next()
		if errors.Is(err, io.EOF) {
			return p.dst[:p.filled], nil
		}
		if err != nil {
			return p.dst[:p.filled], fault.Transport("ics: read", err)
		}
		if !utf8.Valid(line) {
			return p.dst[:p.filled], fault.Decode("ics: parse",
				fmt.Errorf("line %d: %w", p.lines.lineNo, errInvalidUTF8))
		}

		if full := p.handle(line); full {
			return p.dst[:p.filled], nil
		}
	}
}

// handle applies one line to the state machine and reports whether the
// output is full.
func (p *parser) handle(line []byte) bool {
	switch {
	case bytes.HasPrefix(line, beginEvent):
		p.acc = accumulator{}
		p.state = insideEvent
		return false

	case bytes.HasPrefix(line, endEvent):
		if p.state == insideEvent && p.acc.hasStart && p.acc.hasEnd {
			p.dst[p.filled] = p.acc.event()
			p.filled++
		}
		p.acc = accumulator{}
		p.state = scanningForEvent
		return p.filled == len(p.dst)
	}

	if p.state != insideEvent {
		return false
	}

	switch {
	case bytes.HasPrefix(line, dtStart):
		ts, err := p.propertyTime(line)
		if err != nil {
			p.discard("DTSTART", err)
			return false
		}
		p.acc.start, p.acc.hasStart = ts, true

	case bytes.HasPrefix(line, dtEnd):
		ts, err := p.propertyTime(line)
		if err != nil {
			p.discard("DTEND", err)
			return false
		}
		if ts.Before(p.now) {
			p.state = scanningForEvent
			return false
		}
		p.acc.end, p.acc.hasEnd = ts, true

	case bytes.HasPrefix(line, summary):
		p.acc.appendSummary(line[len(summary):])
	}
	return false
}

func (p *parser) discard(prop string, err error) {
	p.dropped++
	p.state = scanningForEvent
	appLog.Debug("ics event dropped",
		"error", fault.EventLocal("ics: "+prop, fmt.Errorf("line %d: %w", p.lines.lineNo, err)))
}

// propertyTime parses the value after the first colon. Parameters between
// the property name and the colon are ignored.
func (p *parser) propertyTime(line []byte) (time.Time, error) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return time.Time{}, errMissingColon
	}
	return ParseTimestamp(string(line[i+1:]), p.loc)
}

// ParseTimestamp parses YYYYMMDDThhmmss with an optional Z suffix. A UTC
// value is converted to loc, any other value is interpreted in loc.
// Anything else, fractional seconds included, is a Decode fault.
func ParseTimestamp(v string, loc *time.Location) (time.Time, error) {
	utc := len(v) > 0 && v[len(v)-1] == 'Z'
	if utc {
		v = v[:len(v)-1]
	}
	if len(v) != len(timestampLayout) {
		return time.Time{}, fault.Decode("ics: timestamp", fmt.Errorf("%q is not YYYYMMDDThhmmss", v))
	}
	if utc {
		t, err := time.Parse(timestampLayout, v)
		if err != nil {
			return time.Time{}, fault.Decode("ics: timestamp", err)
		}
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(timestampLayout, v, loc)
	if err != nil {
		return time.Time{}, fault.Decode("ics: timestamp", err)
	}
	return t, nil
}

// SortByDate orders events by start instant, earliest first.
func SortByDate(events []model.Event) {
	slices.SortFunc(events, func(a, b model.Event) int {
		return a.Start.Compare(b.Start)
	})
}
