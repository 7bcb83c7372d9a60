package ics

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "combinecal/internal/log"
)

// Group is a named ordered set of sources combined into one calendar.
type Group struct {
	Name    string
	Sources []Source
}

// ParseError reports a feed whose body was not a valid calendar document.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed %q: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Combiner merges remote feeds into combined calendar documents.
type Combiner struct {
	fetcher *Fetcher
}

// NewCombiner creates a Combiner that fetches feeds through f.
func NewCombiner(f *Fetcher) *Combiner {
	return &Combiner{fetcher: f}
}

// Combine fetches every source in order and assembles one calendar
// carrying the union of their retained components.
//
// The output calendar gets name as PRODID, NAME and X-WR-CALNAME and a
// fixed VERSION of 2.0. From each source, in original order, VTIMEZONE
// components pass through unchanged and VEVENT components are re-emitted
// with the source name appended to their summary as " [<name>]"; all
// other component kinds are dropped. The first fetch or parse failure
// aborts the whole combine; no partial document is returned. An empty
// source list yields a valid calendar with no components.
func (c *Combiner) Combine(ctx context.Context, name string, sources []Source) (string, error) {
	out := ical.NewCalendar()
	out.SetProductId(name)
	out.SetVersion("2.0")
	out.SetName(name)
	out.SetXWRCalName(name)

	for _, src := range sources {
		body, err := c.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			return "", fmt.Errorf("combine %q: %w", name, err)
		}

		cal, err := ical.ParseCalendar(bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("combine %q: %w", name, &ParseError{Source: src.Name, Err: err})
		}

		events := 0
		timezones := 0
		for _, comp := range cal.Components {
			switch comp := comp.(type) {
			case *ical.VTimezone:
				out.Components = append(out.Components, comp)
				timezones++
			case *ical.VEvent:
				tagEventSummary(comp, src.Name)
				out.Components = append(out.Components, comp)
				events++
			default:
				// VTODO, VJOURNAL, VFREEBUSY etc. are not served.
			}
		}

		appLog.Info("feed combined",
			"group", name,
			"source", src.Name,
			"events", events,
			"timezones", timezones,
		)
	}

	return out.Serialize(), nil
}

// CombineAll combines every group and concatenates the serialized
// documents with newline separators. The result is a download of all
// served calendars at once, not a single structurally valid calendar.
func (c *Combiner) CombineAll(ctx context.Context, groups []Group) (string, error) {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		doc, err := c.Combine(ctx, g.Name, g.Sources)
		if err != nil {
			return "", err
		}
		parts = append(parts, doc)
	}
	return strings.Join(parts, "\n"), nil
}

// tagEventSummary appends " [<source>]" to the event's summary.
// Events without a SUMMARY property are passed through untagged.
func tagEventSummary(ve *ical.VEvent, source string) {
	p := ve.GetProperty(ical.ComponentPropertySummary)
	if p == nil {
		return
	}
	ve.SetProperty(ical.ComponentPropertySummary, p.Value+" ["+source+"]")
}
