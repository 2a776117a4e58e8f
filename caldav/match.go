package caldav

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// Filter returns the calendar objects matching the query's filter. A nil
// query returns the full list of calendar objects.
func Filter(query *CalendarQuery, cos []*CalendarObject) ([]*CalendarObject, error) {
	if query == nil {
		return cos, nil
	}

	var out []*CalendarObject
	for _, co := range cos {
		ok, err := Match(query.CompFilter, co)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, co)
		}
	}
	return out, nil
}

// Match reports whether the calendar object matches the filter.
func Match(filter CompFilter, co *CalendarObject) (matched bool, err error) {
	cal, err := co.Calendar()
	if err != nil {
		return false, err
	}
	if cal == nil || cal.Component == nil {
		return false, fmt.Errorf("caldav: object %q has no calendar data", co.Path)
	}
	return match(filter, cal.Component)
}

func match(filter CompFilter, comp *ical.Component) (bool, error) {
	if comp.Name != filter.Name {
		return filter.IsNotDefined, nil
	}
	if filter.IsNotDefined {
		return false, nil
	}
	return matchCompContent(filter, comp)
}

func matchCompContent(filter CompFilter, comp *ical.Component) (bool, error) {
	if filter.TimeRange != nil {
		match, err := matchCompTimeRange(filter.TimeRange.Start, filter.TimeRange.End, comp)
		if err != nil {
			return false, err
		}
		if !match {
			return false, nil
		}
	}
	for _, compFilter := range filter.Comps {
		match, err := matchCompFilter(compFilter, comp)
		if err != nil {
			return false, err
		}
		if !match {
			return false, nil
		}
	}
	for _, propFilter := range filter.Props {
		match, err := matchPropFilter(propFilter, comp)
		if err != nil {
			return false, err
		}
		if !match {
			return false, nil
		}
	}
	return true, nil
}

func matchCompFilter(filter CompFilter, comp *ical.Component) (bool, error) {
	for _, child := range comp.Children {
		if child.Name != filter.Name {
			continue
		}
		if filter.IsNotDefined {
			return false, nil
		}
		match, err := matchCompContent(filter, child)
		if err != nil {
			return false, err
		} else if match {
			return true, nil
		}
	}
	return filter.IsNotDefined, nil
}

func matchPropFilter(filter PropFilter, comp *ical.Component) (bool, error) {
	fields := comp.Props[strings.ToUpper(filter.Name)]
	if len(fields) == 0 {
		return filter.IsNotDefined, nil
	} else if filter.IsNotDefined {
		return false, nil
	}

	for i := range fields {
		match, err := matchPropContent(filter, &fields[i])
		if err != nil {
			return false, err
		} else if match {
			return true, nil
		}
	}
	return false, nil
}

func matchPropContent(filter PropFilter, field *ical.Prop) (bool, error) {
	for _, paramFilter := range filter.ParamFilter {
		if !matchParamFilter(paramFilter, field) {
			return false, nil
		}
	}

	if filter.TimeRange != nil {
		return matchPropTimeRange(filter.TimeRange.Start, filter.TimeRange.End, field)
	} else if filter.TextMatch != nil {
		return matchTextMatch(*filter.TextMatch, field.Value), nil
	}
	// empty prop-filter, property exists
	return true, nil
}

func matchCompTimeRange(start, end time.Time, comp *ical.Component) (bool, error) {
	// See https://datatracker.ietf.org/doc/html/rfc4791#section-9.9
	// The "start" attribute specifies the inclusive start of the time range,
	// and the "end" attribute specifies the non-inclusive end of the time range.

	// evaluate recurring components
	rset, err := comp.RecurrenceSet(time.UTC)
	if err != nil {
		return false, err
	}
	if rset != nil {
		// TODO: only occurrence starts are compared, so an occurrence starting
		// before start but overlapping the range is missed.
		firstAfterStart := rset.After(start, true)
		if firstAfterStart.IsZero() {
			return false, nil
		}
		return end.IsZero() || firstAfterStart.Before(end), nil
	}

	// TODO handle more than just events
	if comp.Name != ical.CompEvent {
		return false, nil
	}
	event := ical.Event{Component: comp}

	eventStart, err := event.DateTimeStart(time.UTC)
	if err != nil {
		return false, err
	}
	eventEnd, err := event.DateTimeEnd(time.UTC)
	if err != nil {
		return false, err
	}

	// [eventStart, eventEnd) must intersect [start, end). Zero-duration
	// events match when eventStart lies within [start, end).
	//
	// https://datatracker.ietf.org/doc/html/rfc4791#section-9.9
	zeroDuration := eventStart.Equal(eventEnd)
	startsBeforeEnd := end.IsZero() || eventStart.Before(end)
	if zeroDuration {
		return startsBeforeEnd && (start.IsZero() || !eventEnd.Before(start)), nil
	}
	return startsBeforeEnd && (start.IsZero() || eventEnd.After(start)), nil
}

func matchPropTimeRange(start, end time.Time, field *ical.Prop) (bool, error) {
	// See https://datatracker.ietf.org/doc/html/rfc4791#section-9.9

	ptime, err := field.DateTime(time.UTC)
	if err != nil {
		return false, err
	}
	if !ptime.Before(start) && (end.IsZero() || ptime.Before(end)) {
		return true, nil
	}
	return false, nil
}

func matchParamFilter(filter ParamFilter, field *ical.Prop) bool {
	// TODO there can be multiple values
	value := field.Params.Get(filter.Name)
	if value == "" {
		return filter.IsNotDefined
	} else if filter.IsNotDefined {
		return false
	}
	if filter.TextMatch != nil {
		return matchTextMatch(*filter.TextMatch, value)
	}
	return true
}

// caseSensitive reports whether the text-match compares octets. The default
// collation, i;ascii-casemap, ignores case.
func (txt TextMatch) caseSensitive() bool {
	if txt.Caseless != nil {
		return !*txt.Caseless
	}
	return txt.Collation == "i;octet"
}

func matchTextMatch(txt TextMatch, value string) bool {
	var match bool
	if txt.caseSensitive() {
		match = strings.Contains(value, txt.Text)
	} else {
		match = strings.Contains(strings.ToLower(value), strings.ToLower(txt.Text))
	}
	if txt.NegateCondition {
		match = !match
	}
	return match
}
