// Package query parses a compact text syntax into CalDAV filters.
//
// A filter selects a component, optionally restricted to a time range, and
// lists property clauses separated by commas:
//
//	VEVENT [20060104T000000Z;20060105T000000Z] : UID==abc123, LOCATION==UNDEF
//
// A clause compares a property with "==" or "!=". The value is either text
// (matched as a substring), UNDEF (the property is absent) or a bracketed
// time range. "!=" negates text matches, and "!= UNDEF" requires the
// property to be present.
package query

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/calwire/go-caldav/caldav"
)

// Undefined is the value matching absent properties.
const Undefined = "UNDEF"

const calendarComponent = "VCALENDAR"

// ParseError reports malformed query text.
type ParseError struct {
	Input string
	// Offset is the byte offset of the error in Input.
	Offset int
	// Clause is the offending clause, if any.
	Clause string
	Reason string
}

func (err *ParseError) Error() string {
	if err.Clause != "" {
		return fmt.Sprintf("query: invalid clause %q at offset %v: %v", err.Clause, err.Offset, err.Reason)
	}
	return fmt.Sprintf("query: invalid query %q at offset %v: %v", err.Input, err.Offset, err.Reason)
}

type parser struct {
	input string
}

func (p *parser) errorf(offset int, clause string, format string, v ...interface{}) error {
	return &ParseError{
		Input:  p.input,
		Offset: offset,
		Clause: clause,
		Reason: fmt.Sprintf(format, v...),
	}
}

var dateTimeLayouts = []string{"20060102T150405Z", "20060102", time.RFC3339}

func parseDateTime(s string) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// timeRange scans "[start;end]". The opening bracket has already been
// consumed.
func (p *parser) timeRange(l *lexer, clause string) (*caldav.TimeRange, error) {
	startOffset := l.position()
	start, ok := parseDateTime(l.until(';'))
	if !ok {
		return nil, p.errorf(startOffset, clause, "invalid time range start")
	}
	if !l.accept(";") {
		return nil, p.errorf(l.position(), clause, "expected ';' in time range")
	}
	endOffset := l.position()
	end, ok := parseDateTime(l.until(']'))
	if !ok {
		return nil, p.errorf(endOffset, clause, "invalid time range end")
	}
	if !l.accept("]") {
		return nil, p.errorf(l.position(), clause, "expected ']' after time range")
	}
	return &caldav.TimeRange{Start: start, End: end}, nil
}

// head parses the component name and its optional time range.
func (p *parser) head(seg segment) (string, *caldav.TimeRange, error) {
	l := newLexer(seg.text, seg.offset)
	name, ok := l.name()
	if !ok {
		return "", nil, p.errorf(l.position(), "", "expected component name")
	}
	var tr *caldav.TimeRange
	if l.accept("[") {
		var err error
		if tr, err = p.timeRange(l, ""); err != nil {
			return "", nil, err
		}
	}
	if !l.done() {
		return "", nil, p.errorf(l.position(), "", "unexpected %q after component", l.rest())
	}
	return name, tr, nil
}

func (p *parser) clause(seg segment) (caldav.PropFilter, error) {
	var pf caldav.PropFilter
	l := newLexer(seg.text, seg.offset)
	if l.done() {
		return pf, p.errorf(seg.offset, seg.text, "empty clause")
	}

	name, ok := l.name()
	if !ok {
		return pf, p.errorf(l.position(), seg.text, "expected property name")
	}
	pf.Name = name

	var negate bool
	switch {
	case l.accept("=="):
	case l.accept("!="):
		negate = true
	default:
		return pf, p.errorf(l.position(), seg.text, "expected == or !=")
	}

	if l.accept("[") {
		if negate {
			return pf, p.errorf(l.position(), seg.text, "time ranges can't be negated")
		}
		tr, err := p.timeRange(l, seg.text)
		if err != nil {
			return pf, err
		}
		if !l.done() {
			return pf, p.errorf(l.position(), seg.text, "unexpected %q after time range", l.rest())
		}
		pf.TimeRange = tr
		return pf, nil
	}

	valueOffset := l.position()
	value := l.rest()
	switch value {
	case "":
		return pf, p.errorf(valueOffset, seg.text, "missing value")
	case Undefined:
		pf.IsNotDefined = !negate
		pf.IsDefined = negate
	default:
		pf.TextMatch = &caldav.TextMatch{Text: value, NegateCondition: negate}
	}
	return pf, nil
}

// ParseFilter parses filter text into a calendar-query filter. The returned
// filter is rooted at VCALENDAR. tr restricts the component to a time range;
// it can't be combined with a range in the text.
func ParseFilter(text string, tr *caldav.TimeRange) (*caldav.CompFilter, error) {
	p := &parser{input: text}

	headSeg, bodySeg, hasBody, unclosed := cutTopLevel(text, ':')
	if unclosed >= 0 {
		return nil, p.errorf(unclosed, "", "unterminated time range")
	}
	name, textRange, err := p.head(headSeg)
	if err != nil {
		return nil, err
	}
	if textRange != nil && tr != nil {
		return nil, p.errorf(headSeg.offset, "", "time range given twice")
	} else if textRange != nil {
		tr = textRange
	}

	comp := caldav.CompFilter{Name: name, TimeRange: tr}
	if hasBody {
		segs, unclosed := splitTopLevel(bodySeg.text, bodySeg.offset, ',')
		if unclosed >= 0 {
			return nil, p.errorf(unclosed, segs[len(segs)-1].text, "unterminated time range")
		}
		for _, seg := range segs {
			pf, err := p.clause(seg)
			if err != nil {
				return nil, err
			}
			comp.Props = append(comp.Props, pf)
		}
	}
	if comp.TimeRange == nil && len(comp.Props) == 0 {
		comp.IsDefined = true
	}

	return &caldav.CompFilter{
		Name:  calendarComponent,
		Comps: []caldav.CompFilter{comp},
	}, nil
}

// ParseProps parses a property request of the form "VEVENT: UID, SUMMARY".
// An empty property list selects all properties.
func ParseProps(text string) (component string, props []string, err error) {
	p := &parser{input: text}

	headSeg, bodySeg, hasBody, _ := cutTopLevel(text, ':')
	l := newLexer(headSeg.text, headSeg.offset)
	component, ok := l.name()
	if !ok {
		return "", nil, p.errorf(l.position(), "", "expected component name")
	}
	if !l.done() {
		return "", nil, p.errorf(l.position(), "", "unexpected %q after component", l.rest())
	}
	if !hasBody {
		return component, nil, nil
	}

	segs, _ := splitTopLevel(bodySeg.text, bodySeg.offset, ',')
	for _, seg := range segs {
		l := newLexer(seg.text, seg.offset)
		name, ok := l.name()
		if !ok || !l.done() {
			return "", nil, p.errorf(seg.offset, seg.text, "expected property name")
		}
		props = append(props, name)
	}
	return component, props, nil
}

// Generator builds calendar-query requests out of query text.
type Generator struct {
	// Component lists the returned component and properties, in the form
	// "VEVENT: UID, SUMMARY". If empty, full objects are returned.
	Component string
	// Filter is the filter text. If empty, objects with the requested
	// component are matched.
	Filter    string
	TimeRange *caldav.TimeRange
}

// CalendarQuery returns the calendar-query described by the generator. The
// query requests entity tags and calendar data.
func (g *Generator) CalendarQuery() (*caldav.CalendarQuery, error) {
	filterText := g.Filter

	var compReq *caldav.CalendarCompRequest
	if g.Component != "" {
		comp, props, err := ParseProps(g.Component)
		if err != nil {
			return nil, err
		}
		if filterText == "" {
			filterText = comp
		}
		compReq = &caldav.CalendarCompRequest{
			Name:  calendarComponent,
			Props: []string{"VERSION"},
			Comps: []caldav.CalendarCompRequest{
				{Name: comp, Props: props, AllProps: len(props) == 0},
				{Name: "VTIMEZONE", AllProps: true, AllComps: true},
			},
		}
	}
	if filterText == "" {
		return nil, &ParseError{Reason: "missing component"}
	}

	filter, err := ParseFilter(filterText, g.TimeRange)
	if err != nil {
		return nil, err
	}

	q := caldav.NewCalendarQuery([]xml.Name{caldav.ETagName}, *filter, true, false)
	q.CompRequest = compReq
	return q, nil
}
