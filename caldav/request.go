package caldav

import (
	"encoding/xml"

	webdav "github.com/calwire/go-caldav"
	"github.com/calwire/go-caldav/internal"
)

// Report is a CalDAV REPORT request body.
type Report interface {
	// Validate checks the request before it is rendered.
	Validate() error
	// Depth returns the Depth header value to send with the request.
	Depth() webdav.Depth

	document() (interface{}, error)
}

// Render validates the report and returns its XML document.
func Render(r Report) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	v, err := r.document()
	if err != nil {
		return nil, err
	}
	return internal.MarshalDocument(v)
}

// CalendarQuery is a calendar-query REPORT, defined in RFC 4791 section 7.8.
type CalendarQuery struct {
	// Props lists additional properties to return, such as DAV:getetag.
	Props []xml.Name
	// CompRequest narrows the returned calendar data. A nil value asks for
	// the full objects.
	CompRequest *CalendarCompRequest
	CompFilter  CompFilter

	IncludeCalendarData bool
	NoCalendarData      bool
}

// NewCalendarQuery creates a calendar-query REPORT. noCalendarData takes
// precedence over includeCalendarData.
func NewCalendarQuery(props []xml.Name, filter CompFilter, includeCalendarData, noCalendarData bool) *CalendarQuery {
	return &CalendarQuery{
		Props:               props,
		CompFilter:          filter,
		IncludeCalendarData: includeCalendarData,
		NoCalendarData:      noCalendarData,
	}
}

func (q *CalendarQuery) wantsCalendarData() bool {
	return q.IncludeCalendarData && !q.NoCalendarData
}

// Validate checks the filter and the requested components.
func (q *CalendarQuery) Validate() error {
	if err := q.CompFilter.Validate(); err != nil {
		return err
	}
	if q.CompRequest != nil {
		return q.CompRequest.validate()
	}
	return nil
}

func (q *CalendarQuery) Depth() webdav.Depth {
	return webdav.DepthOne
}

func (q *CalendarQuery) document() (interface{}, error) {
	var compReq *CalendarCompRequest
	if q.wantsCalendarData() {
		compReq = q.CompRequest
		if compReq == nil {
			compReq = &CalendarCompRequest{}
		}
	}
	propReq, err := encodePropReq(q.Props, compReq)
	if err != nil {
		return nil, err
	}
	doc := &calendarQuery{
		Prop:   propReq,
		Filter: nodeElement{filterNode{q.CompFilter}},
	}
	if propReq == nil {
		doc.AllProp = &struct{}{}
	}
	return doc, nil
}

// FreeBusyQuery is a free-busy-query REPORT, defined in RFC 4791 section 7.10.
type FreeBusyQuery struct {
	TimeRange *TimeRange
}

// NewFreeBusyQuery returns a free-busy-query over tr.
func NewFreeBusyQuery(tr *TimeRange) *FreeBusyQuery {
	return &FreeBusyQuery{TimeRange: tr}
}

// Validate checks that a well-formed time range is set.
func (q *FreeBusyQuery) Validate() error {
	if q.TimeRange == nil {
		return &ValidationError{Element: "free-busy-query", Reason: "missing time-range"}
	}
	if err := q.TimeRange.Validate(); err != nil {
		return wrapValidationError(err, "free-busy-query", "")
	}
	return nil
}

func (q *FreeBusyQuery) Depth() webdav.Depth {
	return webdav.DepthOne
}

func (q *FreeBusyQuery) document() (interface{}, error) {
	return &freeBusyQuery{TimeRange: nodeElement{*q.TimeRange}}, nil
}

// CalendarMultiGet is a calendar-multiget REPORT, defined in RFC 4791 section
// 7.9.
type CalendarMultiGet struct {
	Props        []xml.Name
	CompRequest  *CalendarCompRequest
	Paths        []string
	CalendarData bool
}

// NewCalendarMultiGet returns a calendar-multiget for the given object hrefs.
// If calendarData is set, full objects are returned.
func NewCalendarMultiGet(props []xml.Name, hrefs []string, calendarData bool) *CalendarMultiGet {
	return &CalendarMultiGet{
		Props:        props,
		Paths:        hrefs,
		CalendarData: calendarData,
	}
}

// Validate checks that at least one href is requested and none is empty.
func (mg *CalendarMultiGet) Validate() error {
	if len(mg.Paths) == 0 {
		return &ValidationError{Element: "calendar-multiget", Reason: "no hrefs"}
	}
	for _, p := range mg.Paths {
		if p == "" {
			return &ValidationError{Element: "calendar-multiget", Reason: "empty href"}
		}
	}
	if mg.CompRequest != nil {
		return mg.CompRequest.validate()
	}
	return nil
}

func (mg *CalendarMultiGet) Depth() webdav.Depth {
	return webdav.DepthOne
}

func (mg *CalendarMultiGet) document() (interface{}, error) {
	var compReq *CalendarCompRequest
	if mg.CalendarData {
		compReq = mg.CompRequest
		if compReq == nil {
			compReq = &CalendarCompRequest{}
		}
	}
	propReq, err := encodePropReq(mg.Props, compReq)
	if err != nil {
		return nil, err
	}
	doc := &calendarMultiget{Prop: propReq, Hrefs: mg.Paths}
	if propReq == nil {
		doc.AllProp = &struct{}{}
	}
	return doc, nil
}

func (c *CalendarCompRequest) validate() error {
	if c.Name == "" && (c.AllProps || len(c.Props) > 0 || c.AllComps || len(c.Comps) > 0) {
		return &ValidationError{Element: "comp", Reason: "missing name"}
	}
	if c.Expand != nil {
		if c.Expand.Start.IsZero() || c.Expand.End.IsZero() {
			return &ValidationError{Element: "expand", Reason: "missing bound"}
		}
	}
	for i := range c.Comps {
		if err := c.Comps[i].validate(); err != nil {
			return wrapValidationError(err, "comp", c.Name)
		}
	}
	return nil
}

func encodeCalendarCompReq(c *CalendarCompRequest) *comp {
	encoded := comp{Name: c.Name}

	if c.AllProps {
		encoded.Allprop = &struct{}{}
	}
	for _, name := range c.Props {
		encoded.Prop = append(encoded.Prop, prop{Name: name})
	}

	if c.AllComps {
		encoded.Allcomp = &struct{}{}
	}
	for i := range c.Comps {
		encoded.Comp = append(encoded.Comp, *encodeCalendarCompReq(&c.Comps[i]))
	}

	return &encoded
}

// encodePropReq builds the DAV:prop element of a report. A nil compReq leaves
// calendar-data out. A nil result means no property was requested.
func encodePropReq(props []xml.Name, compReq *CalendarCompRequest) (*internal.Prop, error) {
	var values []interface{}
	for _, name := range props {
		if name == CalendarDataName {
			continue
		}
		values = append(values, internal.NewRawXMLElement(name, nil, nil))
	}
	if compReq != nil {
		calDataReq := calendarDataReq{}
		if compReq.Name != "" {
			calDataReq.Comp = encodeCalendarCompReq(compReq)
		}
		if compReq.Expand != nil {
			calDataReq.Expand = &timeRange{
				Start: dateWithUTCTime(compReq.Expand.Start),
				End:   dateWithUTCTime(compReq.Expand.End),
			}
		}
		values = append(values, &calDataReq)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return internal.EncodeProp(values...)
}
