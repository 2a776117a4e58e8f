// Package caldav provides a CalDAV client.
//
// CalDAV is defined in RFC 4791. The package builds calendar-query,
// free-busy-query and calendar-multiget REPORT bodies from filter trees,
// decodes multi-status responses into calendar objects and classifies the
// CalDAV precondition and postcondition errors returned by servers.
package caldav

import (
	"bytes"
	"sync"
	"time"

	"github.com/emersion/go-ical"
)

type Calendar struct {
	Path                  string
	Name                  string
	Description           string
	MaxResourceSize       int64
	SupportedComponentSet []string
	Timezone              string
	Color                 string
	ReadOnly              bool
}

type CalendarCompRequest struct {
	Name string

	AllProps bool
	Props    []string

	AllComps bool
	Comps    []CalendarCompRequest

	Expand *CalendarExpandRequest
}

type CalendarExpandRequest struct {
	Start, End time.Time
}

// CalendarObject is a calendar object resource stored on the server.
//
// Raw holds the iCalendar text with normalized line endings. The parsed
// calendar is derived from it on first use and must not be modified by
// callers; objects are replaced wholesale when re-fetched.
type CalendarObject struct {
	Path          string
	ModTime       time.Time
	ContentLength int64
	ETag          string
	Raw           []byte

	once sync.Once
	data *ical.Calendar
	err  error
}

// NewCalendarObject creates a calendar object from raw iCalendar text.
func NewCalendarObject(path, etag string, raw []byte) *CalendarObject {
	return &CalendarObject{
		Path: path,
		ETag: etag,
		Raw:  NormalizeLineEndings(raw),
	}
}

// Calendar parses the object's iCalendar data. The result is computed once.
// Objects without calendar data return a nil calendar and no error.
func (co *CalendarObject) Calendar() (*ical.Calendar, error) {
	co.once.Do(func() {
		if len(co.Raw) == 0 {
			return
		}
		co.data, co.err = ical.NewDecoder(bytes.NewReader(co.Raw)).Decode()
	})
	return co.data, co.err
}

// UID returns the UID of the object's first event, or an empty string if the
// object has no parseable event.
func (co *CalendarObject) UID() string {
	cal, err := co.Calendar()
	if err != nil || cal == nil {
		return ""
	}
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		uid, err := child.Props.Text(ical.PropUID)
		if err != nil {
			return ""
		}
		return uid
	}
	return ""
}

func encodeCalendar(cal *ical.Calendar) ([]byte, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
