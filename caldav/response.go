package caldav

import (
	"bytes"
	"encoding/xml"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/emersion/go-ical"

	"github.com/calwire/go-caldav/internal"
)

// Property is a single property returned by the server.
type Property struct {
	Name  xml.Name
	Value string
}

// PropETag returns the unquoted entity tag held by a DAV:getetag property. It
// returns an empty string if p is nil or is another property.
func PropETag(p *Property) string {
	if p == nil || p.Name != ETagName {
		return ""
	}
	return internal.UnquoteETag(p.Value)
}

// PropCalendarData parses the iCalendar payload of a CALDAV:calendar-data
// property. It returns a nil calendar if p is nil, is another property or has
// an empty value.
func PropCalendarData(p *Property) (*ical.Calendar, error) {
	if p == nil || p.Name != CalendarDataName || strings.TrimSpace(p.Value) == "" {
		return nil, nil
	}
	data := NormalizeLineEndings([]byte(p.Value))
	return ical.NewDecoder(bytes.NewReader(data)).Decode()
}

var (
	crlf       = []byte("\r\n")
	lf         = []byte("\n")
	doubleCRLF = []byte("\r\n\r\n")
)

// NormalizeLineEndings rewrites bare line feeds as CRLF and collapses the
// blank lines some servers leave in calendar-data payloads.
func NormalizeLineEndings(b []byte) []byte {
	b = bytes.ReplaceAll(b, crlf, lf)
	b = bytes.ReplaceAll(b, lf, crlf)
	for bytes.Contains(b, doubleCRLF) {
		b = bytes.ReplaceAll(b, doubleCRLF, crlf)
	}
	return b
}

func responseProperties(resp *internal.Response) map[xml.Name]*Property {
	props := make(map[xml.Name]*Property)
	for name, raw := range resp.Props() {
		props[name] = &Property{Name: name, Value: raw.Text()}
	}
	return props
}

func decodeCalendarObject(path string, props map[xml.Name]*Property) (*CalendarObject, error) {
	var raw []byte
	if p := props[CalendarDataName]; p != nil {
		raw = []byte(p.Value)
	}
	co := NewCalendarObject(path, PropETag(props[ETagName]), raw)

	if p := props[internal.GetLastModifiedName]; p != nil {
		t, err := http.ParseTime(strings.TrimSpace(p.Value))
		if err != nil {
			return nil, err
		}
		co.ModTime = t
	}
	if p := props[internal.GetContentLengthName]; p != nil {
		n, err := strconv.ParseInt(strings.TrimSpace(p.Value), 10, 64)
		if err != nil {
			return nil, err
		}
		co.ContentLength = n
	}

	if _, err := co.Calendar(); err != nil {
		return nil, err
	}
	return co, nil
}

// decodeCalendarObjects builds calendar objects out of the multi-status
// entries carrying calendar-data or getetag. Entries carrying neither are
// skipped. Entries that fail to decode are reported in a *PartialError
// returned together with the other objects.
func decodeCalendarObjects(ms *internal.Multistatus) ([]*CalendarObject, error) {
	objs := make([]*CalendarObject, 0, len(ms.Responses))
	var errs []*ObjectError
	for i := range ms.Responses {
		resp := &ms.Responses[i]

		path, err := resp.Path()
		if err != nil {
			errs = append(errs, &ObjectError{Path: path, Err: err})
			continue
		}

		props := responseProperties(resp)
		if props[CalendarDataName] == nil && props[ETagName] == nil {
			continue
		}

		co, err := decodeCalendarObject(path, props)
		if err != nil {
			errs = append(errs, &ObjectError{Path: path, Err: err})
			continue
		}
		objs = append(objs, co)
	}

	if len(errs) > 0 {
		return objs, &PartialError{Errors: errs}
	}
	return objs, nil
}

// DecodeMultiStatus decodes a multi-status response body into calendar
// objects. On partial failure, the decoded objects are returned along with a
// *PartialError.
func DecodeMultiStatus(r io.Reader) ([]*CalendarObject, error) {
	ms, err := internal.DecodeMultistatus(r)
	if err != nil {
		return nil, err
	}
	return decodeCalendarObjects(ms)
}
