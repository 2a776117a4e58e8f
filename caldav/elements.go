package caldav

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/calwire/go-caldav/internal"
)

const namespace = "urn:ietf:params:xml:ns:caldav"

var (
	calendarHomeSetName = xml.Name{namespace, "calendar-home-set"}

	calendarName                  = xml.Name{namespace, "calendar"}
	calendarDescriptionName       = xml.Name{namespace, "calendar-description"}
	supportedCalendarComponentSet = xml.Name{namespace, "supported-calendar-component-set"}
	maxResourceSizeName           = xml.Name{namespace, "max-resource-size"}
	calendarTimezoneName          = xml.Name{namespace, "calendar-timezone"}
	calendarColorName             = xml.Name{"http://apple.com/ns/ical/", "calendar-color"}

	// CalendarDataName is the CALDAV:calendar-data property.
	CalendarDataName = xml.Name{namespace, "calendar-data"}
	// ETagName is the DAV:getetag property.
	ETagName = internal.GetETagName
)

// https://tools.ietf.org/html/rfc4791#section-6.2.1
type calendarHomeSet struct {
	XMLName xml.Name      `xml:"urn:ietf:params:xml:ns:caldav calendar-home-set"`
	Href    internal.Href `xml:"DAV: href"`
}

// https://tools.ietf.org/html/rfc4791#section-5.2.1
type calendarDescription struct {
	XMLName     xml.Name `xml:"urn:ietf:params:xml:ns:caldav calendar-description"`
	Description string   `xml:",chardata"`
}

// https://tools.ietf.org/html/rfc4791#section-5.2.2
type calendarTimezone struct {
	XMLName  xml.Name `xml:"urn:ietf:params:xml:ns:caldav calendar-timezone"`
	Timezone string   `xml:",chardata"`
}

type calendarColor struct {
	XMLName xml.Name `xml:"http://apple.com/ns/ical/ calendar-color"`
	Color   string   `xml:",chardata"`
}

// https://tools.ietf.org/html/rfc4791#section-5.2.3
type supportedCalendarComponentSetProp struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:caldav supported-calendar-component-set"`
	Comp    []comp   `xml:"urn:ietf:params:xml:ns:caldav comp"`
}

// https://tools.ietf.org/html/rfc4791#section-5.2.5
type maxResourceSize struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:caldav max-resource-size"`
	Size    int64    `xml:",chardata"`
}

// https://tools.ietf.org/html/rfc4791#section-9.5
type calendarQuery struct {
	XMLName xml.Name       `xml:"urn:ietf:params:xml:ns:caldav calendar-query"`
	Prop    *internal.Prop `xml:"DAV: prop,omitempty"`
	AllProp *struct{}      `xml:"DAV: allprop,omitempty"`
	Filter  nodeElement    `xml:"filter"`
}

// https://tools.ietf.org/html/rfc4791#section-7.10
type freeBusyQuery struct {
	XMLName   xml.Name    `xml:"urn:ietf:params:xml:ns:caldav free-busy-query"`
	TimeRange nodeElement `xml:"time-range"`
}

// https://tools.ietf.org/html/rfc4791#section-9.10
type calendarMultiget struct {
	XMLName xml.Name       `xml:"urn:ietf:params:xml:ns:caldav calendar-multiget"`
	Prop    *internal.Prop `xml:"DAV: prop,omitempty"`
	AllProp *struct{}      `xml:"DAV: allprop,omitempty"`
	Hrefs   []string       `xml:"DAV: href"`
}

// https://tools.ietf.org/html/rfc4791#section-9.6
type calendarDataReq struct {
	XMLName            xml.Name   `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
	Comp               *comp      `xml:"comp,omitempty"`
	Expand             *timeRange `xml:"expand,omitempty"`
	LimitRecurrenceSet *timeRange `xml:"limit-recurrence-set,omitempty"`
}

// https://tools.ietf.org/html/rfc4791#section-9.6.1
type comp struct {
	Name string `xml:"name,attr"`

	Allprop *struct{} `xml:"allprop,omitempty"`
	Prop    []prop    `xml:"prop,omitempty"`

	Allcomp *struct{} `xml:"allcomp,omitempty"`
	Comp    []comp    `xml:"comp,omitempty"`
}

// https://tools.ietf.org/html/rfc4791#section-9.6.4
type prop struct {
	Name    string `xml:"name,attr"`
	NoValue bool   `xml:"novalue,attr,omitempty"`
}

// https://tools.ietf.org/html/rfc4791#section-9.6.5
type timeRange struct {
	Start dateWithUTCTime `xml:"start,attr,omitempty"`
	End   dateWithUTCTime `xml:"end,attr,omitempty"`
}

// https://tools.ietf.org/html/rfc4791#section-9.9
type dateWithUTCTime time.Time

func (t *dateWithUTCTime) UnmarshalText(b []byte) error {
	tt, err := time.Parse(dateWithUTCTimeFormat, string(b))
	if err != nil {
		return fmt.Errorf("caldav: invalid date with UTC time %q: %w", b, err)
	}
	*t = dateWithUTCTime(tt)
	return nil
}

func (t dateWithUTCTime) MarshalText() ([]byte, error) {
	return []byte(formatDateWithUTCTime(time.Time(t))), nil
}
