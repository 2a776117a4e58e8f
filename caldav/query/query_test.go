package query

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calwire/go-caldav/caldav"
)

func TestParseFilter_roundTrip(t *testing.T) {
	filter, err := ParseFilter("VEVENT: UID==abc123", nil)
	require.NoError(t, err)

	b, err := filter.Render()
	require.NoError(t, err)

	const ns = `xmlns="urn:ietf:params:xml:ns:caldav"`
	want := `<filter ` + ns + `>` +
		`<comp-filter ` + ns + ` name="VCALENDAR">` +
		`<comp-filter ` + ns + ` name="VEVENT">` +
		`<prop-filter ` + ns + ` name="UID">` +
		`<text-match ` + ns + `>abc123</text-match>` +
		`</prop-filter>` +
		`</comp-filter>` +
		`</comp-filter>` +
		`</filter>`
	assert.Equal(t, want, string(b))
}

func TestParseFilter(t *testing.T) {
	start := time.Date(2006, 1, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2006, 1, 5, 0, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		name string
		text string
		tr   *caldav.TimeRange
		want caldav.CompFilter
	}{
		{
			name: "component only",
			text: "vtodo",
			want: caldav.CompFilter{Name: "VTODO", IsDefined: true},
		},
		{
			name: "external time range",
			text: "VEVENT",
			tr:   &caldav.TimeRange{Start: start, End: end},
			want: caldav.CompFilter{Name: "VEVENT", TimeRange: &caldav.TimeRange{Start: start, End: end}},
		},
		{
			name: "component time range",
			text: "VEVENT [20060104T000000Z;20060105T000000Z] : SUMMARY!=lunch",
			want: caldav.CompFilter{
				Name:      "VEVENT",
				TimeRange: &caldav.TimeRange{Start: start, End: end},
				Props: []caldav.PropFilter{{
					Name:      "SUMMARY",
					TextMatch: &caldav.TextMatch{Text: "lunch", NegateCondition: true},
				}},
			},
		},
		{
			name: "undefined",
			text: "VEVENT: LOCATION==UNDEF, X-ROOM != UNDEF",
			want: caldav.CompFilter{
				Name: "VEVENT",
				Props: []caldav.PropFilter{
					{Name: "LOCATION", IsNotDefined: true},
					{Name: "X-ROOM", IsDefined: true},
				},
			},
		},
		{
			name: "property time range",
			text: "VTODO: COMPLETED==[20060104;20060105]",
			want: caldav.CompFilter{
				Name: "VTODO",
				Props: []caldav.PropFilter{{
					Name:      "COMPLETED",
					TimeRange: &caldav.TimeRange{Start: start, End: end},
				}},
			},
		},
		{
			name: "bracket inside value",
			text: "VEVENT: SUMMARY==a[b, UID==x",
			want: caldav.CompFilter{
				Name: "VEVENT",
				Props: []caldav.PropFilter{
					{Name: "SUMMARY", TextMatch: &caldav.TextMatch{Text: "a[b"}},
					{Name: "UID", TextMatch: &caldav.TextMatch{Text: "x"}},
				},
			},
		},
		{
			name: "value with colon and spaces",
			text: "VEVENT: ATTENDEE==mailto:jane@example.com , SUMMARY==team sync",
			want: caldav.CompFilter{
				Name: "VEVENT",
				Props: []caldav.PropFilter{
					{Name: "ATTENDEE", TextMatch: &caldav.TextMatch{Text: "mailto:jane@example.com"}},
					{Name: "SUMMARY", TextMatch: &caldav.TextMatch{Text: "team sync"}},
				},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseFilter(tc.text, tc.tr)
			require.NoError(t, err)
			assert.Equal(t, "VCALENDAR", got.Name)
			require.Len(t, got.Comps, 1)
			assert.Equal(t, tc.want, got.Comps[0])
			assert.NoError(t, got.Validate())
		})
	}
}

func TestParseFilter_invalid(t *testing.T) {
	for _, tc := range []struct {
		text   string
		clause string
		offset int
	}{
		{text: "", offset: 0},
		{text: "VEVENT:", clause: "", offset: 7},
		{text: "VEVENT: UID==abc, ", clause: " ", offset: 17},
		{text: "VEVENT: UID abc", clause: " UID abc", offset: 12},
		{text: "VEVENT: UID==", clause: " UID==", offset: 13},
		{text: "VEVENT: DTSTART!=[20060104;20060105]", clause: " DTSTART!=[20060104;20060105]", offset: 18},
		{text: "VEVENT: DTSTART==[yesterday;20060105]", clause: " DTSTART==[yesterday;20060105]", offset: 18},
		{text: "VEVENT [20060104 20060105]", offset: 8},
		{text: "VEVENT foo", offset: 7},
		{text: "VEVENT: DTSTART==[20060104;20060105, UID==x", clause: " DTSTART==[20060104;20060105, UID==x", offset: 17},
		{text: "VEVENT [20060104;20060105: UID==x", offset: 7},
	} {
		t.Run(tc.text, func(t *testing.T) {
			_, err := ParseFilter(tc.text, nil)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "ParseFilter() = %v", err)
			assert.Equal(t, tc.text, perr.Input)
			assert.Equal(t, tc.clause, perr.Clause)
			assert.Equal(t, tc.offset, perr.Offset)
		})
	}
}

func TestParseFilter_timeRangeTwice(t *testing.T) {
	tr := &caldav.TimeRange{Start: time.Now(), End: time.Now().Add(time.Hour)}
	_, err := ParseFilter("VEVENT [20060104;20060105]", tr)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "time range given twice")
}

func TestParseError_message(t *testing.T) {
	_, err := ParseFilter("VEVENT: UID==abc, SUMMARY", nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), `" SUMMARY"`), "error %q doesn't name the clause", err)
}

func TestParseProps(t *testing.T) {
	comp, props, err := ParseProps("vevent: uid, summary ,DTSTART")
	require.NoError(t, err)
	assert.Equal(t, "VEVENT", comp)
	assert.Equal(t, []string{"UID", "SUMMARY", "DTSTART"}, props)

	comp, props, err = ParseProps("VTODO")
	require.NoError(t, err)
	assert.Equal(t, "VTODO", comp)
	assert.Empty(t, props)

	_, _, err = ParseProps("VEVENT: UID==abc")
	assert.Error(t, err)
}

func TestGenerator_CalendarQuery(t *testing.T) {
	g := Generator{
		Component: "VEVENT: UID, SUMMARY",
		Filter:    "VEVENT: SUMMARY==standup",
	}
	q, err := g.CalendarQuery()
	require.NoError(t, err)

	assert.True(t, q.IncludeCalendarData)
	require.NotNil(t, q.CompRequest)
	assert.Equal(t, "VCALENDAR", q.CompRequest.Name)
	assert.Equal(t, "VEVENT", q.CompRequest.Comps[0].Name)
	assert.Equal(t, []string{"UID", "SUMMARY"}, q.CompRequest.Comps[0].Props)

	b, err := caldav.Render(q)
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, "getetag")
	assert.Contains(t, s, `<comp name="VEVENT"><prop name="UID"></prop><prop name="SUMMARY"></prop></comp>`)
	assert.Contains(t, s, `standup</text-match>`)
}

func TestGenerator_componentOnly(t *testing.T) {
	g := Generator{Component: "VTODO"}
	q, err := g.CalendarQuery()
	require.NoError(t, err)
	require.Len(t, q.CompFilter.Comps, 1)
	assert.Equal(t, caldav.CompFilter{Name: "VTODO", IsDefined: true}, q.CompFilter.Comps[0])
	assert.True(t, q.CompRequest.Comps[0].AllProps)

	_, err = (&Generator{}).CalendarQuery()
	assert.Error(t, err)
}
