package caldav

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/emersion/go-ical"

	webdav "github.com/calwire/go-caldav"
	"github.com/calwire/go-caldav/internal"
)

// DiscoverContextURL performs a DNS-based CalDAV service discovery as
// described in RFC 6764 section 6. It returns the URL to the CalDAV server.
func DiscoverContextURL(ctx context.Context, domain string) (string, error) {
	return internal.Discover(ctx, "caldav", domain)
}

// ObjectCache stores calendar objects by href and indexes them by UID.
//
// Cache misses are reported with a nil result and a nil error.
type ObjectCache interface {
	Get(href string) (*CalendarObject, error)
	HrefForUID(uid string) (string, error)
	Put(co *CalendarObject) error
	Remove(href string) error
}

type nopCache struct{}

func (nopCache) Get(href string) (*CalendarObject, error) { return nil, nil }
func (nopCache) HrefForUID(uid string) (string, error)    { return "", nil }
func (nopCache) Put(co *CalendarObject) error             { return nil }
func (nopCache) Remove(href string) error                 { return nil }

type ClientOptions struct {
	// Cache stores fetched objects. If nil, nothing is cached.
	Cache ObjectCache
	// Dialect adapts requests to the server. If nil, DefaultDialect is used.
	Dialect Dialect
}

// Client provides access to a remote CalDAV server.
type Client struct {
	*webdav.Client

	ic      *internal.Client
	cache   ObjectCache
	dialect Dialect
}

func NewClient(c webdav.HTTPClient, endpoint string, options *ClientOptions) (*Client, error) {
	if options == nil {
		options = &ClientOptions{}
	}
	cache := options.Cache
	if cache == nil {
		cache = nopCache{}
	}
	dialect := options.Dialect
	if dialect == nil {
		dialect = DefaultDialect{}
	}

	wc, err := webdav.NewClient(c, endpoint)
	if err != nil {
		return nil, err
	}
	wc.SetRequestHook(dialect.PrepareRequest)
	ic, err := internal.NewClient(c, endpoint)
	if err != nil {
		return nil, err
	}
	ic.PrepareRequest = dialect.PrepareRequest
	return &Client{Client: wc, ic: ic, cache: cache, dialect: dialect}, nil
}

// SupportsCalendarAccess reports whether the server advertises CalDAV
// support for path, as described in RFC 4791 section 5.1.
func (c *Client) SupportsCalendarAccess(ctx context.Context, path string) (bool, error) {
	classes, _, err := c.ic.Options(ctx, path)
	if err != nil {
		return false, ClassifyError(err)
	}
	return classes["calendar-access"], nil
}

func (c *Client) FindCalendarHomeSet(ctx context.Context, principal string) (string, error) {
	propfind := internal.NewPropNamePropfind(calendarHomeSetName)
	resp, err := c.ic.PropfindFlat(ctx, principal, propfind)
	if err != nil {
		return "", ClassifyError(err)
	}

	var prop calendarHomeSet
	if err := resp.DecodeProp(&prop); err != nil {
		return "", err
	}

	return prop.Href.Path, nil
}

func (c *Client) FindCalendars(ctx context.Context, calendarHomeSet string) ([]Calendar, error) {
	propfind := internal.NewPropNamePropfind(
		internal.ResourceTypeName,
		internal.DisplayNameName,
		internal.CurrentUserPrivilegeSetName,
		calendarDescriptionName,
		maxResourceSizeName,
		supportedCalendarComponentSet,
		calendarTimezoneName,
		calendarColorName,
	)
	ms, err := c.ic.Propfind(ctx, calendarHomeSet, internal.DepthOne, propfind)
	if err != nil {
		return nil, ClassifyError(err)
	}

	l := make([]Calendar, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		path, err := resp.Path()
		if err != nil {
			return nil, err
		}

		var resType internal.ResourceType
		if err := resp.DecodeProp(&resType); err != nil {
			return nil, err
		}
		if !resType.Is(calendarName) {
			continue
		}

		var desc calendarDescription
		if err := resp.DecodeProp(&desc); err != nil && !internal.IsNotFound(err) {
			return nil, err
		}

		var dispName internal.DisplayName
		if err := resp.DecodeProp(&dispName); err != nil && !internal.IsNotFound(err) {
			return nil, err
		}

		var maxResSize maxResourceSize
		if err := resp.DecodeProp(&maxResSize); err != nil && !internal.IsNotFound(err) {
			return nil, err
		}
		if maxResSize.Size < 0 {
			return nil, fmt.Errorf("caldav: max-resource-size must be a positive integer")
		}

		var supportedCompSet supportedCalendarComponentSetProp
		if err := resp.DecodeProp(&supportedCompSet); err != nil && !internal.IsNotFound(err) {
			return nil, err
		}
		compNames := make([]string, 0, len(supportedCompSet.Comp))
		for _, comp := range supportedCompSet.Comp {
			compNames = append(compNames, comp.Name)
		}

		var tz calendarTimezone
		if err := resp.DecodeProp(&tz); err != nil && !internal.IsNotFound(err) {
			return nil, err
		}

		var color calendarColor
		if err := resp.DecodeProp(&color); err != nil && !internal.IsNotFound(err) {
			return nil, err
		}

		readOnly := false
		var privs internal.CurrentUserPrivilegeSet
		if err := resp.DecodeProp(&privs); err == nil {
			readOnly = !privs.Has(internal.WriteContent)
		} else if !internal.IsNotFound(err) {
			return nil, err
		}

		l = append(l, Calendar{
			Path:                  path,
			Name:                  dispName.Name,
			Description:           desc.Description,
			MaxResourceSize:       maxResSize.Size,
			SupportedComponentSet: compNames,
			Timezone:              tz.Timezone,
			Color:                 color.Color,
			ReadOnly:              readOnly,
		})
	}

	return l, nil
}

func (c *Client) newReportRequest(ctx context.Context, path string, r Report) (*http.Request, error) {
	doc, err := Render(r)
	if err != nil {
		return nil, err
	}
	req, err := c.ic.NewDocumentRequest(ctx, "REPORT", path, doc)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", r.Depth().String())
	return req, nil
}

func (c *Client) report(ctx context.Context, path string, r Report) ([]*CalendarObject, error) {
	req, err := c.newReportRequest(ctx, path, r)
	if err != nil {
		return nil, err
	}

	ms, err := c.ic.DoMultiStatus(req)
	if err != nil {
		return nil, ClassifyError(err)
	}

	objs, err := decodeCalendarObjects(ms)
	var partialErr *PartialError
	if err != nil && !errors.As(err, &partialErr) {
		return nil, err
	}

	if cacheErr := c.cacheObjects(objs); cacheErr != nil {
		return objs, errors.Join(err, cacheErr)
	}
	return objs, err
}

func (c *Client) cacheObjects(objs []*CalendarObject) error {
	for _, co := range objs {
		if len(co.Raw) == 0 || co.ETag == "" {
			continue
		}
		if err := c.cache.Put(co); err != nil {
			return err
		}
	}
	return nil
}

// QueryCalendar performs a calendar-query REPORT on a calendar collection.
//
// If some entries of the response can't be decoded, the other objects are
// returned along with a *PartialError.
func (c *Client) QueryCalendar(ctx context.Context, calendar string, query *CalendarQuery) ([]*CalendarObject, error) {
	objs, err := c.report(ctx, calendar, query)
	if objs == nil {
		return nil, err
	}

	if c.dialect.FiltersLocally() && query.wantsCalendarData() {
		filtered, filterErr := Filter(query, objs)
		if filterErr != nil {
			return nil, filterErr
		}
		objs = filtered
	}
	return objs, err
}

// MultiGetCalendar performs a calendar-multiget REPORT.
func (c *Client) MultiGetCalendar(ctx context.Context, path string, multiGet *CalendarMultiGet) ([]*CalendarObject, error) {
	return c.report(ctx, path, multiGet)
}

// FreeBusy performs a free-busy-query REPORT and returns the VFREEBUSY
// calendar sent by the server.
func (c *Client) FreeBusy(ctx context.Context, calendar string, query *FreeBusyQuery) (*ical.Calendar, error) {
	req, err := c.newReportRequest(ctx, calendar, query)
	if err != nil {
		return nil, err
	}

	resp, err := c.ic.Do(req)
	if err != nil {
		return nil, ClassifyError(err)
	}
	defer resp.Body.Close()

	if err := checkCalendarMediaType(resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return ical.NewDecoder(bytes.NewReader(NormalizeLineEndings(data))).Decode()
}

func checkCalendarMediaType(resp *http.Response) error {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return err
	}
	if !strings.EqualFold(mediaType, ical.MIMEType) {
		return fmt.Errorf("caldav: expected Content-Type %q, got %q", ical.MIMEType, mediaType)
	}
	return nil
}

func populateCalendarObject(co *CalendarObject, resp *http.Response) error {
	if loc := resp.Header.Get("Location"); loc != "" {
		u, err := url.Parse(loc)
		if err != nil {
			return err
		}
		co.Path = u.Path
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		co.ETag = internal.UnquoteETag(etag)
	}
	if contentLength := resp.ContentLength; contentLength >= 0 {
		co.ContentLength = contentLength
	}
	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		t, err := http.ParseTime(lastModified)
		if err != nil {
			return err
		}
		co.ModTime = t
	}

	return nil
}

// GetCalendarObject fetches a calendar object. If a copy is cached, the
// request is made conditional on its entity tag and the cached copy is
// returned when the server reports it unchanged.
func (c *Client) GetCalendarObject(ctx context.Context, path string) (*CalendarObject, error) {
	cached, err := c.cache.Get(path)
	if err != nil {
		return nil, err
	}

	req, err := c.ic.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", ical.MIMEType)
	if cached != nil && cached.ETag != "" {
		req.Header.Set("If-None-Match", internal.ETag(cached.ETag).String())
	}

	resp, err := c.ic.Do(req)
	if err != nil {
		var httpErr *internal.HTTPError
		if cached != nil && errors.As(err, &httpErr) && httpErr.Code == http.StatusNotModified {
			return cached, nil
		}
		if internal.IsNotFound(err) {
			if rmErr := c.cache.Remove(path); rmErr != nil {
				return nil, rmErr
			}
		}
		return nil, ClassifyError(err)
	}
	defer resp.Body.Close()

	if err := checkCalendarMediaType(resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	co := NewCalendarObject(path, "", data)
	if err := populateCalendarObject(co, resp); err != nil {
		return nil, err
	}
	if _, err := co.Calendar(); err != nil {
		return nil, err
	}
	if co.ETag != "" {
		if err := c.cache.Put(co); err != nil {
			return nil, err
		}
	}
	return co, nil
}

type PutCalendarObjectOptions struct {
	// IfNoneMatch prevents overwriting an existing object when set to
	// webdav.MatchAny.
	IfNoneMatch webdav.ConditionalMatch
	// IfMatch makes the update conditional on the object's current entity
	// tag.
	IfMatch webdav.ConditionalMatch
}

// checkIfMatch evaluates an If-Match value against the cached copy of an
// object. A mismatch fails with 412 Precondition Failed without contacting
// the server. Without a cached entity tag the server decides.
func (c *Client) checkIfMatch(path string, ifMatch webdav.ConditionalMatch) error {
	if !ifMatch.IsSet() {
		return nil
	}
	cached, err := c.cache.Get(path)
	if err != nil || cached == nil || cached.ETag == "" {
		return err
	}
	if _, ok, err := ifMatch.MatchETag(cached.ETag); err != nil {
		return err
	} else if !ok {
		return ClassifyError(internal.HTTPErrorf(http.StatusPreconditionFailed, "caldav: cached entity tag %v of %q doesn't match If-Match", internal.ETag(cached.ETag), path))
	}
	return nil
}

// PutCalendarObject stores a calendar object. When options.IfMatch is set
// and the object is cached, the cached entity tag is checked first.
func (c *Client) PutCalendarObject(ctx context.Context, path string, cal *ical.Calendar, options *PutCalendarObjectOptions) (*CalendarObject, error) {
	if options != nil {
		if err := c.checkIfMatch(path, options.IfMatch); err != nil {
			return nil, err
		}
	}

	// Some servers want a Content-Length header, so the body isn't streamed.
	// See https://github.com/Kozea/Radicale/issues/1016
	data, err := encodeCalendar(cal)
	if err != nil {
		return nil, err
	}

	req, err := c.ic.NewRequest(ctx, http.MethodPut, path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", ical.MIMEType)
	if options != nil {
		if options.IfNoneMatch.IsSet() {
			req.Header.Set("If-None-Match", string(options.IfNoneMatch))
		}
		if options.IfMatch.IsSet() {
			req.Header.Set("If-Match", string(options.IfMatch))
		}
	}

	resp, err := c.ic.Do(req)
	if err != nil {
		return nil, ClassifyError(err)
	}
	resp.Body.Close()

	co := NewCalendarObject(path, "", data)
	if err := populateCalendarObject(co, resp); err != nil {
		return nil, err
	}
	co.ContentLength = int64(len(data))

	// Without an entity tag the stored representation is unknown, so any
	// cached copy is stale.
	if co.ETag == "" {
		err = c.cache.Remove(path)
	} else {
		err = c.cache.Put(co)
	}
	if err != nil {
		return nil, err
	}
	return co, nil
}

func (c *Client) DeleteCalendarObject(ctx context.Context, path string) error {
	req, err := c.ic.NewRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.ic.Do(req)
	if err != nil && !internal.IsNotFound(err) {
		return ClassifyError(err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	if rmErr := c.cache.Remove(path); rmErr != nil {
		return rmErr
	}
	return ClassifyError(err)
}

// FindObjectByUID looks up the event with the given UID in a calendar. The
// cache is consulted first, falling back to a calendar-query on the UID
// property.
func (c *Client) FindObjectByUID(ctx context.Context, calendar, uid string) (*CalendarObject, error) {
	href, err := c.cache.HrefForUID(uid)
	if err != nil {
		return nil, err
	}
	if href != "" {
		co, err := c.GetCalendarObject(ctx, href)
		if err == nil && co.UID() == uid {
			return co, nil
		} else if err != nil && !internal.IsNotFound(err) {
			return nil, err
		}
	}

	query := NewCalendarQuery([]xml.Name{ETagName}, CompFilter{
		Name: "VCALENDAR",
		Comps: []CompFilter{{
			Name: ical.CompEvent,
			Props: []PropFilter{{
				Name:      ical.PropUID,
				TextMatch: &TextMatch{Text: uid, Collation: "i;octet"},
			}},
		}},
	}, true, false)
	objs, err := c.QueryCalendar(ctx, calendar, query)
	var partialErr *PartialError
	if err != nil && !errors.As(err, &partialErr) {
		return nil, err
	}
	for _, co := range objs {
		if co.UID() == uid {
			return co, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return nil, internal.HTTPErrorf(http.StatusNotFound, "caldav: no event with UID %q", uid)
}
