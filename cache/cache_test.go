package cache

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calwire/go-caldav/caldav"
)

func testObject(href, uid string) *caldav.CalendarObject {
	data := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Example Corp.//CalDAV Client//EN",
		"BEGIN:VEVENT",
		"UID:" + uid,
		"DTSTAMP:20060206T001102Z",
		"DTSTART:20060104T140000Z",
		"DURATION:PT1H",
		"SUMMARY:Event #2",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\n")
	return caldav.NewCalendarObject(href, "etag-"+uid, []byte(data))
}

func testTodo(href string) *caldav.CalendarObject {
	data := "BEGIN:VCALENDAR\nVERSION:2.0\nPRODID:-//Example//EN\nBEGIN:VTODO\nUID:todo\nDTSTAMP:20060206T001102Z\nEND:VTODO\nEND:VCALENDAR\n"
	return caldav.NewCalendarObject(href, "etag-todo", []byte(data))
}

func backends(t *testing.T) map[string]Backend {
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	fb, err := OpenFileBackend(t.TempDir(), id)
	require.NoError(t, err)
	return map[string]Backend{
		"memory": NewMemoryBackend(nil),
		"file":   fb,
	}
}

func TestCache_dualIndex(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := Open(backend)
			defer c.Close()

			co := testObject("/a/1.ics", "U1")
			require.NoError(t, c.Put(co))

			got, err := c.Get("/a/1.ics")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "/a/1.ics", got.Path)
			assert.Equal(t, "etag-U1", got.ETag)
			assert.Equal(t, co.Raw, got.Raw)
			assert.Equal(t, "U1", got.UID())

			href, err := c.HrefForUID("U1")
			require.NoError(t, err)
			assert.Equal(t, "/a/1.ics", href)

			require.NoError(t, c.Remove("/a/1.ics"))

			got, err = c.Get("/a/1.ics")
			require.NoError(t, err)
			assert.Nil(t, got)

			href, err = c.HrefForUID("U1")
			require.NoError(t, err)
			assert.Empty(t, href)
		})
	}
}

func TestCache_Get_normalizesHref(t *testing.T) {
	c := Open(NewMemoryBackend(nil))
	defer c.Close()

	require.NoError(t, c.Put(testObject("/a//1.ics", "U1")))

	for _, href := range []string{
		"/a/1.ics",
		"//a///1.ics",
		"https://dav.example.com/a/1.ics",
		"https://dav.example.com//a//1.ics",
	} {
		got, err := c.Get(href)
		require.NoError(t, err, href)
		require.NotNil(t, got, href)
		assert.Equal(t, "/a/1.ics", got.Path)
	}

	got, err := c.Get("/a/2.ics")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_Put_withoutEvent(t *testing.T) {
	c := Open(NewMemoryBackend(nil))
	defer c.Close()

	require.NoError(t, c.Put(testTodo("/tasks/1.ics")))

	got, err := c.Get("/tasks/1.ics")
	require.NoError(t, err)
	assert.NotNil(t, got)

	href, err := c.HrefForUID("todo")
	require.NoError(t, err)
	assert.Empty(t, href)

	require.NoError(t, c.Remove("/tasks/1.ics"))
}

func TestCache_Remove_staleUID(t *testing.T) {
	c := Open(NewMemoryBackend(nil))
	defer c.Close()

	require.NoError(t, c.Put(testObject("/a/old.ics", "U1")))
	// The event moved to a new href before the old one was removed.
	require.NoError(t, c.Put(testObject("/a/new.ics", "U1")))
	require.NoError(t, c.Remove("/a/old.ics"))

	href, err := c.HrefForUID("U1")
	require.NoError(t, err)
	assert.Equal(t, "/a/new.ics", href)
}

func TestCache_HrefForUID_dangling(t *testing.T) {
	backend := NewMemoryBackend(nil)
	c := Open(backend)
	defer c.Close()

	require.NoError(t, c.Put(testObject("/a/1.ics", "U1")))
	// Simulate the backend evicting the object but not its UID entry.
	require.NoError(t, backend.Remove(hrefKey("/a/1.ics")))

	href, err := c.HrefForUID("U1")
	require.NoError(t, err)
	assert.Empty(t, href)

	_, ok, err := backend.Get(uidKey("U1"))
	require.NoError(t, err)
	assert.False(t, ok, "dangling UID entry was kept")
}

func TestCache_HrefForUID_changedUID(t *testing.T) {
	backend := NewMemoryBackend(nil)
	c := Open(backend)
	defer c.Close()

	require.NoError(t, c.Put(testObject("/a/1.ics", "U1")))
	require.NoError(t, c.Put(testObject("/a/1.ics", "U2")))

	href, err := c.HrefForUID("U1")
	require.NoError(t, err)
	assert.Empty(t, href)
	_, ok, err := backend.Get(uidKey("U1"))
	require.NoError(t, err)
	assert.False(t, ok, "mismatched UID entry was kept")

	href, err = c.HrefForUID("U2")
	require.NoError(t, err)
	assert.Equal(t, "/a/1.ics", href)
}

func TestCache_concurrent(t *testing.T) {
	c := Open(NewMemoryBackend(nil))
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				href := fmt.Sprintf("/a/%v.ics", j%5)
				uid := fmt.Sprintf("U%v", j%5)
				switch (i + j) % 3 {
				case 0:
					assert.NoError(t, c.Put(testObject(href, uid)))
				case 1:
					assert.NoError(t, c.Remove(href))
				default:
					_, err := c.Get(href)
					assert.NoError(t, err)
				}
			}
		}(i)
	}
	wg.Wait()

	// Every remaining UID entry must point at an object with that UID.
	for j := 0; j < 5; j++ {
		uid := fmt.Sprintf("U%v", j)
		href, err := c.HrefForUID(uid)
		require.NoError(t, err)
		if href == "" {
			continue
		}
		co, err := c.Get(href)
		require.NoError(t, err)
		require.NotNil(t, co, "UID %v points at missing %v", uid, href)
		assert.Equal(t, uid, co.UID())
	}
}

type failingBackend struct {
	Backend
}

var errUnavailable = errors.New("storage unavailable")

func (failingBackend) Get(key string) ([]byte, bool, error) {
	return nil, false, errUnavailable
}

func (failingBackend) Put(key string, value []byte) error {
	return errUnavailable
}

func TestCache_backendError(t *testing.T) {
	c := Open(failingBackend{NewMemoryBackend(nil)})
	defer c.Close()

	_, err := c.Get("/a/1.ics")
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "get", cerr.Op)
	assert.ErrorIs(t, err, errUnavailable)

	err = c.Put(testObject("/a/1.ics", "U1"))
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "put", cerr.Op)
}

func TestCache_Close(t *testing.T) {
	c := Open(NewMemoryBackend(nil))
	require.NoError(t, c.Close())

	_, err := c.Get("/a/1.ics")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Put(testObject("/a/1.ics", "U1")), ErrClosed)
	assert.ErrorIs(t, c.Close(), ErrClosed)
}

func TestFileBackend_wrongIdentity(t *testing.T) {
	dir := t.TempDir()
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	other, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	b, err := OpenFileBackend(dir, id)
	require.NoError(t, err)
	require.NoError(t, b.Put("href:/a/1.ics", []byte("secret")))

	v, ok, err := b.Get("href:/a/1.ics")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("secret"), v)

	b2, err := OpenFileBackend(dir, other)
	require.NoError(t, err)
	_, _, err = b2.Get("href:/a/1.ics")
	assert.Error(t, err)

	require.NoError(t, b.Remove("href:/a/1.ics"))
	require.NoError(t, b.Remove("href:/a/1.ics"))
	_, ok, err = b.Get("href:/a/1.ics")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNop(t *testing.T) {
	var c caldav.ObjectCache = Nop{}
	require.NoError(t, c.Put(testObject("/a/1.ics", "U1")))
	co, err := c.Get("/a/1.ics")
	require.NoError(t, err)
	assert.Nil(t, co)
	href, err := c.HrefForUID("U1")
	require.NoError(t, err)
	assert.Empty(t, href)
}
