// Package cache stores CalDAV calendar objects by href and indexes them by
// event UID.
//
// A Cache keeps two indices in a key/value Backend: href entries holding the
// object, and UID entries holding the href of the object whose first event
// carries that UID. Both indices are updated under a single lock.
package cache

import (
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/calwire/go-caldav/caldav"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache: closed")

// Error is a backend failure. Cache misses are not errors.
type Error struct {
	Op  string
	Key string
	Err error
}

func (err *Error) Error() string {
	return fmt.Sprintf("cache: %v %q: %v", err.Op, err.Key, err.Err)
}

func (err *Error) Unwrap() error {
	return err.Err
}

// Backend is a key/value store. Backends may evict entries at any time.
type Backend interface {
	// Get returns the value stored for key. ok is false on a miss.
	Get(key string) (value []byte, ok bool, err error)
	Put(key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
	Close() error
}

type entry struct {
	Href string `yaml:"href"`
	ETag string `yaml:"etag,omitempty"`
	UID  string `yaml:"uid,omitempty"`
	Data string `yaml:"data,omitempty"`
}

func hrefKey(href string) string {
	return "href:" + href
}

func uidKey(uid string) string {
	return "uid:" + uid
}

// Cache is a calendar object cache. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	backend Backend
}

var _ caldav.ObjectCache = (*Cache)(nil)

// Open creates a cache on top of backend. The cache owns the backend and
// closes it in Close.
func Open(backend Backend) *Cache {
	return &Cache{backend: backend}
}

// Close releases the backend. Further operations fail with ErrClosed.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		return ErrClosed
	}
	err := c.backend.Close()
	c.backend = nil
	if err != nil {
		return &Error{Op: "close", Err: err}
	}
	return nil
}

func (c *Cache) lookup(href string) (*entry, error) {
	b, ok, err := c.backend.Get(hrefKey(href))
	if err != nil {
		return nil, &Error{Op: "get", Key: href, Err: err}
	} else if !ok {
		return nil, nil
	}
	var e entry
	if err := yaml.Unmarshal(b, &e); err != nil {
		return nil, &Error{Op: "get", Key: href, Err: err}
	}
	return &e, nil
}

// Get returns the object stored at href, or nil if there is none. If the
// href misses, the lookup is retried without the scheme and host.
func (c *Cache) Get(href string) (*caldav.CalendarObject, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		return nil, ErrClosed
	}

	href = caldav.NormalizeHref(href)
	e, err := c.lookup(href)
	if err != nil {
		return nil, err
	}
	if e == nil {
		if stripped := caldav.StripHost(href); stripped != href {
			if e, err = c.lookup(stripped); err != nil {
				return nil, err
			}
		}
	}
	if e == nil {
		return nil, nil
	}
	return caldav.NewCalendarObject(e.Href, e.ETag, []byte(e.Data)), nil
}

// HrefForUID returns the href of the object whose first event has the UID,
// or an empty string if there is none.
//
// HrefForUID is not a pure lookup: a UID entry whose object is gone, or no
// longer carries the UID, is deleted before reporting a miss. The UID index
// therefore never hands out an href for the wrong object.
func (c *Cache) HrefForUID(uid string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		return "", ErrClosed
	}

	b, ok, err := c.backend.Get(uidKey(uid))
	if err != nil {
		return "", &Error{Op: "get", Key: uid, Err: err}
	} else if !ok {
		return "", nil
	}
	href := string(b)

	e, err := c.lookup(href)
	if err != nil {
		return "", err
	}
	if e == nil || e.UID != uid {
		if err := c.backend.Remove(uidKey(uid)); err != nil {
			return "", &Error{Op: "remove", Key: uid, Err: err}
		}
		return "", nil
	}
	return href, nil
}

// Put stores the object at its href. Objects whose first event has a UID
// are also indexed by UID.
func (c *Cache) Put(co *caldav.CalendarObject) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		return ErrClosed
	}

	e := entry{
		Href: caldav.NormalizeHref(co.Path),
		ETag: co.ETag,
		UID:  co.UID(),
		Data: string(co.Raw),
	}
	b, err := yaml.Marshal(&e)
	if err != nil {
		return &Error{Op: "put", Key: e.Href, Err: err}
	}
	if err := c.backend.Put(hrefKey(e.Href), b); err != nil {
		return &Error{Op: "put", Key: e.Href, Err: err}
	}
	if e.UID != "" {
		if err := c.backend.Put(uidKey(e.UID), []byte(e.Href)); err != nil {
			return &Error{Op: "put", Key: e.UID, Err: err}
		}
	}
	return nil
}

// Remove deletes the object at href. Its UID entry is deleted too, unless it
// already points at another href.
func (c *Cache) Remove(href string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		return ErrClosed
	}

	href = caldav.NormalizeHref(href)
	e, err := c.lookup(href)
	if err != nil {
		return err
	} else if e == nil {
		return nil
	}

	if err := c.backend.Remove(hrefKey(href)); err != nil {
		return &Error{Op: "remove", Key: href, Err: err}
	}
	if e.UID == "" {
		return nil
	}

	b, ok, err := c.backend.Get(uidKey(e.UID))
	if err != nil {
		return &Error{Op: "get", Key: e.UID, Err: err}
	}
	if ok && string(b) == href {
		if err := c.backend.Remove(uidKey(e.UID)); err != nil {
			return &Error{Op: "remove", Key: e.UID, Err: err}
		}
	}
	return nil
}

// Nop is a cache that stores nothing. Every lookup misses.
type Nop struct{}

var _ caldav.ObjectCache = Nop{}

func (Nop) Get(href string) (*caldav.CalendarObject, error) { return nil, nil }
func (Nop) HrefForUID(uid string) (string, error)           { return "", nil }
func (Nop) Put(co *caldav.CalendarObject) error             { return nil }
func (Nop) Remove(href string) error                        { return nil }
func (Nop) Close() error                                    { return nil }
