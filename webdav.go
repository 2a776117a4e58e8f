// Package webdav provides the WebDAV transport used by the CalDAV client.
//
// WebDAV is defined in RFC 4918.
package webdav

import (
	"fmt"
	"strings"

	"github.com/calwire/go-caldav/internal"
)

// Depth indicates whether a request applies to the resource's members. It's
// defined in RFC 4918 section 10.2.
type Depth = internal.Depth

const (
	// DepthZero indicates that the request applies only to the resource.
	DepthZero = internal.DepthZero
	// DepthOne indicates that the request applies to the resource and its
	// internal members only.
	DepthOne = internal.DepthOne
	// DepthInfinity indicates that the request applies to the resource and all
	// of its members.
	DepthInfinity = internal.DepthInfinity
)

// HTTPError is returned when the server replies with a non-2xx status. Err
// holds the decoded DAV:error body, if any.
type HTTPError = internal.HTTPError

// IsNotFound reports whether err is an HTTP 404 error.
func IsNotFound(err error) bool {
	return internal.IsNotFound(err)
}

// ConditionalMatch represents the value of a conditional header
// according to RFC 2068 section 14.25 and RFC 2068 section 14.26
// The (optional) value can either be a wildcard or an ETag.
type ConditionalMatch string

// MatchAny is the If-None-Match value preventing an existing resource from
// being overwritten.
const MatchAny ConditionalMatch = "*"

// MatchETag returns the If-Match value for the given unquoted ETag.
func MatchETag(etag string) ConditionalMatch {
	return ConditionalMatch(fmt.Sprintf("%q", etag))
}

func (val ConditionalMatch) IsSet() bool {
	return val != ""
}

func (val ConditionalMatch) IsWildcard() bool {
	return val == "*"
}

// ETags returns the unquoted entity tags listed in the value.
func (val ConditionalMatch) ETags() ([]string, error) {
	var l []string
	for _, s := range strings.Split(string(val), ",") {
		s = strings.TrimSpace(s)
		if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
			return nil, fmt.Errorf("webdav: invalid entity tag %q", s)
		}
		l = append(l, s[1:len(s)-1])
	}
	return l, nil
}

// MatchETag reports whether the value is set and matches the given unquoted
// ETag.
func (val ConditionalMatch) MatchETag(etag string) (isSet bool, ok bool, err error) {
	if !val.IsSet() {
		return false, false, nil
	}
	if val.IsWildcard() {
		return true, true, nil
	}
	etags, err := val.ETags()
	if err != nil {
		return true, false, err
	}
	for _, t := range etags {
		if t == etag {
			return true, true, nil
		}
	}
	return true, false, nil
}
