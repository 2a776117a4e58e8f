package caldav

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/calwire/go-caldav/internal"
)

// ValidationError is returned when a request fails validation before it is
// sent.
type ValidationError struct {
	// Element is the XML element which failed validation.
	Element string
	// Name is the element's name attribute, if any.
	Name   string
	Reason string

	path []string
}

func (err *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("caldav: invalid ")
	sb.WriteString(err.Element)
	if err.Name != "" {
		fmt.Fprintf(&sb, " %q", err.Name)
	}
	if len(err.path) > 0 {
		fmt.Fprintf(&sb, " (in %v)", strings.Join(err.path, " > "))
	}
	sb.WriteString(": ")
	sb.WriteString(err.Reason)
	return sb.String()
}

// wrapValidationError records the enclosing element of a nested validation
// failure.
func wrapValidationError(err error, element, name string) error {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	outer := element
	if name != "" {
		outer = element + " " + name
	}
	verr.path = append([]string{outer}, verr.path...)
	return verr
}

// ErrorCode identifies a CalDAV precondition or postcondition.
type ErrorCode int

const (
	ErrorCodeUnclassified ErrorCode = iota
	ErrorCodeSupportedCalendarData
	ErrorCodeValidFilter
	ErrorCodeNumberOfMatchesWithinLimits
	ErrorCodeSupportedFilter
	ErrorCodeValidCalendarData
	ErrorCodeNoUIDConflict
)

var errorCodes = map[xml.Name]ErrorCode{
	{namespace, "supported-calendar-data"}:                  ErrorCodeSupportedCalendarData,
	{namespace, "valid-filter"}:                             ErrorCodeValidFilter,
	{internal.Namespace, "number-of-matches-within-limits"}: ErrorCodeNumberOfMatchesWithinLimits,
	{namespace, "supported-filter"}:                         ErrorCodeSupportedFilter,
	{namespace, "valid-calendar-data"}:                      ErrorCodeValidCalendarData,
	{namespace, "no-uid-conflict"}:                          ErrorCodeNoUIDConflict,
}

func (code ErrorCode) String() string {
	for name, c := range errorCodes {
		if c == code {
			return name.Local
		}
	}
	return "unclassified"
}

// ProtocolError is a server error response.
//
// Code is only classified for 403 Forbidden and 409 Conflict responses
// carrying a known DAV:error condition.
type ProtocolError struct {
	StatusCode int
	Code       ErrorCode
	// Condition is the first condition element of the DAV:error body, if
	// any.
	Condition xml.Name

	Err error
}

func (err *ProtocolError) Error() string {
	if err.Code == ErrorCodeUnclassified {
		return fmt.Sprintf("caldav: request failed: %v", err.Err)
	}
	return fmt.Sprintf("caldav: request failed (%v): %v", err.Code, err.Err)
}

func (err *ProtocolError) Unwrap() error {
	return err.Err
}

// ClassifyError turns HTTP errors into a *ProtocolError. Other errors, such as
// transport failures, are returned unchanged.
func ClassifyError(err error) error {
	var httpErr *internal.HTTPError
	if err == nil || !errors.As(err, &httpErr) {
		return err
	}
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return err
	}

	protoErr = &ProtocolError{StatusCode: httpErr.Code, Err: err}

	var davErr *internal.Error
	if errors.As(httpErr.Err, &davErr) {
		if conds := davErr.Conditions(); len(conds) > 0 {
			protoErr.Condition = conds[0]
		}
	}
	switch httpErr.Code {
	case http.StatusForbidden, http.StatusConflict:
		protoErr.Code = errorCodes[protoErr.Condition]
	}
	return protoErr
}

// ObjectError is a failure to decode a single calendar object of a
// multi-status response.
type ObjectError struct {
	Path string
	Err  error
}

func (err *ObjectError) Error() string {
	return fmt.Sprintf("caldav: object %q: %v", err.Path, err.Err)
}

func (err *ObjectError) Unwrap() error {
	return err.Err
}

// PartialError is returned alongside the successfully decoded objects when
// some entries of a multi-status response could not be decoded.
type PartialError struct {
	Errors []*ObjectError
}

func (err *PartialError) Error() string {
	if len(err.Errors) == 1 {
		return err.Errors[0].Error()
	}
	return fmt.Sprintf("caldav: %v objects failed to decode, first: %v", len(err.Errors), err.Errors[0])
}

func (err *PartialError) Unwrap() []error {
	l := make([]error, len(err.Errors))
	for i, objErr := range err.Errors {
		l[i] = objErr
	}
	return l
}
