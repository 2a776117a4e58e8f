// Package itip implements iCalendar Transport-Independent Interoperability
// Protocol (iTIP) responses, defined in RFC 5546.
package itip

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-vcard"
)

// Method is an iTIP method, carried by the METHOD calendar property.
type Method string

const (
	MethodPublish        Method = "PUBLISH"
	MethodRequest        Method = "REQUEST"
	MethodReply          Method = "REPLY"
	MethodAdd            Method = "ADD"
	MethodCancel         Method = "CANCEL"
	MethodRefresh        Method = "REFRESH"
	MethodCounter        Method = "COUNTER"
	MethodDeclineCounter Method = "DECLINECOUNTER"
)

// PartStat is an attendee participation status, carried by the PARTSTAT
// parameter.
type PartStat string

const (
	PartStatNeedsAction PartStat = "NEEDS-ACTION"
	PartStatAccepted    PartStat = "ACCEPTED"
	PartStatDeclined    PartStat = "DECLINED"
	PartStatTentative   PartStat = "TENTATIVE"
	PartStatDelegated   PartStat = "DELEGATED"
)

// ParsePartStat parses a participation status. Parsing is case-insensitive.
func ParsePartStat(s string) (PartStat, error) {
	switch ps := PartStat(strings.ToUpper(s)); ps {
	case PartStatNeedsAction, PartStatAccepted, PartStatDeclined, PartStatTentative, PartStatDelegated:
		return ps, nil
	default:
		return "", fmt.Errorf("itip: unknown participation status %q", s)
	}
}

// ErrNotInvited is returned when replying on behalf of someone who isn't an
// attendee of the invitation.
var ErrNotInvited = errors.New("not invited")

// SchedulingError is returned when a response can't be built for an
// attendee.
type SchedulingError struct {
	Attendee string
	Err      error
}

func (err *SchedulingError) Error() string {
	return fmt.Sprintf("itip: attendee %q: %v", err.Attendee, err.Err)
}

func (err *SchedulingError) Unwrap() error {
	return err.Err
}

// Reply answers an invitation on behalf of attendee.
func Reply(invite *ical.Calendar, attendee string, status PartStat) (*ical.Calendar, error) {
	return Respond(invite, attendee, MethodReply, status)
}

// Respond builds the response to an invitation. The invitation is left
// untouched.
//
// Only REQUEST invitations can be answered: any other invitation is returned
// as an unmodified copy. The response keeps attendee's ATTENDEE property
// only, with its PARTSTAT parameter set to status. If attendee isn't invited
// to any component, a *SchedulingError wrapping ErrNotInvited is returned.
func Respond(invite *ical.Calendar, attendee string, method Method, status PartStat) (*ical.Calendar, error) {
	if invite == nil || invite.Component == nil {
		return nil, fmt.Errorf("itip: missing calendar")
	}

	resp := Copy(invite)
	if m, _ := invite.Props.Text(ical.PropMethod); !strings.EqualFold(m, string(MethodRequest)) {
		return resp, nil
	}

	switch method {
	case MethodReply:
	default:
		return nil, fmt.Errorf("itip: unsupported response method %q", method)
	}

	resp.Props.SetText(ical.PropMethod, string(method))

	matched := 0
	for _, child := range resp.Children {
		if child.Name == ical.CompTimezone {
			continue
		}

		var kept []ical.Prop
		for _, prop := range child.Props[ical.PropAttendee] {
			if prop.Value != attendee {
				continue
			}
			if prop.Params == nil {
				prop.Params = make(ical.Params)
			}
			prop.Params.Set(ical.ParamParticipationStatus, string(status))
			kept = append(kept, prop)
		}
		matched += len(kept)

		if len(kept) > 0 {
			child.Props[ical.PropAttendee] = kept
		} else {
			delete(child.Props, ical.PropAttendee)
		}
	}

	if matched == 0 {
		return nil, &SchedulingError{Attendee: attendee, Err: ErrNotInvited}
	}
	return resp, nil
}

// Attendees returns the calendar addresses of all attendees, in order of
// appearance. Time zone components are skipped.
func Attendees(cal *ical.Calendar) []string {
	if cal == nil || cal.Component == nil {
		return nil
	}

	var l []string
	seen := make(map[string]bool)
	for _, child := range cal.Children {
		if child.Name == ical.CompTimezone {
			continue
		}
		for _, prop := range child.Props[ical.PropAttendee] {
			if !seen[prop.Value] {
				seen[prop.Value] = true
				l = append(l, prop.Value)
			}
		}
	}
	return l
}

// IdentityFromCard returns the calendar address of a contact, derived from
// its preferred email address.
func IdentityFromCard(card vcard.Card) (string, error) {
	email := card.PreferredValue(vcard.FieldEmail)
	if email == "" {
		return "", fmt.Errorf("itip: contact has no email address")
	}
	if strings.HasPrefix(strings.ToLower(email), "mailto:") {
		return email, nil
	}
	return "mailto:" + email, nil
}
