package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-vcard"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	webdav "github.com/calwire/go-caldav"
	"github.com/calwire/go-caldav/caldav"
	"github.com/calwire/go-caldav/caldav/query"
	"github.com/calwire/go-caldav/itip"
)

func (a *app) timeRange(cmd *cli.Command) *caldav.TimeRange {
	start, end := cmd.Timestamp("start"), cmd.Timestamp("end")
	if start.IsZero() && end.IsZero() {
		return nil
	}
	return &caldav.TimeRange{Start: start, End: end}
}

func (a *app) listCalendars(ctx context.Context, cmd *cli.Command) error {
	c, err := a.connect(ctx)
	if err != nil {
		return err
	}

	principal, err := c.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return fmt.Errorf("failed to find current user principal: %w", err)
	}
	homeSet, err := c.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return fmt.Errorf("failed to find calendar home set: %w", err)
	}
	a.logger.Debug("found calendar home set", "principal", principal, "home_set", homeSet)

	if ok, err := c.SupportsCalendarAccess(ctx, homeSet); err != nil {
		a.logger.Debug("OPTIONS request failed", "path", homeSet, "error", err)
	} else if !ok {
		a.logger.Warn("server doesn't advertise calendar-access", "path", homeSet)
	}

	cals, err := c.FindCalendars(ctx, homeSet)
	if err != nil {
		return err
	}
	for _, cal := range cals {
		flags := strings.Join(cal.SupportedComponentSet, ",")
		if cal.ReadOnly {
			flags += " (read-only)"
		}
		fmt.Fprintf(a.stdout, "%v\t%v\t%v\n", cal.Path, cal.Name, flags)
	}
	return nil
}

func (a *app) query(ctx context.Context, cmd *cli.Command) error {
	calendar, args, err := a.calendarArg(cmd, 2)
	if err != nil {
		return err
	}

	g := query.Generator{
		Component: cmd.String("props"),
		Filter:    args[0],
		TimeRange: a.timeRange(cmd),
	}
	q, err := g.CalendarQuery()
	if err != nil {
		return err
	}

	c, err := a.connect(ctx)
	if err != nil {
		return err
	}
	objs, err := c.QueryCalendar(ctx, calendar, q)
	if err != nil {
		var partial *caldav.PartialError
		if !errors.As(err, &partial) {
			return err
		}
		for _, objErr := range partial.Errors {
			a.logger.Warn("skipping calendar object", "href", objErr.Path, "error", objErr.Err)
		}
	}
	a.logger.Debug("query done", "calendar", calendar, "matches", len(objs))

	for _, co := range objs {
		if cmd.Bool("raw") {
			a.stdout.Write(co.Raw)
			continue
		}
		fmt.Fprintf(a.stdout, "%v\t%v\t%v\n", co.Path, co.UID(), summary(co))
	}
	return nil
}

func summary(co *caldav.CalendarObject) string {
	cal, err := co.Calendar()
	if err != nil || cal == nil {
		return ""
	}
	for _, child := range cal.Children {
		if child.Name == ical.CompTimezone {
			continue
		}
		if s, err := child.Props.Text(ical.PropSummary); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func (a *app) get(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("usage: %v %v", cmd.FullName(), cmd.ArgsUsage)
	}
	c, err := a.connect(ctx)
	if err != nil {
		return err
	}

	co, err := c.GetCalendarObject(ctx, cmd.Args().First())
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(co.Raw)
	return err
}

func (a *app) put(ctx context.Context, cmd *cli.Command) error {
	calendar, args, err := a.calendarArg(cmd, 2)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	cal, err := ical.NewDecoder(f).Decode()
	if err != nil {
		return fmt.Errorf("failed to parse %q: %w", args[0], err)
	}

	uid := ensureUID(cal)
	href := path.Join(calendar, uid+".ics")

	options := &caldav.PutCalendarObjectOptions{IfNoneMatch: webdav.MatchAny}
	if cmd.Bool("overwrite") {
		options = nil
	}

	c, err := a.connect(ctx)
	if err != nil {
		return err
	}
	co, err := c.PutCalendarObject(ctx, href, cal, options)
	if err != nil {
		return err
	}
	a.logger.Info("uploaded calendar object", "href", co.Path, "etag", co.ETag)
	fmt.Fprintln(a.stdout, co.Path)
	return nil
}

// ensureUID returns the UID shared by the calendar's components, generating
// one if they have none.
func ensureUID(cal *ical.Calendar) string {
	var uid string
	for _, child := range cal.Children {
		if child.Name == ical.CompTimezone {
			continue
		}
		if v, err := child.Props.Text(ical.PropUID); err == nil && v != "" {
			uid = v
			break
		}
	}
	if uid == "" {
		uid = uuid.NewString()
	}
	for _, child := range cal.Children {
		if child.Name == ical.CompTimezone {
			continue
		}
		if child.Props.Get(ical.PropUID) == nil {
			child.Props.SetText(ical.PropUID, uid)
		}
	}
	return uid
}

func (a *app) delete(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("usage: %v %v", cmd.FullName(), cmd.ArgsUsage)
	}
	c, err := a.connect(ctx)
	if err != nil {
		return err
	}

	href := cmd.Args().First()
	if err := c.DeleteCalendarObject(ctx, href); err != nil {
		return err
	}
	a.logger.Info("deleted calendar object", "href", href)
	return nil
}

func (a *app) freeBusy(ctx context.Context, cmd *cli.Command) error {
	calendar, _, err := a.calendarArg(cmd, 1)
	if err != nil {
		return err
	}
	c, err := a.connect(ctx)
	if err != nil {
		return err
	}

	fb, err := c.FreeBusy(ctx, calendar, caldav.NewFreeBusyQuery(a.timeRange(cmd)))
	if err != nil {
		return err
	}
	return ical.NewEncoder(a.stdout).Encode(fb)
}

func (a *app) reply(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("usage: %v %v", cmd.FullName(), cmd.ArgsUsage)
	}

	status, err := itip.ParsePartStat(cmd.String("status"))
	if err != nil {
		return err
	}
	attendee, err := attendeeIdentity(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(cmd.Args().First())
	if err != nil {
		return err
	}
	invite, err := ical.NewDecoder(bytes.NewReader(caldav.NormalizeLineEndings(data))).Decode()
	if err != nil {
		return fmt.Errorf("failed to parse invitation: %w", err)
	}

	reply, err := itip.Reply(invite, attendee, status)
	if err != nil {
		if errors.Is(err, itip.ErrNotInvited) {
			a.logger.Error("not an attendee", "attendee", attendee, "attendees", itip.Attendees(invite))
		}
		return err
	}
	return ical.NewEncoder(a.stdout).Encode(reply)
}

func attendeeIdentity(cmd *cli.Command) (string, error) {
	if attendee := cmd.String("attendee"); attendee != "" {
		return attendee, nil
	}
	cardPath := cmd.String("card")
	if cardPath == "" {
		return "", fmt.Errorf("one of --attendee or --card is required")
	}

	f, err := os.Open(cardPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	card, err := vcard.NewDecoder(f).Decode()
	if err != nil {
		return "", fmt.Errorf("failed to parse vCard %q: %w", cardPath, err)
	}
	return itip.IdentityFromCard(card)
}
