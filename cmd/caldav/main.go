// Command caldav is a command-line CalDAV client.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

var timeLayouts = []string{"20060102T150405Z", "20060102", time.RFC3339, "2006-01-02"}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "caldav: %v\n", err)
		os.Exit(1)
	}
}

func timeRangeFlags(required bool) []cli.Flag {
	config := cli.TimestampConfig{Timezone: time.UTC, Layouts: timeLayouts}
	return []cli.Flag{
		&cli.TimestampFlag{Name: "start", Usage: "inclusive start of the time range", Config: config, Required: required},
		&cli.TimestampFlag{Name: "end", Usage: "exclusive end of the time range", Config: config, Required: required},
	}
}

func newCommand(stdout io.Writer) *cli.Command {
	a := &app{stdout: stdout}

	return &cli.Command{
		Name:   "caldav",
		Usage:  "access calendars on a CalDAV server",
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      "config",
				Usage:     "configuration file (default ~/.config/caldav/config.yaml)",
				Sources:   cli.EnvVars("CALDAV_CONFIG"),
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:    "endpoint",
				Usage:   "server URL, or a domain name to discover it",
				Sources: cli.EnvVars("CALDAV_ENDPOINT"),
			},
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Sources: cli.EnvVars("CALDAV_USERNAME"),
			},
			&cli.StringFlag{
				Name:    "password",
				Sources: cli.EnvVars("CALDAV_PASSWORD"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log HTTP requests",
			},
		},
		Before: a.before,
		After:  a.after,
		Commands: []*cli.Command{
			{
				Name:   "calendars",
				Usage:  "list calendars",
				Action: a.listCalendars,
			},
			{
				Name:      "query",
				Usage:     "search calendar objects",
				ArgsUsage: "[calendar] <filter>",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "props", Usage: `returned properties, e.g. "VEVENT: UID, SUMMARY"`},
					&cli.BoolFlag{Name: "raw", Usage: "print iCalendar data"},
				}, timeRangeFlags(false)...),
				Action: a.query,
			},
			{
				Name:      "get",
				Usage:     "print a calendar object",
				ArgsUsage: "<href>",
				Action:    a.get,
			},
			{
				Name:      "put",
				Usage:     "upload a calendar object",
				ArgsUsage: "[calendar] <file.ics>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "overwrite", Usage: "replace an existing object"},
				},
				Action: a.put,
			},
			{
				Name:      "delete",
				Usage:     "delete a calendar object",
				ArgsUsage: "<href>",
				Action:    a.delete,
			},
			{
				Name:      "freebusy",
				Usage:     "print free/busy information",
				ArgsUsage: "[calendar]",
				Flags:     timeRangeFlags(true),
				Action:    a.freeBusy,
			},
			{
				Name:      "reply",
				Usage:     "answer an invitation",
				ArgsUsage: "<invite.ics>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "attendee", Usage: "calendar address, e.g. mailto:jane@example.com"},
					&cli.StringFlag{Name: "card", Usage: "vCard to take the calendar address from", TakesFile: true},
					&cli.StringFlag{Name: "status", Usage: "participation status", Value: "ACCEPTED"},
				},
				Action: a.reply,
			},
		},
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
