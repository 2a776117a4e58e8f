package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testEvent = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Example Corp.//CalDAV Client//EN
METHOD:REQUEST
BEGIN:VEVENT
UID:abc123
DTSTAMP:20060206T001102Z
DTSTART:20060104T140000Z
DURATION:PT1H
SUMMARY:Planning
ORGANIZER:mailto:boss@example.com
ATTENDEE;PARTSTAT=NEEDS-ACTION:mailto:jane@example.com
END:VEVENT
END:VCALENDAR
`

const queryResponse = `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:response>
    <D:href>/cal/abc123.ics</D:href>
    <D:propstat>
      <D:prop>
        <D:getetag>"1"</D:getetag>
        <C:calendar-data>%s</C:calendar-data>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var stdout bytes.Buffer
	err := newCommand(&stdout).Run(context.Background(), append([]string{"caldav"}, args...))
	return stdout.String(), err
}

func TestQuery(t *testing.T) {
	var body string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "REPORT" || r.URL.Path != "/cal/" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusMultiStatus)
		fmt.Fprintf(w, queryResponse, testEvent)
	}))
	defer ts.Close()

	out, err := runCommand(t, "--endpoint", ts.URL, "query", "/cal/", "VEVENT: UID==abc123")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(body, ">abc123</text-match>") {
		t.Errorf("request body doesn't filter on UID: %v", body)
	}
	if want := "/cal/abc123.ics\tabc123\tPlanning\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestQuery_invalidFilter(t *testing.T) {
	_, err := runCommand(t, "--endpoint", "https://dav.example.com", "query", "/cal/", "VEVENT: UID")
	if err == nil || !strings.Contains(err.Error(), `" UID"`) {
		t.Errorf("query error = %v, want clause error", err)
	}
}

func TestPut(t *testing.T) {
	var gotPath, ifNoneMatch string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		gotPath = r.URL.Path
		ifNoneMatch = r.Header.Get("If-None-Match")
		w.Header().Set("ETag", `"2"`)
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	file := filepath.Join(t.TempDir(), "event.ics")
	data := strings.Replace(testEvent, "UID:abc123\n", "", 1)
	if err := os.WriteFile(file, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "--endpoint", ts.URL, "put", "/cal/", file)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(gotPath, "/cal/") || !strings.HasSuffix(gotPath, ".ics") {
		t.Errorf("PUT path = %q", gotPath)
	}
	if ifNoneMatch != "*" {
		t.Errorf("If-None-Match = %q, want *", ifNoneMatch)
	}
	if strings.TrimSpace(out) != gotPath {
		t.Errorf("output = %q, want %q", out, gotPath)
	}
}

func TestReply(t *testing.T) {
	file := filepath.Join(t.TempDir(), "invite.ics")
	if err := os.WriteFile(file, []byte(testEvent), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "reply", "--attendee", "mailto:jane@example.com", "--status", "declined", file)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if !strings.Contains(out, "METHOD:REPLY") {
		t.Errorf("reply is missing METHOD:REPLY:\n%v", out)
	}
	if !strings.Contains(out, "PARTSTAT=DECLINED") {
		t.Errorf("reply is missing PARTSTAT:\n%v", out)
	}

	_, err = runCommand(t, "reply", "--attendee", "mailto:eve@example.com", file)
	if err == nil {
		t.Errorf("reply for uninvited attendee succeeded")
	}
}

func TestReply_card(t *testing.T) {
	dir := t.TempDir()
	invite := filepath.Join(dir, "invite.ics")
	if err := os.WriteFile(invite, []byte(testEvent), 0o600); err != nil {
		t.Fatal(err)
	}
	card := filepath.Join(dir, "jane.vcf")
	vcf := "BEGIN:VCARD\r\nVERSION:4.0\r\nFN:Jane Doe\r\nEMAIL:jane@example.com\r\nEND:VCARD\r\n"
	if err := os.WriteFile(card, []byte(vcf), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "reply", "--card", card, invite)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if !strings.Contains(out, "PARTSTAT=ACCEPTED") {
		t.Errorf("reply is missing PARTSTAT:\n%v", out)
	}
}
