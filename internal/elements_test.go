package internal

import (
	"encoding/xml"
	"strings"
	"testing"
)

// https://tools.ietf.org/html/rfc4918#section-9.6.2
const exampleDeleteMultistatusStr = `<?xml version="1.0" encoding="utf-8" ?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>http://www.example.com/container/resource3</d:href>
    <d:status>HTTP/1.1 423 Locked</d:status>
    <d:error><d:lock-token-submitted/></d:error>
  </d:response>
</d:multistatus>`

func TestMultistatus_Get_error(t *testing.T) {
	r := strings.NewReader(exampleDeleteMultistatusStr)
	var ms Multistatus
	if err := xml.NewDecoder(r).Decode(&ms); err != nil {
		t.Fatalf("Decode() = %v", err)
	}

	_, err := ms.Get("/container/resource3")
	if err == nil {
		t.Errorf("Multistatus.Get() returned a nil error, expected non-nil")
	} else if httpErr, ok := err.(*HTTPError); !ok {
		t.Errorf("Multistatus.Get() = %T, expected an *HTTPError", err)
	} else if httpErr.Code != 423 {
		t.Errorf("HTTPError.Code = %v, expected 423", httpErr.Code)
	}
}

func TestResponse_Props(t *testing.T) {
	const body = `<?xml version="1.0" encoding="utf-8" ?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:response>
    <d:href>/cal/1.ics</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"abc"</d:getetag>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
    <d:propstat>
      <d:prop>
        <d:displayname/>
      </d:prop>
      <d:status>HTTP/1.1 404 Not Found</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

	ms, err := DecodeMultistatus(strings.NewReader(body))
	if err != nil {
		t.Fatalf("DecodeMultistatus() = %v", err)
	}
	props := ms.Responses[0].Props()
	if len(props) != 1 {
		t.Fatalf("Props() returned %d properties, want 1", len(props))
	}
	raw, ok := props[GetETagName]
	if !ok {
		t.Fatalf("Props() is missing getetag")
	}
	if got := raw.Text(); got != `"abc"` {
		t.Errorf("getetag text = %q, want %q", got, `"abc"`)
	}

	var getETag struct {
		XMLName xml.Name `xml:"DAV: getetag"`
		ETag    string   `xml:",chardata"`
	}
	if err := ms.Responses[0].DecodeProp(&getETag); err != nil {
		t.Fatalf("DecodeProp() = %v", err)
	}
	if etag := UnquoteETag(getETag.ETag); etag != "abc" {
		t.Errorf("ETag = %q, want %q", etag, "abc")
	}

	var dispName DisplayName
	if err := ms.Responses[0].DecodeProp(&dispName); !IsNotFound(err) {
		t.Errorf("DecodeProp(displayname) = %v, want a 404 error", err)
	}
}

func TestUnquoteETag(t *testing.T) {
	for in, want := range map[string]string{
		`"abc"`:   "abc",
		`abc`:     "abc",
		`W/"abc"`: "abc",
		`""`:      "",
		`"`:       `"`,
		` "x" `:   "x",
	} {
		if got := UnquoteETag(in); got != want {
			t.Errorf("UnquoteETag(%q) = %q, want %q", in, got, want)
		}
	}
}
