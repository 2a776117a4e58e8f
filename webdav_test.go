package webdav

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestConditionalMatch(t *testing.T) {
	// testing match and no match
	val := ConditionalMatch("\"AAA\", \"BBB\", \"CCC\"")
	if isSet, ok, err := val.MatchETag("AAA"); err != nil {
		t.Fatal(err)
	} else if !isSet {
		t.Fatalf("Expected isSet true")
	} else if !ok {
		t.Fatalf("Expected ok true")
	}
	if isSet, ok, err := val.MatchETag("DDD"); err != nil {
		t.Fatal(err)
	} else if !isSet {
		t.Fatalf("Expected isSet true")
	} else if ok {
		t.Fatalf("Expected ok false")
	}

	// testing parse error
	val = ConditionalMatch("\"AAA\", BBB, CCC")
	if _, _, err := val.MatchETag("BBB"); err == nil {
		t.Fatalf("Expected non-nil error")
	}

	// testing WildCard
	val = ConditionalMatch("*")
	if isSet, ok, err := val.MatchETag("BBB"); err != nil {
		t.Fatal(err)
	} else if !isSet {
		t.Fatalf("Expected isSet true")
	} else if !ok {
		t.Fatalf("Expected ok true")
	}

	// testing isSet
	val = ConditionalMatch("")
	if isSet, _, _ := val.MatchETag("BBB"); isSet {
		t.Fatalf("Expected isSet false")
	}

	if got := MatchETag("x1"); got != `"x1"` {
		t.Errorf("MatchETag() = %v", got)
	}
}

func TestFindCurrentUserPrincipal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "alice" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method != "PROPFIND" || r.Header.Get("Depth") != "0" {
			t.Errorf("unexpected request %v, depth %q", r.Method, r.Header.Get("Depth"))
		}
		b, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(b), "current-user-principal") {
			t.Errorf("request body doesn't ask for current-user-principal: %s", b)
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, `<?xml version="1.0" encoding="utf-8"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/dav/</d:href>
    <d:propstat>
      <d:prop><d:current-user-principal><d:href>/dav/principals/alice/</d:href></d:current-user-principal></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)
	}))
	defer srv.Close()

	c, err := NewClient(HTTPClientWithBasicAuth(nil, "alice", "secret"), srv.URL+"/dav/")
	if err != nil {
		t.Fatal(err)
	}
	p, err := c.FindCurrentUserPrincipal(context.Background())
	if err != nil {
		t.Fatalf("FindCurrentUserPrincipal() = %v", err)
	}
	if p != "/dav/principals/alice/" {
		t.Errorf("FindCurrentUserPrincipal() = %q", p)
	}
}
