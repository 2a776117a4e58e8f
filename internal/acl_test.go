package internal

import (
	"encoding/xml"
	"fmt"
	"testing"
)

func decodePropInsideMultiStatus(data []byte, v interface{}) error {
	var ms Multistatus
	err := xml.Unmarshal(data, &ms)
	if err != nil {
		return err
	}

	if len(ms.Responses) != 1 {
		return fmt.Errorf("expected 1 <response>, got %d", len(ms.Responses))
	}
	return ms.Responses[0].DecodeProp(v)
}

// rfc3744#section-5.4.1
func TestCurrentUserPrivilegeSet(t *testing.T) {
	tests := []struct {
		name       string
		privileges string
		write      bool
	}{
		{"read-only", `<D:privilege><D:read/></D:privilege>`, false},
		{"write", `<D:privilege><D:read/></D:privilege><D:privilege><D:write/></D:privilege>`, true},
		{"write-content", `<D:privilege><D:write-content/></D:privilege>`, true},
		{"all", `<D:privilege><D:all/></D:privilege>`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var cups CurrentUserPrivilegeSet
			err := decodePropInsideMultiStatus([]byte(`<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:">
	<D:response>
	<D:href>http://www.example.com/papers/</D:href>
	<D:propstat>
	<D:prop>
		<D:current-user-privilege-set>`+tc.privileges+`</D:current-user-privilege-set>
	</D:prop>
	<D:status>HTTP/1.1 200 OK</D:status>
	</D:propstat>
	</D:response>
</D:multistatus>`), &cups)
			if err != nil {
				t.Fatal(err)
			}
			if got := cups.Has(WriteContent); got != tc.write {
				t.Errorf("Has(write-content) = %v, want %v", got, tc.write)
			}
		})
	}
}

func TestPrivilegeMarshal(t *testing.T) {
	buf, err := xml.Marshal(NewPrivilege(Read))
	if err != nil {
		t.Fatal(err)
	}
	if want := "<privilege xmlns=\"DAV:\"><read xmlns=\"DAV:\"></read></privilege>"; string(buf) != want {
		t.Errorf("expected %q, got %q", want, buf)
	}
}
