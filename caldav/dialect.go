package caldav

import (
	"fmt"
	"net/http"
)

// Dialect adapts the client to the quirks of a server implementation.
type Dialect interface {
	// PrepareRequest is called on every outgoing request.
	PrepareRequest(req *http.Request)
	// FiltersLocally reports whether query results should be filtered on the
	// client, for servers which ignore or mis-evaluate calendar-query
	// filters.
	FiltersLocally() bool
}

// DefaultDialect trusts the server to evaluate queries.
type DefaultDialect struct{}

func (DefaultDialect) PrepareRequest(req *http.Request) {}

func (DefaultDialect) FiltersLocally() bool {
	return false
}

// LocalFilterDialect re-applies calendar-query filters to the returned
// objects.
type LocalFilterDialect struct {
	DefaultDialect
}

func (LocalFilterDialect) FiltersLocally() bool {
	return true
}

// DialectByName returns a built-in dialect. An empty name selects the default
// dialect.
func DialectByName(name string) (Dialect, error) {
	switch name {
	case "", "default":
		return DefaultDialect{}, nil
	case "local-filter":
		return LocalFilterDialect{}, nil
	default:
		return nil, fmt.Errorf("caldav: unknown dialect %q", name)
	}
}
