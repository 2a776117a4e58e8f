package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	webdav "github.com/calwire/go-caldav"
	"github.com/calwire/go-caldav/cache"
	"github.com/calwire/go-caldav/caldav"
	"github.com/calwire/go-caldav/internal/config"
)

type app struct {
	stdout io.Writer
	logger *slog.Logger
	cfg    *config.Config

	client *caldav.Client
	cache  objectCache
}

type objectCache interface {
	caldav.ObjectCache
	io.Closer
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	a.logger = newLogger(os.Stderr, cmd.Bool("verbose"))
	slog.SetDefault(a.logger)

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, fmt.Errorf("failed to load config: %w", err)
	}
	if v := cmd.String("endpoint"); v != "" {
		cfg.Endpoint = v
	}
	if v := cmd.String("username"); v != "" {
		cfg.Username = v
	}
	if v := cmd.String("password"); v != "" {
		cfg.Password = v
	}
	a.cfg = cfg
	return ctx, nil
}

func (a *app) after(ctx context.Context, cmd *cli.Command) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}

type loggingHTTPClient struct {
	c      webdav.HTTPClient
	logger *slog.Logger
}

func (c *loggingHTTPClient) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.c.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", req.Method, "url", req.URL.String(), "error", err)
		return nil, err
	}
	c.logger.Debug("request", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "duration", time.Since(start))
	return resp, nil
}

// openCache opens the configured object cache. With caching disabled, a
// cache storing nothing is returned.
func (a *app) openCache() (objectCache, error) {
	cc := a.cfg.Cache
	if !cc.Enabled {
		return cache.Nop{}, nil
	}

	var backend cache.Backend
	if cc.Dir != "" {
		id, err := config.LoadOrCreateIdentity(cc.Identity)
		if err != nil {
			return nil, fmt.Errorf("failed to load cache identity: %w", err)
		}
		fb, err := cache.OpenFileBackend(cc.Dir, id)
		if err != nil {
			return nil, err
		}
		backend = fb
		a.logger.Debug("using on-disk cache", "dir", cc.Dir)
	} else {
		backend = cache.NewMemoryBackend(&cache.MemoryOptions{Size: cc.Size, TTL: cc.TTL})
	}
	return cache.Open(backend), nil
}

// connect creates the CalDAV client. A bare domain name as the endpoint is
// resolved with DNS service discovery.
func (a *app) connect(ctx context.Context) (*caldav.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	endpoint := a.cfg.Endpoint
	if endpoint != "" && !strings.Contains(endpoint, "://") {
		discovered, err := caldav.DiscoverContextURL(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to discover CalDAV server for %q: %w", endpoint, err)
		}
		a.logger.Debug("discovered server", "domain", endpoint, "endpoint", discovered)
		endpoint = discovered
		a.cfg.Endpoint = discovered
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dialect, err := caldav.DialectByName(a.cfg.Dialect)
	if err != nil {
		return nil, err
	}

	var httpClient webdav.HTTPClient = &loggingHTTPClient{c: http.DefaultClient, logger: a.logger}
	if a.cfg.Username != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpClient, a.cfg.Username, a.cfg.ResolvePassword())
	}

	c, err := a.openCache()
	if err != nil {
		return nil, err
	}
	a.cache = c
	options := &caldav.ClientOptions{Cache: c, Dialect: dialect}

	client, err := caldav.NewClient(httpClient, endpoint, options)
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

// calendarArg returns the calendar path given as the first of n expected
// arguments, falling back to the configured calendar.
func (a *app) calendarArg(cmd *cli.Command, n int) (string, []string, error) {
	args := cmd.Args().Slice()
	switch {
	case len(args) == n:
		return args[0], args[1:], nil
	case len(args) == n-1 && a.cfg.Calendar != "":
		return a.cfg.Calendar, args, nil
	case len(args) == n-1:
		return "", nil, fmt.Errorf("missing calendar")
	default:
		return "", nil, fmt.Errorf("usage: %v %v", cmd.FullName(), cmd.ArgsUsage)
	}
}
