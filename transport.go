package spoofbot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/raember/spoofbot/cache"
)

// CacheTransport implements http.RoundTripper over a cache.Store. Per
// request it decides whether to serve a cached payload, forward to the
// wrapped transport, or reject the request outright in offline mode.
//
// Operations on one transport must be serialized by the caller; the
// transport holds per-request state (hit flag, pending location override)
// with no internal locking.
type CacheTransport struct {
	Wrapped http.RoundTripper

	store  cache.Store
	mapper cache.Mapper
	logger *slog.Logger

	active  bool
	passive bool
	offline bool

	cacheOnStatus map[int]struct{}
	strictDelete  bool

	hit          bool
	nextCacheURL *url.URL
	lastLocation cache.Location
	hasLast      bool

	backup *cache.Backup
}

// RoundTrip implements http.RoundTripper and applies the mode policy.
//
// The process follows these steps:
//  1. Maps the request URL (or a pending override) to a cache location
//  2. In active mode, serves the stored payload on a hit
//  3. In offline mode, fails instead of reaching the network
//  4. Forwards to the wrapped transport
//  5. In passive mode, stores the response payload, capturing the
//     pre-overwrite entry if a backup is armed.
func (t *CacheTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	target := r.URL
	if t.nextCacheURL != nil {
		target = t.nextCacheURL
		t.nextCacheURL = nil
	}
	loc := t.mapper.Map(target)
	t.lastLocation, t.hasLast = loc, true
	t.hit = false

	if t.active {
		payload, err := t.store.Lookup(ctx, loc)
		switch {
		case err == nil:
			t.hit = true
			t.logger.DebugContext(ctx, "cache hit", "url", r.URL.String(), "location", string(loc))
			return payloadResponse(r, payload), nil
		case !errors.Is(err, cache.ErrEntryNotFound):
			return nil, err
		}
		t.logger.DebugContext(ctx, "cache miss", "url", r.URL.String(), "location", string(loc))
	}

	if t.offline {
		return nil, fmt.Errorf("%w: %s", ErrNetworkDisabled, loc)
	}

	resp, err := t.Wrapped.RoundTrip(r)
	if err != nil {
		return resp, err
	}

	if t.passive {
		if _, ok := t.cacheOnStatus[resp.StatusCode]; ok {
			if err := t.storeResponse(ctx, loc, resp); err != nil {
				t.logger.WarnContext(ctx, "error caching response", "location", string(loc), "error", err)
			}
		}
	}
	return resp, nil
}

// storeResponse drains the response body into the cache and replaces it so
// the caller can still read it. If a backup is armed, the pre-overwrite
// entry is captured first; a failed capture skips the write, since
// overwriting would lose the prior state for good.
func (t *CacheTransport) storeResponse(ctx context.Context, loc cache.Location, resp *http.Response) error {
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(payload))

	if t.backup != nil {
		if err := t.backup.Capture(ctx, loc); err != nil {
			return fmt.Errorf("backing up entry: %w", err)
		}
	}
	if err := t.store.Store(ctx, loc, payload); err != nil {
		return err
	}
	t.logger.DebugContext(ctx, "cached response", "location", string(loc))
	return nil
}

// payloadResponse wraps a cached payload in a minimal 200 response. Only the
// payload is cached; headers and cookies are not part of the stored entry.
func payloadResponse(r *http.Request, payload []byte) *http.Response {
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          io.NopCloser(bytes.NewReader(payload)),
		ContentLength: int64(len(payload)),
		Request:       r,
	}
}

// Hit reports whether the last processed request was served from the cache.
func (t *CacheTransport) Hit() bool {
	return t.hit
}

// Active reports whether lookups are enabled.
func (t *CacheTransport) Active() bool {
	return t.active
}

// SetActive toggles cache lookups at runtime.
func (t *CacheTransport) SetActive(v bool) {
	t.active = v
	if !t.active && t.offline {
		t.logger.Warn("offline mode requires active mode to be enabled")
	}
}

// Passive reports whether responses are stored.
func (t *CacheTransport) Passive() bool {
	return t.passive
}

// SetPassive toggles response storing at runtime.
func (t *CacheTransport) SetPassive(v bool) {
	t.passive = v
}

// Offline reports whether outbound calls are blocked.
func (t *CacheTransport) Offline() bool {
	return t.offline
}

// SetOffline toggles offline mode at runtime.
func (t *CacheTransport) SetOffline(v bool) {
	t.offline = v
	if t.offline && !t.active {
		t.logger.Warn("offline mode requires active mode to be enabled")
	}
}

// SetNextRequestCacheURL overrides the cache location of exactly the next
// request (or Delete call). It lets two requests that would map to the same
// location, such as POSTs to one endpoint for different logical resources,
// be stored apart. Deleting such an entry later requires supplying the same
// override again.
func (t *CacheTransport) SetNextRequestCacheURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	t.nextCacheURL = u
	return nil
}

// IsHit reports whether a request to the given URL would hit the cache. It
// has no side effects on the transport state.
func (t *CacheTransport) IsHit(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, err = t.store.Lookup(ctx, t.mapper.Map(u))
	return err == nil
}

// Delete removes the entry cached for the given URL. A pending override set
// with SetNextRequestCacheURL is consumed in place of the URL, mirroring the
// lookup path. A missing entry is a no-op unless StrictDelete is configured.
func (t *CacheTransport) Delete(ctx context.Context, rawURL string) error {
	target, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if t.nextCacheURL != nil {
		target = t.nextCacheURL
		t.nextCacheURL = nil
	}
	return t.deleteLocation(ctx, t.mapper.Map(target))
}

// DeleteLast removes whatever entry the most recent lookup or store
// addressed, including any override that was in effect for it. Before any
// request was processed it is a no-op.
func (t *CacheTransport) DeleteLast(ctx context.Context) error {
	if !t.hasLast {
		return nil
	}
	return t.deleteLocation(ctx, t.lastLocation)
}

func (t *CacheTransport) deleteLocation(ctx context.Context, loc cache.Location) error {
	err := t.store.Delete(ctx, loc)
	if errors.Is(err, cache.ErrEntryNotFound) {
		t.logger.DebugContext(ctx, "no entry to delete", "location", string(loc))
		if !t.strictDelete {
			return nil
		}
	}
	return err
}

// StartBackup arms capture of entries about to be overwritten and returns
// the backup handle. Stopping is idempotent, so a deferred Stop on the
// handle gives scoped semantics even on early exit.
func (t *CacheTransport) StartBackup() *cache.Backup {
	var b *cache.Backup
	b = cache.NewBackup(t.store, func() {
		if t.backup == b {
			t.backup = nil
		}
	})
	t.backup = b
	return b
}

// StopBackup disarms the current backup, if any.
func (t *CacheTransport) StopBackup() {
	if t.backup != nil {
		t.backup.Stop()
	}
}

// Backup returns the armed backup, or nil.
func (t *CacheTransport) Backup() *cache.Backup {
	return t.backup
}

// New creates a transport middleware that adds file-style caching to an HTTP
// RoundTripper, backed by the given store.
//
// If cfg is nil, DefaultConfig is used. If the logger is nil, a no-op logger
// writing to io.Discard is used. The returned function wraps a RoundTripper;
// the result is returned as *CacheTransport so the mode flags, hit flag and
// backup scope stay reachable.
func New(store cache.Store, cfg *Config, logger *slog.Logger) (func(http.RoundTripper) *CacheTransport, error) {
	if store == nil {
		return nil, cache.ValidationError{Reason: "nil store"}
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}

	mapper, err := cache.NewMapper(c.IgnoreQueries...)
	if err != nil {
		return nil, err
	}

	cacheOn := make(map[int]struct{}, len(c.CacheOnStatus))
	for _, status := range c.CacheOnStatus {
		cacheOn[status] = struct{}{}
	}

	return func(rt http.RoundTripper) *CacheTransport {
		return &CacheTransport{
			Wrapped:       rt,
			store:         store,
			mapper:        mapper,
			logger:        logger,
			active:        c.Active,
			passive:       c.Passive,
			offline:       c.Offline,
			cacheOnStatus: cacheOn,
			strictDelete:  c.StrictDelete,
		}
	}, nil
}
