package spoofbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raember/spoofbot/cache"
	"github.com/raember/spoofbot/cache/file"
)

func newTestTransport(t *testing.T, cfg *Config) (*CacheTransport, cache.Store) {
	t.Helper()

	store, err := file.New(t.TempDir())
	require.NoError(t, err)

	wrap, err := New(store, cfg, nil)
	require.NoError(t, err)
	return wrap(http.DefaultTransport), store
}

func fetch(t *testing.T, rt http.RoundTripper, url string) (string, error) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body), nil
}

// flakyStore delegates to a real store until fail is set.
type flakyStore struct {
	inner cache.Store
	fail  bool
}

func (s *flakyStore) Lookup(ctx context.Context, loc cache.Location) ([]byte, error) {
	if s.fail {
		return nil, errors.New("backend down")
	}
	return s.inner.Lookup(ctx, loc)
}

func (s *flakyStore) Store(ctx context.Context, loc cache.Location, payload []byte) error {
	return s.inner.Store(ctx, loc, payload)
}

func (s *flakyStore) Delete(ctx context.Context, loc cache.Location) error {
	return s.inner.Delete(ctx, loc)
}

func TestRoundTripSecondCallHitsWithoutServer(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, "payload")
	}))

	transport, _ := newTestTransport(t, nil)

	body, err := fetch(t, transport, srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "payload", body)
	assert.False(t, transport.Hit())
	assert.Equal(t, 1, calls)

	srv.Close()

	body, err = fetch(t, transport, srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "payload", body)
	assert.True(t, transport.Hit())
	assert.Equal(t, 1, calls)
}

func TestHitFlagClearedOnLookupError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	fileStore, err := file.New(t.TempDir())
	require.NoError(t, err)
	store := &flakyStore{inner: fileStore}

	wrap, err := New(store, nil, nil)
	require.NoError(t, err)
	transport := wrap(http.DefaultTransport)

	_, err = fetch(t, transport, srv.URL+"/page")
	require.NoError(t, err)
	_, err = fetch(t, transport, srv.URL+"/page")
	require.NoError(t, err)
	require.True(t, transport.Hit())

	store.fail = true
	_, err = fetch(t, transport, srv.URL+"/page")
	require.Error(t, err)
	assert.False(t, transport.Hit(), "a failed lookup must not report the previous hit")
}

func TestRoundTripOfflineWithoutEntry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Offline = true

	transport, _ := newTestTransport(t, &cfg)

	_, err := fetch(t, transport, "https://example.com/missing")
	require.ErrorIs(t, err, ErrNetworkDisabled)
}

func TestRoundTripOfflineInactive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	transport, _ := newTestTransport(t, nil)

	_, err := fetch(t, transport, srv.URL+"/page")
	require.NoError(t, err)

	// With lookups disabled, offline mode blocks even cached URLs.
	transport.SetActive(false)
	transport.SetOffline(true)

	_, err = fetch(t, transport, srv.URL+"/page")
	require.ErrorIs(t, err, ErrNetworkDisabled)
}

func TestRoundTripOfflineServesCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "payload")
	}))

	transport, _ := newTestTransport(t, nil)

	_, err := fetch(t, transport, srv.URL+"/page")
	require.NoError(t, err)

	srv.Close()
	transport.SetOffline(true)

	body, err := fetch(t, transport, srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "payload", body)
	assert.True(t, transport.Hit())
}

func TestRoundTripPassiveOff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Passive = false
	transport, _ := newTestTransport(t, &cfg)

	_, err := fetch(t, transport, srv.URL+"/page")
	require.NoError(t, err)
	assert.False(t, transport.IsHit(context.Background(), srv.URL+"/page"))
}

func TestRoundTripNonCacheableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	transport, _ := newTestTransport(t, nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/gone", nil)
	require.NoError(t, err)
	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.False(t, transport.IsHit(context.Background(), srv.URL+"/gone"))
}

func TestNextRequestCacheURLOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	transport, _ := newTestTransport(t, nil)

	require.NoError(t, transport.SetNextRequestCacheURL("https://alias.test/stored"))
	_, err := fetch(t, transport, srv.URL+"/page")
	require.NoError(t, err)

	ctx := context.Background()
	assert.True(t, transport.IsHit(ctx, "https://alias.test/stored"))
	assert.False(t, transport.IsHit(ctx, srv.URL+"/page"))

	// The override is consumed; the next request maps normally again.
	_, err = fetch(t, transport, srv.URL+"/page")
	require.NoError(t, err)
	assert.True(t, transport.IsHit(ctx, srv.URL+"/page"))

	// Delete consumes an override the same way the lookup path does.
	require.NoError(t, transport.SetNextRequestCacheURL("https://alias.test/stored"))
	require.NoError(t, transport.Delete(ctx, "ignored://url"))
	assert.False(t, transport.IsHit(ctx, "https://alias.test/stored"))
}

func TestDeleteLast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	transport, _ := newTestTransport(t, nil)
	ctx := context.Background()

	require.NoError(t, transport.DeleteLast(ctx), "no-op before any request")

	_, err := fetch(t, transport, srv.URL+"/page")
	require.NoError(t, err)
	require.True(t, transport.IsHit(ctx, srv.URL+"/page"))

	require.NoError(t, transport.DeleteLast(ctx))
	assert.False(t, transport.IsHit(ctx, srv.URL+"/page"))
}

func TestDeleteMissingEntry(t *testing.T) {
	transport, _ := newTestTransport(t, nil)
	assert.NoError(t, transport.Delete(context.Background(), "https://example.com/absent"))

	cfg := DefaultConfig()
	cfg.StrictDelete = true
	strict, _ := newTestTransport(t, &cfg)
	err := strict.Delete(context.Background(), "https://example.com/absent")
	assert.ErrorIs(t, err, cache.ErrEntryNotFound)
}

func TestBackupRestoresOverwrittenEntry(t *testing.T) {
	response := "first"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, response)
	}))
	defer srv.Close()

	transport, _ := newTestTransport(t, nil)
	ctx := context.Background()

	_, err := fetch(t, transport, srv.URL+"/page")
	require.NoError(t, err)

	backup := transport.StartBackup()
	defer backup.Stop()

	// Force a refetch past the cached entry so the new response overwrites it.
	transport.SetActive(false)
	response = "second"
	body, err := fetch(t, transport, srv.URL+"/page")
	require.NoError(t, err)
	require.Equal(t, "second", body)
	transport.SetActive(true)

	require.NoError(t, backup.RestoreAll(ctx))
	backup.Stop()
	assert.Nil(t, transport.Backup())

	body, err = fetch(t, transport, srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "first", body)
	assert.True(t, transport.Hit())
}

func TestBackupRemovesFreshEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	transport, _ := newTestTransport(t, nil)
	ctx := context.Background()

	backup := transport.StartBackup()
	defer backup.Stop()

	_, err := fetch(t, transport, srv.URL+"/fresh")
	require.NoError(t, err)
	require.True(t, transport.IsHit(ctx, srv.URL+"/fresh"))

	// The entry did not exist before the backup, so restoring deletes it.
	require.NoError(t, backup.RestoreAll(ctx))
	assert.False(t, transport.IsHit(ctx, srv.URL+"/fresh"))
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, nil, nil)
	var verr cache.ValidationError
	require.True(t, errors.As(err, &verr))

	cfg := DefaultConfig()
	cfg.IgnoreQueries = []string{"("}
	store, ferr := file.New(t.TempDir())
	require.NoError(t, ferr)
	_, err = New(store, &cfg, nil)
	assert.Error(t, err)
}
