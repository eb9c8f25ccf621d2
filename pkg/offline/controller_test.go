package offline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/offline-cache/internal/testutil"
	"github.com/Sternrassler/offline-cache/pkg/cache"
	"github.com/Sternrassler/offline-cache/pkg/precache"
)

func testPrecacheConfig() precache.Config {
	return precache.Config{
		MaxConcurrency: 4,
		Timeout:        5 * time.Second,
		Retry: precache.RetryConfig{
			MaxAttempts:       1,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        time.Millisecond,
			BackoffMultiplier: 1,
		},
	}
}

func newTestController(t *testing.T, origin *testutil.MockOrigin, storage cache.Storage, version string) *Controller {
	t.Helper()

	cfg := DefaultConfig(origin.URL(), storage)
	cfg.Network = origin.Client().Transport
	cfg.Version = version
	cfg.Precache = testPrecacheConfig()

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Wait)
	return c
}

func newShellOrigin(t *testing.T) *testutil.MockOrigin {
	t.Helper()
	origin := testutil.NewMockOrigin()
	origin.ServeShell(DefaultManifest)
	t.Cleanup(origin.Close)
	return origin
}

func installed(t *testing.T, origin *testutil.MockOrigin, storage cache.Storage, version string) *Controller {
	t.Helper()
	c := newTestController(t, origin, storage, version)
	if err := c.Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	origin.Reset()
	return c
}

func get(t *testing.T, c http.RoundTripper, origin *testutil.MockOrigin, path string, mode Mode) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, origin.URL().String()+path, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if mode != ModeUnknown {
		req.Header.Set("Sec-Fetch-Mode", string(mode))
	}
	resp, err := c.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip(%s) error = %v", path, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, string(body)
}

func storeOf(t *testing.T, storage cache.Storage, c *Controller) cache.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), c.CacheName())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return store
}

func TestNew_Validation(t *testing.T) {
	origin, _ := url.Parse("http://app.test")
	storage := cache.NewMemoryStorage()

	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing origin", func(c *Config) { c.Origin = nil }, "origin with scheme and host is required"},
		{"relative origin", func(c *Config) { c.Origin = &url.URL{Path: "/"} }, "origin with scheme and host is required"},
		{"missing storage", func(c *Config) { c.Storage = nil }, "storage is required"},
		{"missing version", func(c *Config) { c.Version = "" }, "version is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(origin, storage)
			tt.mutate(&cfg)

			c, err := New(cfg)
			if tt.errorMsg == "" {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if c.CacheName() != "talent-cache-v1" {
					t.Errorf("CacheName() = %q, want talent-cache-v1", c.CacheName())
				}
				return
			}
			if err == nil || err.Error() != tt.errorMsg {
				t.Errorf("error = %v, want %q", err, tt.errorMsg)
			}
		})
	}
}

func TestInstall_StoresManifest(t *testing.T) {
	origin := newShellOrigin(t)
	storage := cache.NewMemoryStorage()
	c := installed(t, origin, storage, "v1")

	store := storeOf(t, storage, c)
	for _, p := range DefaultManifest {
		u := origin.URL().ResolveReference(&url.URL{Path: p})
		entry, err := store.Match(context.Background(), cache.KeyForURL(u))
		if err != nil {
			t.Errorf("Match(%s) error = %v", p, err)
			continue
		}
		if string(entry.Data) != p {
			t.Errorf("Match(%s) body = %q", p, entry.Data)
		}
	}
}

func TestInstall_MissingManifestEntry(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.ServeShell(DefaultManifest[:len(DefaultManifest)-1])

	storage := cache.NewMemoryStorage()
	c := newTestController(t, origin, storage, "v1")

	err := c.Install(context.Background())
	if !errors.Is(err, ErrInstallFailed) {
		t.Fatalf("Install() error = %v, want ErrInstallFailed", err)
	}
	if c.Installed() {
		t.Error("Installed() = true after failed install")
	}

	// Nothing from the manifest was written
	if n, _ := storeOf(t, storage, c).Len(context.Background()); n != 0 {
		t.Errorf("store has %d entries after failed install, want 0", n)
	}
}

type brokenStorage struct {
	cache.Storage
	openErr error
	keysErr error
}

func (s *brokenStorage) Open(ctx context.Context, name string) (cache.Store, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.Storage.Open(ctx, name)
}

func (s *brokenStorage) Keys(ctx context.Context) ([]string, error) {
	if s.keysErr != nil {
		return nil, s.keysErr
	}
	return s.Storage.Keys(ctx)
}

func TestInstall_OpenFailure(t *testing.T) {
	origin := newShellOrigin(t)
	storage := &brokenStorage{Storage: cache.NewMemoryStorage(), openErr: errors.New("quota exceeded")}
	c := newTestController(t, origin, storage, "v1")

	err := c.Install(context.Background())
	if !errors.Is(err, ErrInstallFailed) {
		t.Fatalf("Install() error = %v, want ErrInstallFailed", err)
	}
	if origin.RequestCount() != 0 {
		t.Errorf("manifest fetched despite open failure: %d requests", origin.RequestCount())
	}
}

func TestRoundTrip_CacheHitSkipsNetwork(t *testing.T) {
	origin := newShellOrigin(t)
	c := installed(t, origin, cache.NewMemoryStorage(), "v1")

	resp, body := get(t, c, origin, "/images/logo.svg", ModeUnknown)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if body != "/images/logo.svg" {
		t.Errorf("body = %q", body)
	}
	if resp.Header.Get("Content-Type") != "image/svg+xml" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	if origin.RequestCount() != 0 {
		t.Errorf("network called %d times on a cache hit", origin.RequestCount())
	}
}

func TestRoundTrip_MissStoresResponse(t *testing.T) {
	origin := newShellOrigin(t)
	origin.SetResponse("/candidates", testutil.NewOKResponse("candidates", "text/html"))
	storage := cache.NewMemoryStorage()
	c := installed(t, origin, storage, "v1")

	_, body := get(t, c, origin, "/candidates", ModeUnknown)
	if body != "candidates" {
		t.Fatalf("body = %q, want candidates", body)
	}
	c.Wait()

	// Second request is served from cache
	_, body = get(t, c, origin, "/candidates", ModeUnknown)
	if body != "candidates" {
		t.Errorf("cached body = %q, want candidates", body)
	}
	if n := origin.RequestsFor(http.MethodGet, "/candidates"); n != 1 {
		t.Errorf("network called %d times, want 1", n)
	}
}

func TestRoundTrip_NonOKNotStored(t *testing.T) {
	origin := newShellOrigin(t)
	storage := cache.NewMemoryStorage()
	c := installed(t, origin, storage, "v1")
	before, _ := storeOf(t, storage, c).Len(context.Background())

	resp, _ := get(t, c, origin, "/missing", ModeUnknown)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", resp.StatusCode)
	}
	c.Wait()

	after, _ := storeOf(t, storage, c).Len(context.Background())
	if after != before {
		t.Errorf("store grew from %d to %d on a 404", before, after)
	}
}

func TestRoundTrip_CrossOriginNotStored(t *testing.T) {
	origin := newShellOrigin(t)
	cdn := testutil.NewMockOrigin()
	defer cdn.Close()
	cdn.SetResponse("/font.woff2", testutil.NewOKResponse("font", "font/woff2"))

	storage := cache.NewMemoryStorage()
	c := installed(t, origin, storage, "v1")
	before, _ := storeOf(t, storage, c).Len(context.Background())

	_, body := get(t, c, cdn, "/font.woff2", ModeCORS)
	if body != "font" {
		t.Errorf("body = %q, want font", body)
	}
	c.Wait()

	after, _ := storeOf(t, storage, c).Len(context.Background())
	if after != before {
		t.Errorf("cross-origin response was stored")
	}
}

func TestRoundTrip_PostBypassesCache(t *testing.T) {
	origin := newShellOrigin(t)
	origin.SetResponse("/api/rate", testutil.NewOKResponse(`{"ok":true}`, "application/json"))
	storage := cache.NewMemoryStorage()
	c := installed(t, origin, storage, "v1")
	before, _ := storeOf(t, storage, c).Len(context.Background())

	req, _ := http.NewRequest(http.MethodPost, origin.URL().String()+"/api/rate", nil)
	resp, err := c.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	resp.Body.Close()
	c.Wait()

	if n := origin.RequestsFor(http.MethodPost, "/api/rate"); n != 1 {
		t.Errorf("POST reached network %d times, want 1", n)
	}
	after, _ := storeOf(t, storage, c).Len(context.Background())
	if after != before {
		t.Errorf("store changed on POST: %d -> %d", before, after)
	}
}

func TestRoundTrip_LivePathIgnoresCachedEntry(t *testing.T) {
	origin := newShellOrigin(t)
	origin.SetResponse("/live/websocket", testutil.NewOKResponse("fresh", "text/plain"))
	storage := cache.NewMemoryStorage()
	c := installed(t, origin, storage, "v1")

	// Plant a stale entry; it must never be served
	u := origin.URL().ResolveReference(&url.URL{Path: "/live/websocket"})
	err := storeOf(t, storage, c).Put(context.Background(), cache.KeyForURL(u), &cache.Entry{
		StatusCode: http.StatusOK,
		Data:       []byte("stale"),
	})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	_, body := get(t, c, origin, "/live/websocket", ModeUnknown)
	if body != "fresh" {
		t.Errorf("body = %q, want fresh", body)
	}
	if n := origin.RequestsFor(http.MethodGet, "/live/websocket"); n != 1 {
		t.Errorf("network called %d times, want 1", n)
	}
}

func TestRoundTrip_BypassErrorsPropagate(t *testing.T) {
	origin := newShellOrigin(t)
	c := installed(t, origin, cache.NewMemoryStorage(), "v1")
	origin.SetOffline(true)

	req, _ := http.NewRequest(http.MethodPost, origin.URL().String()+"/api/rate", nil)
	if _, err := c.RoundTrip(req); err == nil {
		t.Error("bypassed request should surface the network error")
	}
}

func TestRoundTrip_OfflineNavigationServesOfflinePage(t *testing.T) {
	origin := newShellOrigin(t)
	c := installed(t, origin, cache.NewMemoryStorage(), "v1")
	origin.SetOffline(true)

	resp, body := get(t, c, origin, "/dashboard", ModeNavigate)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if body != "/offline.html" {
		t.Errorf("body = %q, want the offline page", body)
	}
}

func TestRoundTrip_OfflinePageRequestedDirectly(t *testing.T) {
	origin := newShellOrigin(t)
	c := installed(t, origin, cache.NewMemoryStorage(), "v1")
	origin.SetOffline(true)

	resp, body := get(t, c, origin, "/offline.html", ModeNavigate)
	if resp.StatusCode != http.StatusOK || body != "/offline.html" {
		t.Errorf("got %d %q, want 200 offline page", resp.StatusCode, body)
	}
	if origin.RequestCount() != 0 {
		t.Errorf("network called %d times", origin.RequestCount())
	}
}

func TestRoundTrip_OfflineSubresourceGetsPlaceholder(t *testing.T) {
	origin := newShellOrigin(t)
	c := installed(t, origin, cache.NewMemoryStorage(), "v1")
	origin.SetOffline(true)

	resp, body := get(t, c, origin, "/images/avatar.png", ModeNoCORS)
	if resp.StatusCode != http.StatusRequestTimeout {
		t.Errorf("StatusCode = %d, want 408", resp.StatusCode)
	}
	if body != "" {
		t.Errorf("body = %q, want empty", body)
	}
}

func TestRoundTrip_OfflineWithoutOfflinePage(t *testing.T) {
	origin := newShellOrigin(t)
	storage := cache.NewMemoryStorage()

	cfg := DefaultConfig(origin.URL(), storage)
	cfg.Network = origin.Client().Transport
	cfg.Manifest = []string{"/"}
	cfg.Precache = testPrecacheConfig()
	c, _ := New(cfg)
	t.Cleanup(c.Wait)
	if err := c.Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	origin.SetOffline(true)

	resp, body := get(t, c, origin, "/dashboard", ModeNavigate)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", resp.StatusCode)
	}
	if body != "offline" {
		t.Errorf("body = %q, want offline", body)
	}
}

type failingPutStorage struct {
	cache.Storage
}

type failingPutStore struct {
	cache.Store
}

func (s failingPutStorage) Open(ctx context.Context, name string) (cache.Store, error) {
	st, err := s.Storage.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return failingPutStore{st}, nil
}

func (s failingPutStore) Put(context.Context, cache.RequestKey, *cache.Entry) error {
	return errors.New("quota exceeded")
}

func TestRoundTrip_CacheWriteFailureIsNotFatal(t *testing.T) {
	origin := newShellOrigin(t)
	origin.SetResponse("/candidates", testutil.NewOKResponse("candidates", "text/html"))
	c := installed(t, origin, failingPutStorage{cache.NewMemoryStorage()}, "v1")

	resp, body := get(t, c, origin, "/candidates", ModeNavigate)
	c.Wait()

	if resp.StatusCode != http.StatusOK || body != "candidates" {
		t.Errorf("got %d %q, want 200 candidates", resp.StatusCode, body)
	}
}

func TestRoundTrip_NotInstalledGoesToNetwork(t *testing.T) {
	origin := newShellOrigin(t)
	c := newTestController(t, origin, cache.NewMemoryStorage(), "v1")

	_, body := get(t, c, origin, "/assets/app.css", ModeUnknown)
	if body != "/assets/app.css" {
		t.Errorf("body = %q", body)
	}
	if origin.RequestCount() != 1 {
		t.Errorf("RequestCount() = %d, want 1", origin.RequestCount())
	}
}

func TestActivate_DeletesStaleStores(t *testing.T) {
	origin := newShellOrigin(t)
	storage := cache.NewMemoryStorage()
	ctx := context.Background()

	_, _ = storage.Open(ctx, "talent-cache-v0")
	v1 := installed(t, origin, storage, "v1")
	v2 := installed(t, origin, storage, "v2")

	deleted, err := v2.Activate(ctx)
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if len(deleted) != 2 || deleted[0] != "talent-cache-v0" || deleted[1] != v1.CacheName() {
		t.Errorf("deleted = %v, want [talent-cache-v0 talent-cache-v1]", deleted)
	}

	names, _ := storage.Keys(ctx)
	if len(names) != 1 || names[0] != "talent-cache-v2" {
		t.Errorf("Keys() = %v, want [talent-cache-v2]", names)
	}
}

func TestActivate_Idempotent(t *testing.T) {
	origin := newShellOrigin(t)
	storage := cache.NewMemoryStorage()
	ctx := context.Background()
	c := installed(t, origin, storage, "v1")

	for i := 0; i < 3; i++ {
		deleted, err := c.Activate(ctx)
		if err != nil {
			t.Fatalf("Activate() #%d error = %v", i, err)
		}
		if len(deleted) != 0 {
			t.Errorf("Activate() #%d deleted %v", i, deleted)
		}
	}

	if has, _ := storage.Has(ctx, c.CacheName()); !has {
		t.Error("current store was deleted by repeated activation")
	}
}

func TestActivate_Errors(t *testing.T) {
	origin := newShellOrigin(t)
	ctx := context.Background()

	notInstalled := newTestController(t, origin, cache.NewMemoryStorage(), "v1")
	if _, err := notInstalled.Activate(ctx); !errors.Is(err, ErrNotInstalled) {
		t.Errorf("Activate() before Install error = %v, want ErrNotInstalled", err)
	}

	storage := &brokenStorage{Storage: cache.NewMemoryStorage()}
	c := installed(t, origin, storage, "v1")
	storage.keysErr = errors.New("connection reset")
	if _, err := c.Activate(ctx); !errors.Is(err, ErrActivateFailed) {
		t.Errorf("Activate() error = %v, want ErrActivateFailed", err)
	}
}

func TestRoundTrip_StreamsBodyBeforeItCompletes(t *testing.T) {
	origin := newShellOrigin(t)
	storage := cache.NewMemoryStorage()
	c := installed(t, origin, storage, "v1")

	release := make(chan struct{})
	var once sync.Once
	finish := func() { once.Do(func() { close(release) }) }
	t.Cleanup(finish)

	origin.SetHandler("/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "data: first\n\n")
		w.(http.Flusher).Flush()
		<-release
		io.WriteString(w, "data: last\n\n")
	})

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodGet, origin.URL().String()+"/events", nil)
		resp, err := c.RoundTrip(req)
		done <- result{resp, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		finish()
		t.Fatal("RoundTrip held the response until the body completed")
	}
	if res.err != nil {
		t.Fatalf("RoundTrip() error = %v", res.err)
	}
	defer res.resp.Body.Close()

	first := make([]byte, len("data: first\n\n"))
	if _, err := io.ReadFull(res.resp.Body, first); err != nil {
		t.Fatalf("read first event: %v", err)
	}
	if string(first) != "data: first\n\n" {
		t.Errorf("first event = %q", first)
	}

	// Nothing is cached while the body is still open
	store := storeOf(t, storage, c)
	key := cache.KeyForURL(origin.URL().ResolveReference(&url.URL{Path: "/events"}))
	if _, err := store.Match(context.Background(), key); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("Match() before EOF error = %v, want ErrCacheMiss", err)
	}

	finish()
	rest, err := io.ReadAll(res.resp.Body)
	if err != nil {
		t.Fatalf("read rest: %v", err)
	}
	if string(rest) != "data: last\n\n" {
		t.Errorf("rest = %q", rest)
	}
	c.Wait()

	entry, err := store.Match(context.Background(), key)
	if err != nil {
		t.Fatalf("Match() after EOF error = %v", err)
	}
	if string(entry.Data) != "data: first\n\ndata: last\n\n" {
		t.Errorf("cached body = %q", entry.Data)
	}
}

func TestRoundTrip_EarlyCloseIsNotStored(t *testing.T) {
	origin := newShellOrigin(t)
	origin.SetResponse("/report.pdf", testutil.NewOKResponse("0123456789", "application/pdf"))
	storage := cache.NewMemoryStorage()
	c := installed(t, origin, storage, "v1")
	before, _ := storeOf(t, storage, c).Len(context.Background())

	req, _ := http.NewRequest(http.MethodGet, origin.URL().String()+"/report.pdf", nil)
	resp, err := c.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	buf := make([]byte, 4)
	io.ReadFull(resp.Body, buf)
	resp.Body.Close()
	c.Wait()

	after, _ := storeOf(t, storage, c).Len(context.Background())
	if after != before {
		t.Errorf("partially read body was stored: %d -> %d entries", before, after)
	}
}

func TestRoundTrip_OversizedBodyNotStored(t *testing.T) {
	origin := newShellOrigin(t)
	origin.SetResponse("/big", testutil.NewOKResponse(strings.Repeat("x", 64), "text/plain"))
	storage := cache.NewMemoryStorage()

	cfg := DefaultConfig(origin.URL(), storage)
	cfg.Network = origin.Client().Transport
	cfg.Precache = testPrecacheConfig()
	cfg.MaxEntrySize = 16
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Wait)
	if err := c.Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	before, _ := storeOf(t, storage, c).Len(context.Background())

	_, body := get(t, c, origin, "/big", ModeUnknown)
	c.Wait()

	if len(body) != 64 {
		t.Errorf("len(body) = %d, want 64", len(body))
	}
	after, _ := storeOf(t, storage, c).Len(context.Background())
	if after != before {
		t.Errorf("oversized body was stored")
	}
}
