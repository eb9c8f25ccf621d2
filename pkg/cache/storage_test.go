package cache

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// runStorageContract exercises behaviour every Storage backend must share.
func runStorageContract(t *testing.T, newStorage func(t *testing.T) Storage) {
	t.Run("open creates and reopens", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		if _, err := s.Open(ctx, "cache-v1"); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if _, err := s.Open(ctx, "cache-v1"); err != nil {
			t.Fatalf("second Open failed: %v", err)
		}

		names, err := s.Keys(ctx)
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		if len(names) != 1 || names[0] != "cache-v1" {
			t.Errorf("Keys() = %v, want [cache-v1]", names)
		}
	})

	t.Run("open rejects empty name", func(t *testing.T) {
		s := newStorage(t)
		if _, err := s.Open(context.Background(), ""); err == nil {
			t.Error("Open with empty name should return error")
		}
	})

	t.Run("keys keep creation order", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		for _, name := range []string{"cache-v1", "cache-v2", "cache-v3"} {
			if _, err := s.Open(ctx, name); err != nil {
				t.Fatalf("Open(%s) failed: %v", name, err)
			}
			// Redis scores by nanosecond timestamp
			time.Sleep(time.Millisecond)
		}

		names, _ := s.Keys(ctx)
		want := []string{"cache-v1", "cache-v2", "cache-v3"}
		if len(names) != len(want) {
			t.Fatalf("Keys() = %v, want %v", names, want)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Errorf("Keys()[%d] = %s, want %s", i, names[i], want[i])
			}
		}
	})

	t.Run("put and match", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		store, _ := s.Open(ctx, "cache-v1")

		key := RequestKey{Path: "/images/logo.svg"}
		entry := &Entry{
			URL:        "/images/logo.svg",
			StatusCode: http.StatusOK,
			Headers:    http.Header{"Content-Type": []string{"image/svg+xml"}},
			Data:       []byte("<svg/>"),
			Type:       TypeBasic,
			CachedAt:   time.Now(),
		}

		if err := store.Put(ctx, key, entry); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := store.Match(ctx, key)
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		if string(got.Data) != "<svg/>" {
			t.Errorf("Data = %s, want <svg/>", got.Data)
		}
		if got.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want 200", got.StatusCode)
		}
		if got.Headers.Get("Content-Type") != "image/svg+xml" {
			t.Errorf("Content-Type = %s", got.Headers.Get("Content-Type"))
		}
		if got.Type != TypeBasic {
			t.Errorf("Type = %s, want basic", got.Type)
		}

		n, err := store.Len(ctx)
		if err != nil || n != 1 {
			t.Errorf("Len() = %d, %v; want 1, nil", n, err)
		}
	})

	t.Run("match miss", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		store, _ := s.Open(ctx, "cache-v1")

		_, err := store.Match(ctx, RequestKey{Path: "/nope"})
		if !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss, got %v", err)
		}
	})

	t.Run("put all", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		store, _ := s.Open(ctx, "cache-v1")

		items := []Item{
			{Key: RequestKey{Path: "/"}, Entry: &Entry{StatusCode: 200, Data: []byte("home")}},
			{Key: RequestKey{Path: "/offline.html"}, Entry: &Entry{StatusCode: 200, Data: []byte("offline")}},
		}
		if err := store.PutAll(ctx, items); err != nil {
			t.Fatalf("PutAll failed: %v", err)
		}
		for _, item := range items {
			got, err := store.Match(ctx, item.Key)
			if err != nil {
				t.Fatalf("Match(%s) failed: %v", item.Key, err)
			}
			if string(got.Data) != string(item.Entry.Data) {
				t.Errorf("Match(%s) = %s, want %s", item.Key, got.Data, item.Entry.Data)
			}
		}
	})

	t.Run("put all rejects nil entry", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		store, _ := s.Open(ctx, "cache-v1")

		items := []Item{
			{Key: RequestKey{Path: "/"}, Entry: &Entry{StatusCode: 200}},
			{Key: RequestKey{Path: "/broken"}},
		}
		if err := store.PutAll(ctx, items); err == nil {
			t.Fatal("PutAll with nil entry should return error")
		}
		if n, _ := store.Len(ctx); n != 0 {
			t.Errorf("Len() = %d after failed PutAll, want 0", n)
		}
	})

	t.Run("delete entry", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		store, _ := s.Open(ctx, "cache-v1")
		key := RequestKey{Path: "/favicon.ico"}

		_ = store.Put(ctx, key, &Entry{StatusCode: 200})

		ok, err := store.Delete(ctx, key)
		if err != nil || !ok {
			t.Fatalf("Delete() = %v, %v; want true, nil", ok, err)
		}
		ok, _ = store.Delete(ctx, key)
		if ok {
			t.Error("second Delete() reported an existing entry")
		}
		if _, err := store.Match(ctx, key); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
		}
	})

	t.Run("delete store", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		store, _ := s.Open(ctx, "cache-v1")
		_ = store.Put(ctx, RequestKey{Path: "/"}, &Entry{StatusCode: 200})

		ok, err := s.Delete(ctx, "cache-v1")
		if err != nil || !ok {
			t.Fatalf("Delete() = %v, %v; want true, nil", ok, err)
		}
		if has, _ := s.Has(ctx, "cache-v1"); has {
			t.Error("Has() = true after Delete")
		}
		ok, _ = s.Delete(ctx, "cache-v1")
		if ok {
			t.Error("deleting a missing store reported success")
		}

		// A handle kept across deletion can no longer be written to
		err = store.Put(ctx, RequestKey{Path: "/late"}, &Entry{StatusCode: 200})
		if !errors.Is(err, ErrStoreNotFound) {
			t.Errorf("Put into deleted store: got %v, want ErrStoreNotFound", err)
		}

		// Reopening starts empty
		reopened, _ := s.Open(ctx, "cache-v1")
		if _, err := reopened.Match(ctx, RequestKey{Path: "/"}); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected empty store after reopen, got %v", err)
		}
	})
}
