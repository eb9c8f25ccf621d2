package cache

import (
	"net/http"
	"net/url"
	"testing"
)

func TestRequestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  RequestKey
		want string
	}{
		{
			name: "root path",
			key:  RequestKey{Path: "/"},
			want: "GET /",
		},
		{
			name: "empty path defaults to root",
			key:  RequestKey{Method: "get"},
			want: "GET /",
		},
		{
			name: "absolute url",
			key: RequestKey{
				Method: http.MethodGet,
				Scheme: "https",
				Host:   "App.Example.com",
				Path:   "/images/logo.svg",
			},
			want: "GET https://app.example.com/images/logo.svg",
		},
		{
			name: "query params sorted",
			key: RequestKey{
				Path: "/assets/app.js",
				Query: url.Values{
					"v":     []string{"2"},
					"build": []string{"abc"},
				},
			},
			want: "GET /assets/app.js?build=abc&v=2",
		},
		{
			name: "repeated query values keep order",
			key: RequestKey{
				Path:  "/search",
				Query: url.Values{"tag": []string{"b", "a"}},
			},
			want: "GET /search?tag=b&tag=a",
		},
		{
			name: "method is part of the key",
			key:  RequestKey{Method: http.MethodHead, Path: "/favicon.ico"},
			want: "HEAD /favicon.ico",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("RequestKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestRequestKey_Determinism ensures same input always produces same key
func TestRequestKey_Determinism(t *testing.T) {
	key := RequestKey{
		Scheme: "https",
		Host:   "app.example.com",
		Path:   "/assets/app.css",
		Query: url.Values{
			"z": []string{"1"},
			"a": []string{"2"},
			"m": []string{"3"},
		},
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, got, first)
		}
	}
}

func TestKeyFor(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://app.example.com/offline.html?b=1&a=2", nil)
	fromReq := KeyFor(req)

	u, _ := url.Parse("https://app.example.com/offline.html?a=2&b=1")
	fromURL := KeyForURL(u)

	if fromReq.String() != fromURL.String() {
		t.Errorf("KeyFor() = %q, KeyForURL() = %q, want equal", fromReq.String(), fromURL.String())
	}
}
