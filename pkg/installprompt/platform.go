package installprompt

import (
	"net/http"
	"strings"
)

// IsIOS reports whether the user agent is an iPhone, iPad or iPod.
// Old Windows Phone agents claim to be an iPhone and are excluded.
func IsIOS(userAgent string) bool {
	if strings.Contains(userAgent, "Windows Phone") || strings.Contains(userAgent, "IEMobile") {
		return false
	}
	for _, device := range []string{"iPad", "iPhone", "iPod"} {
		if strings.Contains(userAgent, device) {
			return true
		}
	}
	return false
}

// IsAndroid reports whether the user agent is an Android device.
func IsAndroid(userAgent string) bool {
	return strings.Contains(userAgent, "Android")
}

// IsStandalone reports whether the request comes from the installed app.
// The Sec-CH-UA-Display-Mode client hint is checked first, then the
// ?source=pwa marker carried by the manifest start URL.
func IsStandalone(r *http.Request) bool {
	mode := strings.Trim(strings.TrimSpace(r.Header.Get("Sec-CH-UA-Display-Mode")), `"`)
	switch strings.ToLower(mode) {
	case "standalone", "fullscreen", "minimal-ui":
		return true
	}
	return r.URL.Query().Get("source") == "pwa"
}

// Platform names the device family of userAgent: "ios", "android" or "other".
func Platform(userAgent string) string {
	switch {
	case IsIOS(userAgent):
		return "ios"
	case IsAndroid(userAgent):
		return "android"
	default:
		return "other"
	}
}

// Display names how the app is shown: "standalone" or "browser".
func Display(r *http.Request) string {
	if IsStandalone(r) {
		return "standalone"
	}
	return "browser"
}

// CountClients counts each request by display mode and platform before
// handing it to next.
func CountClients(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientRequestsTotal.WithLabelValues(Display(r), Platform(r.UserAgent())).Inc()
		next.ServeHTTP(w, r)
	})
}
