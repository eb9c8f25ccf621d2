// Package offline implements the offline cache controller: a request
// mediation layer that serves an application shell from a versioned cache
// store, falls back to the network, and keeps navigations working when the
// network is gone.
//
// A Controller owns one version. Its lifecycle mirrors a service worker:
//
//   - Install opens the store named "<prefix>-<version>" and caches the
//     URL manifest, all or nothing.
//   - Activate deletes every other store.
//   - RoundTrip mediates requests:
//     non-GET and live/API paths go straight to the network;
//     cache hits are returned without touching the network;
//     misses go to the network and same-origin 200s are stored in the
//     background; network failures turn into the offline page
//     (navigations) or an empty 408 (everything else).
//
// A Registration switches between versions: an install failure keeps the
// previous version in control, a successful activation claims all later
// requests.
//
//	reg := offline.NewRegistration(http.DefaultTransport, true)
//	c, _ := offline.New(offline.DefaultConfig(origin, cache.NewMemoryStorage()))
//	if err := reg.Register(ctx, c); err != nil {
//		return err
//	}
//	client := &http.Client{Transport: reg}
package offline
