// Package precache populates a cache store with the application shell.
//
// The URL manifest is fetched by a bounded worker pool. Every entry has to
// come back with a 2xx status; a single failure cancels the remaining
// fetches and nothing is written. Transient failures (network errors, 5xx)
// are retried with exponential backoff before they count as failures.
//
// Example usage:
//
//	fetcher := precache.NewFetcher(http.DefaultTransport, precache.DefaultConfig())
//	items, err := fetcher.FetchAll(ctx, origin, offline.DefaultManifest)
//	if err != nil {
//		return err // install fails, previous version stays active
//	}
//	err = store.PutAll(ctx, items)
package precache
