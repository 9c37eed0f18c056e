package services

import (
	"context"
	"log"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// shortLinkRe matches the backend's short-link shape exactly:
// scheme://host/s/<alphanumeric>, no further path segments.
var shortLinkRe = regexp.MustCompile(`^https?://[^/]+/s/([A-Za-z0-9]+)$`)

// IsShortLink reports whether the URL needs a resolution call.
func IsShortLink(rawURL string) bool {
	return shortLinkRe.MatchString(rawURL)
}

// ShortLinkCache memoizes short-link resolution for the lifetime of the
// process. Concurrent callers for the same short URL share a single backend
// request; failures cache the original URL as its own resolution so the UI
// never re-attempts and never blocks on a known-bad link.
type ShortLinkCache struct {
	api    CarePayAPI
	group  singleflight.Group
	mu     sync.RWMutex
	cache  map[string]string
	failed map[string]bool
}

// NewShortLinkCache creates a short-link resolution cache.
func NewShortLinkCache(api CarePayAPI) *ShortLinkCache {
	return &ShortLinkCache{
		api:    api,
		cache:  make(map[string]string),
		failed: make(map[string]bool),
	}
}

// Resolve returns the long URL for a short link. Non-short URLs pass through
// unchanged. Resolve never returns an error: any failure degrades to the
// original URL, permanently for the session.
func (s *ShortLinkCache) Resolve(ctx context.Context, rawURL string) string {
	m := shortLinkRe.FindStringSubmatch(rawURL)
	if m == nil {
		return rawURL
	}

	s.mu.RLock()
	cached, ok := s.cache[rawURL]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	resolved, _, _ := s.group.Do(rawURL, func() (any, error) {
		longURL, err := s.api.ResolveShortLink(ctx, m[1])
		if err != nil {
			log.Printf("short link: resolution failed for %s, keeping original: %v", rawURL, err)
			s.store(rawURL, rawURL, true)
			return rawURL, nil
		}
		s.store(rawURL, longURL, false)
		return longURL, nil
	})
	return resolved.(string)
}

const resolveTimeout = 30 * time.Second

// ResolveAsync returns the best currently-known URL without blocking. A
// cached resolution (or terminal failure) is returned as-is; otherwise the
// short URL comes back with resolved=false and the backend round-trip starts
// in the background, so a later render picks up the long URL from the cache.
// Rendering never waits on the upstream.
func (s *ShortLinkCache) ResolveAsync(rawURL string) (string, bool) {
	if !IsShortLink(rawURL) {
		return rawURL, true
	}
	if cached, ok := s.Resolved(rawURL); ok {
		return cached, true
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()
		s.Resolve(ctx, rawURL)
	}()
	return rawURL, false
}

// Resolved returns the cached resolution without triggering a request. The
// second result reports whether a resolution (or terminal failure) exists.
func (s *ShortLinkCache) Resolved(rawURL string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[rawURL]
	return v, ok
}

// Failed reports whether the short URL's resolution terminally failed, in
// which case copy/share actions must keep targeting the short link.
func (s *ShortLinkCache) Failed(rawURL string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed[rawURL]
}

func (s *ShortLinkCache) store(rawURL, resolved string, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[rawURL] = resolved
	if failed {
		s.failed[rawURL] = true
	}
}
