package client

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// newCachingTransport wraps base with an RFC 7234 cache. Current-user lookups send
// Cache-Control headers, so repeated profile loads can be served locally.
// An empty cacheDir keeps the cache in memory.
func newCachingTransport(base http.RoundTripper, cacheDir string) *credentialTransport {
	var cache httpcache.Cache
	if cacheDir == "" {
		cache = httpcache.NewMemoryCache()
	} else {
		// Use disk-based cache for persistence across CLI invocations
		cache = diskcache.New(cacheDir)
	}

	return &credentialTransport{
		base:       base,
		cache:      cache,
		transports: make(map[string]*httpcache.Transport),
	}
}

// credentialTransport partitions the cache by the cookies a request carries.
// httpcache keys entries by URL alone, and the current-user record differs per session.
type credentialTransport struct {
	base  http.RoundTripper
	cache httpcache.Cache

	mu         sync.Mutex
	transports map[string]*httpcache.Transport
}

func (t *credentialTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.forScope(credentialScope(req)).RoundTrip(req)
}

func (t *credentialTransport) forScope(scope string) *httpcache.Transport {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tr, ok := t.transports[scope]; ok {
		return tr
	}

	tr := httpcache.NewTransport(scopedCache{inner: t.cache, prefix: scope + ":"})
	tr.Transport = t.base
	t.transports[scope] = tr

	return tr
}

// credentialScope hashes the Cookie header so raw tokens never end up in cache keys.
func credentialScope(req *http.Request) string {
	sum := sha256.Sum256([]byte(req.Header.Get("Cookie")))
	return hex.EncodeToString(sum[:])
}

// scopedCache prefixes every key so scopes sharing one backing cache never collide.
type scopedCache struct {
	inner  httpcache.Cache
	prefix string
}

func (c scopedCache) Get(key string) ([]byte, bool) { return c.inner.Get(c.prefix + key) }
func (c scopedCache) Set(key string, b []byte)      { c.inner.Set(c.prefix+key, b) }
func (c scopedCache) Delete(key string)             { c.inner.Delete(c.prefix + key) }
