// Package useragent supplies browser-like request identity headers.
//
// Every request gets the same base headers plus a User-Agent chosen at
// random from a small pool, so consecutive requests do not share a
// fingerprint.
package useragent

import (
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// DefaultAgents is the rotation pool used when none is configured
var DefaultAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// Accept-Encoding is left to net/http so gzip is decoded transparently.
var baseHeaders = map[string]string{
	"Accept":                    "application/json, text/plain, */*",
	"Accept-Language":           "en-US,en;q=0.9",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// Rotator picks a User-Agent per request
type Rotator struct {
	agents []string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRotator creates a rotator over agents, falling back to DefaultAgents
func NewRotator(agents []string) *Rotator {
	pool := make([]string, 0, len(agents))
	for _, a := range agents {
		if a != "" {
			pool = append(pool, a)
		}
	}
	if len(pool) == 0 {
		pool = append(pool, DefaultAgents...)
	}
	return &Rotator{
		agents: pool,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns a randomly chosen User-Agent
func (r *Rotator) Next() string {
	if len(r.agents) == 1 {
		return r.agents[0]
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agents[r.rnd.Intn(len(r.agents))]
}

// Agents returns a copy of the rotation pool
func (r *Rotator) Agents() []string {
	out := make([]string, len(r.agents))
	copy(out, r.agents)
	return out
}

// Headers returns a fresh header set with a rotated User-Agent
func (r *Rotator) Headers() http.Header {
	h := make(http.Header, len(baseHeaders)+1)
	for k, v := range baseHeaders {
		h.Set(k, v)
	}
	h.Set("User-Agent", r.Next())
	return h
}

// Apply sets the identity headers on req, keeping any header already present
func (r *Rotator) Apply(req *http.Request) {
	for k, v := range r.Headers() {
		if req.Header.Get(k) == "" {
			req.Header[k] = v
		}
	}
}
