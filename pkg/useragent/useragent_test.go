package useragent

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatorFallsBackToDefaults(t *testing.T) {
	r := NewRotator(nil)
	assert.Equal(t, DefaultAgents, r.Agents())

	r = NewRotator([]string{"", ""})
	assert.Equal(t, DefaultAgents, r.Agents())
}

func TestNextDrawsFromPool(t *testing.T) {
	pool := []string{"agent-a", "agent-b", "agent-c"}
	r := NewRotator(pool)

	seen := map[string]bool{}
	for i := 0; i < 300; i++ {
		ua := r.Next()
		require.Contains(t, pool, ua)
		seen[ua] = true
	}
	assert.Len(t, seen, len(pool))
}

func TestHeaders(t *testing.T) {
	r := NewRotator([]string{"only-agent"})
	h := r.Headers()

	assert.Equal(t, "only-agent", h.Get("User-Agent"))
	assert.Equal(t, "application/json, text/plain, */*", h.Get("Accept"))
	assert.Equal(t, "1", h.Get("DNT"))
	assert.Empty(t, h.Get("Accept-Encoding"))
}

func TestApplyKeepsExplicitHeaders(t *testing.T) {
	r := NewRotator([]string{"rotated"})
	req, err := http.NewRequest(http.MethodGet, "https://example.org", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "audio/mpeg")

	r.Apply(req)

	assert.Equal(t, "audio/mpeg", req.Header.Get("Accept"))
	assert.Equal(t, "rotated", req.Header.Get("User-Agent"))
	assert.Equal(t, "en-US,en;q=0.9", req.Header.Get("Accept-Language"))
}
