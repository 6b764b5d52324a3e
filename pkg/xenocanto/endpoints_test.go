package xenocanto

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		query    string
		page     int
		key      string
		want     url.Values
	}{
		{
			name:     "plain query",
			endpoint: "https://xeno-canto.org/api/2/recordings",
			query:    "Turdus merula",
			page:     2,
			want:     url.Values{"query": {"Turdus merula"}, "page": {"2"}},
		},
		{
			name:     "with api key and existing params",
			endpoint: "https://xeno-canto.org/api/3/recordings?per_page=100",
			query:    "gen:Parus",
			page:     1,
			key:      "secret",
			want:     url.Values{"query": {"gen:Parus"}, "page": {"1"}, "key": {"secret"}, "per_page": {"100"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PageURL(tt.endpoint, tt.query, tt.page, tt.key)
			require.NoError(t, err)

			u, err := url.Parse(got)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.Query())
		})
	}
}

func TestPageURLRejectsRelativeEndpoint(t *testing.T) {
	_, err := PageURL("/api/2/recordings", "q", 1, "")
	assert.Error(t, err)

	_, err = PageURL("://bad", "q", 1, "")
	assert.Error(t, err)
}

func TestRedactKey(t *testing.T) {
	assert.Equal(t, "https://x.org/r?key=REDACTED&page=1", redactKey("https://x.org/r?key=abc&page=1"))
	assert.Equal(t, "https://x.org/r?page=1", redactKey("https://x.org/r?page=1"))
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "Turdus merula", NormalizeQuery("  Turdus\t merula \n"))
}
