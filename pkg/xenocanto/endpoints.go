package xenocanto

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PageURL builds the request URL for one page of a query. Query parameters
// already present on the endpoint are kept.
func PageURL(endpoint, query string, page int, apiKey string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q: not an absolute URL", endpoint)
	}

	params := u.Query()
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	if apiKey != "" {
		params.Set("key", apiKey)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// redactKey hides the API key when a URL is logged
func redactKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	params := u.Query()
	if params.Get("key") == "" {
		return rawURL
	}
	params.Set("key", "REDACTED")
	u.RawQuery = params.Encode()
	return u.String()
}

// NormalizeQuery collapses whitespace in a search query
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
