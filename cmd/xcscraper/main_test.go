package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xcscraper/pkg/auth"
	"xcscraper/pkg/metadata"
	"xcscraper/pkg/scraper"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configFile, maxPages, noAudio, outputDir, resume = "", 0, false, "", false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func useMockCredentials(t *testing.T) *auth.MockStore {
	t.Helper()
	manager, store := auth.NewMockManager()
	orig := newCredentialManager
	newCredentialManager = func() (*auth.Manager, error) { return manager, nil }
	t.Cleanup(func() { newCredentialManager = orig })
	return store
}

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/api/2/recordings", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		ids := map[string][]string{"1": {"10", "11"}, "2": {"12"}}[page]
		recs := make([]string, len(ids))
		for i, id := range ids {
			recs[i] = fmt.Sprintf(`{"id":"%s","gen":"Parus","sp":"major","file":"%s/audio/%s.mp3"}`, id, srv.URL, id)
		}
		fmt.Fprintf(w, `{"numRecordings":"3","page":%s,"numPages":"2","recordings":[%s]}`, page, strings.Join(recs, ","))
	})
	mux.HandleFunc("/audio/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "RIFF")
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, endpoint, output string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xcscraper.yaml")
	content := fmt.Sprintf(`provider:
  endpoint: %q
rate_limit:
  requests_per_minute: 0
pacing:
  page_min: "0s"
  page_max: "0s"
  query_min: "0s"
  query_max: "0s"
retry:
  max_attempts: 2
  base_delay: "1ms"
  max_delay: "5ms"
output:
  base_directory: %q
  checkpoint_dir: %q
`, endpoint, output, filepath.Join(output, "checkpoints"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCrawlCommand(t *testing.T) {
	useMockCredentials(t)
	srv := newAPI(t)
	output := t.TempDir()
	cfgPath := writeConfig(t, srv.URL+"/api/2/recordings", output)

	out, err := runCLI(t, "", "--config", cfgPath, "--no-color", "crawl", "Parus major")
	require.NoError(t, err, out)

	rows, err := os.ReadFile(metadata.StorePath(output, "Parus major"))
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(rows), "\n"))

	for _, name := range []string{"10_Parus_major.mp3", "11_Parus_major.mp3", "12_Parus_major.mp3"} {
		assert.FileExists(t, filepath.Join(output, "audio", name))
	}
	assert.Contains(t, out, "Parus major: 3 recordings, 3 downloaded")
}

func TestCrawlCommandNoAudio(t *testing.T) {
	useMockCredentials(t)
	srv := newAPI(t)
	output := t.TempDir()
	cfgPath := writeConfig(t, srv.URL+"/api/2/recordings", output)

	_, err := runCLI(t, "", "--config", cfgPath, "crawl", "Parus major", "--no-audio", "--max-pages", "1")
	require.NoError(t, err)

	summary, err := metadata.LoadSummary(metadata.StorePath(output, "Parus major"))
	require.NoError(t, err)
	assert.Equal(t, string(scraper.ReasonMaxPagesReached), summary.StopReason)
	assert.Equal(t, 2, summary.Seen)
	assert.NoDirExists(t, filepath.Join(output, "audio"))
}

func TestCrawlCommandNormalizesQueries(t *testing.T) {
	useMockCredentials(t)
	srv := newAPI(t)
	output := t.TempDir()
	cfgPath := writeConfig(t, srv.URL+"/api/2/recordings", output)

	_, err := runCLI(t, "", "--config", cfgPath, "crawl", "  Parus \t major ", "   ", "--no-audio", "--max-pages", "1")
	require.NoError(t, err)

	assert.FileExists(t, metadata.StorePath(output, "Parus major"))
	entries, err := os.ReadDir(output)
	require.NoError(t, err)
	csvFiles := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".csv" {
			csvFiles++
		}
	}
	assert.Equal(t, 1, csvFiles)
}

func TestMaxPagesHelpMentionsResume(t *testing.T) {
	flag := crawlCmd.Flags().Lookup("max-pages")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, "in this run")
	assert.Contains(t, flag.Usage, "--resume")
}

func TestCrawlCommandFetchFailure(t *testing.T) {
	useMockCredentials(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	cfgPath := writeConfig(t, srv.URL, t.TempDir())

	_, err := runCLI(t, "", "--config", cfgPath, "crawl", "nothing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch failed for 1 of 1 queries")
}

func TestAuthSetKeyFromStdin(t *testing.T) {
	store := useMockCredentials(t)

	_, err := runCLI(t, "xc-key-0123456789\n", "auth", "set-key", "--profile", "field")
	require.NoError(t, err)

	cred, err := store.Retrieve("field")
	require.NoError(t, err)
	assert.Equal(t, "xc-key-0123456789", cred.APIKey)

	out, err := runCLI(t, "", "auth", "show", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "xc-k...6789")
	assert.NotContains(t, out, "xc-key-0123456789")

	_, err = runCLI(t, "", "auth", "delete", "--profile", "field")
	require.NoError(t, err)
	assert.Equal(t, 0, store.Count())
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "xcscraper.yaml")
	t.Chdir(t.TempDir())

	_, err := runCLI(t, "", "--config", path, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = runCLI(t, "", "--config", path, "config", "validate")
	require.NoError(t, err)

	_, err = runCLI(t, "", "--config", path, "config", "init")
	assert.Error(t, err, "init must not overwrite an existing file")
}

func TestCrawlError(t *testing.T) {
	ok := scraper.Report{Query: "a", Reason: scraper.ReasonAllPagesCrawled}
	failed := scraper.Report{Query: "b", Reason: scraper.ReasonFetchError, Err: errors.New("boom")}
	interrupted := scraper.Report{Query: "c", Reason: scraper.ReasonInterrupted}

	assert.NoError(t, crawlError([]string{"a"}, []scraper.Report{ok}))
	assert.ErrorContains(t, crawlError([]string{"a", "b"}, []scraper.Report{ok, failed}), "b")
	assert.ErrorContains(t, crawlError([]string{"a", "c"}, []scraper.Report{ok, interrupted}), "interrupted")
	assert.ErrorContains(t, crawlError([]string{"a", "b"}, []scraper.Report{ok}), "1 of 2")
}
