package app

import (
	"context"
	"encoding/json"
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
	"go.uber.org/zap/zaptest"

	"spashell/bff/internal/assets"
	"spashell/bff/internal/render"
)

var portalNames = []string{"apm", "notifications", "comments", "admin"}

// manifestUpstream serves /<portal>/manifest.json. Portals listed in failing
// answer with the given status instead.
func manifestUpstream(t *testing.T, files map[string]map[string]string, failing map[string]int) []assets.Source {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), "/manifest.json")
		if status, ok := failing[name]; ok {
			http.Error(w, "unavailable", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"files": files[name]})
	}))
	t.Cleanup(srv.Close)

	sources := make([]assets.Source, 0, len(portalNames))
	for _, name := range portalNames {
		sources = append(sources, assets.Source{Name: name, ManifestURL: srv.URL + "/" + name + "/manifest.json"})
	}
	return sources
}

func fullFiles() map[string]map[string]string {
	files := make(map[string]map[string]string)
	for _, name := range portalNames {
		files[name] = map[string]string{
			"main.js":  fmt.Sprintf("/%s/main.%s.js", name, name),
			"main.css": fmt.Sprintf("/%s/main.%s.css", name, name),
		}
	}
	return files
}

type testEnv struct {
	frontend string
	public   string
	server   *HTTPServer
}

func newTestEnv(t *testing.T, sources []assets.Source, secrets PageSecrets, checks map[string]Pinger) *testEnv {
	t.Helper()
	frontend := t.TempDir()
	public := filepath.Join(frontend, "public")
	require.NoError(t, os.MkdirAll(filepath.Join(public, "js"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(frontend, assets.RootConfigFile), []byte(`{"url":"https://x/root.js"}`), 0o644))

	renderer, err := render.New(filepath.Join("..", "..", "web", "templates"), false)
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	aggregator := assets.NewAggregator(assets.NewFetcher(nil, nil), sources, assets.AggregatorOptions{Logger: logger})
	composer := NewComposer(aggregator, assets.NewRootConfigResolver(frontend), assets.NewVendorImportMap(), secrets)

	return &testEnv{
		frontend: frontend,
		public:   public,
		server:   NewHTTPServer(composer, renderer, public, logger, checks),
	}
}

func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func assertNoStore(t *testing.T, header http.Header) {
	t.Helper()
	assert.Equal(t, "no-store", header.Get("Surrogate-Control"))
	assert.Equal(t, "no-store, no-cache, must-revalidate, proxy-revalidate", header.Get("Cache-Control"))
	assert.Equal(t, "no-cache", header.Get("Pragma"))
	assert.Equal(t, "0", header.Get("Expires"))
}

func TestIndexComposesPage(t *testing.T) {
	env := newTestEnv(t, manifestUpstream(t, fullFiles(), nil), PageSecrets{GATagID: "G-TEST", StripePublishableKey: "pk_test_1"}, nil)

	rr := env.do(http.MethodGet, "/")

	require.Equal(t, http.StatusOK, rr.Code)
	assertNoStore(t, rr.Header())
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	body := rr.Body.String()
	for _, name := range portalNames {
		assert.Contains(t, body, fmt.Sprintf(`"@portal/%s":"/%s/main.%s.js"`, name, name, name))
	}
	assert.Contains(t, body, `"single-spa":"/assets/root/js/vendors/single-spa/6.0.1/system/single-spa.min.js"`)
	assert.Regexp(t, `System\.import\("https:\\?/\\?/x\\?/root\.js"\)`, body)
	assert.Contains(t, body, `"pk_test_1"`)
	assert.Contains(t, body, "googletagmanager.com/gtag/js?id=G-TEST")

	apm := strings.Index(body, "/apm/main.apm.css")
	notifications := strings.Index(body, "/notifications/main.notifications.css")
	comments := strings.Index(body, "/comments/main.comments.css")
	admin := strings.Index(body, "/admin/main.admin.css")
	require.True(t, apm > 0 && notifications > 0 && comments > 0 && admin > 0)
	assert.True(t, apm < notifications && notifications < comments && comments < admin, "css files keep source order")
}

func TestIndexWithoutGATag(t *testing.T) {
	env := newTestEnv(t, manifestUpstream(t, fullFiles(), nil), PageSecrets{StripePublishableKey: "pk"}, nil)

	rr := env.do(http.MethodGet, "/")

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.NotContains(t, body, "googletagmanager")
	assert.NotContains(t, body, "None")
	assert.NotContains(t, body, "gtag(")
}

func TestIndexPortalWithoutCSS(t *testing.T) {
	files := fullFiles()
	delete(files["comments"], "main.css")
	env := newTestEnv(t, manifestUpstream(t, files, nil), PageSecrets{}, nil)

	rr := env.do(http.MethodGet, "/")

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `"@portal/comments"`)
	assert.NotContains(t, body, "main.comments.css")
	assert.Equal(t, 3, strings.Count(body, `rel="stylesheet"`))
}

func TestIndexManifestFailure(t *testing.T) {
	env := newTestEnv(t, manifestUpstream(t, fullFiles(), map[string]int{"comments": http.StatusBadGateway}), PageSecrets{}, nil)

	rr := env.do(http.MethodGet, "/")

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assertNoStore(t, rr.Header())
	body := rr.Body.String()
	assert.Contains(t, body, "Manifest Error")
	assert.Contains(t, body, "Unable to fetch asset manifest for comments")
	assert.NotContains(t, body, "@portal/apm", "no partial page is rendered")
	assert.NotContains(t, body, "systemjs-importmap")
}

func TestIndexRootConfigFailure(t *testing.T) {
	env := newTestEnv(t, manifestUpstream(t, fullFiles(), nil), PageSecrets{}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(env.frontend, assets.RootConfigFile), []byte(`{"url":`), 0o644))

	rr := env.do(http.MethodGet, "/")

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Root Configuration Error")
	assert.Contains(t, body, "Unable to parse root config file")
}

func TestUnmatchedPathFallsBackToIndex(t *testing.T) {
	env := newTestEnv(t, manifestUpstream(t, fullFiles(), nil), PageSecrets{}, nil)

	rr := env.do(http.MethodGet, "/apm/dashboards/42")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"@portal/apm"`)
	assertNoStore(t, rr.Header())
}

func TestNonReadMethodIsRejected(t *testing.T) {
	env := newTestEnv(t, manifestUpstream(t, fullFiles(), nil), PageSecrets{}, nil)

	rr := env.do(http.MethodPost, "/")

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET, HEAD", rr.Header().Get("Allow"))
	assert.Contains(t, rr.Body.String(), "Method Not Allowed")

	rr = env.do(http.MethodDelete, "/js/app.js")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestStaticFiles(t *testing.T) {
	env := newTestEnv(t, manifestUpstream(t, fullFiles(), nil), PageSecrets{}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(env.public, "js", "app.js"), []byte("console.log(1)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.public, "manifest.json"), []byte(`{"name":"portal"}`), 0o644))

	rr := env.do(http.MethodGet, "/js/app.js")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "console.log(1)", rr.Body.String())
	assert.Empty(t, rr.Header().Get("Surrogate-Control"))

	rr = env.do(http.MethodGet, "/manifest.json")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"name":"portal"}`, rr.Body.String())

	rr = env.do(http.MethodGet, "/css/missing.css")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(http.MethodGet, "/favicon.ico")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, PageSecrets{}, nil)

	rr := env.do(http.MethodGet, "/api/health")

	require.Equal(t, http.StatusOK, rr.Code)
	var response map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, true, response["ok"])
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, PageSecrets{}, map[string]Pinger{
		"cache": pingFunc(func(context.Context) error { return nil }),
	})

	rr := env.do(http.MethodGet, "/api/ready")

	require.Equal(t, http.StatusOK, rr.Code)
	var response map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "ready", response["status"])
	checks := response["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["cache"].(map[string]any)["status"])
	assert.Equal(t, "ok", checks["root_config"].(map[string]any)["status"])
}

func TestReadyEndpointFailures(t *testing.T) {
	env := newTestEnv(t, nil, PageSecrets{}, map[string]Pinger{
		"cache": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	require.NoError(t, os.Remove(filepath.Join(env.frontend, assets.RootConfigFile)))

	rr := env.do(http.MethodGet, "/api/ready")

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var response map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, false, response["ok"])
	checks := response["checks"].(map[string]any)
	assert.Equal(t, "connection refused", checks["cache"].(map[string]any)["error"])
	assert.Equal(t, "error", checks["root_config"].(map[string]any)["status"])
}

func TestRequestIDIsPropagated(t *testing.T) {
	env := newTestEnv(t, nil, PageSecrets{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, "req-123", rr.Header().Get("X-Request-ID"))
}

func TestRequestIDIsGenerated(t *testing.T) {
	env := newTestEnv(t, nil, PageSecrets{}, nil)

	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, rr.Header().Get("X-Request-ID"))
}

type failingRenderer struct{}

func (failingRenderer) Render(string, any) ([]byte, error) {
	return nil, errors.New("template exploded")
}

func TestErrorPageFallsBackToPlainText(t *testing.T) {
	agg := &fakeAggregator{err: &assets.FetchError{Portal: "apm", Kind: assets.FetchTransport, Err: errors.New("dial tcp")}}
	composer := NewComposer(agg, &fakeRoots{url: "/r.js"}, assets.NewVendorImportMap(), PageSecrets{})
	server := NewHTTPServer(composer, failingRenderer{}, t.TempDir(), zaptest.NewLogger(t), nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assertNoStore(t, rr.Header())
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "Manifest Error")
	assert.Contains(t, rr.Body.String(), "apm")
}

func TestRenderFailureIsServiceError(t *testing.T) {
	agg := &fakeAggregator{result: assets.Aggregated{Portals: map[string]string{}}}
	composer := NewComposer(agg, &fakeRoots{url: "/r.js"}, assets.NewVendorImportMap(), PageSecrets{})
	server := NewHTTPServer(composer, failingRenderer{}, t.TempDir(), nil, nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Service Error")
	assert.Contains(t, rr.Body.String(), "Unable to render page")
}
