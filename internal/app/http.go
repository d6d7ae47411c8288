package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spashell/bff/internal/render"
)

type pageRenderer interface {
	Render(name string, data any) ([]byte, error)
}

// Pinger is a backing service the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

var staticDirs = []string{"assets", "css", "images", "js"}

var staticFiles = []string{"manifest.json", "favicon.ico"}

type HTTPServer struct {
	composer  *Composer
	renderer  pageRenderer
	publicDir string
	logger    *zap.Logger
	checks    map[string]Pinger
	static    map[string]http.Handler
}

func NewHTTPServer(composer *Composer, renderer pageRenderer, publicDir string, logger *zap.Logger, checks map[string]Pinger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	static := make(map[string]http.Handler, len(staticDirs))
	for _, dir := range staticDirs {
		prefix := "/" + dir
		static[prefix] = http.StripPrefix(prefix, http.FileServer(http.Dir(filepath.Join(publicDir, dir))))
	}
	return &HTTPServer{
		composer:  composer,
		renderer:  renderer,
		publicDir: publicDir,
		logger:    logger,
		checks:    checks,
		static:    static,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	read := r.Method == http.MethodGet || r.Method == http.MethodHead

	if read && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if read && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if handler, ok := s.staticHandler(r.URL.Path); ok {
		if !read {
			s.methodNotAllowed(w, r)
			return
		}
		handler.ServeHTTP(w, r)
		return
	}

	// Every other path falls back to the composed page so client-side routes
	// resolve on a full reload.
	if !read {
		s.methodNotAllowed(w, r)
		return
	}
	s.handleIndex(w, r)
}

func (s *HTTPServer) staticHandler(path string) (http.Handler, bool) {
	for _, name := range staticFiles {
		if path == "/"+name {
			file := filepath.Join(s.publicDir, name)
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.ServeFile(w, r, file)
			}), true
		}
	}
	for _, dir := range staticDirs {
		prefix := "/" + dir
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return s.static[prefix], true
		}
	}
	return nil, false
}

func (s *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	model, err := s.composer.Compose(r.Context())
	if err != nil {
		s.logger.Error("compose index page",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err))
		s.writeErrorPage(w, mapError(err))
		return
	}

	body, err := s.renderer.Render(render.IndexTemplate, model)
	if err != nil {
		s.logger.Error("render index page",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err))
		s.writeErrorPage(w, mapError(domainError(KindService, "Unable to render page", err)))
		return
	}

	setNoStoreHeaders(w.Header())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"root_config": map[string]any{"status": "ok"},
	}

	if _, err := s.composer.ResolveRootConfig(); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["root_config"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	for name, dep := range s.checks {
		if err := dep.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, HEAD")
	s.writeErrorPage(w, newErrorInfo(KindMethodNotAllowed, fmt.Sprintf("%s %s is not supported", r.Method, r.URL.Path)))
}

type errorPageData struct {
	Error ErrorInfo
}

// writeErrorPage renders the shared error template. If even that fails the
// client still gets a plain-text explanation rather than an empty body.
func (s *HTTPServer) writeErrorPage(w http.ResponseWriter, info ErrorInfo) {
	setNoStoreHeaders(w.Header())

	body, err := s.renderer.Render(render.ErrorTemplate, errorPageData{Error: info})
	if err != nil {
		s.logger.Error("render error page", zap.Error(err))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(info.StatusCode)
		_, _ = fmt.Fprintf(w, "%d %s\n\n%s\n", info.StatusCode, info.Title, info.Message)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(info.StatusCode)
	_, _ = w.Write(body)
}

// setNoStoreHeaders keeps browsers and CDNs from caching the entry page, whose
// content changes every time a portal is redeployed.
func setNoStoreHeaders(header http.Header) {
	header.Set("Surrogate-Control", "no-store")
	header.Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	header.Set("Pragma", "no-cache")
	header.Set("Expires", "0")
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
