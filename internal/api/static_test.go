package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/rbx-watch/pkg/logger"
)

func newStaticHandler(t *testing.T) *StaticFileHandler {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>dashboard</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(42)"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "index.html"), []byte("<html>sub</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	return NewStaticFileHandler(dir, log)
}

func serveStatic(t *testing.T, h *StaticFileHandler, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestStaticHandlerServesIndexAtRoot(t *testing.T) {
	t.Parallel()

	h := newStaticHandler(t)

	rec := serveStatic(t, h, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dashboard")
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.Equal(t, "0", rec.Header().Get("Expires"))
}

func TestStaticHandlerServesAssetFiles(t *testing.T) {
	t.Parallel()

	h := newStaticHandler(t)

	rec := serveStatic(t, h, "/app.js")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(42)", rec.Body.String())
}

func TestStaticHandlerReturns404ForMissingFiles(t *testing.T) {
	t.Parallel()

	h := newStaticHandler(t)

	rec := serveStatic(t, h, "/missing.js")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticHandlerFallsBackToDirectoryIndex(t *testing.T) {
	t.Parallel()

	h := newStaticHandler(t)

	rec := serveStatic(t, h, "/sub")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sub")
}

func TestStaticHandlerForbidsDirectoriesWithoutIndex(t *testing.T) {
	t.Parallel()

	h := newStaticHandler(t)

	rec := serveStatic(t, h, "/empty")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStaticHandlerKeepsTraversalInsideRoot(t *testing.T) {
	t.Parallel()

	h := newStaticHandler(t)

	rec := serveStatic(t, h, "/../../etc/passwd")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
