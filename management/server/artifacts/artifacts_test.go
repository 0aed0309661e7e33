package artifacts

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, backend Backend) *mux.Router {
	t.Helper()
	router := mux.NewRouter()
	AddEndpoints(backend, router, router)
	return router
}

func TestLocal_PutAndGet(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewLocal(dir)
	require.NoError(t, err)
	router := newRouter(t, backend)

	content := []byte("release artifact content")
	req := httptest.NewRequest(http.MethodPut, "/artifacts/1.2.0/updater.tar.gz", bytes.NewReader(content))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := os.ReadFile(filepath.Join(dir, "1.2.0", "updater.tar.gz"))
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	entries, err := os.ReadDir(filepath.Join(dir, "1.2.0"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "upload temp file must be removed")

	req = httptest.NewRequest(http.MethodGet, "/artifacts/1.2.0/updater.tar.gz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
}

func TestLocal_GetRange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "1.0.0"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.0.0", "app.zip"), []byte("0123456789"), 0600))

	backend, err := NewLocal(dir)
	require.NoError(t, err)
	router := newRouter(t, backend)

	req := httptest.NewRequest(http.MethodGet, "/artifacts/1.0.0/app.zip", nil)
	req.Header.Set("Range", "bytes=4-")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 4-9/10", rec.Header().Get("Content-Range"))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "456789", string(body))
}

func TestLocal_GetMissing(t *testing.T) {
	backend, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	router := newRouter(t, backend)

	req := httptest.NewRequest(http.MethodGet, "/artifacts/9.9.9/missing.zip", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewLocal_RequiresAbsoluteDir(t *testing.T) {
	_, err := NewLocal("relative/dir")
	assert.Error(t, err)

	_, err = NewLocal("")
	assert.Error(t, err)
}

func TestValidSegment(t *testing.T) {
	testCases := map[string]bool{
		"1.2.0":          true,
		"updater.tar.gz": true,
		"":               false,
		".":              false,
		"..":             false,
		"a/b":            false,
		`a\b`:            false,
		"a\x00b":         false,
	}
	for segment, expected := range testCases {
		assert.Equal(t, expected, validSegment(segment), "segment %q", segment)
	}
}

func TestS3_RedirectsToPresignedURL(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	backend, err := NewBackend(context.Background(), Config{
		Backend:  S3Backend,
		Bucket:   "releases",
		Region:   "us-east-1",
		Endpoint: "http://127.0.0.1:4566",
	})
	require.NoError(t, err)
	router := newRouter(t, backend)

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodPut} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/artifacts/1.2.0/updater.zip", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
			location := rec.Header().Get("Location")
			assert.Contains(t, location, "http://127.0.0.1:4566/releases/1.2.0/updater.zip")
			assert.Contains(t, location, "X-Amz-Signature=")
		})
	}
}

func TestNewBackend_Errors(t *testing.T) {
	_, err := NewBackend(context.Background(), Config{Backend: "ftp"})
	assert.Error(t, err)

	_, err = NewBackend(context.Background(), Config{Backend: S3Backend})
	assert.ErrorContains(t, err, "bucket")
}
