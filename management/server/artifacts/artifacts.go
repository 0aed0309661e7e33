package artifacts

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/netbirdio/updater/shared/updates/http/util"
	"github.com/netbirdio/updater/shared/updates/status"
)

const (
	// PathPrefix is the path under which release artifacts are served
	PathPrefix = "/artifacts"

	LocalBackend = "local"
	S3Backend    = "s3"

	defaultPresignExpiry = 15 * time.Minute
)

// Config selects and configures the artifact backend
type Config struct {
	// Backend is either "local" or "s3"; empty means local
	Backend string
	// Dir is the root directory of the local backend
	Dir string
	// Bucket, Region and Endpoint configure the s3 backend. An empty Endpoint uses the AWS default.
	Bucket   string
	Region   string
	Endpoint string
	// PresignExpiry bounds the lifetime of presigned URLs
	PresignExpiry util.Duration
}

// Backend serves and stores release artifacts addressed by version and file name
type Backend interface {
	// Get writes the artifact to w or redirects the client to where it lives
	Get(w http.ResponseWriter, r *http.Request, version, file string)
	// Put stores the request body as the artifact or redirects the uploader to where it should go
	Put(w http.ResponseWriter, r *http.Request, version, file string)
}

// NewBackend creates the backend described by cfg
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", LocalBackend:
		return NewLocal(cfg.Dir)
	case S3Backend:
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported artifact backend: %s", cfg.Backend)
	}
}

// AddEndpoints registers the artifact download endpoint on downloads and the upload endpoint on uploads
func AddEndpoints(backend Backend, downloads, uploads *mux.Router) {
	h := &handler{backend: backend}
	downloads.HandleFunc(PathPrefix+"/{version}/{file}", h.get).Methods("GET", "HEAD", "OPTIONS")
	uploads.HandleFunc(PathPrefix+"/{version}/{file}", h.put).Methods("PUT")
}

type handler struct {
	backend Backend
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	version, file, ok := objectPath(w, r)
	if !ok {
		return
	}
	h.backend.Get(w, r, version, file)
}

func (h *handler) put(w http.ResponseWriter, r *http.Request) {
	version, file, ok := objectPath(w, r)
	if !ok {
		return
	}
	h.backend.Put(w, r, version, file)
}

func objectPath(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	vars := mux.Vars(r)
	version, file := vars["version"], vars["file"]
	if !validSegment(version) || !validSegment(file) {
		util.WriteError(r.Context(), status.Errorf(status.InvalidArgument, "invalid artifact path"), w)
		return "", "", false
	}
	return version, file, true
}

// validSegment rejects anything that could leave the artifact root
func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	if strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return false
	}
	return path.Clean(s) == s
}

// ObjectKey returns the storage key of an artifact
func ObjectKey(version, file string) string {
	return version + "/" + file
}
