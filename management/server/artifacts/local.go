package artifacts

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/updater/shared/updates/http/util"
	"github.com/netbirdio/updater/shared/updates/status"
)

const maxUploadSize = 2 << 30

type local struct {
	dir string
}

// NewLocal creates a backend storing artifacts under dir
func NewLocal(dir string) (Backend, error) {
	if dir == "" {
		return nil, errors.New("artifact directory is required")
	}
	if !filepath.IsAbs(dir) {
		return nil, fmt.Errorf("artifact directory should be an absolute path, got %s", dir)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	log.Infof("serving artifacts from local directory %s", dir)
	return &local{dir: dir}, nil
}

// Get serves the artifact with Range and conditional request support
func (l *local) Get(w http.ResponseWriter, r *http.Request, version, file string) {
	f, err := os.Open(filepath.Join(l.dir, version, file))
	if errors.Is(err, fs.ErrNotExist) {
		util.WriteError(r.Context(), status.Errorf(status.NotFound, "artifact %s/%s not found", version, file), w)
		return
	}
	if err != nil {
		log.WithContext(r.Context()).Errorf("failed to open artifact %s/%s: %v", version, file, err)
		util.WriteError(r.Context(), status.Errorf(status.Internal, "failed to open artifact"), w)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		util.WriteError(r.Context(), status.Errorf(status.NotFound, "artifact %s/%s not found", version, file), w)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, file, info.ModTime(), f)
}

// Put writes the request body to the artifact file through a temp file
func (l *local) Put(w http.ResponseWriter, r *http.Request, version, file string) {
	dirPath := filepath.Join(l.dir, version)
	if err := os.MkdirAll(dirPath, 0750); err != nil {
		log.WithContext(r.Context()).Errorf("failed to create artifact dir: %v", err)
		util.WriteError(r.Context(), status.Errorf(status.Internal, "failed to create artifact dir"), w)
		return
	}

	tmp, err := os.CreateTemp(dirPath, "."+file+".upload-*")
	if err != nil {
		log.WithContext(r.Context()).Errorf("failed to create artifact temp file: %v", err)
		util.WriteError(r.Context(), status.Errorf(status.Internal, "failed to store artifact"), w)
		return
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	n, err := io.Copy(tmp, http.MaxBytesReader(w, r.Body, maxUploadSize))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.WithContext(r.Context()).Errorf("failed to receive artifact %s/%s: %v", version, file, err)
		util.WriteError(r.Context(), status.Errorf(status.InvalidArgument, "failed to read artifact body"), w)
		return
	}

	target := filepath.Join(dirPath, file)
	if err := os.Rename(tmp.Name(), target); err != nil {
		log.WithContext(r.Context()).Errorf("failed to store artifact %s: %v", target, err)
		util.WriteError(r.Context(), status.Errorf(status.Internal, "failed to store artifact"), w)
		return
	}

	log.WithContext(r.Context()).Infof("stored artifact %s (%d bytes)", target, n)
	util.WriteJSONObject(r.Context(), w, util.EmptyObject{})
}
