package installer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/updater/util"
)

const resultFile = "result.json"

// Outcome is written by the platform installer once a full update ran
type Outcome struct {
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	ExecutedAt time.Time `json:"executedAt"`
}

// ResultHandler reads and writes the platform installer outcome
type ResultHandler struct {
	resultFile string
}

// NewResultHandler handles "result.json" in dir
func NewResultHandler(dir string) *ResultHandler {
	return &ResultHandler{
		resultFile: filepath.Join(dir, resultFile),
	}
}

// Watch waits until the result file appears and returns its content. The file is removed afterwards.
func (rh *ResultHandler) Watch(ctx context.Context) (Outcome, error) {
	log.Infof("start watching result: %s", rh.resultFile)

	defer func() {
		if err := rh.Cleanup(); err != nil {
			log.Warnf("failed to cleanup result file: %v", err)
		}
	}()

	// the installer may have finished before we started watching
	if outcome, err := rh.Read(); err == nil {
		log.Infof("installer result: %+v", outcome)
		return outcome, nil
	}

	dir := filepath.Dir(rh.resultFile)

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

DirectoryReady:
	for {
		if util.DirExists(dir) {
			break
		}
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-ticker.C:
			if util.DirExists(dir) {
				break DirectoryReady
			}
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return Outcome{}, fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Warnf("failed to close watcher: %v", err)
		}
	}()

	// watch the directory, the file does not exist yet
	if err := watcher.Add(dir); err != nil {
		return Outcome{}, fmt.Errorf("failed to watch directory: %w", err)
	}

	// the file may have appeared between the first read and the watch
	if outcome, err := rh.Read(); err == nil {
		log.Infof("installer result: %+v", outcome)
		return outcome, nil
	}

	for {
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return Outcome{}, errors.New("watcher closed unexpectedly")
			}
			if event.Name != rh.resultFile || !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			outcome, err := rh.Read()
			if err != nil {
				// a partially written file is completed by a following event
				log.Debugf("error while reading result: %v", err)
				continue
			}
			log.Infof("installer result: %+v", outcome)
			return outcome, nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return Outcome{}, errors.New("watcher closed unexpectedly")
			}
			return Outcome{}, fmt.Errorf("watcher error: %w", err)
		}
	}
}

// Write atomically stores the outcome
func (rh *ResultHandler) Write(ctx context.Context, outcome Outcome) error {
	log.Infof("write out installer result to: %s", rh.resultFile)
	if outcome.ExecutedAt.IsZero() {
		outcome.ExecutedAt = time.Now().UTC()
	}
	return util.WriteJson(ctx, rh.resultFile, outcome)
}

// WriteErr stores a failed outcome
func (rh *ResultHandler) WriteErr(ctx context.Context, errReason error) error {
	return rh.Write(ctx, Outcome{Success: false, Error: errReason.Error()})
}

// Cleanup removes the result file if it exists
func (rh *ResultHandler) Cleanup() error {
	if err := util.RemoveJson(rh.resultFile); err != nil {
		return err
	}
	log.Debugf("delete installer result file: %s", rh.resultFile)
	return nil
}

// Read returns the stored outcome. A missing file yields an error matching os.ErrNotExist.
func (rh *ResultHandler) Read() (Outcome, error) {
	data, err := os.ReadFile(rh.resultFile)
	if err != nil {
		return Outcome{}, err
	}

	var outcome Outcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return Outcome{}, fmt.Errorf("invalid result format: %w", err)
	}

	return outcome, nil
}
