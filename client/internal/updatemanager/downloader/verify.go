package downloader

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/netbirdio/updater/shared/updates/api"
)

// ErrChecksumMismatch is returned when the artifact content does not match the manifest checksum
var ErrChecksumMismatch = errors.New("checksum mismatch")

// verify hashes the file at path and compares it with checksum, returning the file size
func verify(path string, checksum *api.Checksum) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := checksum.NewHash()
	size, err := io.Copy(h, f)
	if err != nil {
		return 0, fmt.Errorf("hash artifact: %w", err)
	}

	sum := h.Sum(nil)
	if subtle.ConstantTimeCompare(sum, checksum.Digest) != 1 {
		return size, fmt.Errorf("%w: expected %s, got %s:%s", ErrChecksumMismatch, checksum, checksum.Algorithm, hex.EncodeToString(sum))
	}
	return size, nil
}
