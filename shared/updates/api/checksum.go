package api

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

// ErrInvalidChecksum is returned for checksums with an unknown algorithm or a malformed digest
var ErrInvalidChecksum = errors.New("invalid checksum")

// Checksum is a parsed artifact content digest
type Checksum struct {
	Algorithm string
	Digest    []byte
}

// ParseChecksum accepts "<hex>" (sha256), "sha256:<hex>" or "sha512:<hex>"
func ParseChecksum(s string) (*Checksum, error) {
	algo, digest := "sha256", s
	if prefix, rest, found := strings.Cut(s, ":"); found {
		algo, digest = strings.ToLower(prefix), rest
	}

	var size int
	switch algo {
	case "sha256":
		size = sha256.Size
	case "sha512":
		size = sha512.Size
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidChecksum, algo)
	}

	raw, err := hex.DecodeString(digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChecksum, err)
	}
	if len(raw) != size {
		return nil, fmt.Errorf("%w: %s digest must be %d bytes, got %d", ErrInvalidChecksum, algo, size, len(raw))
	}

	return &Checksum{Algorithm: algo, Digest: raw}, nil
}

// NewHash returns a hash matching the checksum algorithm
func (c *Checksum) NewHash() hash.Hash {
	if c.Algorithm == "sha512" {
		return sha512.New()
	}
	return sha256.New()
}

func (c *Checksum) String() string {
	return c.Algorithm + ":" + hex.EncodeToString(c.Digest)
}
