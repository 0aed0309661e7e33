package version

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// ErrInvalidVersion is returned for version strings that are not a dotted sequence of non-negative integers
var ErrInvalidVersion = errors.New("invalid version")

var numericVersion = regexp.MustCompile(`^\d+(\.\d+)*$`)

// Identifier is a parsed version. Missing trailing components compare as zero, so "1.2" equals "1.2.0".
type Identifier struct {
	raw string
	v   *goversion.Version
}

// Parse validates s and returns its Identifier
func Parse(s string) (*Identifier, error) {
	if !numericVersion.MatchString(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	v, err := goversion.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, s, err)
	}

	return &Identifier{raw: s, v: v}, nil
}

// MustParse is like Parse but panics on error. Meant for constants and tests.
func MustParse(s string) *Identifier {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Compare returns -1, 0 or 1 when i is lower, equal or greater than other
func (i *Identifier) Compare(other *Identifier) int {
	return i.v.Compare(other.v)
}

// Segments returns the numeric components of the version as written
func (i *Identifier) Segments() []int {
	// go-version pads to at least three segments
	count := strings.Count(i.raw, ".") + 1
	segments := i.v.Segments()
	if count < len(segments) {
		return segments[:count]
	}
	return segments
}

func (i *Identifier) String() string {
	return i.raw
}

// Compare parses both versions and compares them
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// Constraint is the applicability window of a release. Empty bounds are open.
type Constraint struct {
	Version    string
	MinVersion string
	MaxVersion string
}

// IsApplicable reports whether a release described by c may be offered to a client running current.
// The release must be strictly newer than current and current must sit inside [MinVersion, MaxVersion].
// Any malformed version makes the release not applicable and the parse error is returned alongside.
func IsApplicable(c Constraint, current string) (bool, error) {
	cur, err := Parse(current)
	if err != nil {
		return false, fmt.Errorf("current version: %w", err)
	}

	release, err := Parse(c.Version)
	if err != nil {
		return false, fmt.Errorf("release version: %w", err)
	}

	if release.Compare(cur) <= 0 {
		return false, nil
	}

	if c.MinVersion != "" {
		minV, err := Parse(c.MinVersion)
		if err != nil {
			return false, fmt.Errorf("min version: %w", err)
		}
		if cur.Compare(minV) < 0 {
			return false, nil
		}
	}

	if c.MaxVersion != "" {
		maxV, err := Parse(c.MaxVersion)
		if err != nil {
			return false, fmt.Errorf("max version: %w", err)
		}
		if cur.Compare(maxV) > 0 {
			return false, nil
		}
	}

	return true, nil
}
