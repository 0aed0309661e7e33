package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Kind classifies failures of the update lifecycle
type Kind int

const (
	// KindNetwork covers transport failures and unexpected server responses
	KindNetwork Kind = iota + 1
	// KindVerification covers artifacts whose content does not match the manifest checksum
	KindVerification
	// KindInstallation covers extraction, staging and hand off failures
	KindInstallation
	// KindData covers malformed manifests, versions and persisted state
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindVerification:
		return "verification"
	case KindInstallation:
		return "installation"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Error is a classified update failure
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: KindNetwork}) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Op == "" && t.Kind == e.Kind
}

// E builds an *Error. A nil err stays nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func NetworkError(op string, err error) error {
	return E(KindNetwork, op, err)
}

func VerificationError(op string, err error) error {
	return E(KindVerification, op, err)
}

func InstallationError(op string, err error) error {
	return E(KindInstallation, op, err)
}

func DataError(op string, err error) error {
	return E(KindData, op, err)
}

// KindOf returns the kind of the first *Error in the chain, or 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsNetwork(err error) bool      { return KindOf(err) == KindNetwork }
func IsVerification(err error) bool { return KindOf(err) == KindVerification }
func IsInstallation(err error) bool { return KindOf(err) == KindInstallation }
func IsData(err error) bool         { return KindOf(err) == KindData }

func formatError(es []error) string {
	if len(es) == 1 {
		return fmt.Sprintf("1 error occurred:\n\t* %s", es[0])
	}

	points := make([]string, len(es))
	for i, err := range es {
		points[i] = fmt.Sprintf("* %s", err)
	}

	return fmt.Sprintf(
		"%d errors occurred:\n\t%s",
		len(es), strings.Join(points, "\n\t"))
}

func FormatErrorOrNil(err *multierror.Error) error {
	if err != nil {
		err.ErrorFormat = formatError
	}
	return err.ErrorOrNil()
}
