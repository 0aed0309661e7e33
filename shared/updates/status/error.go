package status

import (
	"errors"
	"fmt"
)

const (
	// NotFound indicates that the object wasn't found in the system
	NotFound Type = 1

	// Internal indicates some generic internal error
	Internal Type = 2

	// InvalidArgument indicates a request with malformed or missing fields
	InvalidArgument Type = 3

	// AlreadyExists indicates that an append-only record with the same key is already stored
	AlreadyExists Type = 4

	// TooManyRequests indicates that the client has sent too many requests in a given amount of time
	TooManyRequests Type = 5

	// Unavailable indicates that a backing service could not be reached
	Unavailable Type = 6
)

// Type is a type of the Error
type Type int32

func (t Type) String() string {
	switch t {
	case NotFound:
		return "not_found"
	case Internal:
		return "internal"
	case InvalidArgument:
		return "invalid_argument"
	case AlreadyExists:
		return "already_exists"
	case TooManyRequests:
		return "too_many_requests"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is an internal error
type Error struct {
	ErrorType Type
	Message   string
}

// Type returns the Type of the error
func (e *Error) Type() Type {
	return e.ErrorType
}

// Error is an error string
func (e *Error) Error() string {
	return e.Message
}

// Errorf returns Error(ErrorType, fmt.Sprintf(format, a...)).
func Errorf(errorType Type, format string, a ...interface{}) error {
	return &Error{
		ErrorType: errorType,
		Message:   fmt.Sprintf(format, a...),
	}
}

// FromError returns Error, true if the provided error is of type of Error. nil, false otherwise
func FromError(err error) (s *Error, ok bool) {
	if err == nil {
		return nil, true
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsType reports whether err carries the given status type
func IsType(err error, t Type) bool {
	e, ok := FromError(err)
	return ok && e != nil && e.ErrorType == t
}

// NewManifestExistsError is returned when a manifest with the same channel, feature tag and version is already stored
func NewManifestExistsError(channel, featureTag, version string) error {
	return Errorf(AlreadyExists, "manifest %s already published on channel %q with feature tag %q", version, channel, featureTag)
}

// NewInvalidManifestError wraps a manifest validation failure
func NewInvalidManifestError(err error) error {
	return Errorf(InvalidArgument, "invalid manifest: %v", err)
}

// NewGetManifestsFromStoreError creates a new Error with Internal type for an issue getting manifests from store
func NewGetManifestsFromStoreError(err error) error {
	return Errorf(Internal, "issue getting manifests from store: %s", err)
}

// NewStoreReportError creates a new Error with Internal type for an issue saving an update report
func NewStoreReportError(err error) error {
	return Errorf(Internal, "issue storing update report: %s", err)
}
