package util

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/updater/shared/updates/status"
)

// EmptyObject is an empty struct used to return empty JSON object
type EmptyObject struct {
}

type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// WriteJSONObject writes an object to the HTTP response in JSON format
func WriteJSONObject(ctx context.Context, w http.ResponseWriter, obj interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.WithContext(ctx).Errorf("failed to encode response: %v", err)
	}
}

// Duration is used strictly for JSON requests/responses due to duration marshalling issues
type Duration struct {
	time.Duration
}

// MarshalJSON marshals the duration
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON unmarshals the duration
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		return err
	default:
		return errors.New("invalid duration")
	}
}

// WriteErrorResponse prepares and writes an error response in JSON format
func WriteErrorResponse(errMsg string, httpStatus int, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	w.WriteHeader(httpStatus)
	err := json.NewEncoder(w).Encode(&ErrorResponse{
		Message: errMsg,
		Code:    httpStatus,
	})
	if err != nil {
		http.Error(w, "failed handling request", http.StatusInternalServerError)
	}
}

// WriteError converts an error to a JSON error response.
// Status errors are mapped to their HTTP code; anything else is reported as an internal error without details.
func WriteError(ctx context.Context, err error, w http.ResponseWriter) {
	log.WithContext(ctx).Errorf("got a handler error: %s", err.Error())

	httpStatus := http.StatusInternalServerError
	msg := "internal server error"

	errStatus, ok := status.FromError(err)
	if ok && errStatus != nil {
		switch errStatus.Type() {
		case status.AlreadyExists:
			httpStatus = http.StatusConflict
			msg = errStatus.Error()
		case status.NotFound:
			httpStatus = http.StatusNotFound
			msg = errStatus.Error()
		case status.InvalidArgument:
			httpStatus = http.StatusUnprocessableEntity
			msg = errStatus.Error()
		case status.TooManyRequests:
			httpStatus = http.StatusTooManyRequests
			msg = "too many requests"
		case status.Unavailable:
			httpStatus = http.StatusServiceUnavailable
			msg = "service unavailable"
		}
	}

	WriteErrorResponse(msg, httpStatus, w)
}
