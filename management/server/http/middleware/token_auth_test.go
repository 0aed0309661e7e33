package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	testCases := []struct {
		name     string
		token    string
		header   string
		expected int
	}{
		{name: "open when unset", token: "", header: "", expected: http.StatusNoContent},
		{name: "valid", token: "secret", header: "Token secret", expected: http.StatusNoContent},
		{name: "case insensitive scheme", token: "secret", header: "token secret", expected: http.StatusNoContent},
		{name: "missing", token: "secret", header: "", expected: http.StatusUnauthorized},
		{name: "wrong token", token: "secret", header: "Token other", expected: http.StatusUnauthorized},
		{name: "wrong scheme", token: "secret", header: "Bearer secret", expected: http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/manifests", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			NewTokenAuth(tc.token).Handler(next).ServeHTTP(rec, req)
			assert.Equal(t, tc.expected, rec.Code)
		})
	}
}
