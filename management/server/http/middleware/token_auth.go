package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/updater/shared/updates/http/util"
)

// TokenAuth guards publisher endpoints with a static token sent as "Authorization: Token <token>"
type TokenAuth struct {
	token []byte
}

// NewTokenAuth returns nil when token is empty, which leaves the endpoints open
func NewTokenAuth(token string) *TokenAuth {
	if token == "" {
		return nil
	}
	return &TokenAuth{token: []byte(token)}
}

// Handler rejects requests without the configured token
func (a *TokenAuth) Handler(next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Token") || subtle.ConstantTimeCompare([]byte(token), a.token) != 1 {
			log.WithContext(r.Context()).Debugf("rejected unauthenticated %s %s", r.Method, r.URL.Path)
			util.WriteErrorResponse("token invalid", http.StatusUnauthorized, w)
			return
		}

		next.ServeHTTP(w, r)
	})
}
