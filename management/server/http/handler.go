package http

import (
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/netbirdio/updater/management/server/artifacts"
	"github.com/netbirdio/updater/management/server/http/handlers/manifests"
	"github.com/netbirdio/updater/management/server/http/handlers/updates"
	"github.com/netbirdio/updater/management/server/http/middleware"
	"github.com/netbirdio/updater/management/server/telemetry"
	nbupdates "github.com/netbirdio/updater/management/server/updates"
)

const apiPrefix = "/api"

// Options configures the API handler
type Options struct {
	// PublishToken guards manifest ingest and artifact upload; empty leaves them open
	PublishToken string
	// ArtifactBaseURL resolves relative manifest download URLs; nil keeps them relative
	ArtifactBaseURL *url.URL
	RateLimiter     *middleware.RateLimiterConfig
}

// APIHandler is the update server HTTP handler
type APIHandler struct {
	http.Handler
	rateLimiter *middleware.APIRateLimiter
}

// NewAPIHandler creates the update server HTTP API handler registering all the available endpoints.
// backend may be nil when the server does not host artifacts.
func NewAPIHandler(manager *nbupdates.Manager, backend artifacts.Backend, appMetrics telemetry.AppMetrics, opts Options) *APIHandler {
	rootRouter := mux.NewRouter()
	corsMiddleware := cors.AllowAll()
	rateLimiter := middleware.NewAPIRateLimiter(opts.RateLimiter)
	tokenAuth := middleware.NewTokenAuth(opts.PublishToken)

	rootRouter.Use(corsMiddleware.Handler)
	if appMetrics != nil {
		rootRouter.Use(appMetrics.HTTPMiddleware().Handler)
	}

	apiRouter := rootRouter.PathPrefix(apiPrefix).Subrouter()

	clientRouter := apiRouter.NewRoute().Subrouter()
	clientRouter.Use(rateLimiter.Middleware)
	updates.AddEndpoints(manager, opts.ArtifactBaseURL, clientRouter)

	publisherRouter := apiRouter.NewRoute().Subrouter()
	publisherRouter.Use(tokenAuth.Handler)
	manifests.AddEndpoints(manager, publisherRouter)

	if backend != nil {
		uploadRouter := rootRouter.Methods(http.MethodPut).Subrouter()
		uploadRouter.Use(tokenAuth.Handler)
		artifacts.AddEndpoints(backend, rootRouter, uploadRouter)
	}

	return &APIHandler{Handler: rootRouter, rateLimiter: rateLimiter}
}

// Close stops the background work of the handler
func (h *APIHandler) Close() {
	h.rateLimiter.Stop()
}
