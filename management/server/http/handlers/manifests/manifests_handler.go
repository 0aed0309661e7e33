package manifests

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/netbirdio/updater/management/server/types"
	"github.com/netbirdio/updater/shared/updates/api"
	"github.com/netbirdio/updater/shared/updates/http/util"
)

// Service is what the endpoints need from the manifest store
type Service interface {
	Publish(ctx context.Context, manifest *types.UpdateManifest) error
	GetManifests(ctx context.Context, channel, featureTag string) ([]*types.UpdateManifest, error)
}

// handler exposes manifest ingest and listing to the release publisher
type handler struct {
	service Service
}

// AddEndpoints registers the manifest endpoints
func AddEndpoints(service Service, router *mux.Router) {
	h := &handler{service: service}

	router.HandleFunc("/manifests", h.list).Methods("GET", "OPTIONS")
	router.HandleFunc("/manifests", h.publish).Methods("POST", "OPTIONS")
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	manifests, err := h.service.GetManifests(r.Context(), query.Get("channel"), query.Get("featureTag"))
	if err != nil {
		util.WriteError(r.Context(), err, w)
		return
	}

	resp := make([]*api.UpdateManifest, 0, len(manifests))
	for _, m := range manifests {
		resp = append(resp, m.ToAPIResponse())
	}

	util.WriteJSONObject(r.Context(), w, resp)
}

func (h *handler) publish(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateManifest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteErrorResponse("couldn't parse JSON request", http.StatusBadRequest, w)
		return
	}

	manifest := types.ManifestFromAPI(&req)
	if err := h.service.Publish(r.Context(), manifest); err != nil {
		util.WriteError(r.Context(), err, w)
		return
	}

	util.WriteJSONObject(r.Context(), w, manifest.ToAPIResponse())
}
