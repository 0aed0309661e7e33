package updates

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/updater/management/server/types"
	nbcontext "github.com/netbirdio/updater/shared/context"
	"github.com/netbirdio/updater/shared/updates/api"
	"github.com/netbirdio/updater/shared/updates/http/util"
)

// Service is what the endpoints need from the update check service
type Service interface {
	Resolve(ctx context.Context, currentVersion, channel, featureTag string) (*types.UpdateManifest, error)
	Report(ctx context.Context, report *types.UpdateReport) error
	History(ctx context.Context, deviceID string) ([]*types.UpdateReport, error)
}

// handler serves the client facing update endpoints
type handler struct {
	service Service
	// artifactBase resolves relative download URLs, nil leaves them as stored
	artifactBase *url.URL
}

// AddEndpoints registers the update check, report and history endpoints
func AddEndpoints(service Service, artifactBase *url.URL, router *mux.Router) {
	h := &handler{
		service:      service,
		artifactBase: artifactBase,
	}

	router.HandleFunc("/updates/check", h.check).Methods("POST", "OPTIONS")
	router.HandleFunc("/updates/report", h.report).Methods("POST", "OPTIONS")
	router.HandleFunc("/updates/history", h.history).Methods("GET", "OPTIONS")
}

func (h *handler) check(w http.ResponseWriter, r *http.Request) {
	var req api.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteErrorResponse("couldn't parse JSON request", http.StatusBadRequest, w)
		return
	}

	//nolint
	ctx := context.WithValue(r.Context(), nbcontext.DeviceIDKey, req.DeviceID)

	// no channel matches no manifest
	if req.Channel == "" {
		log.WithContext(ctx).Debugf("update check from %s without a channel", req.CurrentVersion)
		util.WriteJSONObject(ctx, w, api.CheckResponse{HasUpdate: false})
		return
	}

	manifest, err := h.service.Resolve(ctx, req.CurrentVersion, req.Channel, req.FeatureTag)
	if err != nil {
		util.WriteError(ctx, err, w)
		return
	}

	if manifest == nil {
		util.WriteJSONObject(ctx, w, api.CheckResponse{HasUpdate: false})
		return
	}

	info := manifest.ToAPIResponse()
	info.DownloadURL = h.resolveDownloadURL(ctx, info.DownloadURL)

	log.WithContext(ctx).Debugf("device on %s (%s) is offered %s", req.CurrentVersion, req.Platform, info.Version)

	util.WriteJSONObject(ctx, w, api.CheckResponse{HasUpdate: true, UpdateInfo: info})
}

func (h *handler) resolveDownloadURL(ctx context.Context, raw string) string {
	if h.artifactBase == nil || raw == "" {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		log.WithContext(ctx).Warnf("stored download url %q is malformed: %v", raw, err)
		return raw
	}
	if ref.IsAbs() {
		return raw
	}
	return h.artifactBase.ResolveReference(ref).String()
}

func (h *handler) report(w http.ResponseWriter, r *http.Request) {
	var req api.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteErrorResponse("couldn't parse JSON request", http.StatusBadRequest, w)
		return
	}

	//nolint
	ctx := context.WithValue(r.Context(), nbcontext.DeviceIDKey, req.DeviceID)

	if err := h.service.Report(ctx, types.ReportFromAPI(&req)); err != nil {
		util.WriteError(ctx, err, w)
		return
	}

	util.WriteJSONObject(ctx, w, util.EmptyObject{})
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")

	reports, err := h.service.History(r.Context(), deviceID)
	if err != nil {
		util.WriteError(r.Context(), err, w)
		return
	}

	records := make([]api.HistoryRecord, 0, len(reports))
	for _, report := range reports {
		records = append(records, report.ToAPIResponse())
	}

	util.WriteJSONObject(r.Context(), w, records)
}
