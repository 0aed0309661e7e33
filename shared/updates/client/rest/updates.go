package rest

import (
	"context"
	"net/url"

	"github.com/netbirdio/updater/shared/updates/api"
)

// UpdatesAPI APIs for update checks and reports, do not use directly
type UpdatesAPI struct {
	c *Client
}

// Check asks the server for the best applicable release
func (a *UpdatesAPI) Check(ctx context.Context, request api.CheckRequest) (*api.CheckResponse, error) {
	resp, err := a.c.NewRequest(ctx, "POST", "/api/updates/check", request, nil)
	if err != nil {
		return nil, err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	ret, err := parseResponse[api.CheckResponse](resp)
	return &ret, err
}

// Report sends a lifecycle status report
func (a *UpdatesAPI) Report(ctx context.Context, request api.ReportRequest) error {
	resp, err := a.c.NewRequest(ctx, "POST", "/api/updates/report", request, nil)
	if err != nil {
		return err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	return nil
}

// History returns the reports of a device in the order they were recorded
func (a *UpdatesAPI) History(ctx context.Context, deviceID string) ([]api.HistoryRecord, error) {
	resp, err := a.c.NewRequest(ctx, "GET", "/api/updates/history", nil, url.Values{"deviceId": {deviceID}})
	if err != nil {
		return nil, err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	ret, err := parseResponse[[]api.HistoryRecord](resp)
	return ret, err
}

// ManifestsAPI APIs for manifest ingest, do not use directly
type ManifestsAPI struct {
	c *Client
}

// Publish appends a manifest to the store
func (a *ManifestsAPI) Publish(ctx context.Context, manifest api.UpdateManifest) (*api.UpdateManifest, error) {
	resp, err := a.c.NewRequest(ctx, "POST", "/api/manifests", manifest, nil)
	if err != nil {
		return nil, err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	ret, err := parseResponse[api.UpdateManifest](resp)
	return &ret, err
}

// List returns the manifests of a channel and feature tag
func (a *ManifestsAPI) List(ctx context.Context, channel, featureTag string) ([]api.UpdateManifest, error) {
	query := url.Values{"channel": {channel}}
	if featureTag != "" {
		query.Set("featureTag", featureTag)
	}
	resp, err := a.c.NewRequest(ctx, "GET", "/api/manifests", nil, query)
	if err != nil {
		return nil, err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	ret, err := parseResponse[[]api.UpdateManifest](resp)
	return ret, err
}
