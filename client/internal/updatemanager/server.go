package updatemanager

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	nberrors "github.com/netbirdio/updater/client/errors"
	"github.com/netbirdio/updater/shared/updates/api"
	"github.com/netbirdio/updater/shared/updates/client/rest"
	"github.com/netbirdio/updater/version"
)

// Checker asks the update server for an applicable release. It returns nil when there is none.
type Checker interface {
	Check(ctx context.Context, request api.CheckRequest) (*api.UpdateManifest, error)
}

// Reporter sends lifecycle reports to the analytics collector
type Reporter interface {
	Report(ctx context.Context, report api.ReportRequest) error
}

// ServerClient adapts the REST client of the update server to the client error taxonomy
type ServerClient struct {
	client *rest.Client
}

func NewServerClient(client *rest.Client) *ServerClient {
	return &ServerClient{client: client}
}

func (s *ServerClient) Check(ctx context.Context, request api.CheckRequest) (*api.UpdateManifest, error) {
	resp, err := s.client.Updates.Check(ctx, request)
	if err != nil {
		return nil, classify("check", err)
	}
	if !resp.HasUpdate || resp.UpdateInfo == nil {
		return nil, nil //nolint:nilnil
	}

	manifest := resp.UpdateInfo
	if err := validateManifest(manifest); err != nil {
		return nil, nberrors.DataError("check", err)
	}
	return manifest, nil
}

func (s *ServerClient) Report(ctx context.Context, report api.ReportRequest) error {
	return classify("report", s.client.Updates.Report(ctx, report))
}

func (s *ServerClient) History(ctx context.Context, deviceID string) ([]api.HistoryRecord, error) {
	records, err := s.client.Updates.History(ctx, deviceID)
	return records, classify("history", err)
}

// validateManifest rejects offered manifests the client could never install
func validateManifest(manifest *api.UpdateManifest) error {
	if _, err := version.Parse(manifest.Version); err != nil {
		return fmt.Errorf("offered version: %w", err)
	}
	if manifest.DownloadURL == "" {
		return fmt.Errorf("manifest %s has no download url", manifest.Version)
	}
	if _, err := api.ParseChecksum(manifest.Checksum); err != nil {
		return fmt.Errorf("manifest %s: %w", manifest.Version, err)
	}
	return nil
}

// classify maps REST client failures. Undecodable responses and rejected requests are data errors,
// everything else is a network error.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, rest.ErrMalformedResponse) {
		return nberrors.DataError(op, err)
	}

	var apiErr *rest.APIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnprocessableEntity) {
		return nberrors.DataError(op, err)
	}
	return nberrors.NetworkError(op, err)
}
