// Package api contains the JSON types exchanged between update clients and the update server.
package api

import "time"

// UpdateType classifies a release
type UpdateType string

const (
	UpdateTypePatch  UpdateType = "patch"
	UpdateTypeMinor  UpdateType = "minor"
	UpdateTypeMajor  UpdateType = "major"
	UpdateTypeHotfix UpdateType = "hotfix"
)

// Valid reports whether t is one of the known update types
func (t UpdateType) Valid() bool {
	switch t {
	case UpdateTypePatch, UpdateTypeMinor, UpdateTypeMajor, UpdateTypeHotfix:
		return true
	}
	return false
}

// ReportStatus is the lifecycle step reported by a client
type ReportStatus string

const (
	ReportStatusStarted    ReportStatus = "started"
	ReportStatusDownloaded ReportStatus = "downloaded"
	ReportStatusInstalled  ReportStatus = "installed"
	ReportStatusFailed     ReportStatus = "failed"
)

// Valid reports whether s is one of the known report statuses
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusStarted, ReportStatusDownloaded, ReportStatusInstalled, ReportStatusFailed:
		return true
	}
	return false
}

// UpdateManifest describes a published release
type UpdateManifest struct {
	Version      string     `json:"version"`
	BuildNumber  int64      `json:"buildNumber"`
	ReleaseDate  time.Time  `json:"releaseDate"`
	Channel      string     `json:"channel"`
	FeatureTag   string     `json:"featureTag,omitempty"`
	MinVersion   string     `json:"minVersion,omitempty"`
	MaxVersion   string     `json:"maxVersion,omitempty"`
	UpdateType   UpdateType `json:"updateType"`
	IsHotUpdate  bool       `json:"isHotUpdate"`
	IsRequired   bool       `json:"isRequired"`
	DownloadURL  string     `json:"downloadUrl,omitempty"`
	DownloadSize int64      `json:"downloadSize,omitempty"`
	Checksum     string     `json:"checksum,omitempty"`
	Changelog    []string   `json:"changelog,omitempty"`
	Features     []string   `json:"features,omitempty"`
}

// CheckRequest is the body of POST /api/updates/check
type CheckRequest struct {
	CurrentVersion string `json:"currentVersion"`
	Platform       string `json:"platform"`
	DeviceID       string `json:"deviceId"`
	Channel        string `json:"channel"`
	FeatureTag     string `json:"featureTag,omitempty"`
}

// CheckResponse is the response of POST /api/updates/check
type CheckResponse struct {
	HasUpdate  bool            `json:"hasUpdate"`
	UpdateInfo *UpdateManifest `json:"updateInfo,omitempty"`
}

// ReportRequest is the body of POST /api/updates/report
type ReportRequest struct {
	UpdateID  string       `json:"updateId"`
	Status    ReportStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	DeviceID  string       `json:"deviceId"`
	Timestamp time.Time    `json:"timestamp"`
}

// HistoryRecord is one element of GET /api/updates/history
type HistoryRecord struct {
	UpdateID  string       `json:"updateId"`
	Status    ReportStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	DeviceID  string       `json:"deviceId"`
	Timestamp time.Time    `json:"timestamp"`
}
