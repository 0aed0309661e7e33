package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/netbirdio/updater/shared/updates/api"
)

// UpdateReport is a lifecycle report sent by a client device
type UpdateReport struct {
	ID        uint   `gorm:"primaryKey"`
	DeviceID  string `gorm:"index;size:128"`
	UpdateID  string `gorm:"size:128"`
	Status    api.ReportStatus
	Error     string
	Timestamp time.Time `gorm:"column:reported_at;index"`
}

// Validate checks the mandatory report fields
func (r *UpdateReport) Validate() error {
	if r.DeviceID == "" {
		return errors.New("device id is required")
	}
	if r.UpdateID == "" {
		return errors.New("update id is required")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("unknown report status %q", r.Status)
	}
	return nil
}

// ReportFromAPI converts a wire report to its stored form
func ReportFromAPI(r *api.ReportRequest) *UpdateReport {
	return &UpdateReport{
		DeviceID:  r.DeviceID,
		UpdateID:  r.UpdateID,
		Status:    r.Status,
		Error:     r.Error,
		Timestamp: r.Timestamp.UTC(),
	}
}

// ToAPIResponse converts the stored report to a history record
func (r *UpdateReport) ToAPIResponse() api.HistoryRecord {
	return api.HistoryRecord{
		UpdateID:  r.UpdateID,
		Status:    r.Status,
		Error:     r.Error,
		DeviceID:  r.DeviceID,
		Timestamp: r.Timestamp.UTC(),
	}
}
