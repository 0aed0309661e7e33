package updatemanager

import "time"

// Phase of the update lifecycle
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseChecking    Phase = "checking"
	PhaseAvailable   Phase = "available"
	PhaseDownloading Phase = "downloading"
	PhaseInstalling  Phase = "installing"
	PhaseComplete    Phase = "complete"
	PhaseError       Phase = "error"
)

// Snapshot is the observable lifecycle state broadcast on every transition
type Snapshot struct {
	Phase            Phase   `json:"phase"`
	ProgressPercent  float64 `json:"progressPercent"`
	Message          string  `json:"message,omitempty"`
	SpeedBytesPerSec float64 `json:"speedBytesPerSec,omitempty"`
	ETASeconds       int64   `json:"etaSeconds,omitempty"`
	Version          string  `json:"version,omitempty"`
	RequiresRestart  bool    `json:"requiresRestart,omitempty"`
}

const updateStateName = "update_state"

// UpdateState is the persisted client side update state
type UpdateState struct {
	CurrentVersion    string    `json:"currentVersion"`
	LastCheckedAt     time.Time `json:"lastCheckedAt"`
	SuppressedVersion string    `json:"suppressedVersion,omitempty"`
	AutoUpdateEnabled bool      `json:"autoUpdateEnabled"`
	Channel           string    `json:"channel"`
	FeatureTag        string    `json:"featureTag,omitempty"`
	DeviceID          string    `json:"deviceId"`
}

func (s *UpdateState) Name() string {
	return updateStateName
}
