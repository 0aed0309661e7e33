package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/netbirdio/updater/shared/updates/api"
)

var (
	jsonFlag bool
	yamlFlag bool
)

type statusOutput struct {
	CurrentVersion    string     `json:"currentVersion" yaml:"currentVersion"`
	InstalledVersion  string     `json:"installedVersion,omitempty" yaml:"installedVersion,omitempty"`
	PendingVersion    string     `json:"pendingVersion,omitempty" yaml:"pendingVersion,omitempty"`
	Channel           string     `json:"channel" yaml:"channel"`
	FeatureTag        string     `json:"featureTag,omitempty" yaml:"featureTag,omitempty"`
	AutoUpdate        bool       `json:"autoUpdate" yaml:"autoUpdate"`
	SuppressedVersion string     `json:"suppressedVersion,omitempty" yaml:"suppressedVersion,omitempty"`
	LastCheckedAt     *time.Time `json:"lastCheckedAt,omitempty" yaml:"lastCheckedAt,omitempty"`
	DeviceID          string     `json:"deviceId" yaml:"deviceId"`
}

var (
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "shows the installed version and update settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd)

			state := a.manager.State()
			out := statusOutput{
				CurrentVersion:    state.CurrentVersion,
				Channel:           state.Channel,
				FeatureTag:        state.FeatureTag,
				AutoUpdate:        state.AutoUpdateEnabled,
				SuppressedVersion: state.SuppressedVersion,
				DeviceID:          state.DeviceID,
			}
			if !state.LastCheckedAt.IsZero() {
				out.LastCheckedAt = &state.LastCheckedAt
			}
			if current, err := a.installer.CurrentVersion(); err == nil && current != nil {
				out.InstalledVersion = current.Version
			}
			if pending, err := a.installer.Pending(); err == nil && pending != nil {
				out.PendingVersion = pending.Manifest.Version
			}

			return printOutput(cmd, out, formatStatus)
		},
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "shows the update reports the server recorded for this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd)

			records, err := a.server.History(cmd.Context(), a.manager.State().DeviceID)
			if err != nil {
				return fmt.Errorf("fetch update history: %w", err)
			}
			if records == nil {
				records = []api.HistoryRecord{}
			}
			return printOutput(cmd, records, formatHistory)
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{statusCmd, historyCmd} {
		c.Flags().BoolVar(&jsonFlag, "json", false, "display output in JSON format")
		c.Flags().BoolVar(&yamlFlag, "yaml", false, "display output in YAML format")
		c.MarkFlagsMutuallyExclusive("json", "yaml")
	}
}

func printOutput[T any](cmd *cobra.Command, out T, format func(T) string) error {
	switch {
	case jsonFlag:
		bs, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		cmd.Println(string(bs))
	case yamlFlag:
		bs, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		cmd.Print(string(bs))
	default:
		cmd.Print(format(out))
	}
	return nil
}

func formatStatus(out statusOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version: %s\n", out.CurrentVersion)
	if out.InstalledVersion != "" && out.InstalledVersion != out.CurrentVersion {
		fmt.Fprintf(&b, "Installed version: %s\n", out.InstalledVersion)
	}
	if out.PendingVersion != "" {
		fmt.Fprintf(&b, "Pending version: %s (waiting for the installer)\n", out.PendingVersion)
	}
	channel := out.Channel
	if out.FeatureTag != "" {
		channel += " (" + out.FeatureTag + ")"
	}
	fmt.Fprintf(&b, "Channel: %s\n", channel)
	fmt.Fprintf(&b, "Auto update: %t\n", out.AutoUpdate)
	if out.SuppressedVersion != "" {
		fmt.Fprintf(&b, "Dismissed version: %s\n", out.SuppressedVersion)
	}
	lastChecked := "never"
	if out.LastCheckedAt != nil {
		lastChecked = out.LastCheckedAt.Local().Format(time.RFC1123)
	}
	fmt.Fprintf(&b, "Last checked: %s\n", lastChecked)
	fmt.Fprintf(&b, "Device ID: %s\n", out.DeviceID)
	return b.String()
}

func formatHistory(records []api.HistoryRecord) string {
	if len(records) == 0 {
		return "No updates recorded\n"
	}
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "%s  %-8s %-10s", r.Timestamp.Local().Format(time.DateTime), r.UpdateID, r.Status)
		if r.Error != "" {
			fmt.Fprintf(&b, " %s", r.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}
