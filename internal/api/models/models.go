package models

import (
	"time"

	"github.com/smazurov/fakecam/internal/audio"
	"github.com/smazurov/fakecam/internal/devices"
	"github.com/smazurov/fakecam/internal/library"
	"github.com/smazurov/fakecam/internal/monitor"
	"github.com/smazurov/fakecam/internal/prefs"
	"github.com/smazurov/fakecam/internal/process"
	"github.com/smazurov/fakecam/internal/video"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2026-10-01T10:00:00Z" doc:"Build timestamp"`
	Modified  bool   `json:"modified,omitempty" doc:"Built from a dirty tree"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Process models
type ProcessData struct {
	Name            string     `json:"name" example:"video" doc:"Logical process name"`
	State           string     `json:"state" enum:"stopped,starting,running,stopping,error" doc:"Lifecycle state"`
	PID             int        `json:"pid,omitempty" example:"4242" doc:"Most recent OS process id"`
	Command         []string   `json:"command,omitempty" doc:"Argument list of the last start"`
	StartedAt       *time.Time `json:"started_at,omitempty" doc:"When the last start was requested"`
	Error           string     `json:"error,omitempty" doc:"Last recorded failure"`
	ExitCode        *int       `json:"exit_code,omitempty" doc:"Exit code of the last observed exit"`
	KillUnconfirmed bool       `json:"kill_unconfirmed,omitempty" doc:"SIGKILL sent but the exit was never observed"`
}

// ProcessFromStatus converts a registry row.
func ProcessFromStatus(s process.Status) ProcessData {
	d := ProcessData{
		Name:            s.Name,
		State:           s.State.String(),
		PID:             s.PID,
		Command:         s.Command,
		Error:           s.Error,
		ExitCode:        s.ExitCode,
		KillUnconfirmed: s.KillUnconfirmed,
	}
	if !s.StartedAt.IsZero() {
		t := s.StartedAt
		d.StartedAt = &t
	}
	return d
}

type ProcessListData struct {
	Processes []ProcessData `json:"processes" doc:"Registry entries sorted by name"`
	Running   int           `json:"running" example:"1" doc:"Entries currently running"`
}

type ProcessListResponse struct {
	Body ProcessListData
}

type StopAllData struct {
	Results map[string]bool `json:"results" doc:"Per-process stop outcome; false means the kill was not confirmed"`
}

type StopAllResponse struct {
	Body StopAllData
}

// Source selection shared by video and audio
type SourceRequest struct {
	Body struct {
		Source string `json:"source" minLength:"1" example:"Test Pattern" doc:"Library source name"`
	}
}

type VideoStatusResponse struct {
	Body VideoStatusData
}

type VideoStatusData struct {
	video.Status
	Process ProcessData `json:"process"`
}

type AudioStatusResponse struct {
	Body AudioStatusData
}

type AudioStatusData struct {
	audio.Status
	Process ProcessData `json:"process"`
}

type VMModeRequest struct {
	Body struct {
		Enabled bool `json:"enabled" doc:"Use the reduced VM resolution"`
	}
}

type StopData struct {
	Stopped bool   `json:"stopped" doc:"False when the kill could not be confirmed"`
	Message string `json:"message" example:"video stopped"`
}

type StopResponse struct {
	Body StopData
}

type GenerateData struct {
	Source  string `json:"source" example:"Meeting Voice"`
	Message string `json:"message" example:"audio ready"`
}

type GenerateResponse struct {
	Body GenerateData
}

type ClearCacheData struct {
	Deleted int `json:"deleted" example:"4" doc:"Cached clips removed"`
}

type ClearCacheResponse struct {
	Body ClearCacheData
}

// Library models
type LibraryData struct {
	Videos []library.Video `json:"videos" doc:"Video sources in display order"`
	Audios []library.Audio `json:"audios" doc:"Audio sources in display order"`
}

type LibraryResponse struct {
	Body LibraryData
}

type EnginesData struct {
	Engines []string `json:"engines" example:"[\"espeak-ng\",\"festival\"]" doc:"Installed TTS engines in priority order"`
}

type EnginesResponse struct {
	Body EnginesData
}

// Device models
type DevicesResponse struct {
	Body devices.Status
}

type DeviceSetupData struct {
	Video bool `json:"video" doc:"Virtual camera ready"`
	Audio bool `json:"audio" doc:"Virtual microphone ready"`
}

type DeviceSetupResponse struct {
	Body DeviceSetupData
}

type DeviceTeardownData struct {
	OK bool `json:"ok" doc:"Both devices removed"`
}

type DeviceTeardownResponse struct {
	Body DeviceTeardownData
}

// Monitor models
type MonitorResponse struct {
	Body monitor.Snapshot
}

// Preference models
type PrefsResponse struct {
	Body prefs.Preferences
}

type PrefsUpdateRequest struct {
	Body struct {
		VideoSelection *string `json:"video_selection,omitempty" doc:"Video source to preselect"`
		AudioSelection *string `json:"audio_selection,omitempty" doc:"Audio source to preselect"`
		VMMode         *bool   `json:"vm_mode,omitempty" doc:"Reduced resolution output"`
	}
}
