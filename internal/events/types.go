package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeProcessStateChanged uint32 = iota + 1
	TypeDevice
	TypeDownloadProgress
	TypeMediaGenerated
	TypeLogEntry
	TypePreferencesChanged
	TypePipelineMetrics
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ProcessStateChangedEvent is published on every supervised process transition.
type ProcessStateChangedEvent struct {
	Name      string `json:"name" example:"video" doc:"Logical process name"`
	OldState  string `json:"old_state" example:"starting" doc:"Previous state"`
	NewState  string `json:"new_state" example:"running" doc:"New state"`
	PID       int    `json:"pid,omitempty" example:"4242" doc:"OS process id, retained after exit"`
	Error     string `json:"error,omitempty" doc:"Recorded failure, if any"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessStateChangedEvent.
func (e ProcessStateChangedEvent) Type() uint32 { return TypeProcessStateChanged }

// DeviceEvent reports virtual device setup, teardown and hotplug changes.
type DeviceEvent struct {
	Device    string `json:"device" example:"video" doc:"Device kind: video or audio"`
	Path      string `json:"path,omitempty" example:"/dev/video10" doc:"Device node or sink name"`
	Action    string `json:"action" example:"ready" doc:"Action: ready, removed, failed, added"`
	Message   string `json:"message,omitempty" doc:"Human readable detail"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceEvent.
func (e DeviceEvent) Type() uint32 { return TypeDevice }

// DownloadProgressEvent reports sample video download progress.
type DownloadProgressEvent struct {
	Source     string `json:"source" example:"Surfing HD" doc:"Library source name"`
	Downloaded int64  `json:"downloaded" doc:"Bytes written so far"`
	Total      int64  `json:"total" doc:"Content length, -1 when unknown"`
	Done       bool   `json:"done" doc:"Download finished"`
	Error      string `json:"error,omitempty" doc:"Failure, if any"`
}

// Type returns the event type identifier for DownloadProgressEvent.
func (e DownloadProgressEvent) Type() uint32 { return TypeDownloadProgress }

// MediaGeneratedEvent is published after an audio clip is synthesized.
type MediaGeneratedEvent struct {
	Source    string `json:"source" example:"Meeting Voice" doc:"Library source name"`
	Path      string `json:"path" doc:"Generated file"`
	Engine    string `json:"engine,omitempty" example:"espeak-ng" doc:"TTS engine used"`
	Error     string `json:"error,omitempty" doc:"Failure, if any"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for MediaGeneratedEvent.
func (e MediaGeneratedEvent) Type() uint32 { return TypeMediaGenerated }

// PreferencesChangedEvent is published when the preferences file is reloaded or saved.
type PreferencesChangedEvent struct {
	VideoSelection string `json:"video_selection"`
	AudioSelection string `json:"audio_selection"`
	VMMode         bool   `json:"vm_mode"`
}

// Type returns the event type identifier for PreferencesChangedEvent.
func (e PreferencesChangedEvent) Type() uint32 { return TypePreferencesChanged }

// PipelineMetricsEvent carries the latest ffmpeg progress of a pipeline.
type PipelineMetricsEvent struct {
	EventType       string `json:"type" example:"pipeline_metrics"`
	Name            string `json:"name" example:"video" doc:"Logical process name"`
	FPS             string `json:"fps" example:"30.00"`
	Speed           string `json:"speed" example:"1.00"`
	Frames          string `json:"frames" example:"1800"`
	DroppedFrames   string `json:"dropped_frames" example:"0"`
	DuplicateFrames string `json:"duplicate_frames" example:"0"`
}

// Type returns the event type identifier for PipelineMetricsEvent.
func (e PipelineMetricsEvent) Type() uint32 { return TypePipelineMetrics }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"video" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// Timestamp formats the current time the way every event carries it.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
