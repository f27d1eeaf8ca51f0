package devices

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/fakecam/internal/command"
	"github.com/smazurov/fakecam/internal/config"
	"github.com/smazurov/fakecam/internal/logging"
	"github.com/smazurov/fakecam/pkg/linuxav/v4l2"
)

const (
	loopbackModule = "v4l2loopback"
	devicePoll     = 100 * time.Millisecond
)

// VideoDevice manages the v4l2loopback node that browsers see as a camera.
type VideoDevice struct {
	runner   command.Runner
	settings config.Settings
	logger   *slog.Logger

	modulesFile string
	deviceWait  time.Duration
	isDevice    func(string) bool
	query       func(string) (v4l2.Capability, error)

	mu    sync.Mutex
	mode  config.VideoMode
	ready bool
}

// NewVideoDevice returns a VideoDevice for settings.VideoDevice.
func NewVideoDevice(runner command.Runner, settings config.Settings) *VideoDevice {
	return &VideoDevice{
		runner:      runner,
		settings:    settings,
		logger:      logging.GetLogger("devices"),
		modulesFile: "/proc/modules",
		deviceWait:  2 * time.Second,
		isDevice:    v4l2.IsCharDevice,
		query:       v4l2.QueryCapability,
		mode:        settings.Mode(false),
	}
}

// Path returns the device node.
func (d *VideoDevice) Path() string { return d.settings.VideoDevice }

// SetMode sets the format written by InitFormat.
func (d *VideoDevice) SetMode(mode config.VideoMode) {
	d.mu.Lock()
	d.mode = mode
	d.mu.Unlock()
}

// Available reports whether the device node exists as a character device.
func (d *VideoDevice) Available() bool {
	return d.isDevice(d.settings.VideoDevice)
}

// Capability queries the node. It fails when the node is missing or not
// accessible to the current user.
func (d *VideoDevice) Capability() (v4l2.Capability, error) {
	return d.query(d.settings.VideoDevice)
}

// IsSetup reports whether Setup completed and Teardown has not run since.
func (d *VideoDevice) IsSetup() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

// ModuleLoaded reports whether v4l2loopback is listed in /proc/modules.
func (d *VideoDevice) ModuleLoaded() bool {
	f, err := os.Open(d.modulesFile)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name, _, _ := strings.Cut(scanner.Text(), " ")
		if name == loopbackModule {
			return true
		}
	}
	return false
}

// killPatterns match ffmpeg writers left over from earlier runs.
func (d *VideoDevice) killPatterns() []string {
	return []string{
		"ffmpeg.*" + d.settings.VideoDevice,
		fmt.Sprintf("ffmpeg.*video%d", d.settings.VideoNr),
		"ffmpeg.*" + d.settings.VideoCardLabel,
	}
}

// Cleanup stops stale writers and unloads the module. A module that is
// still in use after the configured retries yields ErrModuleBusy.
func (d *VideoDevice) Cleanup(ctx context.Context) error {
	delay := d.settings.CleanupDelay
	for _, pattern := range d.killPatterns() {
		if _, err := KillByPattern(ctx, d.runner, pattern, delay); err != nil {
			d.logger.Warn("Failed to stop leftover writers", "pattern", pattern, "error", err)
		}
	}
	if err := sleep(ctx, delay); err != nil {
		return err
	}

	if !d.ModuleLoaded() {
		return nil
	}

	retries := max(d.settings.CleanupRetries, 1)
	for attempt := 1; attempt <= retries; attempt++ {
		res, err := d.runner.Run(ctx, command.Privileged(d.runner, command.Cmd{
			Name:    "modprobe",
			Args:    []string{"-r", loopbackModule},
			Timeout: d.settings.CommandTimeout,
		}))
		if err == nil {
			d.logger.Info("Unloaded v4l2loopback", "attempt", attempt)
			return nil
		}
		if !strings.Contains(res.Stderr, "in use") {
			return fmt.Errorf("unload %s: %w", loopbackModule, err)
		}

		d.logger.Warn("v4l2loopback in use, killing holders", "attempt", attempt, "retries", retries)
		pattern := fmt.Sprintf("ffmpeg.*video%d", d.settings.VideoNr)
		_, _ = d.runner.Run(ctx, command.Privileged(d.runner, command.Cmd{Name: "pkill", Args: []string{"-9", "-f", pattern}}))
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	if d.ModuleLoaded() {
		return ErrModuleBusy
	}
	return nil
}

// Load inserts v4l2loopback with the configured parameters and waits for
// the node to appear.
func (d *VideoDevice) Load(ctx context.Context) error {
	s := d.settings
	exclusive := "0"
	if s.VideoExclusiveCaps {
		exclusive = "1"
	}
	_, err := d.runner.Run(ctx, command.Privileged(d.runner, command.Cmd{
		Name: "modprobe",
		Args: []string{
			loopbackModule,
			"devices=1",
			"video_nr=" + strconv.Itoa(s.VideoNr),
			"card_label=" + s.VideoCardLabel,
			"exclusive_caps=" + exclusive,
			"max_buffers=" + strconv.Itoa(s.VideoMaxBuffers),
		},
		Timeout: s.CommandTimeout,
	}))
	if err != nil {
		return fmt.Errorf("load %s: %w", loopbackModule, err)
	}

	if err := sleep(ctx, s.ModuleReloadDelay); err != nil {
		return err
	}

	deadline := time.Now().Add(d.deviceWait)
	for !d.Available() {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrDeviceMissing, s.VideoDevice)
		}
		if err := sleep(ctx, devicePoll); err != nil {
			return err
		}
	}

	d.logger.Info("v4l2loopback loaded", "device", s.VideoDevice, "label", s.VideoCardLabel)
	return nil
}

// SetPermissions makes the node writable for the unprivileged ffmpeg.
func (d *VideoDevice) SetPermissions(ctx context.Context) error {
	_, err := d.runner.Run(ctx, command.Privileged(d.runner, command.Cmd{
		Name:    "chmod",
		Args:    []string{"666", d.settings.VideoDevice},
		Timeout: d.settings.CommandTimeout,
	}))
	if err != nil {
		return fmt.Errorf("chmod %s: %w", d.settings.VideoDevice, err)
	}
	return nil
}

// InitFormat announces the output format with v4l2-ctl so consumers see a
// sensible mode before the first frame arrives. It is a no-op when v4l2-ctl
// is not installed.
func (d *VideoDevice) InitFormat(ctx context.Context) error {
	if !command.Available(d.runner, "v4l2-ctl") {
		d.logger.Debug("v4l2-ctl not installed, skipping format init")
		return nil
	}

	d.mu.Lock()
	mode := d.mode
	d.mu.Unlock()

	fmtArg := fmt.Sprintf("--set-fmt-video=width=%d,height=%d,pixelformat=%s",
		mode.Width, mode.Height, PixelFourCC(d.settings.PixelFormat))
	_, err := d.runner.Run(ctx, command.Cmd{
		Name:    "v4l2-ctl",
		Args:    []string{"-d", d.settings.VideoDevice, fmtArg},
		Timeout: d.settings.CommandTimeout,
	})
	if err != nil {
		return fmt.Errorf("set format: %w", err)
	}
	return nil
}

// Setup recreates the loopback device from scratch.
func (d *VideoDevice) Setup(ctx context.Context) error {
	if err := d.Cleanup(ctx); err != nil {
		d.logger.Warn("Video cleanup incomplete", "error", err)
	}
	if err := d.Load(ctx); err != nil {
		return err
	}
	if err := d.SetPermissions(ctx); err != nil {
		d.logger.Warn("Could not open device permissions", "error", err)
	}
	if err := d.InitFormat(ctx); err != nil {
		d.logger.Warn("Format init failed", "error", err)
	}

	if c, err := d.Capability(); err == nil && !c.IsLoopback() {
		d.logger.Warn("Device is not a v4l2loopback node", "device", d.settings.VideoDevice, "driver", c.Driver)
	}

	d.mu.Lock()
	d.ready = true
	d.mu.Unlock()
	return nil
}

// Teardown stops writers and unloads the module.
func (d *VideoDevice) Teardown(ctx context.Context) error {
	d.mu.Lock()
	d.ready = false
	d.mu.Unlock()
	return d.Cleanup(ctx)
}

// PixelFourCC maps an ffmpeg pixel format name to the V4L2 four character
// code v4l2-ctl expects.
func PixelFourCC(pixFmt string) string {
	switch strings.ToLower(pixFmt) {
	case "yuyv422", "yuyv":
		return "YUYV"
	case "yuv420p", "yu12":
		return "YU12"
	case "nv12":
		return "NV12"
	case "mjpeg", "mjpg":
		return "MJPG"
	}
	up := strings.ToUpper(pixFmt)
	if len(up) > 4 {
		up = up[:4]
	}
	return up
}
