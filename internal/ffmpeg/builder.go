package ffmpeg

import (
	"fmt"
	"strconv"
)

// Base returns the leading arguments shared by every pipeline. Level-tagged
// log lines are what ParseLogLevel understands.
func Base(binary string) []string {
	if binary == "" {
		binary = DefaultBinary
	}
	return []string{binary, "-hide_banner", "-nostdin", "-loglevel", "level+info"}
}

// pipelineBase is Base plus progress reporting to a unix socket when one
// is configured.
func pipelineBase(binary, progress string) []string {
	args := Base(binary)
	if progress != "" {
		args = append(args, "-progress", "unix://"+progress, "-stats_period", "1")
	}
	return args
}

// TestPatternArgs streams the testsrc2 pattern to the device.
func TestPatternArgs(p VideoParams) []string {
	args := pipelineBase(p.Binary, p.Progress)
	args = append(args, "-re", "-f", "lavfi", "-i", fmt.Sprintf("testsrc2=size=%dx%d:rate=%d", p.Width, p.Height, p.FPS))
	return appendV4L2Output(args, p)
}

// FallbackArgs streams a solid blue frame, used when a file source is unusable.
func FallbackArgs(p VideoParams) []string {
	args := pipelineBase(p.Binary, p.Progress)
	args = append(args, "-re", "-f", "lavfi", "-i", fmt.Sprintf("color=c=blue:s=%dx%d:r=%d", p.Width, p.Height, p.FPS))
	return appendV4L2Output(args, p)
}

// VideoFileArgs loops file forever, scaled to the output mode.
func VideoFileArgs(p VideoParams, file string) []string {
	args := pipelineBase(p.Binary, p.Progress)
	args = append(args,
		"-re", "-stream_loop", "-1", "-i", file,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d,fps=%d", p.Width, p.Height, p.FPS),
	)
	return appendV4L2Output(args, p)
}

func appendV4L2Output(args []string, p VideoParams) []string {
	pixFmt := p.PixelFormat
	if pixFmt == "" {
		pixFmt = "yuyv422"
	}
	args = append(args, "-pix_fmt", pixFmt, "-f", "v4l2", "-vcodec", "rawvideo")
	if p.LowLatency {
		args = append(args, LowLatencyFlags...)
	}
	return append(args, p.Device)
}

// AudioStreamArgs loops file forever into the sink.
func AudioStreamArgs(p AudioParams, file string) []string {
	args := pipelineBase(p.Binary, p.Progress)
	return append(args,
		"-re", "-stream_loop", "-1", "-i", file,
		"-vn",
		"-af", "volume="+strconv.FormatFloat(p.Volume, 'f', -1, 64),
		"-f", "pulse", "-device", p.Sink,
		"fakecam",
	)
}

// ToneArgs renders a sine tone to out.
func ToneArgs(binary string, t ToneParams, out string) []string {
	args := Base(binary)
	return append(args,
		"-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=%d:duration=%d", t.Frequency, t.Duration),
		"-af", "volume="+strconv.FormatFloat(t.Amplitude, 'f', -1, 64)+",volume=6dB",
		"-y", out,
	)
}

// EnhanceArgs applies EnhanceFilter to in and writes out.
func EnhanceArgs(binary, in, out string) []string {
	args := Base(binary)
	return append(args, "-i", in, "-af", EnhanceFilter, "-y", out)
}
