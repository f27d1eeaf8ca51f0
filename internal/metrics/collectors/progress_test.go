package collectors

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/fakecam/internal/metrics"
)

func startCollector(t *testing.T, name string) (*ProgressCollector, net.Conn) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "p.sock")
	metrics.DeletePipelineMetrics(name)

	collector := NewProgressCollector(socketPath, name)
	if err := collector.Start(t.Context()); err != nil {
		t.Fatalf("failed to start collector: %v", err)
	}
	t.Cleanup(func() { _ = collector.Stop() })

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("failed to connect to socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return collector, conn
}

// waitFor polls until cond holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestProgressCollectorParsing(t *testing.T) {
	name := "test-progress-video"
	_, conn := startCollector(t, name)

	block := `frame=1800
fps=29.97
stream_0_0_q=-0.0
bitrate=N/A
total_size=N/A
out_time_us=60000000
dup_frames=1
drop_frames=3
speed=1.25x
progress=continue
`
	if _, err := conn.Write([]byte(block)); err != nil {
		t.Fatalf("failed to write progress data: %v", err)
	}

	waitFor(t, func() bool {
		return metrics.GetPipelineMetrics(name) != nil && metrics.GetPipelineMetrics(name).Speed != 0
	})

	m := metrics.GetPipelineMetrics(name)
	want := metrics.PipelineMetrics{FPS: 29.97, Frames: 1800, DroppedFrames: 3, DuplicateFrames: 1, Speed: 1.25}
	if *m != want {
		t.Errorf("metrics = %+v, want %+v", *m, want)
	}
}

func TestProgressCollectorMultipleBlocks(t *testing.T) {
	name := "test-progress-multi"
	_, conn := startCollector(t, name)

	if _, err := conn.Write([]byte("fps=30\nprogress=continue\n")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { m := metrics.GetPipelineMetrics(name); return m != nil && m.FPS == 30 })

	if _, err := conn.Write([]byte("fps=15\nprogress=end\n")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { m := metrics.GetPipelineMetrics(name); return m != nil && m.FPS == 15 })
}

func TestProgressCollectorIgnoresGarbage(t *testing.T) {
	name := "test-progress-garbage"
	_, conn := startCollector(t, name)

	for _, line := range []string{
		"",
		"fps=invalid",
		"no_equals_sign",
		"  speed = 0.98x  ",
		"progress=continue",
	} {
		if _, err := fmt.Fprintln(conn, line); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, func() bool { return metrics.GetPipelineMetrics(name) != nil })
	m := metrics.GetPipelineMetrics(name)
	if m.FPS != 0 || m.Speed != 0.98 {
		t.Errorf("metrics = %+v", *m)
	}
}

func TestProgressCollectorStop(t *testing.T) {
	name := "test-progress-stop"
	collector, _ := startCollector(t, name)
	metrics.SetPipelineFPS(name, 30)

	if err := collector.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := collector.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if metrics.GetPipelineMetrics(name) != nil {
		t.Error("expected metrics to be deleted after stop")
	}
	if _, err := os.Stat(collector.SocketPath()); !os.IsNotExist(err) {
		t.Error("expected socket file to be removed")
	}
}

func TestProgressCollectorReplacesStaleSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "stale.sock")
	if err := os.WriteFile(socketPath, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	collector := NewProgressCollector(socketPath, "test-progress-stale")
	if err := collector.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer collector.Stop()

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("failed to connect after cleanup: %v", err)
	}
	conn.Close()
}

func TestProgressCollectorBadPath(t *testing.T) {
	collector := NewProgressCollector(filepath.Join(t.TempDir(), "missing", "dir", "p.sock"), "x")
	if err := collector.Start(t.Context()); err == nil {
		collector.Stop()
		t.Fatal("Start() succeeded on a missing directory")
	}
}
