// Package collectors feeds pipeline metrics from ffmpeg's -progress output.
package collectors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/fakecam/internal/logging"
	"github.com/smazurov/fakecam/internal/metrics"
)

// ProgressCollector listens on a unix socket that ffmpeg connects to with
// "-progress unix://<path>". Each pipeline restart opens a new connection.
type ProgressCollector struct {
	logger     *slog.Logger
	socketPath string
	name       string
	listener   net.Listener
	ctx        context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewProgressCollector creates a collector for the pipeline registered as
// name.
func NewProgressCollector(socketPath, name string) *ProgressCollector {
	return &ProgressCollector{
		logger:     logging.GetLogger("metrics").With("process", name),
		socketPath: socketPath,
		name:       name,
	}
}

// SocketPath returns the socket ffmpeg should report to.
func (f *ProgressCollector) SocketPath() string { return f.socketPath }

// Start creates the socket and begins accepting connections.
func (f *ProgressCollector) Start(ctx context.Context) error {
	if err := os.Remove(f.socketPath); err != nil && !os.IsNotExist(err) {
		f.logger.Warn("Failed to clean up old socket file", "error", err)
	}

	listener, err := net.Listen("unix", f.socketPath)
	if err != nil {
		return fmt.Errorf("listen on progress socket: %w", err)
	}
	f.listener = listener
	f.ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go f.acceptLoop()
	f.logger.Debug("Progress socket ready", "socket", f.socketPath)
	return nil
}

// Stop closes the socket and forgets the pipeline's metrics.
func (f *ProgressCollector) Stop() error {
	var stopErr error
	f.stopOnce.Do(func() {
		if f.cancel != nil {
			f.cancel()
		}
		if f.listener != nil {
			stopErr = f.listener.Close()
		}
		f.wg.Wait()
		if err := os.Remove(f.socketPath); err != nil && !os.IsNotExist(err) && stopErr == nil {
			stopErr = err
		}
		metrics.DeletePipelineMetrics(f.name)
	})
	return stopErr
}

func (f *ProgressCollector) acceptLoop() {
	defer f.wg.Done()

	for {
		if ul, ok := f.listener.(*net.UnixListener); ok {
			_ = ul.SetDeadline(time.Now().Add(time.Second))
		}

		conn, err := f.listener.Accept()
		if err != nil {
			if f.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			f.logger.Warn("Error accepting connection", "error", err)
			continue
		}

		f.wg.Add(1)
		go f.handleConnection(conn)
	}
}

func (f *ProgressCollector) handleConnection(conn net.Conn) {
	defer f.wg.Done()
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-f.ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(conn)
	block := make(map[string]string)

	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		block[key] = value

		// progress=continue|end closes each block
		if key == "progress" {
			f.record(block)
			block = make(map[string]string)
		}
	}
}

func (f *ProgressCollector) record(data map[string]string) {
	if fps, err := strconv.ParseFloat(data["fps"], 64); err == nil {
		metrics.SetPipelineFPS(f.name, fps)
	}
	if frames, err := strconv.ParseFloat(data["frame"], 64); err == nil {
		metrics.SetPipelineFrames(f.name, frames)
	}
	if dropped, err := strconv.ParseFloat(data["drop_frames"], 64); err == nil {
		metrics.SetPipelineDroppedFrames(f.name, dropped)
	}
	if dup, err := strconv.ParseFloat(data["dup_frames"], 64); err == nil {
		metrics.SetPipelineDuplicateFrames(f.name, dup)
	}
	speed := strings.TrimSpace(strings.TrimSuffix(data["speed"], "x"))
	if v, err := strconv.ParseFloat(speed, 64); err == nil {
		metrics.SetPipelineSpeed(f.name, v)
	}
}
