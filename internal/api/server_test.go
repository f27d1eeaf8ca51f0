package api

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/fakecam/internal/audio"
	"github.com/smazurov/fakecam/internal/devices"
	"github.com/smazurov/fakecam/internal/events"
	"github.com/smazurov/fakecam/internal/prefs"
	"github.com/smazurov/fakecam/internal/process"
	"github.com/smazurov/fakecam/internal/video"
)

type fakeProcesses struct {
	mu       sync.Mutex
	rows     []process.Status
	stopped  int
	results  map[string]bool
	timeouts []time.Duration
}

func (f *fakeProcesses) Snapshot() []process.Status { return f.rows }

func (f *fakeProcesses) StopAll(timeout time.Duration) map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	f.timeouts = append(f.timeouts, timeout)
	return f.results
}

type fakeVideo struct {
	startErr error
	source   string
	vm       bool
	stopOK   bool
	stops    int
}

func (f *fakeVideo) Start(_ context.Context, source string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.source = source
	return nil
}
func (f *fakeVideo) Stop() bool {
	f.stops++
	return f.stopOK
}
func (f *fakeVideo) SetVMMode(_ context.Context, enabled bool) error {
	f.vm = enabled
	return nil
}
func (f *fakeVideo) Download(_ context.Context, source string) error {
	if source == "Missing" {
		return fmt.Errorf("%w: %q", video.ErrUnknownSource, source)
	}
	return nil
}
func (f *fakeVideo) Status() video.Status {
	return video.Status{
		Running: f.source != "",
		Source:  f.source,
		VMMode:  f.vm,
		Device:  "/dev/video10",
		Process: process.Status{Name: video.ProcessName, State: process.StateRunning, PID: 77},
	}
}

type fakeAudio struct {
	genErr  error
	cleared int
	engines []string
}

func (f *fakeAudio) Start(_ context.Context, _ string) error { return nil }
func (f *fakeAudio) Stop() bool                              { return true }
func (f *fakeAudio) Generate(_ context.Context, _ string) error {
	return f.genErr
}
func (f *fakeAudio) ClearCache() (int, error) { return f.cleared, nil }
func (f *fakeAudio) Engines() []string        { return f.engines }
func (f *fakeAudio) Status() audio.Status {
	return audio.Status{Sink: "fakemic", Process: process.Status{Name: audio.ProcessName, State: process.StateStopped}}
}

type fakeDevices struct {
	procs    *fakeProcesses
	tornDown bool
	// stopsBeforeTeardown records how many StopAll calls preceded TeardownAll
	stopsBeforeTeardown int
	stopsBeforeSetup    int
}

func (f *fakeDevices) SetupAll(_ context.Context) (bool, bool) {
	f.stopsBeforeSetup = f.procs.stopped
	return false, true
}
func (f *fakeDevices) TeardownAll(_ context.Context) bool {
	f.tornDown = true
	f.stopsBeforeTeardown = f.procs.stopped
	return true
}
func (f *fakeDevices) Status(_ context.Context) devices.Status {
	return devices.Status{VideoDevice: "/dev/video10", AudioSink: "fakemic"}
}

type fakePrefs struct {
	p prefs.Preferences
}

func (f *fakePrefs) Get() prefs.Preferences { return f.p }
func (f *fakePrefs) SetVideoSelection(name string) error {
	if name == "Nope" {
		return fmt.Errorf("%w: %q", prefs.ErrUnknownSelection, name)
	}
	f.p.VideoSelection = name
	return nil
}
func (f *fakePrefs) SetAudioSelection(name string) error {
	f.p.AudioSelection = name
	return nil
}
func (f *fakePrefs) SetVMMode(enabled bool) error {
	f.p.VMMode = enabled
	return nil
}

const testUser, testPass = "admin", "secret"

func basicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(testUser+":"+testPass))
}

func newTestServer(opts *Options) *Server {
	opts.AuthUsername = testUser
	opts.AuthPassword = testPass
	return NewServer(opts)
}

func doRequest(t *testing.T, s *Server, method, path string, body any, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", basicAuth())
	}
	rec := httptest.NewRecorder()
	s.GetMux().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthAndVersionNeedNoAuth(t *testing.T) {
	s := newTestServer(&Options{})

	for _, path := range []string{"/api/health", "/api/version"} {
		rec := doRequest(t, s, http.MethodGet, path, nil, false)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(&Options{Processes: &fakeProcesses{}})

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"valid header", basicAuth(), "", http.StatusOK},
		{"valid query", "", base64.StdEncoding.EncodeToString([]byte(testUser + ":" + testPass)), http.StatusOK},
		{"wrong password", "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:nope")), "", http.StatusUnauthorized},
		{"bearer", "Bearer token", "", http.StatusUnauthorized},
		{"garbage", "Basic !!!", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/api/processes"
			if tt.query != "" {
				path += "?auth=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.GetMux().ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestListProcesses(t *testing.T) {
	code := 1
	procs := &fakeProcesses{rows: []process.Status{
		{Name: "audio", State: process.StateError, PID: 12, Error: "exited during startup", ExitCode: &code},
		{Name: "video", State: process.StateRunning, PID: 34, Command: []string{"ffmpeg", "-i", "x"}, StartedAt: time.Now()},
	}}
	s := newTestServer(&Options{Processes: procs})

	rec := doRequest(t, s, http.MethodGet, "/api/processes", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	body := decode(t, rec)
	if body["running"] != float64(1) {
		t.Errorf("running = %v, want 1", body["running"])
	}
	rows := body["processes"].([]any)
	if len(rows) != 2 {
		t.Fatalf("processes = %v", rows)
	}
	audioRow := rows[0].(map[string]any)
	if audioRow["state"] != "error" || audioRow["exit_code"] != float64(1) {
		t.Errorf("audio row = %v", audioRow)
	}
	if _, ok := audioRow["started_at"]; ok {
		t.Error("started_at present for a process that never started")
	}
}

func TestStopAll(t *testing.T) {
	procs := &fakeProcesses{results: map[string]bool{"video": true, "audio": false}}
	s := newTestServer(&Options{Processes: procs, StopTimeout: 3 * time.Second})

	rec := doRequest(t, s, http.MethodPost, "/api/processes/stop-all", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	results := decode(t, rec)["results"].(map[string]any)
	if results["video"] != true || results["audio"] != false {
		t.Errorf("results = %v", results)
	}
	if len(procs.timeouts) != 1 || procs.timeouts[0] != 3*time.Second {
		t.Errorf("timeouts = %v", procs.timeouts)
	}
}

func TestVideoStartErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"unknown source", fmt.Errorf("%w: %q", video.ErrUnknownSource, "x"), http.StatusNotFound},
		{"already running", video.ErrAlreadyRunning, http.StatusConflict},
		{"start failed", fmt.Errorf("%w: %w", video.ErrStartFailed, errors.New("exit 1")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &fakeVideo{startErr: tt.err}
			s := newTestServer(&Options{Video: v})

			rec := doRequest(t, s, http.MethodPost, "/api/video/start", map[string]string{"source": "Test Pattern"}, true)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.err != nil {
				return
			}
			body := decode(t, rec)
			if body["source"] != "Test Pattern" || body["running"] != true {
				t.Errorf("body = %v", body)
			}
			proc := body["process"].(map[string]any)
			if proc["name"] != "video" || proc["pid"] != float64(77) {
				t.Errorf("process = %v", proc)
			}
		})
	}
}

func TestVideoStartRejectsEmptySource(t *testing.T) {
	s := newTestServer(&Options{Video: &fakeVideo{}})
	rec := doRequest(t, s, http.MethodPost, "/api/video/start", map[string]string{"source": ""}, true)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestVideoStopUnconfirmed(t *testing.T) {
	s := newTestServer(&Options{Video: &fakeVideo{stopOK: false}})
	rec := doRequest(t, s, http.MethodPost, "/api/video/stop", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode(t, rec); body["stopped"] != false {
		t.Errorf("body = %v", body)
	}
}

func TestVMModeSavesPreference(t *testing.T) {
	v := &fakeVideo{}
	p := &fakePrefs{}
	s := newTestServer(&Options{Video: v, Prefs: p})

	rec := doRequest(t, s, http.MethodPut, "/api/video/vm-mode", map[string]bool{"enabled": true}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !v.vm || !p.p.VMMode {
		t.Errorf("vm = %v, pref = %v", v.vm, p.p.VMMode)
	}
}

func TestVideoDownloadUnknown(t *testing.T) {
	s := newTestServer(&Options{Video: &fakeVideo{}})
	rec := doRequest(t, s, http.MethodPost, "/api/video/download", map[string]string{"source": "Missing"}, true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestAudioRoutes(t *testing.T) {
	a := &fakeAudio{cleared: 3, genErr: fmt.Errorf("%w: %q", audio.ErrUnknownSource, "x")}
	s := newTestServer(&Options{Audio: a})

	rec := doRequest(t, s, http.MethodDelete, "/api/audio/cache", nil, true)
	if rec.Code != http.StatusOK || decode(t, rec)["deleted"] != float64(3) {
		t.Errorf("clear cache = %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodPost, "/api/audio/generate", map[string]string{"source": "x"}, true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("generate unknown = %d, want 404", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/tts/engines", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("engines = %d", rec.Code)
	}
	if engines := decode(t, rec)["engines"].([]any); len(engines) != 0 {
		t.Errorf("engines = %v, want empty list", engines)
	}
}

func TestDeviceTeardownStopsPipelinesFirst(t *testing.T) {
	procs := &fakeProcesses{results: map[string]bool{}}
	d := &fakeDevices{procs: procs}
	s := newTestServer(&Options{Processes: procs, Devices: d})

	rec := doRequest(t, s, http.MethodPost, "/api/devices/teardown", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !d.tornDown || d.stopsBeforeTeardown != 1 {
		t.Errorf("tornDown = %v, stops before = %d", d.tornDown, d.stopsBeforeTeardown)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/devices/setup", nil, true)
	body := decode(t, rec)
	if body["video"] != false || body["audio"] != true {
		t.Errorf("setup = %v", body)
	}
}

func TestDeviceSetupStopsPipelinesFirst(t *testing.T) {
	procs := &fakeProcesses{results: map[string]bool{}}
	d := &fakeDevices{procs: procs}
	v := &fakeVideo{}
	s := newTestServer(&Options{Processes: procs, Devices: d, Video: v, StopTimeout: 3 * time.Second})

	rec := doRequest(t, s, http.MethodPost, "/api/devices/setup", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if d.stopsBeforeSetup != 1 {
		t.Errorf("StopAll calls before SetupAll = %d, want 1", d.stopsBeforeSetup)
	}
	if v.stops != 1 {
		t.Errorf("video Stop calls = %d, want 1", v.stops)
	}
	if len(procs.timeouts) != 1 || procs.timeouts[0] != 3*time.Second {
		t.Errorf("StopAll timeouts = %v", procs.timeouts)
	}
}

func TestPrefsUpdate(t *testing.T) {
	p := &fakePrefs{p: prefs.Preferences{VideoSelection: "Test Pattern", AudioSelection: "Silence"}}
	s := newTestServer(&Options{Prefs: p})

	rec := doRequest(t, s, http.MethodPut, "/api/prefs", map[string]any{"audio_selection": "Beep Tone"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["audio_selection"] != "Beep Tone" || body["video_selection"] != "Test Pattern" {
		t.Errorf("prefs = %v", body)
	}

	rec = doRequest(t, s, http.MethodPut, "/api/prefs", map[string]any{"video_selection": "Nope"}, true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown selection = %d, want 404", rec.Code)
	}
}

func TestLibrary(t *testing.T) {
	s := newTestServer(&Options{})
	rec := doRequest(t, s, http.MethodGet, "/api/library", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if len(body["videos"].([]any)) == 0 || len(body["audios"].([]any)) == 0 {
		t.Errorf("library = %v", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(&Options{})
	req := httptest.NewRequest(http.MethodOptions, "/api/video/start", nil)
	rec := httptest.NewRecorder()
	s.GetMux().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("headers = %v", rec.Header())
	}
}

func TestPrometheusHandlerMounted(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "fakecam_process_state 1\n")
	})
	s := newTestServer(&Options{PrometheusHandler: handler})

	rec := doRequest(t, s, http.MethodGet, "/metrics", nil, false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "fakecam_process_state") {
		t.Errorf("GET /metrics = %d %q", rec.Code, rec.Body.String())
	}
}

func TestSSEForwardsEvents(t *testing.T) {
	bus := events.New()
	s := newTestServer(&Options{EventBus: bus})

	ts := httptest.NewServer(s.GetMux())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", basicAuth())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data:") {
				lines <- line
			}
		}
		close(lines)
	}()

	next := func() string {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed")
			}
			return line
		case <-ctx.Done():
			t.Fatal("timeout waiting for SSE data")
		}
		return ""
	}

	if first := next(); !strings.Contains(first, "SSE connection established") {
		t.Fatalf("first message = %q", first)
	}

	// Subscriptions exist once the greeting was sent
	bus.Publish(events.DeviceEvent{Device: "video", Path: "/dev/video10", Action: "removed", Timestamp: events.Timestamp()})

	if got := next(); !strings.Contains(got, `"action":"removed"`) {
		t.Errorf("event = %q", got)
	}
}

func TestStopBeforeStart(t *testing.T) {
	s := newTestServer(&Options{})
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Start("127.0.0.1:0") }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() after Stop() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		_ = s.Stop()
		t.Fatal("Start() served after Stop()")
	}
}
