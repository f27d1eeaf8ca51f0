package cmd

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/fakecam/internal/api/models"
	"github.com/smazurov/fakecam/internal/events"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"127.0.0.1:8091", "http://127.0.0.1:8091"},
		{"http://host:1/", "http://host:1"},
		{"https://host", "https://host"},
	}
	for _, tt := range tests {
		if got := baseURL(tt.addr); got != tt.want {
			t.Errorf("baseURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestGetJSONSendsBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:secret"))
		if r.Header.Get("Authorization") != want {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"processes":[{"name":"video","state":"running","pid":42}],"running":1}`))
	}))
	defer srv.Close()

	var list models.ProcessListData
	if err := getJSON(context.Background(), srv.URL, "admin", "secret", &list); err != nil {
		t.Fatalf("getJSON: %v", err)
	}
	if list.Running != 1 || len(list.Processes) != 1 || list.Processes[0].PID != 42 {
		t.Errorf("unexpected list %+v", list)
	}

	if err := getJSON(context.Background(), srv.URL, "admin", "wrong", &list); err == nil {
		t.Error("expected error for bad credentials")
	}
}

func TestWriteProcesses(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	started := now.Add(-90 * time.Second)

	var buf bytes.Buffer
	writeProcesses(&buf, models.ProcessListData{
		Processes: []models.ProcessData{
			{Name: "audio", State: "error", Error: "exited with code 1"},
			{Name: "video", State: "running", PID: 7, StartedAt: &started},
		},
		Running: 1,
	}, now)

	out := buf.String()
	for _, want := range []string{"1m30s", "exited with code 1", "1 running"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := progressPrinter{w: &buf}

	p.Publish(events.DownloadProgressEvent{Source: "Surfing HD", Downloaded: 50, Total: 200})
	p.Publish(events.DownloadProgressEvent{Source: "Surfing HD", Done: true})
	p.Publish(events.DeviceEvent{})

	out := buf.String()
	if !strings.Contains(out, " 25%") || !strings.Contains(out, "done") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestWriteLibrary(t *testing.T) {
	var buf bytes.Buffer
	writeLibrary(&buf)
	if !strings.Contains(buf.String(), "VIDEO") || !strings.Contains(buf.String(), "AUDIO") {
		t.Errorf("library listing missing headers:\n%s", buf.String())
	}
}
