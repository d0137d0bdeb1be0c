package api

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/framescale/internal/api/models"
	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/logging"
	"github.com/smazurov/framescale/internal/pipeline"
	"github.com/smazurov/framescale/internal/process"
)

type fakeController struct {
	mu     sync.Mutex
	paused bool
	calls  int
}

func (f *fakeController) Status() pipeline.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return pipeline.Status{
		Input:     "in.mp4",
		Output:    "out.mp4",
		Algorithm: "waifu2x",
		Width:     3840,
		Height:    2160,
		Total:     100,
		Processed: 10,
		Paused:    f.paused,
		Running:   true,
		Stages: map[string]process.State{
			pipeline.StageDecoder: process.StateRunning,
		},
	}
}

func (f *fakeController) SetPaused(paused bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	changed := f.paused != paused
	f.paused = paused
	return changed
}

func newTestServer(t *testing.T, ctrl Controller, bus *events.Bus) *httptest.Server {
	t.Helper()
	server := NewServer(&Options{
		AuthUsername: "test",
		AuthPassword: "test",
		Controller:   ctrl,
		EventBus:     bus,
	})
	ts := httptest.NewServer(server.mux)
	t.Cleanup(ts.Close)
	return ts
}

func authRequest(t *testing.T, method, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.SetBasicAuth("test", "test")
	return req
}

func TestHealthRequiresNoAuth(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, events.New())

	for _, path := range []string{"/api/health", "/api/version"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected status 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestStatusAuth(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, events.New())

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"no credentials", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong password", func(r *http.Request) { r.SetBasicAuth("test", "nope") }, http.StatusUnauthorized},
		{"bearer token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer x") }, http.StatusUnauthorized},
		{"malformed basic", func(r *http.Request) { r.Header.Set("Authorization", "Basic !!!") }, http.StatusUnauthorized},
		{"basic auth", func(r *http.Request) { r.SetBasicAuth("test", "test") }, http.StatusOK},
		{"query auth", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("auth", base64.StdEncoding.EncodeToString([]byte("test:test")))
			r.URL.RawQuery = q.Encode()
		}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
			tt.setup(req)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestPreflight(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, events.New())

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/pause", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Errorf("Unexpected allowed methods %q", got)
	}
}

func TestStatusBody(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, events.New())

	resp, err := http.DefaultClient.Do(authRequest(t, http.MethodGet, ts.URL+"/api/status"))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var status pipeline.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if status.Input != "in.mp4" || status.Processed != 10 || status.Total != 100 {
		t.Errorf("Unexpected status: %+v", status)
	}
	if status.Stages[pipeline.StageDecoder] != process.StateRunning {
		t.Errorf("Expected decoder running, got %q", status.Stages[pipeline.StageDecoder])
	}
}

func TestStatusWithoutController(t *testing.T) {
	ts := newTestServer(t, nil, events.New())

	resp, err := http.DefaultClient.Do(authRequest(t, http.MethodGet, ts.URL+"/api/status"))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}
}

func TestPauseResume(t *testing.T) {
	ctrl := &fakeController{}
	ts := newTestServer(t, ctrl, events.New())

	steps := []struct {
		path    string
		paused  bool
		changed bool
	}{
		{"/api/pause", true, true},
		{"/api/pause", true, false},
		{"/api/resume", false, true},
		{"/api/resume", false, false},
	}
	for _, step := range steps {
		resp, err := http.DefaultClient.Do(authRequest(t, http.MethodPost, ts.URL+step.path))
		if err != nil {
			t.Fatalf("POST %s: %v", step.path, err)
		}
		var body models.PauseData
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("POST %s: decode: %v", step.path, err)
		}
		if body.Paused != step.paused || body.Changed != step.changed {
			t.Errorf("POST %s: got %+v, want paused=%v changed=%v", step.path, body, step.paused, step.changed)
		}
	}
	if ctrl.calls != len(steps) {
		t.Errorf("Expected %d controller calls, got %d", len(steps), ctrl.calls)
	}
}

func TestLogsSnapshot(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, events.New())

	resp, err := http.DefaultClient.Do(authRequest(t, http.MethodGet, ts.URL+"/api/logs?lines=5"))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var body models.LogsData
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode logs: %v", err)
	}
	if body.Count > 5 || body.Count != len(body.Lines) {
		t.Errorf("Unexpected log snapshot: count=%d lines=%d", body.Count, len(body.Lines))
	}
}

func TestLogsModuleFilter(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, events.New())
	logging.GetLogger("encoder").Info("Encoder filter probe", "frame", 3)
	logging.GetLogger("decoder").Info("Decoder filter probe")

	resp, err := http.DefaultClient.Do(authRequest(t, http.MethodGet, ts.URL+"/api/logs?module=encoder"))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var body models.LogsData
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode logs: %v", err)
	}
	found := false
	for _, entry := range body.Entries {
		if entry.Module != "encoder" {
			t.Errorf("Unexpected module %q in filtered logs", entry.Module)
		}
		if entry.Message == "Encoder filter probe" {
			found = true
		}
	}
	if !found {
		t.Error("Expected the encoder entry in filtered logs")
	}
}

func TestSSEConnectionAndEvents(t *testing.T) {
	bus := events.New()
	ts := newTestServer(t, &fakeController{paused: true}, bus)

	credentials := base64.StdEncoding.EncodeToString([]byte("test:test"))
	resp, err := http.Get(fmt.Sprintf("%s/api/events?auth=%s", ts.URL, credentials))
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("Expected SSE content type, got %s", resp.Header.Get("Content-Type"))
	}

	messageChan := make(chan string, 10)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data:") {
				messageChan <- line
			}
		}
	}()

	select {
	case msg := <-messageChan:
		if !strings.Contains(msg, `"paused":true`) {
			t.Errorf("Expected initial pause state, got: %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for initial SSE message")
	}

	bus.Publish(events.FrameEncodedEvent{Index: 41, Processed: 42, Total: 100})

	select {
	case msg := <-messageChan:
		if !strings.Contains(msg, `"index":41`) || !strings.Contains(msg, `"processed":42`) {
			t.Errorf("Expected frame event, got: %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for frame event")
	}
}

func TestLogPublisherSequence(t *testing.T) {
	bus := events.New()
	ch := make(chan any, 4)
	unsub := events.SubscribeToChannel[events.LogEntryEvent](bus, ch)
	defer unsub()

	publish := LogPublisher(bus)
	publish(logging.Entry{Time: time.Now(), Level: "info", Module: "encoder", Message: "first"})
	publish(logging.Entry{Time: time.Now(), Level: "warn", Module: "decoder", Message: "second"})

	seen := map[string]uint64{}
	for range 2 {
		select {
		case ev := <-ch:
			entry := ev.(events.LogEntryEvent)
			seen[entry.Message] = entry.Seq
		case <-time.After(time.Second):
			t.Fatal("Timeout waiting for log event")
		}
	}
	if seen["first"] != 1 || seen["second"] != 2 {
		t.Errorf("Unexpected sequence numbers: %v", seen)
	}
}
