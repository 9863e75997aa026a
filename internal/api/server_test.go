package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/smazurov/tracknode/internal/config"
	"github.com/smazurov/tracknode/internal/devices"
	"github.com/smazurov/tracknode/internal/engine"
	"github.com/smazurov/tracknode/internal/pipeline"
	"github.com/smazurov/tracknode/internal/stage"
)

type fakePipeline struct {
	mu      sync.Mutex
	state   pipeline.State
	stages  []stage.Stage
	toggled []string
	stopped int
}

func (p *fakePipeline) State() pipeline.State { return p.state }

func (p *fakePipeline) Stages() []stage.Stage { return p.stages }

func (p *fakePipeline) Toggle(name string, flag stage.Flag) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != pipeline.StateRunning {
		return false, pipeline.ErrNotRunning
	}
	for _, st := range p.stages {
		if st.Name() == name {
			p.toggled = append(p.toggled, name+":"+flag.String())
			return st.Toggle(flag, true), nil
		}
	}
	return false, pipeline.ErrUnknownStage
}

func (p *fakePipeline) Stop() {
	p.mu.Lock()
	p.stopped++
	p.mu.Unlock()
}

type fakeWebRTC struct {
	offer string
	err   error
}

func (w *fakeWebRTC) Answer(_ context.Context, offer string) (string, error) {
	w.offer = offer
	if w.err != nil {
		return "", w.err
	}
	return "v=0\r\nanswer", nil
}

func (w *fakeWebRTC) PeerCount() int { return 2 }

type fakeDetector struct{}

func (fakeDetector) FindDevices() ([]devices.DeviceInfo, error) {
	return []devices.DeviceInfo{{DevicePath: "/dev/video0", DeviceName: "PS3 Eye"}}, nil
}

func newTestServer(t *testing.T, opts *Options) (*httptest.Server, *fakePipeline) {
	t.Helper()
	p := &fakePipeline{
		state:  pipeline.StateRunning,
		stages: []stage.Stage{stage.NewEqualizer(), stage.NewThresholder(32, 10, 1), stage.NewCalibrator(config.NoPath)},
	}
	if opts == nil {
		opts = &Options{}
	}
	opts.Pipeline = p
	if opts.Detector == nil {
		opts.Detector = fakeDetector{}
	}
	server := NewServer(opts)
	ts := httptest.NewServer(server.GetMux())
	t.Cleanup(ts.Close)
	return ts, p
}

func do(t *testing.T, method, url, contentType, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestGetPipeline(t *testing.T) {
	ts, _ := newTestServer(t, &Options{WebRTC: &fakeWebRTC{}})

	resp, body := do(t, http.MethodGet, ts.URL+"/api/pipeline", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}

	var got struct {
		State  string `json:"state"`
		Peers  int    `json:"peers"`
		Stages []struct {
			Name        string   `json:"name"`
			Flags       []string `json:"flags"`
			PostProcess bool     `json:"post_process"`
		} `json:"stages"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got.State != "running" || got.Peers != 2 || len(got.Stages) != 3 {
		t.Fatalf("pipeline = %+v", got)
	}
	if got.Stages[1].Name != "thresholder" || len(got.Stages[1].Flags) != 4 {
		t.Errorf("thresholder = %+v", got.Stages[1])
	}
	if !got.Stages[2].PostProcess {
		t.Error("calibrator should report post_process")
	}
}

func TestToggleStage(t *testing.T) {
	ts, p := newTestServer(t, nil)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"accepted", "/api/stages/equalizer/toggle", `{"flag":" "}`, http.StatusOK},
		{"unknown stage", "/api/stages/finder/toggle", `{"flag":"f"}`, http.StatusNotFound},
		{"empty flag", "/api/stages/equalizer/toggle", `{"flag":""}`, http.StatusUnprocessableEntity},
		{"multibyte flag", "/api/stages/equalizer/toggle", `{"flag":"é"}`, http.StatusUnprocessableEntity},
		{"control flag", "/api/stages/equalizer/toggle", `{"flag":"\u0007"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, ts.URL+tt.path, "application/json", tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d, body = %s", resp.StatusCode, tt.status, body)
			}
		})
	}

	if len(p.toggled) != 1 || p.toggled[0] != "equalizer: " {
		t.Errorf("toggled = %q", p.toggled)
	}

	p.state = pipeline.StateStopping
	resp, _ := do(t, http.MethodPost, ts.URL+"/api/stages/equalizer/toggle", "application/json", `{"flag":" "}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("toggle while stopping status = %d, want 409", resp.StatusCode)
	}
}

func TestStop(t *testing.T) {
	ts, p := newTestServer(t, nil)
	resp, body := do(t, http.MethodPost, ts.URL+"/api/stop", "", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if p.stopped != 1 {
		t.Errorf("Stop called %d times", p.stopped)
	}
}

func TestDisplay(t *testing.T) {
	display := &engine.Display{}
	display.SetDisplayMode(config.DisplayDest)
	ts, _ := newTestServer(t, &Options{Display: display})

	resp, body := do(t, http.MethodGet, ts.URL+"/api/display", "", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"mode":"dest"`) {
		t.Fatalf("GET display = %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodPut, ts.URL+"/api/display", "application/json", `{"mode":"src"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT display = %d %s", resp.StatusCode, body)
	}
	if display.DisplayMode() != config.DisplaySource {
		t.Errorf("DisplayMode() = %v, want src", display.DisplayMode())
	}

	resp, _ = do(t, http.MethodPut, ts.URL+"/api/display", "application/json", `{"mode":"full"}`)
	if resp.StatusCode < 400 || resp.StatusCode >= 500 {
		t.Errorf("invalid mode status = %d", resp.StatusCode)
	}
}

func TestDisplayHeadless(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp, _ := do(t, http.MethodGet, ts.URL+"/api/display", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestWebRTCOffer(t *testing.T) {
	rtc := &fakeWebRTC{}
	ts, _ := newTestServer(t, &Options{WebRTC: rtc})

	resp, body := do(t, http.MethodPost, ts.URL+"/api/webrtc", "application/sdp", "v=0\r\noffer")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if resp.Header.Get("Content-Type") != "application/sdp" || string(body) != "v=0\r\nanswer" {
		t.Errorf("answer = %q (%s)", body, resp.Header.Get("Content-Type"))
	}
	if rtc.offer != "v=0\r\noffer" {
		t.Errorf("offer forwarded = %q", rtc.offer)
	}

	rtc.err = errors.New("bad sdp")
	resp, _ = do(t, http.MethodPost, ts.URL+"/api/webrtc", "application/sdp", "garbage")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("failed negotiation status = %d", resp.StatusCode)
	}
}

func TestWebRTCDisabled(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp, _ := do(t, http.MethodPost, ts.URL+"/api/webrtc", "application/sdp", "v=0")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestDevicesAndOptions(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/devices", "", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "PS3 Eye") {
		t.Errorf("devices = %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/api/options", "", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "low_latency") {
		t.Errorf("options = %d %s", resp.StatusCode, body)
	}
}

func TestVersionAndMetricsSkipAuth(t *testing.T) {
	ts, _ := newTestServer(t, &Options{AuthUsername: "admin", AuthPassword: "secret"})

	for _, path := range []string{"/api/version", "/api/health", "/metrics"} {
		resp, _ := do(t, http.MethodGet, ts.URL+path, "", "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d", path, resp.StatusCode)
		}
	}
}

func TestBasicAuth(t *testing.T) {
	ts, _ := newTestServer(t, &Options{AuthUsername: "admin", AuthPassword: "secret"})

	resp, _ := do(t, http.MethodGet, ts.URL+"/api/pipeline", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no credentials status = %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/pipeline", nil)
	req.SetBasicAuth("admin", "secret")
	ok, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	ok.Body.Close()
	if ok.StatusCode != http.StatusOK {
		t.Errorf("valid credentials status = %d", ok.StatusCode)
	}

	query := base64.StdEncoding.EncodeToString([]byte("admin:wrong"))
	resp, _ = do(t, http.MethodGet, ts.URL+"/api/pipeline?auth="+query, "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d", resp.StatusCode)
	}
}

func TestLogs(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp, body := do(t, http.MethodGet, ts.URL+"/api/logs?limit=5", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var got struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got.Count > 5 {
		t.Errorf("count = %d, want at most 5", got.Count)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t, &Options{CORSOrigin: "http://table.local"})
	resp, _ := do(t, http.MethodOptions, ts.URL+"/api/stages/equalizer/toggle", "", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://table.local" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := resp.Header.Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q", got)
	}
}
