package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nvfand/internal/fancontrol"
)

func testSnapshot() fancontrol.Snapshot {
	return fancontrol.Snapshot{
		State:       "running",
		SensorOK:    true,
		TempC:       42,
		Duty:        162,
		DutyPercent: 63,
		WritesTotal: 7,
	}
}

func TestAPIStatus(t *testing.T) {
	st := NewStatus()
	st.SetStatic("pwm", "/sys/class/hwmon/hwmon2/pwm1", "nvidia-smi", "2s", "")

	ts := httptest.NewServer(Handler(st, testSnapshot, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Service != "nvfand" {
		t.Fatalf("service=%q", out.Service)
	}
	if out.FanBackend != "pwm" || out.Sensor != "nvidia-smi" {
		t.Fatalf("config summary=%q/%q", out.FanBackend, out.Sensor)
	}
	if out.Control.TempC != 42 || out.Control.Duty != 162 {
		t.Fatalf("control=%+v", out.Control)
	}
}

func TestAPIStatus_NilProvider(t *testing.T) {
	ts := httptest.NewServer(Handler(NewStatus(), nil, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}

func TestAPIStatus_MethodNotAllowed(t *testing.T) {
	ts := httptest.NewServer(Handler(NewStatus(), testSnapshot, nil))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/status", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != http.MethodGet {
		t.Fatalf("allow=%q", allow)
	}
}

func TestAPILogs(t *testing.T) {
	logs := NewLogBuffer(100)
	_, _ = logs.Write([]byte("first line\nsecond line\n"))

	ts := httptest.NewServer(Handler(NewStatus(), testSnapshot, logs))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/logs?tail=1")
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}

	var out LogsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(out.Lines) != 1 || out.Lines[0] != "second line" {
		t.Fatalf("lines=%v", out.Lines)
	}
}

func TestAPILogs_BadTail(t *testing.T) {
	ts := httptest.NewServer(Handler(NewStatus(), testSnapshot, NewLogBuffer(10)))
	defer ts.Close()

	for _, q := range []string{"tail=0", "tail=9999", "tail=x"} {
		resp, err := http.Get(ts.URL + "/api/logs?" + q)
		if err != nil {
			t.Fatalf("get logs: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status code=%d", q, resp.StatusCode)
		}
	}
}

func TestAPIAbout(t *testing.T) {
	ts := httptest.NewServer(Handler(NewStatus(), testSnapshot, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/about")
	if err != nil {
		t.Fatalf("get about: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}

	var out AboutResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Service != "nvfand" {
		t.Fatalf("service=%q", out.Service)
	}
	if out.GoVersion == "" {
		t.Fatal("go_version empty")
	}
}

func TestRootPage(t *testing.T) {
	ts := httptest.NewServer(Handler(NewStatus(), testSnapshot, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "duty=162/255") {
		t.Fatalf("body missing duty line: %s", body)
	}
}

func TestRootPage_UnknownPath(t *testing.T) {
	ts := httptest.NewServer(Handler(NewStatus(), testSnapshot, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}
