package daemon

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testConfig(t *testing.T, baseURL string) Config {
	t.Helper()
	t.Setenv("AVATARGW_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Upstream.BaseURL = baseURL
	cfg.Logging.Level = "error"
	return cfg
}

func TestNewWithConfig_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, "")
	if _, err := NewWithConfig(cfg, "test"); err == nil {
		t.Fatal("NewWithConfig() without base URL should fail")
	}
}

func TestNewWithConfig_Wiring(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":0}`))
	}))
	defer upstream.Close()

	d, err := NewWithConfig(testConfig(t, upstream.URL), "1.2.3")
	if err != nil {
		t.Fatalf("NewWithConfig() = %v", err)
	}
	defer d.Close()

	if d.Gateway.BaseURL() != upstream.URL {
		t.Errorf("Gateway.BaseURL() = %q, want %q", d.Gateway.BaseURL(), upstream.URL)
	}
	if d.Jobs.Policy().MaxAttempts != 600 {
		t.Errorf("poll MaxAttempts = %d, want 600", d.Jobs.Policy().MaxAttempts)
	}

	h := d.Server.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["version"] != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", body["version"])
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/api/jobs status = %d, want 200", rec.Code)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	log.Info("hidden")
	log.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line logged at warn level: %s", out)
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &line); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if line["msg"] != "shown" || line["k"] != "v" {
		t.Errorf("line = %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
