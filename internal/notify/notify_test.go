package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avatarstudio/avatargw/internal/domain"
)

// ─── Locale Tests ───────────────────────────────────────────────────────────

func TestLocalizedMessage(t *testing.T) {
	env := domain.VendorErrorEnvelope{
		Code:    "NO_CREDITS",
		Message: "out of credits",
		Localized: map[string]string{
			"zh": "积分不足",
			"ja": "クレジット不足",
		},
	}
	tests := []struct {
		name   string
		env    domain.VendorErrorEnvelope
		locale string
		def    string
		want   string
	}{
		{"exact locale", env, "zh", "en", "积分不足"},
		{"region tag", env, "zh-CN", "en", "积分不足"},
		{"default locale uses message", env, "en", "en", "out of credits"},
		{"unknown locale falls back to message", env, "fr", "en", "out of credits"},
		{"unknown locale falls back to default key", domain.VendorErrorEnvelope{
			Message: "generic", Localized: map[string]string{"zh": "默认"},
		}, "fr", "zh", "默认"},
		{"default locale prefers its own key", domain.VendorErrorEnvelope{
			Message: "generic", Localized: map[string]string{"zh": "中文"},
		}, "zh", "zh", "中文"},
		{"region suffix in envelope", domain.VendorErrorEnvelope{
			Localized: map[string]string{"zh_CN": "简体"},
		}, "zh", "en", "简体"},
		{"empty locale uses default", env, "", "zh", "积分不足"},
		{"nothing to show", domain.VendorErrorEnvelope{Code: "X"}, "en", "en", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LocalizedMessage(tt.env, tt.locale, tt.def); got != tt.want {
				t.Errorf("LocalizedMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCanonical(t *testing.T) {
	for in, want := range map[string]string{
		"zh-CN": "zh",
		"zh_TW": "zh",
		"EN-us": "en",
		"ja":    "ja",
		"":      "",
	} {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLocales_Match(t *testing.T) {
	l := NewLocales("en", []string{"en", "zh-CN"})
	if got := l.Supported(); len(got) != 2 || got[0] != "en" || got[1] != "zh" {
		t.Fatalf("Supported() = %v, want [en zh]", got)
	}
	tests := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"zh-CN,zh;q=0.9,en;q=0.8", "zh"},
		{"en-GB", "en"},
		{"fr-FR", "en"},
		{"not a header;;;", "en"},
	}
	for _, tt := range tests {
		if got := l.Match(tt.header); got != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestLocaleContext(t *testing.T) {
	if got := LocaleFromContext(context.Background()); got != "" {
		t.Errorf("LocaleFromContext(empty) = %q, want empty", got)
	}
	ctx := WithLocale(context.Background(), "zh")
	if got := LocaleFromContext(ctx); got != "zh" {
		t.Errorf("LocaleFromContext() = %q, want zh", got)
	}
}

// ─── Bridge Tests ───────────────────────────────────────────────────────────

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) last(t *testing.T) Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatal("no event published")
	}
	return r.events[len(r.events)-1]
}

func TestBridge_Notify(t *testing.T) {
	rec := &recorder{}
	b := NewBridge(rec, NewLocales("en", []string{"zh"}), nil)
	zh := WithLocale(context.Background(), "zh")

	tests := []struct {
		name     string
		ctx      context.Context
		err      error
		wantCode string
		wantMsg  string
	}{
		{
			name: "http error with envelope",
			ctx:  zh,
			err: &domain.HTTPError{StatusCode: 402, Envelope: &domain.VendorErrorEnvelope{
				Code: "NO_CREDITS", Message: "out of credits", Localized: map[string]string{"zh": "积分不足"},
			}},
			wantCode: "NO_CREDITS",
			wantMsg:  "积分不足",
		},
		{
			name: "envelope code without message",
			ctx:  context.Background(),
			err: &domain.HTTPError{StatusCode: 400, Envelope: &domain.VendorErrorEnvelope{
				Code: "-10008", Localized: map[string]string{},
			}},
			wantCode: "-10008",
			wantMsg:  "The upstream service returned HTTP 400. Please try again later.",
		},
		{
			name:     "vendor code without message or status",
			ctx:      zh,
			err:      &domain.VendorError{Vendor: domain.VendorChanjing, Envelope: &domain.VendorErrorEnvelope{Code: "-10008"}},
			wantCode: "-10008",
			wantMsg:  "发生未知错误，请重试。",
		},
		{
			name:     "vendor error code",
			ctx:      context.Background(),
			err:      &domain.VendorError{Vendor: domain.VendorChanjing, Code: "40001", Message: "invalid token"},
			wantCode: "40001",
			wantMsg:  "invalid token",
		},
		{
			name:     "failed job is translated",
			ctx:      zh,
			err:      &domain.VendorError{Vendor: domain.VendorChanjing, Code: "processing_failed", Message: "processing failed"},
			wantCode: "processing_failed",
			wantMsg:  "处理失败",
		},
		{
			name:     "failed job keeps the vendor's reason",
			ctx:      zh,
			err:      &domain.VendorError{Vendor: domain.VendorHedra, Code: "processing_failed", Message: "nsfw"},
			wantCode: "processing_failed",
			wantMsg:  "nsfw",
		},
		{
			name:     "http error without envelope",
			ctx:      context.Background(),
			err:      &domain.HTTPError{StatusCode: 502, Body: []byte("bad gateway")},
			wantCode: "http_502",
			wantMsg:  "The upstream service returned HTTP 502. Please try again later.",
		},
		{
			name:     "transport",
			ctx:      zh,
			err:      &domain.TransportError{Op: "GET /x", Err: context.DeadlineExceeded},
			wantCode: CodeTransport,
			wantMsg:  "无法连接上游服务，请检查网络后重试。",
		},
		{
			name:     "validation",
			ctx:      context.Background(),
			err:      &domain.ValidationError{Fields: []string{"audioUrl"}},
			wantCode: CodeValidation,
			wantMsg:  "Some required fields are missing. (audioUrl)",
		},
		{
			name:     "timeout",
			ctx:      context.Background(),
			err:      domain.ErrVendorTimeout,
			wantCode: CodeTimeout,
			wantMsg:  "The task did not finish in time.",
		},
		{
			name:     "unknown",
			ctx:      context.Background(),
			err:      errors.New("boom"),
			wantCode: CodeUnknown,
			wantMsg:  "Something went wrong. Please try again.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b.Notify(tt.ctx, tt.err)
			ev := rec.last(t)
			if ev.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", ev.Code, tt.wantCode)
			}
			if ev.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", ev.Message, tt.wantMsg)
			}
			if ev.Kind != "toast" || ev.Level != "error" {
				t.Errorf("Kind/Level = %s/%s, want toast/error", ev.Kind, ev.Level)
			}
			if ev.ID == "" {
				t.Error("event ID should be set")
			}
		})
	}
}

func TestMetricCode(t *testing.T) {
	tests := map[string]string{
		CodeTransport:        CodeTransport,
		CodeValidation:       CodeValidation,
		CodeTimeout:          CodeTimeout,
		CodeUnknown:          CodeUnknown,
		CodeProcessingFailed: CodeProcessingFailed,
		"http_402":           "http_402",
		"http_abc":           CodeVendor,
		"http_1000":          CodeVendor,
		"-10008":             CodeVendor,
		"NO_CREDITS":         CodeVendor,
	}
	for in, want := range tests {
		if got := metricCode(in); got != want {
			t.Errorf("metricCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBridge_NotifyNil(t *testing.T) {
	rec := &recorder{}
	NewBridge(rec, nil, nil).Notify(context.Background(), nil)
	if len(rec.events) != 0 {
		t.Errorf("events = %d, want 0", len(rec.events))
	}
}

// ─── Hub Tests ──────────────────────────────────────────────────────────────

func TestHub_PublishDropsForSlowSubscribers(t *testing.T) {
	h := NewHub(nil)
	_, events, _, cancel := h.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		h.Publish(Event{ID: "e"})
	}
	if got := len(events); got != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", got, subscriberBuffer)
	}
}

func TestHub_CancelAndClose(t *testing.T) {
	h := NewHub(nil)
	_, _, done, cancel := h.Subscribe()
	if h.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", h.Subscribers())
	}
	cancel()
	cancel()
	if h.Subscribers() != 0 {
		t.Errorf("Subscribers() after cancel = %d, want 0", h.Subscribers())
	}
	select {
	case <-done:
	default:
		t.Error("done should be closed after cancel")
	}

	_, _, done2, _ := h.Subscribe()
	h.Close()
	select {
	case <-done2:
	default:
		t.Error("done should be closed after Close")
	}
	_, _, done3, _ := h.Subscribe()
	select {
	case <-done3:
	default:
		t.Error("subscriptions after Close should end immediately")
	}
}

func TestHub_ServeSSE(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	h.Publish(Event{ID: "ev-1", Kind: "toast", Level: "error", Code: "40001", Message: "invalid token"})

	var data string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	var ev Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatalf("decode event %q: %v", data, err)
	}
	if ev.Code != "40001" || ev.Message != "invalid token" {
		t.Errorf("event = %+v, want code 40001 / invalid token", ev)
	}
}
