package httplog

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func newTestFormatter(buf *bytes.Buffer) *Formatter {
	f := NewFormatter(buf)
	f.now = func() time.Time { return time.UnixMilli(1718000000000) }
	return f
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("record is not valid JSON: %v\n%s", err, line)
	}
	return m
}

func TestEmitBaseFields(t *testing.T) {
	buf := new(bytes.Buffer)
	f := newTestFormatter(buf)

	f.Emit("http_exchange", "INFO", []Field{
		{Key: "method", Value: "GET"},
		{Key: "uri", Value: "/dashboard"},
		{Key: "status", Value: 200},
	})

	m := decodeLine(t, buf)
	if m["type"] != "http_exchange" || m["level"] != "INFO" {
		t.Errorf("base fields wrong: %v", m)
	}
	if m["timestamp"] != float64(1718000000000) {
		t.Errorf("timestamp = %v, want epoch millis", m["timestamp"])
	}
	if m["method"] != "GET" || m["uri"] != "/dashboard" {
		t.Errorf("caller fields wrong: %v", m)
	}
}

func TestEmitOmitsNilAndBlank(t *testing.T) {
	buf := new(bytes.Buffer)
	f := newTestFormatter(buf)

	f.Emit("http_exchange", "INFO", []Field{
		{Key: "method", Value: "GET"},
		{Key: "req_body", Value: ""},
		{Key: "res_body", Value: "   "},
		{Key: "user_agent", Value: nil},
	})

	m := decodeLine(t, buf)
	for _, key := range []string{"req_body", "res_body", "user_agent"} {
		if _, ok := m[key]; ok {
			t.Errorf("key %q should be omitted, got %v", key, m[key])
		}
	}
	if strings.Contains(buf.String(), "null") {
		t.Errorf("record must never contain null: %s", buf.String())
	}
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("a", 1500)
	got := truncateBody(long)
	if !strings.HasSuffix(got, truncationMarker) {
		t.Fatalf("missing truncation marker: %q", got[len(got)-30:])
	}
	if body := strings.TrimSuffix(got, truncationMarker); len(body) != 1000 {
		t.Errorf("truncated body length = %d, want 1000", len(body))
	}

	if got := truncateBody(strings.Repeat("b", 1000)); strings.Contains(got, truncationMarker) {
		t.Errorf("1000-char body must not be truncated")
	}
	if got := truncateBody("  \n "); got != "" {
		t.Errorf("blank body should collapse to empty, got %q", got)
	}
}

func TestTruncateBodyCountsCharactersNotBytes(t *testing.T) {
	// 1500 three-byte runes must be cut to 1000 characters on a rune
	// boundary, never mid-rune.
	long := strings.Repeat("한", 1500)
	got := truncateBody(long)
	if !strings.HasSuffix(got, truncationMarker) {
		t.Fatalf("missing truncation marker")
	}
	body := strings.TrimSuffix(got, truncationMarker)
	if n := utf8.RuneCountInString(body); n != 1000 {
		t.Errorf("truncated body length = %d chars, want 1000", n)
	}
	if !utf8.ValidString(body) {
		t.Error("truncated body is not valid UTF-8")
	}

	// A multibyte body of exactly 1000 characters exceeds 1000 bytes and
	// still passes through untouched.
	exact := strings.Repeat("한", 1000)
	if got := truncateBody(exact); got != exact {
		t.Errorf("1000-char multibyte body must not be truncated")
	}
}

func TestMaskAuthorization(t *testing.T) {
	if got := MaskAuthorization("Bearer abcdefghij"); got != "Bear*****ghij" {
		t.Errorf("long value mask = %q", got)
	}
	if got := MaskAuthorization("short"); got != "*****" {
		t.Errorf("short value mask = %q", got)
	}
	if got := MaskAuthorization("12345678"); got != "*****" {
		t.Errorf("8-char value mask = %q", got)
	}
}

func TestMaskURL(t *testing.T) {
	in := "https://app.example.com/login/oauth2/code/google?code=XYZ123&state=abc&next=/dashboard"
	got := MaskURL(in)
	if strings.Contains(got, "XYZ123") || strings.Contains(got, "state=abc") {
		t.Fatalf("secrets leaked: %s", got)
	}
	if !strings.Contains(got, "code=*****") || !strings.Contains(got, "state=*****") {
		t.Errorf("mask not applied: %s", got)
	}
	if !strings.Contains(got, "next=/dashboard") {
		t.Errorf("non-sensitive params must survive: %s", got)
	}
}

func TestHeaderAllowList(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer abcdefghij")
	h.Set("X-Request-Id", "req-1")
	h.Set("Cookie", "session=secret")
	h.Set("Referer", "https://evil.example.com")

	fields := headerFields("req_", h)
	byKey := map[string]any{}
	for _, f := range fields {
		byKey[f.Key] = f.Value
	}

	if _, ok := byKey["req_cookie"]; ok {
		t.Error("cookie header must be dropped")
	}
	if _, ok := byKey["req_referer"]; ok {
		t.Error("referer header must be dropped")
	}
	if byKey["req_content-type"] != "application/json" {
		t.Errorf("content-type = %v", byKey["req_content-type"])
	}
	if byKey["req_x-request-id"] != "req-1" {
		t.Errorf("x- prefixed headers must pass: %v", byKey)
	}
	if byKey["req_authorization"] != "Bear*****ghij" {
		t.Errorf("authorization not masked: %v", byKey["req_authorization"])
	}
}

func TestEmitFallsBackOnEncodingFailure(t *testing.T) {
	buf := new(bytes.Buffer)
	f := newTestFormatter(buf)
	f.encode = func(any) ([]byte, error) { return nil, errors.New("boom") }

	f.Emit("http_exchange", "INFO", []Field{
		{Key: "method", Value: "POST"},
		{Key: "uri", Value: "/login"},
		{Key: "status", Value: 302},
		{Key: "duration_ms", Value: int64(12)},
	})

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("fallback produced no output")
	}
	for _, want := range []string{"POST", "/login", "302", "12"} {
		if !strings.Contains(line, want) {
			t.Errorf("fallback line missing %q: %s", want, line)
		}
	}
}
