package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesJSONAtLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	log := New(&buf, "warn")
	log.Info("hidden")
	log.Warn("shown", "job_id", "wfr_1")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "shown" || rec["job_id"] != "wfr_1" {
		t.Fatalf("unexpected record %#v", rec)
	}
}

func TestRedactDSN(t *testing.T) {
	got := RedactDSN("postgres://app:s3cret@db:5432/app?sslmode=disable")
	if got != "postgres://app:****@db:5432/app?sslmode=disable" {
		t.Fatalf("unexpected redaction %s", got)
	}
	if got := RedactDSN("postgres://db:5432/app"); got != "postgres://db:5432/app" {
		t.Fatalf("expected DSN without password unchanged, got %s", got)
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("abc"); got != "****" {
		t.Fatalf("expected ****, got %s", got)
	}
	if got := Redact("qstash_token"); got != "qsta****" {
		t.Fatalf("expected qsta****, got %s", got)
	}
}
