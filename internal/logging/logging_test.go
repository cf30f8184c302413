package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"Error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNew_WritesJSONAboveLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelWarn)
	log.Info("hidden")
	log.Warn("shown", "id", "a")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["msg"] != "shown" || rec["id"] != "a" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestOpen_FileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "todo.log")
	for i := 0; i < 2; i++ {
		log, closer, err := Open(path, slog.LevelInfo)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		log.Info("started")
		if err := closer.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n := strings.Count(string(b), `"msg":"started"`); n != 2 {
		t.Fatalf("expected 2 records, got %d in %q", n, b)
	}
}

func TestOpen_EmptyPathDiscards(t *testing.T) {
	log, closer, err := Open("", slog.LevelDebug)
	if err != nil || log == nil || closer == nil {
		t.Fatalf("open: %v", err)
	}
	log.Info("nowhere")
	_ = closer.Close()
}
