package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mtmon/internal/config"
)

func TestConfigureWithFile(t *testing.T) {
	m := NewManager()
	path := filepath.Join(t.TempDir(), "app.log")

	err := m.Configure(config.LoggingConfig{Level: "debug", LogToFile: true}, path)
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}

	m.Logger("test").Debug("hello from test", "key", "value")

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "hello from test") {
		t.Fatalf("log file missing entry: %q", string(raw))
	}
	if !strings.Contains(string(raw), "component=test") {
		t.Fatalf("log file missing component attr: %q", string(raw))
	}
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	m := NewManager()
	err := m.Configure(config.LoggingConfig{Level: "verbose"}, "")
	if err == nil {
		t.Fatal("unknown level accepted")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Leveler{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for raw, want := range cases {
		got, err := parseLevel(raw)
		if err != nil {
			t.Fatalf("parseLevel(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestFanoutWriterSurvivesOneFailure(t *testing.T) {
	good := &captureWriter{}
	w := &fanoutWriter{primary: failingWriter{}, secondary: good}

	n, err := w.Write([]byte("line\n"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 5 {
		t.Fatalf("n = %d, want 5", n)
	}
	if good.buf.String() != "line\n" {
		t.Fatalf("secondary got %q", good.buf.String())
	}
}

type captureWriter struct {
	buf strings.Builder
}

func (w *captureWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, os.ErrClosed
}
