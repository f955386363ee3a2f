package logger

import (
	"os"
	"path/filepath"
	"testing"

	"prompt-studio/app/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevelDefaultsToInfo(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNamedKeepsCore(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewWithCore(core).Named("submission")

	log.Infof("submitted %d", 7)
	log.Info("structured", zap.Uint("task_id", 7))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].LoggerName != "submission" || entries[0].Message != "submitted 7" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
	if entries[1].ContextMap()["task_id"] != uint64(7) {
		t.Fatalf("expected task_id field, got %v", entries[1].ContextMap())
	}
}

func TestFileOutputWritesDatedLog(t *testing.T) {
	dir := t.TempDir()
	log := New(config.LogConfig{Level: "info", Format: "json", Output: "file", Dir: dir, MaxSize: 1})
	log.Info("hello")
	if err := log.Close(); err != nil {
		t.Logf("sync returned %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one log file, got %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log file to have content")
	}
}
