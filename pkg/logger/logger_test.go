package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
	if Named("test") == nil {
		t.Fatal("named logger is nil")
	}
}

func TestInitWithUnknownFormat(t *testing.T) {
	if err := InitWith(&bytes.Buffer{}, "xml"); err == nil {
		t.Fatal("expected unknown format error")
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, FormatJSON, slog.LevelDebug)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	l.Named("lifecycle").Info(context.Background(), "commission approved",
		String("commission_id", "c1"),
		Int("attempt", 1),
		Bool("audited", true),
		Error(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "commission approved" {
		t.Errorf("unexpected msg: %v", rec["msg"])
	}
	if rec["component"] != "lifecycle" {
		t.Errorf("expected component field, got %v", rec["component"])
	}
	if rec["commission_id"] != "c1" {
		t.Errorf("expected commission_id field, got %v", rec["commission_id"])
	}
	src, _ := rec["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("expected caller to point at the test file, got %q", src)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWith(&buf, FormatText); err != nil {
		t.Fatalf("init: %v", err)
	}
	ctx := context.Background()

	Get().Debug(ctx, "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered at info level, got %q", buf.String())
	}

	if err := SetLevelString("debug"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	Get().Debug(ctx, "visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected debug output, got %q", buf.String())
	}

	if err := SetLevelString("loud"); err == nil {
		t.Fatal("expected unknown level error")
	}
	_ = SetLevelString("info")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(&buf, FormatText, nil)
	l.With(String("request_id", "r-1")).Warn(context.Background(), "slow")
	if !strings.Contains(buf.String(), "request_id=r-1") {
		t.Fatalf("expected bound field, got %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	Nop().Error(context.Background(), "discarded")
}
