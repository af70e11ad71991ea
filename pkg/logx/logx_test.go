package logx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// setupTestLogger redirects log output to a buffer until the test ends.
func setupTestLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

// withDebug sets the global debug state for one test.
func withDebug(t *testing.T, enabled bool, domains []string) {
	t.Helper()
	SetDebug(enabled)
	SetDebugDomains(domains)
	t.Cleanup(func() {
		SetDebug(false)
		SetDebugDomains(nil)
	})
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger("pipeline")
	if logger.component != "pipeline" {
		t.Errorf("Expected component 'pipeline', got '%s'", logger.component)
	}
}

func TestLogFormat(t *testing.T) {
	buf := setupTestLogger(t)

	NewLogger("pipeline").Info("Rendering phase %d of %d", 2, 3)

	output := buf.String()
	if !strings.Contains(output, "[pipeline]") {
		t.Errorf("Expected component in output, got: %s", output)
	}
	if !strings.Contains(output, "INFO: Rendering phase 2 of 3") {
		t.Errorf("Expected level and formatted message, got: %s", output)
	}

	start := strings.Index(output, "[")
	end := strings.Index(output, "]")
	if start == -1 || end <= start {
		t.Fatalf("Could not find timestamp in output: %s", output)
	}
	if _, err := time.Parse(timestampFormat, output[start+1:end]); err != nil {
		t.Errorf("Invalid timestamp format '%s': %v", output[start+1:end], err)
	}
}

func TestLogLevels(t *testing.T) {
	logger := NewLogger("test")

	tests := []struct {
		level   Level
		logFunc func(string, ...any)
	}{
		{LevelDebug, logger.Debug},
		{LevelInfo, logger.Info},
		{LevelWarn, logger.Warn},
		{LevelError, logger.Error},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := setupTestLogger(t)
			if tt.level == LevelDebug {
				withDebug(t, true, nil)
			}

			tt.logFunc("test message")

			if !strings.Contains(buf.String(), string(tt.level)) {
				t.Errorf("Expected level '%s' in output, got: %s", tt.level, buf.String())
			}
		})
	}
}

func TestDebugSuppressedWhenDisabled(t *testing.T) {
	buf := setupTestLogger(t)
	withDebug(t, false, nil)

	NewLogger("test").Debug("hidden")
	Debug(context.Background(), "pipeline", "hidden too")

	if buf.Len() != 0 {
		t.Errorf("Expected no output with debug disabled, got: %s", buf.String())
	}
}

func TestDebugDomains(t *testing.T) {
	buf := setupTestLogger(t)
	withDebug(t, true, []string{"pipeline", " gateway "})

	ctx := WithComponent(context.Background(), "generator")
	Debug(ctx, "pipeline", "phase %d", 1)
	Debug(ctx, "gateway", "call")
	Debug(ctx, "storage", "filtered")
	DebugFlow(ctx, "pipeline", "render", "complete", "3 phases")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "[generator] DEBUG: [pipeline] phase 1") {
		t.Errorf("Unexpected first line: %s", lines[0])
	}
	if !strings.Contains(lines[2], "Flow render: complete - 3 phases") {
		t.Errorf("Unexpected flow line: %s", lines[2])
	}
	if IsDebugEnabledForDomain("storage") {
		t.Error("Expected storage domain to be filtered")
	}
}

func TestComponentDefaultsToUnknown(t *testing.T) {
	buf := setupTestLogger(t)
	withDebug(t, true, nil)

	Debug(context.Background(), "pipeline", "no component")

	if !strings.Contains(buf.String(), "[unknown]") {
		t.Errorf("Expected [unknown] component, got: %s", buf.String())
	}
}

func TestEventFields(t *testing.T) {
	buf := setupTestLogger(t)

	NewLogger("gateway").Event(LevelInfo, "completion", Fields{
		"stage":  "render",
		"tokens": 120,
		"model":  "mock model",
	})

	want := `completion model="mock model" stage=render tokens=120`
	if !strings.Contains(buf.String(), want) {
		t.Errorf("Expected %q in output, got: %s", want, buf.String())
	}
}

func TestEventDebugRespectsToggle(t *testing.T) {
	buf := setupTestLogger(t)
	withDebug(t, false, nil)

	NewLogger("gateway").Event(LevelDebug, "hidden", nil)
	if buf.Len() != 0 {
		t.Errorf("Expected debug event to be suppressed, got: %s", buf.String())
	}
}

func TestLogBufferFiltering(t *testing.T) {
	_ = setupTestLogger(t)
	withDebug(t, true, nil)
	since := time.Now().UTC().Add(-time.Second)

	ctx := WithComponent(context.Background(), "buffer-test")
	Debug(ctx, "export", "wrote file")
	NewLogger("buffer-test").Info("plain line")

	entries := GetRecentLogEntries("export", since)
	var sawDomain, sawPlain bool
	for _, e := range entries {
		if e.Component != "buffer-test" {
			continue
		}
		if e.Domain == "export" {
			sawDomain = true
		}
		if e.Message == "plain line" {
			sawPlain = true
		}
	}
	if !sawDomain {
		t.Error("Expected domain entry in filtered results")
	}
	if !sawPlain {
		t.Error("Expected entries without a domain to pass the domain filter")
	}

	if future := GetRecentLogEntries("", time.Now().Add(time.Hour)); len(future) != 0 {
		t.Errorf("Expected no entries after a future cutoff, got %d", len(future))
	}
}

func TestLogBufferCapacity(t *testing.T) {
	b := &InMemoryLogBuffer{maxSize: 2}
	for _, msg := range []string{"one", "two", "three"} {
		b.AddLogEntry(&LogEntry{Message: msg})
	}
	entries := b.GetLogEntries("", time.Time{})
	if len(entries) != 2 || entries[0].Message != "two" || entries[1].Message != "three" {
		t.Errorf("Expected oldest entry dropped, got %+v", entries)
	}
}

func TestWrap(t *testing.T) {
	buf := setupTestLogger(t)

	if Wrap(nil, "ignored") != nil {
		t.Error("Expected Wrap(nil) to return nil")
	}

	base := errors.New("disk full")
	err := Wrap(base, "failed to save roadmap")
	if !errors.Is(err, base) {
		t.Error("Expected wrapped error to match base")
	}
	if err.Error() != "failed to save roadmap: disk full" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if !strings.Contains(buf.String(), "[system] ERROR: failed to save roadmap: disk full") {
		t.Errorf("Expected error logged, got: %s", buf.String())
	}
}
