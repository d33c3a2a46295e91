// logging_test.go - Tests for structured logging functionality
//
// Test coverage:
// - Logger interface implementation (DefaultLogger, NoOpLogger, WriterLogger)
// - Log level filtering
// - JSON escaping helpers
// - Package-level logging functions
// - Lazy evaluation

package reactivecell

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

type testError struct {
	msg string
}

func (e *testError) Error() string { return e.msg }

// TestLogLevelString verifies LogLevel string representations
func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(99), "UNKNOWN(99)"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			if got := tc.level.String(); got != tc.expected {
				t.Errorf("String() = %q, want %q", got, tc.expected)
			}
		})
	}
}

// TestDefaultNewLogger creates a logger and verifies defaults
func TestDefaultNewLogger(t *testing.T) {
	logger := NewDefaultLogger(LevelInfo)

	if logger == nil {
		t.Fatal("NewDefaultLogger returned nil")
	}
	if logger.Out != os.Stdout {
		t.Error("DefaultLogger output is not os.Stdout")
	}

	if !logger.IsEnabled(LevelError) {
		t.Error("LevelError should be enabled at LevelInfo")
	}
	if logger.IsEnabled(LevelDebug) {
		t.Error("LevelDebug should not be enabled at LevelInfo")
	}
}

// TestSetLogLevel dynamically changes log level
func TestSetLogLevel(t *testing.T) {
	logger := NewDefaultLogger(LevelInfo)

	if logger.IsEnabled(LevelDebug) {
		t.Error("DEBUG should not be enabled at INFO level")
	}

	logger.SetLevel(LevelDebug)
	if !logger.IsEnabled(LevelDebug) {
		t.Error("DEBUG should be enabled after SetLevel(DEBUG)")
	}

	logger.SetLevel(LevelError)
	if logger.IsEnabled(LevelInfo) {
		t.Error("INFO should not be enabled at ERROR level")
	}
	if !logger.IsEnabled(LevelError) {
		t.Error("ERROR should be enabled at ERROR level")
	}
}

// TestLoggerLazyEvaluation verifies logs below level are not evaluated
func TestLoggerLazyEvaluation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelInfo, &buf)

	// This should NOT log (DEBUG < INFO)
	logger.Log(LogEntry{
		Level:    LevelDebug,
		Category: "queue",
		Message:  "This should not appear",
	})

	if buf.Len() > 0 {
		t.Errorf("Log entry was written when it should have been filtered (got %d bytes)", buf.Len())
	}

	logger.Log(LogEntry{
		Level:    LevelInfo,
		Category: "queue",
		Message:  "This should appear",
	})

	if buf.Len() == 0 {
		t.Error("Log entry was not written when it should have been")
	}
	if !strings.Contains(buf.String(), "This should appear") {
		t.Error("Log entry does not contain expected message")
	}
}

// TestLogEntryFormatting tests basic log entry formatting
func TestLogEntryFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelInfo, &buf)

	entry := LogEntry{
		Level:     LevelInfo,
		Category:  "queue",
		EngineID:  123,
		QueueID:   "microtask",
		Message:   "drain finished",
		Timestamp: time.Date(2026, 1, 29, 12, 34, 56, 123000000, time.UTC),
	}

	logger.Log(entry)

	output := buf.String()

	if !strings.Contains(output, "drain finished") {
		t.Error("Log entry missing message")
	}
	if !strings.Contains(output, "engine=123") {
		t.Error("Log entry missing engine ID")
	}
	if !strings.Contains(output, "queue=microtask") {
		t.Error("Log entry missing queue ID")
	}
	if !strings.Contains(output, "[queue") {
		t.Error("Log entry missing category")
	}
}

// TestContextFields verifies context fields are logged
func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelInfo, &buf)

	logger.Log(LogEntry{
		Level:    LevelInfo,
		Category: "cell",
		Message:  "notify",
		Context: map[string]interface{}{
			"sync":   2,
			"async":  1,
			"primed": true,
		},
	})

	output := buf.String()

	for _, expected := range []string{"sync=2", "async=1", "primed=true"} {
		if !strings.Contains(output, expected) {
			t.Errorf("Log entry missing context field %q", expected)
		}
	}
}

// TestErrorLogging verifies errors are logged correctly
func TestErrorLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelInfo, &buf)

	logger.Log(LogEntry{
		Level:    LevelError,
		Category: "subscriber",
		Message:  "callback panicked",
		Err:      &testError{"unexpected error"},
	})

	output := buf.String()

	if !strings.Contains(output, "callback panicked") {
		t.Error("Error log missing message")
	}
	if !strings.Contains(output, "unexpected error") {
		t.Error("Error log missing error value")
	}
	if !strings.Contains(output, "ERROR") {
		t.Error("Error log missing level indicator")
	}
}

// TestLogEntryBuilder verifies the fluent builder assembles a full entry
func TestLogEntryBuilder(t *testing.T) {
	err := &testError{"bad"}
	entry := NewLogEntry(LevelWarn, "registry", "reap pass").
		EngineID(7).
		QueueID("timeout:1000").
		Field("scanned", 3).
		Fields(map[string]interface{}{"removed": 1}).
		Err(err).
		Build()

	if entry.Level != LevelWarn || entry.Category != "registry" || entry.Message != "reap pass" {
		t.Errorf("builder dropped base fields: %+v", entry)
	}
	if entry.EngineID != 7 || entry.QueueID != "timeout:1000" {
		t.Errorf("builder dropped ids: %+v", entry)
	}
	if entry.Context["scanned"] != 3 || entry.Context["removed"] != 1 {
		t.Errorf("builder dropped context: %+v", entry.Context)
	}
	if entry.Err != err {
		t.Error("builder dropped error")
	}
	if entry.Timestamp.IsZero() {
		t.Error("builder must stamp the entry")
	}
}

// TestNoOpLogger discards all logs
func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()

	if logger == nil {
		t.Fatal("NewNoOpLogger returned nil")
	}

	for _, level := range []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		if logger.IsEnabled(level) {
			t.Errorf("NoOpLogger should not enable %s", level)
		}
	}

	// Log should be no-op (no panic)
	logger.Log(LogEntry{
		Level:   LevelError,
		Message: "This should be discarded",
	})
}

// TestPackageLevelLogging verifies package-level logging functions
func TestPackageLevelLogging(t *testing.T) {
	var buf bytes.Buffer
	SetStructuredLogger(NewWriterLogger(LevelInfo, &buf))
	defer SetStructuredLogger(NewNoOpLogger())

	SDebug("queue", "debug message")
	SInfo("queue", "info message")
	SWarn("queue", "warn message", map[string]interface{}{"pending": 3})
	SError("queue", "error message", &testError{"boom"})
	SErrorf("queue", "formatted %d", 42)

	output := buf.String()

	if strings.Contains(output, "debug message") {
		t.Error("Debug message should have been filtered at INFO level")
	}
	if !strings.Contains(output, "info message") {
		t.Error("Missing info message")
	}
	if !strings.Contains(output, "warn message") || !strings.Contains(output, "pending=3") {
		t.Error("Missing warn message or its fields")
	}
	if !strings.Contains(output, "error message") || !strings.Contains(output, "boom") {
		t.Error("Missing error message or its error value")
	}
	if !strings.Contains(output, "formatted 42") {
		t.Error("Missing formatted error message")
	}
}

// TestLoggerHelperFunctions verifies the per-logger convenience wrappers
func TestLoggerHelperFunctions(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelDebug, &buf)

	LogDebug(logger, "link", "link marked dirty", nil)
	LogInfo(logger, "queue", "queue acquired", map[string]interface{}{"id": "idle"})
	LogWarn(logger, "queue", "queue overrun", nil)
	LogError(logger, "subscriber", "callback failed", &testError{"bad"}, nil)
	LogErrorf(logger, "clock", "unsupported tag %q", "repaint")

	output := buf.String()
	for _, expected := range []string{
		"link marked dirty",
		"queue acquired",
		"id=idle",
		"queue overrun",
		"callback failed",
		`unsupported tag "repaint"`,
	} {
		if !strings.Contains(output, expected) {
			t.Errorf("Missing %q in helper output", expected)
		}
	}
}

// TestLoggingOptions verifies functional options
func TestLoggingOptions(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelInfo, &buf)

	entry := LogEntry{
		Level:   LevelInfo,
		Message: "Test",
		Context: make(map[string]interface{}),
	}

	WithLogEngineID(123)(&entry)
	WithLogQueueID("animation")(&entry)
	WithField("key1", "value1")(&entry)
	WithFields(map[string]interface{}{
		"key2": "value2",
		"key3": "value3",
	})(&entry)

	logger.Log(entry)

	output := buf.String()

	tests := []string{
		"engine=123",
		"queue=animation",
		"key1=value1",
		"key2=value2",
		"key3=value3",
	}

	for _, expected := range tests {
		if !strings.Contains(output, expected) {
			t.Errorf("Log entry missing field %q", expected)
		}
	}
}

// TestConcurrentLogging verifies thread safety
func TestConcurrentLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelInfo, &buf)

	var wg sync.WaitGroup
	numGoroutines := 10
	numLogsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numLogsPerGoroutine; j++ {
				logger.Log(LogEntry{
					Level:    LevelInfo,
					Category: "queue",
					Message:  "Concurrent log",
					Context: map[string]interface{}{
						"goroutine": id,
						"iteration": j,
					},
				})
			}
		}(i)
	}

	wg.Wait()

	lineCount := strings.Count(buf.String(), "\n")
	expectedLines := numGoroutines * numLogsPerGoroutine

	if lineCount < expectedLines {
		t.Errorf("Expected %d log lines, got %d", expectedLines, lineCount)
	}
}

// TestAppendJSONString verifies JSON escaping
func TestAppendJSONString(t *testing.T) {
	tests := []struct {
		input       string
		shouldMatch []string // Substrings that should be in the output
	}{
		{`simple`, []string{`"simple"`}},
		{`with "quotes"`, []string{`\"`}},
		{`with\\slash`, []string{`\\`}},
		{"with control\x07char", []string{`\u0007`}},
		{"with\nnewline", []string{`\n`}},
		{`unicode`, []string{`"unicode"`}},
	}

	for _, tc := range tests {
		t.Run("", func(t *testing.T) {
			buf := []byte{}
			buf = appendJSONString(buf, tc.input)

			for _, shouldMatch := range tc.shouldMatch {
				if !bytes.Contains(buf, []byte(shouldMatch)) {
					t.Errorf("appendJSONString(%q) = %q, expected to contain %q", tc.input, buf, shouldMatch)
				}
			}
		})
	}
}

// TestSpecialtyHelperFunctions verifies the reactive-engine helper loggers
func TestSpecialtyHelperFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetStructuredLogger(NewWriterLogger(LevelDebug, &buf))
	defer SetStructuredLogger(NewNoOpLogger())

	LogLinkMarkedDirty(1, "microtask")
	LogSubscriberSkipped(1, "microtask")
	LogQueueOverrun("timeout:1000", 512)
	LogQueueReaped(2, 3)
	LogSubscriberPanicked(1, "panic value", []byte("stack"))

	output := buf.String()

	if !strings.Contains(output, "link marked dirty") {
		t.Error("Missing link marked dirty log")
	}
	if !strings.Contains(output, "subscriber call skipped") {
		t.Error("Missing subscriber skipped log")
	}
	if !strings.Contains(output, "queue overrun") || !strings.Contains(output, "pending=512") {
		t.Error("Missing queue overrun log")
	}
	if !strings.Contains(output, "registry reap completed") {
		t.Error("Missing registry reap log")
	}
	if !strings.Contains(output, "subscriber callback panicked") {
		t.Error("Missing subscriber panic log")
	}
}

// TestFileLoggerWritesJSON verifies a non-terminal DefaultLogger emits JSON
func TestFileLoggerWritesJSON(t *testing.T) {
	path := t.TempDir() + "/reactivecell.log"
	logger, err := NewFileLogger(LevelInfo, path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	logger.Log(LogEntry{
		Level:    LevelInfo,
		Category: "registry",
		QueueID:  "idle",
		Message:  `reap "pass"`,
	})

	if err := logger.Out.Close(); err != nil {
		t.Fatalf("close log file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	output := string(data)

	if !strings.Contains(output, `"category":"registry"`) {
		t.Errorf("JSON output missing category: %s", output)
	}
	if !strings.Contains(output, `"queue":"idle"`) {
		t.Errorf("JSON output missing queue id: %s", output)
	}
	if !strings.Contains(output, `reap \"pass\"`) {
		t.Errorf("JSON output missing escaped message: %s", output)
	}
}
