package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func record(caller, model string) CompletionRecord {
	return CompletionRecord{
		CallerID:   caller,
		Model:      model,
		Provider:   "groq",
		Status:     "ok",
		DurationMS: 42,
	}
}

func TestNewAuditLogger(t *testing.T) {
	tempDir := t.TempDir()
	fileTemplate := filepath.Join(tempDir, "completions-%s.jsonl")

	logger, err := NewAuditLogger(fileTemplate, 1024, 5, 10, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Shutdown()

	if logger.fileTemplate != fileTemplate {
		t.Errorf("Expected fileTemplate %s, got %s", fileTemplate, logger.fileTemplate)
	}
	if logger.maxSize != 1024 {
		t.Errorf("Expected maxSize 1024, got %d", logger.maxSize)
	}
	if logger.maxFiles != 5 {
		t.Errorf("Expected maxFiles 5, got %d", logger.maxFiles)
	}
}

func TestRecordWritesMetadataOnly(t *testing.T) {
	tempDir := t.TempDir()
	fileTemplate := filepath.Join(tempDir, "completions-%s.jsonl")

	logger, err := NewAuditLogger(fileTemplate, 10*1024, 5, 100, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Record(CompletionRecord{
		CallerID:   "user-1",
		Model:      "gemma-7b-it",
		Provider:   "groq",
		Streamed:   true,
		Status:     "upstream_error",
		DurationMS: 350,
		Error:      "rate limited",
	})

	logger.Shutdown()

	logger.mu.Lock()
	currentFile := logger.currentFile
	logger.mu.Unlock()

	content, err := os.ReadFile(currentFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	logContent := string(content)
	for _, want := range []string{"user-1", "gemma-7b-it", "groq", "upstream_error", "rate limited", `"streamed":true`} {
		if !strings.Contains(logContent, want) {
			t.Errorf("Log should contain %q, got: %s", want, logContent)
		}
	}

	// The timestamp is filled in when the record is queued.
	if !strings.Contains(logContent, `"timestamp"`) {
		t.Error("Log should contain a timestamp")
	}
}

func TestShutdownFlushesQueuedRecords(t *testing.T) {
	tempDir := t.TempDir()
	fileTemplate := filepath.Join(tempDir, "completions-%s.jsonl")

	logger, err := NewAuditLogger(fileTemplate, 10*1024, 5, 100, 1*time.Second)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	for i := 0; i < 5; i++ {
		logger.Record(record("user-1", fmt.Sprintf("model-%d", i)))
	}

	// Shutdown before the flush interval elapses.
	logger.Shutdown()

	pattern := filepath.Join(tempDir, "completions-*.jsonl")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatalf("Failed to glob files: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("No log file created")
	}

	content, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 5 {
		t.Errorf("Expected 5 log entries after shutdown, got %d", len(lines))
	}
}

func TestQueueFullDropsRecords(t *testing.T) {
	tempDir := t.TempDir()
	fileTemplate := filepath.Join(tempDir, "completions-%s.jsonl")

	logger, err := NewAuditLogger(fileTemplate, 10*1024, 5, 2, 1*time.Second)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Shutdown()

	for i := 0; i < 50; i++ {
		logger.Record(record("user-1", fmt.Sprintf("model-%d", i)))
	}

	logger.Shutdown()

	pattern := filepath.Join(tempDir, "completions-*.jsonl")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatalf("Failed to glob files: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("No log file created")
	}

	content, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) >= 50 {
		t.Errorf("Expected some records to be dropped, but got all %d entries", len(lines))
	}
	if len(lines) == 0 {
		t.Error("Expected at least some records to be written")
	}
}

func TestCleanupOldFiles(t *testing.T) {
	tempDir := t.TempDir()
	fileTemplate := filepath.Join(tempDir, "completions-%s.jsonl")

	logger, err := NewAuditLogger(fileTemplate, 300, 2, 100, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Shutdown()

	for i := 0; i < 15; i++ {
		rec := record("user-with-a-long-identifier", fmt.Sprintf("a-model-name-long-enough-to-force-rotation-%d", i))
		logger.Record(rec)
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)

	pattern := filepath.Join(tempDir, "completions-*.jsonl")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatalf("Failed to glob files: %v", err)
	}

	// maxFiles rotated files plus the current one.
	if len(matches) > 3 {
		t.Errorf("Expected at most 3 log files (maxFiles=2 + current), got %d: %v", len(matches), matches)
	}
}

func TestDirectoryCreation(t *testing.T) {
	tempDir := t.TempDir()
	nestedDir := filepath.Join(tempDir, "nested", "path", "logs")
	fileTemplate := filepath.Join(nestedDir, "completions-%s.jsonl")

	logger, err := NewAuditLogger(fileTemplate, 1024, 5, 10, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to create logger with nested directory: %v", err)
	}
	defer logger.Shutdown()

	if _, err := os.Stat(nestedDir); os.IsNotExist(err) {
		t.Error("Expected nested directory to be created")
	}
}

func TestConcurrentRecording(t *testing.T) {
	tempDir := t.TempDir()
	fileTemplate := filepath.Join(tempDir, "completions-%s.jsonl")

	logger, err := NewAuditLogger(fileTemplate, 10*1024, 5, 1000, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Shutdown()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			for j := 0; j < 10; j++ {
				logger.Record(record(fmt.Sprintf("user-%d", id), fmt.Sprintf("model-%d", j)))
			}
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	logger.Shutdown()

	pattern := filepath.Join(tempDir, "completions-*.jsonl")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatalf("Failed to glob files: %v", err)
	}

	totalLines := 0
	for _, file := range matches {
		content, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("Failed to read log file: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		if len(lines) > 0 && lines[0] != "" {
			totalLines += len(lines)
		}
	}

	if totalLines != 100 {
		t.Errorf("Expected 100 log entries, got %d", totalLines)
	}
}

func TestPeriodicFlush(t *testing.T) {
	tempDir := t.TempDir()
	fileTemplate := filepath.Join(tempDir, "completions-%s.jsonl")

	logger, err := NewAuditLogger(fileTemplate, 10*1024, 5, 100, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Shutdown()

	logger.Record(record("user-1", "flush-check-model"))

	time.Sleep(200 * time.Millisecond)

	logger.mu.Lock()
	currentFile := logger.currentFile
	logger.mu.Unlock()

	content, err := os.ReadFile(currentFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if len(content) == 0 {
		t.Error("Expected log to be flushed to disk after flush interval")
	}
	if !bytes.Contains(content, []byte("flush-check-model")) {
		t.Error("Log content should contain the recorded data")
	}
}
