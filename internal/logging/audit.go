package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// CompletionRecord is the JSON structure for one completion call. Prompt and
// response text stay out of the audit trail; only routing metadata is kept.
type CompletionRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	CallerID   string    `json:"caller_id"`
	Model      string    `json:"model"`
	Provider   string    `json:"provider"`
	Streamed   bool      `json:"streamed"`
	Status     string    `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// AuditLogger writes completion records to JSONL files asynchronously, with
// size-based rotation and a periodic flush.
type AuditLogger struct {
	fileTemplate  string        // e.g. "/var/log/provider-gateway/completions-%s.jsonl"
	maxSize       int64         // maximum size in bytes before rotation
	maxFiles      int           // rotated files to keep
	flushInterval time.Duration // flush cadence for the buffered writer

	mu          sync.Mutex
	currentFile string
	file        *os.File
	writer      *bufio.Writer
	currentSize int64

	recordCh chan CompletionRecord
	doneCh   chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

// NewAuditLogger creates an audit logger and starts its writer goroutine.
// bufferSize bounds how many records can queue before new ones are dropped.
func NewAuditLogger(fileTemplate string, maxSize int64, maxFiles, bufferSize int, flushInterval time.Duration) (*AuditLogger, error) {
	logger := &AuditLogger{
		fileTemplate:  fileTemplate,
		maxSize:       maxSize,
		maxFiles:      maxFiles,
		flushInterval: flushInterval,
		recordCh:      make(chan CompletionRecord, bufferSize),
		doneCh:        make(chan struct{}),
	}

	if err := logger.openFile(); err != nil {
		return nil, err
	}

	logger.wg.Add(1)
	go logger.run()

	return logger, nil
}

// newFileName applies the current timestamp to the file template.
func (logger *AuditLogger) newFileName() string {
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf(logger.fileTemplate, timestamp)
}

func (logger *AuditLogger) openFile() error {
	logger.currentFile = logger.newFileName()
	dir := filepath.Dir(logger.currentFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	file, err := os.OpenFile(logger.currentFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	logger.currentSize = fi.Size()
	logger.file = file
	logger.writer = bufio.NewWriter(file)
	return nil
}

// rotateIfNeeded rotates to a fresh file when writing n more bytes would
// cross the size limit.
func (logger *AuditLogger) rotateIfNeeded(n int) error {
	logger.mu.Lock()
	defer logger.mu.Unlock()

	if logger.currentSize+int64(n) < logger.maxSize {
		return nil
	}

	if err := logger.writer.Flush(); err != nil {
		return err
	}
	if err := logger.file.Close(); err != nil {
		return err
	}

	return logger.openFile()
}

// cleanupOldFiles removes the oldest rotated files beyond maxFiles.
func (logger *AuditLogger) cleanupOldFiles() error {
	pattern := fmt.Sprintf(logger.fileTemplate, "*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	sort.Slice(matches, func(i, j int) bool {
		fi, err1 := os.Stat(matches[i])
		fj, err2 := os.Stat(matches[j])
		if err1 != nil || err2 != nil {
			return false
		}
		return fi.ModTime().Before(fj.ModTime())
	})

	excess := len(matches) - logger.maxFiles
	for i := 0; i < excess; i++ {
		_ = os.Remove(matches[i])
	}
	return nil
}

func (logger *AuditLogger) run() {
	defer logger.wg.Done()
	ticker := time.NewTicker(logger.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case record := <-logger.recordCh:
			logger.writeRecord(record)
		case <-ticker.C:
			logger.mu.Lock()
			_ = logger.writer.Flush()
			logger.mu.Unlock()
		case <-logger.doneCh:
			// Drain whatever is still queued, then flush and close.
			for {
				select {
				case record := <-logger.recordCh:
					logger.writeRecord(record)
				default:
					logger.mu.Lock()
					_ = logger.writer.Flush()
					_ = logger.file.Close()
					logger.mu.Unlock()
					return
				}
			}
		}
	}
}

func (logger *AuditLogger) writeRecord(record CompletionRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	line := string(data) + "\n"
	n := len(line)
	_ = logger.rotateIfNeeded(n)

	logger.mu.Lock()
	_, _ = logger.writer.WriteString(line)
	logger.currentSize += int64(n)
	logger.mu.Unlock()

	_ = logger.cleanupOldFiles()
}

// Record queues a completion record. If the queue is full the record is
// dropped rather than stalling the request path.
func (logger *AuditLogger) Record(record CompletionRecord) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	select {
	case logger.recordCh <- record:
	default:
	}
}

// Shutdown flushes queued records and closes the active file. Call from the
// application's graceful shutdown handler.
func (logger *AuditLogger) Shutdown() {
	logger.mu.Lock()
	if logger.closed {
		logger.mu.Unlock()
		return
	}
	logger.closed = true
	logger.mu.Unlock()

	close(logger.doneCh)
	logger.wg.Wait()
}
