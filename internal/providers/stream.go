package providers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// Stream reads content chunks out of an SSE chat-completion response.
// Chunks are surfaced in the exact order the upstream produced them.
type Stream struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

// NewStream wraps a streaming response body.
func NewStream(r io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Stream{
		scanner: scanner,
		closer:  r,
	}
}

// chunkDelta is the slice of an OpenAI-protocol stream chunk we care about.
type chunkDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Recv returns the next content chunk. It returns io.EOF on the upstream
// [DONE] marker or a clean close, any other error if the connection drops
// mid-stream. Chunks carrying no content (role headers, finish markers) are
// skipped.
func (s *Stream) Recv() (string, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()

		if len(line) == 0 || !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}

		data := bytes.TrimPrefix(line, []byte("data: "))
		if bytes.Equal(data, []byte("[DONE]")) {
			return "", io.EOF
		}

		var chunk chunkDelta
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Malformed frame mid-stream is an upstream fault, not EOF.
			return "", err
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			return content, nil
		}
	}

	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Close releases the upstream connection. Safe to call after Recv returned
// an error.
func (s *Stream) Close() error {
	return s.closer.Close()
}
