package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"factoryScope/internal/model"
)

// AuditSink archives delivered block payloads for later replay.
type AuditSink interface {
	Append(block model.BlockPayload) error
}

// JsonlAudit appends block payloads to a JSONL file, one delivery per line.
type JsonlAudit struct {
	path string
	mu   sync.Mutex
}

func NewJsonlAudit(path string) *JsonlAudit {
	return &JsonlAudit{path: path}
}

// Append writes one block payload as a JSON line.
func (s *JsonlAudit) Append(block model.BlockPayload) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audit dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	line, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("marshal block payload: %w", err)
	}
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write block payload: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush audit file: %w", err)
	}

	return nil
}
