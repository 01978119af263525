package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liquidityVault/internal/model"
)

// JsonlStorage appends vault events and state snapshots to two JSONL files.
type JsonlStorage struct {
	eventsPath string
	statesPath string
	mu         sync.Mutex
}

// NewJsonlStorage writes events to eventsPath. States are skipped when
// statesPath is empty.
func NewJsonlStorage(eventsPath, statesPath string) *JsonlStorage {
	return &JsonlStorage{eventsPath: eventsPath, statesPath: statesPath}
}

// PutEvents appends a batch of events as JSON lines.
func (s *JsonlStorage) PutEvents(_ context.Context, events []model.VaultEvent) error {
	if len(events) == 0 {
		return nil
	}
	items := make([]interface{}, len(events))
	for i := range events {
		items[i] = events[i]
	}
	return s.appendLines(s.eventsPath, items)
}

// PutStates appends a batch of state snapshots as JSON lines.
func (s *JsonlStorage) PutStates(_ context.Context, states []model.VaultState) error {
	if len(states) == 0 || s.statesPath == "" {
		return nil
	}
	items := make([]interface{}, len(states))
	for i := range states {
		items[i] = states[i]
	}
	return s.appendLines(s.statesPath, items)
}

func (s *JsonlStorage) appendLines(path string, items []interface{}) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// JsonlMetrics appends window metrics to a JSONL file.
type JsonlMetrics struct {
	out *JsonlStorage
}

func NewJsonlMetrics(path string) *JsonlMetrics {
	return &JsonlMetrics{out: &JsonlStorage{eventsPath: path}}
}

func (m *JsonlMetrics) PutWindowMetrics(_ context.Context, metrics []model.VaultWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	items := make([]interface{}, len(metrics))
	for i := range metrics {
		items[i] = metrics[i]
	}
	return m.out.appendLines(m.out.eventsPath, items)
}

// ReadEvents loads every event record from a JSONL file.
func ReadEvents(path string) ([]model.VaultEventRecord, error) {
	out, err := readLines[model.VaultEventRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return out, nil
}

// ReadStates loads every state snapshot from a JSONL file.
func ReadStates(path string) ([]model.VaultState, error) {
	out, err := readLines[model.VaultState](path)
	if err != nil {
		return nil, fmt.Errorf("read states: %w", err)
	}
	return out, nil
}

func readLines[T any](path string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []T
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
