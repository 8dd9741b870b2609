// Package sink persists emitted product records as a single JSON array,
// fully rewritten at the start of each run.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tmabaso28/pnpscraper/internal/scraper"
	"tmabaso28/pnpscraper/logger"
)

// JSONSink writes indent-formatted ProductRecords into one JSON array file.
// Appends are safe from any goroutine; the file is never read mid-run.
type JSONSink struct {
	path string

	mu    sync.Mutex
	file  *os.File
	first bool
	count int
}

// NewJSONSink creates a sink for the given file path
func NewJSONSink(path string) *JSONSink {
	return &JSONSink{path: path}
}

// Open truncates the backing file and writes the array opener. Results of
// any previous run are discarded.
func (s *JSONSink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return fmt.Errorf("sink already open")
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating data directory %q: %w", dir, err)
		}
	}

	file, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	if _, err := file.WriteString("[\n"); err != nil {
		file.Close()
		return fmt.Errorf("writing array opener: %w", err)
	}

	s.file = file
	s.first = true
	s.count = 0
	return nil
}

// Append writes one record to the array
func (s *JSONSink) Append(record *scraper.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("sink is not open")
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	if !s.first {
		if _, err := s.file.WriteString(",\n"); err != nil {
			return fmt.Errorf("writing record separator: %w", err)
		}
	}
	s.first = false

	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	s.count++
	return nil
}

// Close terminates the array and closes the file. Safe to call when the
// sink never opened.
func (s *JSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	_, writeErr := s.file.WriteString("\n]")
	closeErr := s.file.Close()
	s.file = nil

	logger.ForSink().Info().Int("records", s.count).Str("path", s.path).Msg("Results file closed")

	if writeErr != nil {
		return fmt.Errorf("writing array closer: %w", writeErr)
	}
	return closeErr
}

// Count returns the number of records appended during the current run
func (s *JSONSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Path returns the backing file path
func (s *JSONSink) Path() string {
	return s.path
}

// ReadProducts reads a results file back as records. A missing file returns
// the os.ErrNotExist it came from so callers can map it to "not found".
func ReadProducts(path string) ([]scraper.ProductRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var products []scraper.ProductRecord
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decoding results file: %w", err)
	}
	return products, nil
}
