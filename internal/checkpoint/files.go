// Package checkpoint reads and writes the JSON files exchanged between the
// fetch, clean and upload stages.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/witsync/internal/domain"
)

// CleanedPath derives the records file name for a raw export file:
// "workitems.json" becomes "workitems_cleaned.json".
func CleanedPath(inputPath string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "_cleaned.json"
}

// EncodeRecords renders records as an indented JSON array.
func EncodeRecords(records []domain.ChunkRecord) ([]byte, error) {
	if records == nil {
		records = []domain.ChunkRecord{}
	}
	return encode(records)
}

// DecodeRecords parses a JSON array of records.
func DecodeRecords(data []byte) ([]domain.ChunkRecord, error) {
	var records []domain.ChunkRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode chunk records: %w", err)
	}
	return records, nil
}

// WriteRecords writes records to path.
func WriteRecords(path string, records []domain.ChunkRecord) error {
	data, err := EncodeRecords(records)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// ReadRecords reads a records file. A missing file yields
// domain.ErrInputFileNotFound.
func ReadRecords(path string) ([]domain.ChunkRecord, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeRecords(data)
}

// WriteItems writes a raw work item export.
func WriteItems(path string, items []domain.RawWorkItem) error {
	if items == nil {
		items = []domain.RawWorkItem{}
	}
	data, err := encode(items)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// ReadItems reads a raw work item export.
func ReadItems(path string) ([]domain.RawWorkItem, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var items []domain.RawWorkItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode work items in %s: %w", path, err)
	}
	return items, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return buf.Bytes(), nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrInputFileNotFound.Wrap(fmt.Errorf("%s", path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
