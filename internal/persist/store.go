// Package persist stores per-command style overrides in a flat
// newline-delimited JSON file.
package persist

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/pslog"
)

// Record is one line of the styles file.
type Record struct {
	Command string      `json:"command"`
	Styles  map[int]int `json:"styles"`
}

// Error reports a styles file that could not be read, parsed or written.
type Error struct {
	Op   string
	Path string
	Line int
	Err  error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("styles %s %s:%d: %v", e.Op, e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("styles %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Key normalizes the watched commands into the record key.
func Key(commands []string) string {
	return strings.TrimSpace(strings.Join(commands, " "))
}

// DefaultPath returns $HOME/.config/dwatch/styles.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "dwatch", "styles.json"), nil
}

// Store reads and writes the styles file at Path.
type Store struct {
	path string
	log  pslog.Logger
}

// NewStore returns a Store for path.
func NewStore(path string) (*Store, error) {
	return NewStoreWithLogger(path, nil)
}

// NewStoreWithLogger returns a Store for path that logs through logger.
func NewStoreWithLogger(path string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("styles file path is required")
	}
	if logger != nil {
		logger = logger.With("styles_file", path)
	}
	return &Store{path: path, log: logger}, nil
}

// Path returns the file location.
func (s *Store) Path() string { return s.path }

// Load returns the overrides stored for key. A missing or empty file yields
// an empty map.
func (s *Store) Load(key string) (map[int]int, error) {
	records, err := s.readAll()
	if err != nil {
		if s.log != nil {
			s.log.Warn("styles load failed", "err", err)
		}
		return map[int]int{}, err
	}
	for _, r := range records {
		if r.Command == key {
			if s.log != nil {
				s.log.Debug("styles load ok", "command", key, "overrides", len(r.Styles))
			}
			if r.Styles == nil {
				return map[int]int{}, nil
			}
			return r.Styles, nil
		}
	}
	if s.log != nil {
		s.log.Debug("styles load miss", "command", key)
	}
	return map[int]int{}, nil
}

// Save replaces or appends the record for key and rewrites the file.
func (s *Store) Save(key string, styles map[int]int) error {
	records, err := s.readAll()
	if err != nil {
		if s.log != nil {
			s.log.Warn("styles save failed", "err", err)
		}
		return err
	}
	if styles == nil {
		styles = map[int]int{}
	}
	replaced := false
	for i := range records {
		if records[i].Command == key {
			records[i].Styles = styles
			replaced = true
		}
	}
	if !replaced {
		records = append(records, Record{Command: key, Styles: styles})
	}
	if err := s.writeAll(records); err != nil {
		if s.log != nil {
			s.log.Warn("styles save failed", "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Debug("styles save ok", "command", key, "overrides", len(styles), "records", len(records))
	}
	return nil
}

func (s *Store) readAll() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &Error{Op: "read", Path: s.path, Err: err}
	}
	var records []Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, &Error{Op: "parse", Path: s.path, Line: lineNo, Err: err}
		}
		records = append(records, r)
	}
	if err := sc.Err(); err != nil {
		return nil, &Error{Op: "read", Path: s.path, Err: err}
	}
	return records, nil
}

func (s *Store) writeAll(records []Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &Error{Op: "write", Path: s.path, Err: err}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return &Error{Op: "encode", Path: s.path, Err: err}
		}
	}
	tmp, err := os.CreateTemp(dir, "styles-*.json")
	if err != nil {
		return &Error{Op: "write", Path: s.path, Err: err}
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return &Error{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return &Error{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return &Error{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return &Error{Op: "write", Path: s.path, Err: err}
	}
	return nil
}
