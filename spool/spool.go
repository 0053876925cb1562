// Package spool persists queued relay messages on disk. Each message is kept
// as two files sharing a base key: "<key>-H" holds the JSON-encoded
// ["sender", "recipient"] envelope and "<key>-D" holds the raw message body.
// An item is valid only while both files exist.
package spool

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	headerSuffix = "-H"
	dataSuffix   = "-D"
)

// Store manages the spool directory.
type Store struct {
	dir string
}

// NewStore opens (creating if needed) a spool directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("spool: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the spool directory path.
func (s *Store) Dir() string {
	return s.dir
}

// CreateNewMessage allocates a fresh base key and both files for one queued
// message. The caller must write and close the envelope before handing the
// body writer out; base identifies the item for later enumeration.
func (s *Store) CreateNewMessage() (envelope io.WriteCloser, body io.WriteCloser, base string, err error) {
	base = uuid.NewString()
	env, err := os.OpenFile(s.path(base, headerSuffix), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, nil, "", fmt.Errorf("spool: create envelope for %s: %w", base, err)
	}
	data, err := os.OpenFile(s.path(base, dataSuffix), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		env.Close()
		os.Remove(s.path(base, headerSuffix))
		return nil, nil, "", fmt.Errorf("spool: create data for %s: %w", base, err)
	}
	return env, data, base, nil
}

// WriteEnvelope serialises the (sender, recipient) pair to w.
func WriteEnvelope(w io.Writer, sender, recipient string) error {
	return json.NewEncoder(w).Encode([2]string{sender, recipient})
}

// ReadEnvelope loads the envelope for base and closes the file before
// returning.
func (s *Store) ReadEnvelope(base string) (sender, recipient string, err error) {
	f, err := os.Open(s.path(base, headerSuffix))
	if err != nil {
		return "", "", fmt.Errorf("spool: open envelope for %s: %w", base, err)
	}
	defer f.Close()

	var pair [2]string
	if err := json.NewDecoder(f).Decode(&pair); err != nil {
		return "", "", fmt.Errorf("spool: decode envelope for %s: %w", base, err)
	}
	if pair[0] == "" || pair[1] == "" {
		return "", "", fmt.Errorf("spool: incomplete envelope for %s", base)
	}
	return pair[0], pair[1], nil
}

// OpenData opens the message body for streaming.
func (s *Store) OpenData(base string) (*os.File, error) {
	f, err := os.Open(s.path(base, dataSuffix))
	if err != nil {
		return nil, fmt.Errorf("spool: open data for %s: %w", base, err)
	}
	return f, nil
}

// Exists reports whether both files of an item are present.
func (s *Store) Exists(base string) bool {
	if _, err := os.Stat(s.path(base, headerSuffix)); err != nil {
		return false
	}
	_, err := os.Stat(s.path(base, dataSuffix))
	return err == nil
}

// Enumerate returns the base keys of all complete items, sorted for a stable
// drain order.
func (s *Store) Enumerate() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("spool: read %s: %w", s.dir, err)
	}
	var bases []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, headerSuffix) {
			continue
		}
		base := strings.TrimSuffix(name, headerSuffix)
		if s.Exists(base) {
			bases = append(bases, base)
		}
	}
	sort.Strings(bases)
	return bases, nil
}

// Remove deletes both files of a delivered item. A missing file is an error:
// a second removal of the same key must not report silent success.
func (s *Store) Remove(base string) error {
	derr := os.Remove(s.path(base, dataSuffix))
	herr := os.Remove(s.path(base, headerSuffix))
	if derr != nil {
		return fmt.Errorf("spool: remove data for %s: %w", base, derr)
	}
	if herr != nil {
		return fmt.Errorf("spool: remove envelope for %s: %w", base, herr)
	}
	return nil
}

// Discard removes whatever is left of a partially written item.
func (s *Store) Discard(base string) {
	os.Remove(s.path(base, dataSuffix))
	os.Remove(s.path(base, headerSuffix))
}

func (s *Store) path(base, suffix string) string {
	return filepath.Join(s.dir, base+suffix)
}
