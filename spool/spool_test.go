package spool

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func createItem(t *testing.T, s *Store, sender, recipient, body string) string {
	t.Helper()
	env, data, base, err := s.CreateNewMessage()
	if err != nil {
		t.Fatalf("CreateNewMessage: %v", err)
	}
	if err := WriteEnvelope(env, sender, recipient); err != nil {
		t.Fatalf("WriteEnvelope: %v", err)
	}
	if err := env.Close(); err != nil {
		t.Fatalf("close envelope: %v", err)
	}
	if _, err := io.WriteString(data, body); err != nil {
		t.Fatalf("write body: %v", err)
	}
	if err := data.Close(); err != nil {
		t.Fatalf("close body: %v", err)
	}
	return base
}

func TestCreateAndReadBack(t *testing.T) {
	s := newTestStore(t)
	base := createItem(t, s, "a@x", "b@y", "Subject: hi\r\n\r\nbody")

	sender, recipient, err := s.ReadEnvelope(base)
	if err != nil {
		t.Fatalf("ReadEnvelope: %v", err)
	}
	if sender != "a@x" || recipient != "b@y" {
		t.Fatalf("unexpected envelope %s -> %s", sender, recipient)
	}

	f, err := s.OpenData(base)
	if err != nil {
		t.Fatalf("OpenData: %v", err)
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "Subject: hi\r\n\r\nbody" {
		t.Fatalf("unexpected body %q", string(body))
	}
}

func TestCreateNewMessageUniqueKeys(t *testing.T) {
	s := newTestStore(t)
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		base := createItem(t, s, "a@x", "b@y", "body")
		if seen[base] {
			t.Fatalf("duplicate base key %s", base)
		}
		seen[base] = true
	}
}

func TestEnumerateSkipsIncompleteItems(t *testing.T) {
	s := newTestStore(t)
	complete := createItem(t, s, "a@x", "b@y", "body")

	// Header without data must not be enumerated.
	if err := os.WriteFile(filepath.Join(s.Dir(), "orphan-H"), []byte(`["a@x","b@y"]`), 0o600); err != nil {
		t.Fatalf("write orphan header: %v", err)
	}
	// Data without header must not be enumerated either.
	if err := os.WriteFile(filepath.Join(s.Dir(), "headless-D"), []byte("body"), 0o600); err != nil {
		t.Fatalf("write orphan data: %v", err)
	}

	bases, err := s.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(bases) != 1 || bases[0] != complete {
		t.Fatalf("expected only %s, got %v", complete, bases)
	}
}

func TestRemoveDeletesBothFiles(t *testing.T) {
	s := newTestStore(t)
	base := createItem(t, s, "a@x", "b@y", "body")

	if err := s.Remove(base); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.Exists(base) {
		t.Fatalf("expected both files gone")
	}
	bases, err := s.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(bases) != 0 {
		t.Fatalf("expected empty spool, got %v", bases)
	}

	// A second removal must fail loudly, not report silent success.
	err = s.Remove(base)
	if err == nil {
		t.Fatalf("expected error removing missing item")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}
}

func TestReadEnvelopeRejectsGarbage(t *testing.T) {
	s := newTestStore(t)

	if err := os.WriteFile(filepath.Join(s.Dir(), "bad-H"), []byte("not json"), 0o600); err != nil {
		t.Fatalf("write bad header: %v", err)
	}
	if _, _, err := s.ReadEnvelope("bad"); err == nil {
		t.Fatalf("expected error for malformed envelope")
	}

	if err := os.WriteFile(filepath.Join(s.Dir(), "empty-H"), []byte(`["",""]`), 0o600); err != nil {
		t.Fatalf("write empty header: %v", err)
	}
	if _, _, err := s.ReadEnvelope("empty"); err == nil {
		t.Fatalf("expected error for empty envelope pair")
	}
}
