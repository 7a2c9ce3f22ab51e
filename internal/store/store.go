// Package store checkpoints plan documents as JSON files, one per plan id.
// The orchestration core never touches it; it exists so a caller can park a
// conversation and resume it later with the document structurally unchanged.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aldenmarsh/planforge/internal/plan"
)

// ErrNotFound is returned by Load for an unknown plan id.
var ErrNotFound = errors.New("store: plan not found")

// Store persists plan documents under a directory.
type Store struct {
	dir string
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("store: creating %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes the document atomically.
func (s *Store) Save(doc *plan.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("store: document has no id")
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path(doc.ID), data, 0644)
}

// Load reads the document for a plan id.
func (s *Store) Load(id string) (*plan.Document, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	var doc plan.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: parsing %s: %w", id, err)
	}
	return &doc, nil
}

// List returns the plan ids present in the store.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

// writeFileAtomic writes via a temp file, fsync, and rename so a crash
// mid-write never corrupts a checkpoint.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
