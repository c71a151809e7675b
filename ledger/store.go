package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileName is the ledger document name inside the output directory
const FileName = "upload_status.json"

// ErrNoLedger is returned by Store.Load when no ledger has been written yet
var ErrNoLedger = errors.New("ledger not found")

// ErrCorruptLedger is returned by Store.Load when the document cannot be decoded
var ErrCorruptLedger = errors.New("ledger is corrupt")

// Store persists the ledger document
type Store interface {
	Load() (*Document, error)
	Save(doc *Document) error
	Remove() error
}

// FileStore keeps the ledger as a JSON file, rewritten atomically on every save
type FileStore struct {
	path string
}

// NewFileStore returns a store for upload_status.json in dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, FileName)}
}

// Path returns the ledger file location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoLedger
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptLedger, s.path, err)
	}
	if doc.Files == nil {
		doc.Files = make(map[string]*Entry)
	}
	return &doc, nil
}

func (s *FileStore) Save(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload_status-*.json")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func (s *FileStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove ledger: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store. SaveErr, when set, fails every Save.
type MemoryStore struct {
	mu      sync.Mutex
	data    []byte
	SaveErr error
	Saves   int
}

func (s *MemoryStore) Load() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, ErrNoLedger
	}
	var doc Document
	if err := json.Unmarshal(s.data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptLedger, err)
	}
	if doc.Files == nil {
		doc.Files = make(map[string]*Entry)
	}
	return &doc, nil
}

func (s *MemoryStore) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	s.data = data
	s.Saves++
	return nil
}

func (s *MemoryStore) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return nil
}

// Exists reports whether a document has been saved and not removed
func (s *MemoryStore) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data != nil
}
