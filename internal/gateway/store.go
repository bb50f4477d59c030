package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/ppiankov/sendwatch/internal/model"
)

// ErrRecordNotFound is returned when no record exists for an ID.
var ErrRecordNotFound = errors.New("approval record not found")

// validID matches alphanumeric and dash characters only (UUIDs).
var validID = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// validateID rejects IDs that could cause path traversal.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("record id must not be empty")
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("record id must not contain '..'")
	}
	if !validID.MatchString(id) {
		return fmt.Errorf("record id contains invalid characters")
	}
	return nil
}

// RecordStore manages approval record files on disk: one JSON file
// per record, written atomically via tmp+rename.
type RecordStore struct {
	dir string
	mu  sync.Mutex
}

// NewRecordStore creates a RecordStore backed by the given directory.
func NewRecordStore(dir string) (*RecordStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create record directory: %w", err)
	}
	return &RecordStore{dir: dir}, nil
}

// DefaultDir returns the default record store directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sendwatch-records")
	}
	return filepath.Join(home, ".sendwatch", "records")
}

// Put writes a record, creating or replacing its file.
func (s *RecordStore) Put(rec *model.ApprovalRecord) error {
	if err := validateID(rec.ID); err != nil {
		return fmt.Errorf("invalid record id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeAtomic(s.path(rec.ID), rec)
}

// Get reads a record by ID.
func (s *RecordStore) Get(id string) (*model.ApprovalRecord, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("invalid record id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read(id)
}

// List returns all records in the store.
func (s *RecordStore) List() ([]model.ApprovalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []model.ApprovalRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		rec, err := s.read(id)
		if err != nil {
			continue
		}
		records = append(records, *rec)
	}

	return records, nil
}

// ListByStatus returns all records with the given status.
func (s *RecordStore) ListByStatus(status model.Status) ([]model.ApprovalRecord, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var filtered []model.ApprovalRecord
	for _, rec := range all {
		if rec.Status == status {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

func (s *RecordStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *RecordStore) read(id string) (*model.ApprovalRecord, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return nil, err
	}

	var rec model.ApprovalRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (s *RecordStore) writeAtomic(path string, rec *model.ApprovalRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
