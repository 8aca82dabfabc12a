package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"geomesh.io/hyperbr/internal/core"
	"geomesh.io/hyperbr/internal/log"
)

// FileStore persists device records as individual JSON files under a
// directory. Writes use temp-file + atomic rename for crash safety.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("device store: create directory %q: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Save atomically writes rec, overwriting any existing record for the
// same address.
func (s *FileStore) Save(rec core.DeviceRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("device store: marshal %s: %w", rec.IP, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".device.*.tmp")
	if err != nil {
		return fmt.Errorf("device store: create temp file for %s: %w", rec.IP, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("device store: write temp file for %s: %w", rec.IP, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("device store: close temp file for %s: %w", rec.IP, err)
	}

	if err := os.Rename(tmpName, s.path(rec.IP.String())); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("device store: rename for %s: %w", rec.IP, err)
	}
	return nil
}

// Delete removes the persisted record for addr. Deleting a record that
// does not exist is not an error.
func (s *FileStore) Delete(addr string) error {
	err := os.Remove(s.path(addr))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("device store: delete %s: %w", addr, err)
	}
	return nil
}

// List returns all persisted records. Corrupt entries are logged and
// skipped rather than failing the whole load.
func (s *FileStore) List() ([]core.DeviceRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("device store: read directory: %w", err)
	}

	var out []core.DeviceRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			log.GetLogger().WithError(err).Warnf("skipping unreadable device record %s", e.Name())
			continue
		}
		var rec core.DeviceRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			log.GetLogger().WithError(err).Warnf("skipping corrupt device record %s", e.Name())
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// path maps an address to its record file. Colons are replaced so the
// name stays portable.
func (s *FileStore) path(addr string) string {
	return filepath.Join(s.dir, strings.ReplaceAll(addr, ":", "_")+".json")
}
