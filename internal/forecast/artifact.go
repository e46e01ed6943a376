package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/tick-sightings/internal/domain"
)

// ArtifactStore persists the single trained model.
type ArtifactStore interface {
	Save(ctx context.Context, a *Artifact) error
	Load(ctx context.Context) (*Artifact, error)
}

// FileStore keeps the artifact as a JSON file. Saves replace the file
// atomically, so readers see either the old or the new model.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the artifact file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes a to a temporary file next to the target and renames it into place.
func (s *FileStore) Save(_ context.Context, a *Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace model: %w", err)
	}
	return nil
}

// Load reads and validates the artifact. A missing, unreadable or invalid
// file is reported as domain.ErrModelUnavailable.
func (s *FileStore) Load(_ context.Context) (*Artifact, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("model %s not found: %w", s.path, domain.ErrModelUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w: %w", s.path, domain.ErrModelUnavailable, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model %s: %w: %w", s.path, domain.ErrModelUnavailable, err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w: %w", s.path, domain.ErrModelUnavailable, err)
	}
	return &a, nil
}
