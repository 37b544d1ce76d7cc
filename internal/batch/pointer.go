package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/certmail/internal/errors"
)

// PointerSchemaVersion is bumped whenever Pointer changes incompatibly.
const PointerSchemaVersion = "1"

// PointerFile is the pointer's file name inside the state directory.
const PointerFile = "last_batch.json"

// Pointer records where the last batch was written. It lets a later send
// invocation find the certificates without re-rendering.
type Pointer struct {
	SchemaVersion string `json:"schema_version"`
	BatchID       string `json:"batch_id"`
	OutputDir     string `json:"output_dir"`
	Format        string `json:"format"`
	Count         int    `json:"count"`
	CreatedAt     int64  `json:"created_at"`
}

// NewPointer builds a pointer for res.
func NewPointer(id string, res *Result, format string, at time.Time) Pointer {
	return Pointer{
		SchemaVersion: PointerSchemaVersion,
		BatchID:       id,
		OutputDir:     res.Dir,
		Format:        format,
		Count:         len(res.Files),
		CreatedAt:     at.Unix(),
	}
}

// WritePointer writes p to stateDir atomically.
func WritePointer(stateDir string, p Pointer) error {
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("create state directory: %w", err))
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.NewInternal(err)
	}

	path := filepath.Join(stateDir, PointerFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0600); err != nil {
		return errors.NewInternal(fmt.Errorf("write batch pointer: %w", err))
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.NewInternal(fmt.Errorf("write batch pointer: %w", err))
	}
	return nil
}

// ReadPointer loads the pointer from stateDir.
func ReadPointer(stateDir string) (*Pointer, error) {
	path := filepath.Join(stateDir, PointerFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			e := errors.NewNotFound(path)
			e.Message = "no certificate batch recorded; run `certmail render` first or pass --certificates"
			return nil, e
		}
		return nil, errors.NewInternal(fmt.Errorf("read batch pointer: %w", err))
	}

	var p Pointer
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("batch pointer %s is corrupt: %v", path, err))
	}
	if p.SchemaVersion != PointerSchemaVersion {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("batch pointer %s has schema version %q, want %q; re-run `certmail render`", path, p.SchemaVersion, PointerSchemaVersion))
	}
	if p.OutputDir == "" {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("batch pointer %s has no output_dir", path))
	}
	return &p, nil
}
