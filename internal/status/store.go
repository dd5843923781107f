// Package status persists project status records on the local filesystem,
// one JSON file per project. Writes go through a write-to-temp-then-rename
// sequence so a reader never observes a partially written record; the rename
// is the only externally visible state change.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/specflow/specflow/internal/errors"
	"github.com/specflow/specflow/internal/logging"
	"github.com/specflow/specflow/internal/workflow"
)

// statusFileSuffix is appended to the project ID to form the file name.
const statusFileSuffix = ".status.json"

// FileStore is a file-based implementation of the engine's Store interface.
// Each project maps to <baseDir>/<projectID>.status.json.
type FileStore struct {
	baseDir string
	def     *workflow.Definition
	log     *logging.Logger
	now     func() time.Time
}

// FileStoreOption is a functional option for configuring a FileStore.
type FileStoreOption func(*FileStore)

// WithDefinition overrides the workflow definition used to build default
// records in GetOrCreate.
func WithDefinition(def *workflow.Definition) FileStoreOption {
	return func(fs *FileStore) {
		fs.def = def
	}
}

// WithLogger sets the logger used for local concerns (parse failures).
func WithLogger(log *logging.Logger) FileStoreOption {
	return func(fs *FileStore) {
		fs.log = log
	}
}

// WithClock overrides the time source for default-record creation.
func WithClock(now func() time.Time) FileStoreOption {
	return func(fs *FileStore) {
		fs.now = now
	}
}

// NewFileStore creates a FileStore rooted at the given directory.
// The directory will be created if it doesn't exist.
func NewFileStore(baseDir string, opts ...FileStoreOption) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create status directory: %w", err)
	}

	fs := &FileStore{
		baseDir: baseDir,
		def:     workflow.DefaultDefinition(),
		log:     logging.NopLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs, nil
}

// BaseDir returns the directory holding status files.
func (fs *FileStore) BaseDir() string {
	return fs.baseDir
}

// Path returns the status file path for a project.
func (fs *FileStore) Path(projectID string) string {
	return filepath.Join(fs.baseDir, projectID+statusFileSuffix)
}

// Read loads a project's status record. A missing file returns
// ErrProjectNotFound. An unparseable file is treated as absence too: the
// parse failure is logged as a local concern and never surfaced, favoring
// self-repair over raising on corrupt state.
func (fs *FileStore) Read(projectID string) (*workflow.ProjectStatus, error) {
	data, err := os.ReadFile(fs.Path(projectID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var st workflow.ProjectStatus
	if err := json.Unmarshal(data, &st); err != nil {
		fs.log.Warn("status record corrupted, treating as absent",
			"project_id", projectID, "error", err.Error())
		return nil, errors.ErrProjectNotFound
	}
	if st.ProjectID == "" {
		st.ProjectID = projectID
	}

	return &st, nil
}

// Write persists a project's status record atomically. The caller is
// responsible for stamping LastUpdatedAt; the store performs no implicit
// timestamping.
func (fs *FileStore) Write(projectID string, st *workflow.ProjectStatus) error {
	if st.LastUpdatedAt.IsZero() {
		return errors.NewValidationError("lastUpdatedAt must be set before writing").
			WithField("lastUpdatedAt")
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	return atomicWriteFile(fs.Path(projectID), data, 0644)
}

// GetOrCreate loads a project's status record, constructing, persisting and
// returning the default initial record when none exists.
func (fs *FileStore) GetOrCreate(projectID string) (*workflow.ProjectStatus, error) {
	st, err := fs.Read(projectID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, errors.ErrProjectNotFound) {
		return nil, err
	}

	st = fs.def.NewProjectStatus(projectID, fs.now)
	if err := fs.Write(projectID, st); err != nil {
		return nil, err
	}
	fs.log.Info("initialized project status", "project_id", projectID)
	return st, nil
}

// Delete removes a project's status file. Returns ErrProjectNotFound when
// no record exists.
func (fs *FileStore) Delete(projectID string) error {
	if err := os.Remove(fs.Path(projectID)); err != nil {
		if os.IsNotExist(err) {
			return errors.ErrProjectNotFound
		}
		return fmt.Errorf("failed to delete status file: %w", err)
	}
	return nil
}

// ListProjects returns the IDs of all projects with a status file, sorted.
func (fs *FileStore) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list status directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, statusFileSuffix) {
			ids = append(ids, strings.TrimSuffix(name, statusFileSuffix))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// atomicWriteFile writes data to a file atomically by writing to a temporary
// file first, then renaming. On any failure the temporary artifact is
// removed (best-effort) and the real file is never touched.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	// Create temp file in same directory to ensure atomic rename
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on any error
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Sync to disk
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
