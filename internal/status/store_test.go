package status

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/specflow/specflow/internal/errors"
	"github.com/specflow/specflow/internal/workflow"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return fs
}

func TestNewFileStore_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if fs == nil {
		t.Fatal("NewFileStore returned nil store")
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("directory was not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("path is not a directory")
	}
}

func TestFileStore_Read_Missing(t *testing.T) {
	fs := newTestStore(t)

	_, err := fs.Read("nope")
	if !errors.Is(err, errors.ErrProjectNotFound) {
		t.Errorf("Read of missing project = %v, want ErrProjectNotFound", err)
	}
}

func TestFileStore_GetOrCreate_Defaults(t *testing.T) {
	fs := newTestStore(t)

	st, err := fs.GetOrCreate("proj1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	if st.ProjectID != "proj1" {
		t.Errorf("ProjectID = %q, want proj1", st.ProjectID)
	}
	if st.CurrentAgent != workflow.AgentPM {
		t.Errorf("CurrentAgent = %q, want pm", st.CurrentAgent)
	}
	if got := st.CurrentRef().String(); got != "pm-questions-generate" {
		t.Errorf("current phase = %q, want pm-questions-generate", got)
	}
	if len(st.History) != 0 {
		t.Errorf("fresh project has %d history entries, want 0", len(st.History))
	}
	for _, agent := range []workflow.Agent{workflow.AgentPM, workflow.AgentUX, workflow.AgentEngineer} {
		as, ok := st.Agents[agent]
		if !ok {
			t.Fatalf("agent %s missing from fresh record", agent)
		}
		for phase, rec := range as.Phases {
			if rec.Status != workflow.PhaseNotStarted {
				t.Errorf("agent %s phase %s status = %q, want not-started", agent, phase, rec.Status)
			}
		}
	}

	// Record was persisted, not just returned.
	if _, err := os.Stat(fs.Path("proj1")); err != nil {
		t.Fatalf("status file was not created: %v", err)
	}

	// Second call loads the same record.
	again, err := fs.GetOrCreate("proj1")
	if err != nil {
		t.Fatalf("second GetOrCreate failed: %v", err)
	}
	if !again.LastUpdatedAt.Equal(st.LastUpdatedAt) {
		t.Error("second GetOrCreate should load the persisted record unchanged")
	}
}

func TestFileStore_Write_RequiresTimestamp(t *testing.T) {
	fs := newTestStore(t)

	st := workflow.DefaultDefinition().NewProjectStatus("p", time.Now)
	st.LastUpdatedAt = time.Time{}

	err := fs.Write("p", st)
	if err == nil {
		t.Fatal("Write without lastUpdatedAt should fail")
	}
	var vErr *errors.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("error = %v, want ValidationError", err)
	}
}

func TestFileStore_WriteRead_RoundTrip(t *testing.T) {
	fs := newTestStore(t)

	st, err := fs.GetOrCreate("p")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	st.Settings = json.RawMessage(`{"questionDepth":"standard"}`)
	st.LastUpdatedAt = time.Now()
	if err := fs.Write("p", st); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	loaded, err := fs.Read("p")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(loaded.Settings) != `{"questionDepth":"standard"}` {
		t.Errorf("Settings not passed through unmodified: %s", loaded.Settings)
	}
	if got := loaded.CurrentRef().String(); got != "pm-questions-generate" {
		t.Errorf("current phase after round trip = %q", got)
	}
}

func TestFileStore_SerializesCompositePhase(t *testing.T) {
	fs := newTestStore(t)

	if _, err := fs.GetOrCreate("p"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	raw, err := os.ReadFile(fs.Path("p"))
	if err != nil {
		t.Fatalf("failed to read status file: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("status file is not valid JSON: %v", err)
	}
	if wire["currentPhase"] != "pm-questions-generate" {
		t.Errorf("currentPhase = %v, want pm-questions-generate", wire["currentPhase"])
	}
	if wire["currentAgent"] != "pm" {
		t.Errorf("currentAgent = %v, want pm", wire["currentAgent"])
	}
}

func TestFileStore_CorruptRecordTreatedAsAbsent(t *testing.T) {
	fs := newTestStore(t)

	if err := os.WriteFile(fs.Path("p"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to plant corrupt file: %v", err)
	}

	_, err := fs.Read("p")
	if !errors.Is(err, errors.ErrProjectNotFound) {
		t.Errorf("Read of corrupt record = %v, want ErrProjectNotFound", err)
	}

	// GetOrCreate transparently reinitializes.
	st, err := fs.GetOrCreate("p")
	if err != nil {
		t.Fatalf("GetOrCreate over corrupt record failed: %v", err)
	}
	if st.CurrentAgent != workflow.AgentPM {
		t.Errorf("reinitialized CurrentAgent = %q, want pm", st.CurrentAgent)
	}

	loaded, err := fs.Read("p")
	if err != nil {
		t.Fatalf("Read after reinitialization failed: %v", err)
	}
	if loaded.CurrentAgent != workflow.AgentPM {
		t.Error("reinitialized record was not persisted")
	}
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	fs := newTestStore(t)

	st, err := fs.GetOrCreate("p")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		st.LastUpdatedAt = time.Now()
		if err := fs.Write("p", st); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(fs.BaseDir())
	if err != nil {
		t.Fatalf("failed to list store dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".tmp-") {
			t.Errorf("temp artifact left behind: %s", entry.Name())
		}
	}
}

func TestFileStore_ListProjects(t *testing.T) {
	fs := newTestStore(t)

	if _, err := fs.GetOrCreate("beta"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.GetOrCreate("alpha"); err != nil {
		t.Fatal(err)
	}
	// Unrelated files are ignored.
	if err := os.WriteFile(filepath.Join(fs.BaseDir(), "debug.log"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	ids, err := fs.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "beta" {
		t.Errorf("ListProjects = %v, want [alpha beta]", ids)
	}
}

func TestFileStore_Delete(t *testing.T) {
	fs := newTestStore(t)

	if _, err := fs.GetOrCreate("p"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Delete("p"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := fs.Delete("p"); !errors.Is(err, errors.ErrProjectNotFound) {
		t.Errorf("second Delete = %v, want ErrProjectNotFound", err)
	}
}
