package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specflow/specflow/internal/errors"
	"github.com/specflow/specflow/internal/workflow"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLayout_Paths(t *testing.T) {
	l := NewLayout("/work/billing")

	if got := l.DocsDir(); got != filepath.Join("/work/billing", "docs") {
		t.Errorf("DocsDir = %q", got)
	}
	if got := l.QuestionsPath(workflow.AgentUX); got != filepath.Join("/work/billing", "docs", "ux", "questions.md") {
		t.Errorf("QuestionsPath(ux) = %q", got)
	}

	tests := []struct {
		agent workflow.Agent
		want  string
	}{
		{workflow.AgentPM, "prd.md"},
		{workflow.AgentUX, "design-brief.md"},
		{workflow.AgentEngineer, "spec.md"},
	}
	for _, tt := range tests {
		path, ok := l.DocumentPath(tt.agent)
		if !ok {
			t.Fatalf("DocumentPath(%s) not defined", tt.agent)
		}
		if filepath.Base(path) != tt.want {
			t.Errorf("DocumentPath(%s) = %q, want base %q", tt.agent, path, tt.want)
		}
	}

	if _, ok := l.DocumentPath(workflow.AgentComplete); ok {
		t.Error("terminal pseudo-agent should have no document")
	}
}

func TestFindPlaceholder(t *testing.T) {
	tests := []struct {
		name    string
		content string
		marker  string
		found   bool
	}{
		{"clean", "All requirements are final.", "", false},
		{"todo", "Requirements:\n- TODO: fill in", "TODO", true},
		{"tbd", "Launch date: TBD", "TBD", true},
		{"bracketed", "[PLACEHOLDER] section", "[PLACEHOLDER]", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marker, found := FindPlaceholder([]byte(tt.content))
			if found != tt.found || marker != tt.marker {
				t.Errorf("FindPlaceholder = %q, %v; want %q, %v", marker, found, tt.marker, tt.found)
			}
		})
	}
}

func TestCheckDocument(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		err := CheckDocument(filepath.Join(dir, "absent.md"), 100)
		var nf *errors.NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("missing document error = %v, want NotFoundError", err)
		}
	})

	t.Run("too short", func(t *testing.T) {
		path := filepath.Join(dir, "short.md")
		writeFile(t, path, "# PRD\n")
		err := CheckDocument(path, 100)
		var vErr *errors.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("short document error = %v, want ValidationError", err)
		}
	})

	t.Run("placeholder", func(t *testing.T) {
		path := filepath.Join(dir, "stub.md")
		writeFile(t, path, "# PRD\n\n"+strings.Repeat("Real content here. ", 20)+"\nTBD\n")
		if err := CheckDocument(path, 100); err == nil {
			t.Error("document with placeholder should fail")
		}
	})

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "ok.md")
		writeFile(t, path, "# PRD\n\n"+strings.Repeat("Final requirement text. ", 20))
		if err := CheckDocument(path, 100); err != nil {
			t.Errorf("valid document rejected: %v", err)
		}
	})
}

func TestCheckQuestionsAnswered(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name:    "answered",
			content: "# Questions\n\n**Q:** Who is the primary user?\n**A:** Internal support agents.\n",
			wantErr: false,
		},
		{
			name:    "multiline answer",
			content: "**Q:** Scope?\n**A:**\nPhase one only.\nNo mobile surface.\n",
			wantErr: false,
		},
		{
			name:    "unanswered",
			content: "**Q:** Who is the primary user?\n**A:**\n\n**Q:** Scope?\n**A:**\n",
			wantErr: true,
		},
		{
			name:    "no markers",
			content: "Just prose without any question structure.\n",
			wantErr: true,
		},
		{
			name:    "placeholder",
			content: "**Q:** Who?\n**A:** TODO\n",
			wantErr: true,
		},
		{
			name:    "one answered among blanks",
			content: "**Q:** First?\n**A:**\n\n**Q:** Second?\n**A:** Yes, confirmed.\n",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "-")+".md")
			writeFile(t, path, tt.content)

			err := CheckQuestionsAnswered(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckQuestionsAnswered error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		err := CheckQuestionsAnswered(filepath.Join(dir, "absent.md"))
		var nf *errors.NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("missing questions error = %v, want NotFoundError", err)
		}
	})
}
