// Package artifact defines where phase artifacts live on disk and what
// "looks complete" means for each kind: questions documents need at least one
// answered question, generated documents need a minimum size, and neither may
// carry residual placeholder markers.
package artifact

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specflow/specflow/internal/errors"
	"github.com/specflow/specflow/internal/workflow"
)

// DefaultMinDocumentBytes is the minimum size a generated document must reach
// before it is considered real content rather than a freshly written stub.
const DefaultMinDocumentBytes = 500

// placeholderMarkers are the residual template markers that disqualify an
// artifact from being considered complete.
var placeholderMarkers = []string{
	"TODO",
	"TBD",
	"[PLACEHOLDER]",
	"<!-- placeholder",
	"FIXME",
}

// questionMarker and answerMarker delimit one Q/A pair in a questions document.
const (
	questionMarker = "**Q:**"
	answerMarker   = "**A:**"
)

// documentNames maps each agent to the document its generate phase produces.
var documentNames = map[workflow.Agent]string{
	workflow.AgentPM:       "prd.md",
	workflow.AgentUX:       "design-brief.md",
	workflow.AgentEngineer: "spec.md",
}

// ---- Layout ----

// Layout resolves artifact paths beneath a project's docs directory:
//
//	<root>/docs/<agent>/questions.md
//	<root>/docs/prd.md | design-brief.md | spec.md
type Layout struct {
	root string
}

// NewLayout creates a Layout rooted at the project directory.
func NewLayout(projectRoot string) Layout {
	return Layout{root: projectRoot}
}

// DocsDir returns the project's docs directory.
func (l Layout) DocsDir() string {
	return filepath.Join(l.root, "docs")
}

// QuestionsPath returns the questions document path for an agent.
func (l Layout) QuestionsPath(agent workflow.Agent) string {
	return filepath.Join(l.DocsDir(), string(agent), "questions.md")
}

// DocumentPath returns the generated document path for an agent, or false if
// the agent has no document convention (e.g. the terminal pseudo-agent).
func (l Layout) DocumentPath(agent workflow.Agent) (string, bool) {
	name, ok := documentNames[agent]
	if !ok {
		return "", false
	}
	return filepath.Join(l.DocsDir(), name), true
}

// ---- Content checks ----

// FindPlaceholder returns the first placeholder marker found in content.
func FindPlaceholder(content []byte) (string, bool) {
	s := string(content)
	for _, marker := range placeholderMarkers {
		if strings.Contains(s, marker) {
			return marker, true
		}
	}
	return "", false
}

// CheckDocument verifies a generated document exists, exceeds minBytes, and
// carries no placeholder markers. minBytes <= 0 falls back to the default.
func CheckDocument(path string, minBytes int) error {
	if minBytes <= 0 {
		minBytes = DefaultMinDocumentBytes
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("artifact", path)
		}
		return fmt.Errorf("failed to read artifact: %w", err)
	}

	if len(content) < minBytes {
		return errors.NewValidationError(
			fmt.Sprintf("document too short: %d bytes, need at least %d", len(content), minBytes)).
			WithField("path").WithValue(path)
	}
	if marker, found := FindPlaceholder(content); found {
		return errors.NewValidationError(
			fmt.Sprintf("document contains placeholder marker %q", marker)).
			WithField("path").WithValue(path)
	}
	return nil
}

// CheckQuestionsAnswered verifies a questions document exists, is free of
// placeholder markers, and holds at least one question with a non-empty
// answer. Questions and answers are the **Q:** / **A:** convention; an
// answer's text may continue on the following lines until the next marker.
func CheckQuestionsAnswered(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("artifact", path)
		}
		return fmt.Errorf("failed to read artifact: %w", err)
	}

	if marker, found := FindPlaceholder(content); found {
		return errors.NewValidationError(
			fmt.Sprintf("questions document contains placeholder marker %q", marker)).
			WithField("path").WithValue(path)
	}

	if countAnsweredQuestions(content) == 0 {
		return errors.NewValidationError("questions document has no answered questions").
			WithField("path").WithValue(path)
	}
	return nil
}

// countAnsweredQuestions counts **Q:** markers that are followed by an
// **A:** marker with non-empty answer text before the next question.
func countAnsweredQuestions(content []byte) int {
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	answered := 0
	inQuestion := false
	answerText := ""
	collecting := false

	flush := func() {
		if inQuestion && strings.TrimSpace(answerText) != "" {
			answered++
		}
		inQuestion = false
		collecting = false
		answerText = ""
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, questionMarker):
			flush()
			inQuestion = true
		case strings.Contains(line, answerMarker):
			if inQuestion {
				collecting = true
				idx := strings.Index(line, answerMarker)
				answerText += line[idx+len(answerMarker):]
			}
		case collecting:
			answerText += "\n" + line
		}
	}
	flush()

	return answered
}
