package codebook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleYAML = `
name: media attention
nodes:
  - id: 1
    name: background
    data:
      type: Survey phase
      phase:
        can_go_back: true
  - id: 2
    name: experience
    parent: 1
    data:
      type: Question
      variable:
        name: experience
        type: select code
        question: How often do you read the news?
        codes:
          - code: daily
          - code: weekly
          - code: rarely
  - id: 3
    name: coding
    data:
      type: Annotation phase
  - id: 4
    name: claims
    parent: 3
    data:
      type: Annotation task
      variable:
        name: claim
        type: select code
        fields: [body]
        codes:
          - code: claim
            color: "#00aa55"
  - id: 5
    name: claim-links
    parent: 3
    position: 1
    data:
      type: Annotation task
      variable:
        name: stance
        type: relation
        relations:
          - codes: [{code: supports}, {code: attacks}]
            from: {variable: claim}
            to: {variable: claim}
`

func TestParseSampleCodebook(t *testing.T) {
	cb, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.Name != "media attention" {
		t.Errorf("name = %q", cb.Name)
	}
	if len(cb.Nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %d", len(cb.Nodes))
	}

	phases := cb.Phases()
	if len(phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(phases))
	}
	if phases[0].PhaseType != PhaseSurvey || phases[1].PhaseType != PhaseAnnotation {
		t.Errorf("phase types = %s/%s", phases[0].PhaseType, phases[1].PhaseType)
	}
	if !phases[0].Data.Phase.CanGoBack {
		t.Error("expected can_go_back on the survey phase")
	}

	leaves := cb.PhaseLeaves(3)
	if len(leaves) != 2 {
		t.Fatalf("expected 2 leaves in annotation phase, got %d", len(leaves))
	}
	if leaves[0].Data.Variable.Name != "claim" || leaves[1].Data.Variable.Name != "stance" {
		t.Errorf("leaf variables = %s/%s", leaves[0].Data.Variable.Name, leaves[1].Data.Variable.Name)
	}
}

func TestParseRejectsDuplicateVariableNames(t *testing.T) {
	bad := strings.ReplaceAll(sampleYAML, "name: stance", "name: claim")
	_, err := Parse([]byte(bad))
	if err == nil || !strings.Contains(err.Error(), "duplicate variable") {
		t.Fatalf("expected duplicate variable error, got %v", err)
	}
}

func TestParseRejectsLeafWithoutVariable(t *testing.T) {
	const bad = `
name: broken
nodes:
  - id: 1
    name: p
    data: {type: Survey phase}
  - id: 2
    name: q
    parent: 1
    data: {type: Question}
`
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected error for leaf without variable")
	}
}

func TestParseRejectsCodelessSelect(t *testing.T) {
	const bad = `
name: broken
nodes:
  - id: 1
    name: p
    data: {type: Survey phase}
  - id: 2
    name: q
    parent: 1
    data:
      type: Question
      variable: {name: q, type: select code}
`
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected error for select code variable without codes")
	}
}

func TestParseAnnotinderVariable(t *testing.T) {
	const src = `
name: swiping
nodes:
  - id: 1
    name: p
    data: {type: Annotation phase}
  - id: 2
    name: q
    parent: 1
    data:
      type: Annotation question
      variable:
        name: relevant
        type: annotinder
        codes:
          - code: "yes"
          - code: "no"
`
	cb, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cb.Nodes[1].Data.Variable.Type; got != Annotinder {
		t.Errorf("variable type = %q, want %q", got, Annotinder)
	}

	codeless := strings.ReplaceAll(src, "\n        codes:\n          - code: \"yes\"\n          - code: \"no\"", "")
	if _, err := Parse([]byte(codeless)); err == nil {
		t.Fatal("expected error for annotinder variable without codes")
	}
}

func TestLoadCodebookFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codebook.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("failed to write temp codebook: %v", err)
	}
	cb, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cb.Nodes) != 5 {
		t.Errorf("expected 5 nodes, got %d", len(cb.Nodes))
	}
}
