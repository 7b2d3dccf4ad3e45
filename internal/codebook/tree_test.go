package codebook

import (
	"errors"
	"testing"
)

func ptr(id int64) *int64 { return &id }

func surveyNodes() []Node {
	return []Node{
		{ID: 1, Name: "intro", Data: NodeData{Type: SurveyPhase}},
		{ID: 2, Name: "age", ParentID: ptr(1), Data: NodeData{Type: Question, Variable: &Variable{
			Name: "age", Type: SelectCode, Codes: []Code{{Code: "18-35"}, {Code: "36+"}},
		}}},
	}
}

func TestIsValidParent(t *testing.T) {
	tests := []struct {
		child, parent NodeType
		want          bool
	}{
		{SurveyPhase, Root, true},
		{AnnotationPhase, Root, true},
		{Question, Root, false},
		{SurveyPhase, SurveyPhase, false},
		{Question, SurveyPhase, true},
		{Question, QuestionGroup, true},
		{Question, AnnotationPhase, false},
		{AnnotationTask, SurveyPhase, false},
		{AnnotationTask, AnnotationPhase, true},
		{AnnotationQuestion, AnnotationGroup, true},
		{QuestionGroup, SurveyPhase, true},
		{QuestionGroup, AnnotationPhase, false},
		{Question, Question, false},
		{"Bogus type", SurveyPhase, false},
	}
	for _, tt := range tests {
		if got := IsValidParent(tt.child, tt.parent); got != tt.want {
			t.Errorf("IsValidParent(%q, %q) = %v, want %v", tt.child, tt.parent, got, tt.want)
		}
	}
}

func TestValidChildren(t *testing.T) {
	root := ValidChildren(Root)
	if len(root.Phases) != 2 || len(root.Groups) != 0 || len(root.Leaves) != 0 {
		t.Errorf("root children = %+v, want 2 phases only", root)
	}

	survey := ValidChildren(SurveyPhase)
	if len(survey.Phases) != 0 {
		t.Error("survey phase must not parent phases")
	}
	if len(survey.Groups) != 1 || survey.Groups[0] != QuestionGroup {
		t.Errorf("survey phase groups = %v, want [%s]", survey.Groups, QuestionGroup)
	}
	if len(survey.Leaves) != 1 || survey.Leaves[0] != Question {
		t.Errorf("survey phase leaves = %v, want [%s]", survey.Leaves, Question)
	}

	leaf := ValidChildren(Question)
	if len(leaf.Phases)+len(leaf.Groups)+len(leaf.Leaves) != 0 {
		t.Error("leaf must not parent anything")
	}
}

func TestPrepareSurveyPhase(t *testing.T) {
	out, err := Prepare(surveyNodes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(out))
	}

	phase := out[0]
	if phase.TreeType != TreePhase || phase.PhaseType != PhaseSurvey {
		t.Errorf("node 1 = %s/%s, want phase/survey", phase.TreeType, phase.PhaseType)
	}
	if len(phase.Children) != 1 || phase.Children[0] != 2 {
		t.Errorf("node 1 children = %v, want [2]", phase.Children)
	}

	leaf := out[1]
	if leaf.TreeType != TreeLeaf {
		t.Errorf("node 2 tree type = %s, want leaf", leaf.TreeType)
	}
	if leaf.PhaseID != 1 || leaf.PhaseType != PhaseSurvey {
		t.Errorf("node 2 phase = %d/%s, want 1/survey", leaf.PhaseID, leaf.PhaseType)
	}
	if len(leaf.ParentPath) != 1 || leaf.ParentPath[0].ID != 1 {
		t.Errorf("node 2 parent path = %v, want [node 1]", leaf.ParentPath)
	}
}

func TestPrepareOrdersAndRenumbersSiblings(t *testing.T) {
	nodes := []Node{
		{ID: 1, Name: "p", Data: NodeData{Type: AnnotationPhase}},
		{ID: 2, Name: "b", ParentID: ptr(1), Position: 7, Data: NodeData{Type: AnnotationTask, Variable: spanVar("b")}},
		{ID: 3, Name: "a", ParentID: ptr(1), Position: 2, Data: NodeData{Type: AnnotationTask, Variable: spanVar("a")}},
	}
	out, err := Prepare(nodes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[1].ID != 3 || out[2].ID != 2 {
		t.Fatalf("expected order [1 3 2], got [%d %d %d]", out[0].ID, out[1].ID, out[2].ID)
	}
	if out[1].Position != 0 || out[2].Position != 1 {
		t.Errorf("expected renumbered positions [0 1], got [%d %d]", out[1].Position, out[2].Position)
	}
}

func TestPrepareDeepParentPath(t *testing.T) {
	nodes := []Node{
		{ID: 1, Name: "p", Data: NodeData{Type: AnnotationPhase}},
		{ID: 2, Name: "g", ParentID: ptr(1), Data: NodeData{Type: AnnotationGroup}},
		{ID: 3, Name: "t", ParentID: ptr(2), Data: NodeData{Type: AnnotationTask, Variable: spanVar("t")}},
	}
	out, err := Prepare(nodes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	leaf := out[2]
	if len(leaf.ParentPath) != 2 {
		t.Fatalf("expected parent path of 2, got %d", len(leaf.ParentPath))
	}
	if leaf.ParentPath[0].ID != 1 || leaf.ParentPath[1].ID != 2 {
		t.Errorf("parent path ids = [%d %d], want [1 2]", leaf.ParentPath[0].ID, leaf.ParentPath[1].ID)
	}
	if leaf.PhaseID != 1 || leaf.PhaseType != PhaseAnnotation {
		t.Errorf("leaf phase = %d/%s, want 1/annotation", leaf.PhaseID, leaf.PhaseType)
	}
}

func TestPrepareCycle(t *testing.T) {
	nodes := []Node{
		{ID: 1, Name: "p", Data: NodeData{Type: AnnotationPhase}},
		{ID: 2, Name: "a", ParentID: ptr(3), Data: NodeData{Type: AnnotationGroup}},
		{ID: 3, Name: "b", ParentID: ptr(2), Data: NodeData{Type: AnnotationGroup}},
	}
	_, err := Prepare(nodes)
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestPrepareUnknownParent(t *testing.T) {
	nodes := []Node{
		{ID: 1, Name: "p", Data: NodeData{Type: SurveyPhase}},
		{ID: 2, Name: "q", ParentID: ptr(99), Data: NodeData{Type: Question}},
	}
	if _, err := Prepare(nodes); err == nil {
		t.Fatal("expected error for unknown parent")
	}
}

func TestPrepareInvalidParentType(t *testing.T) {
	nodes := []Node{
		{ID: 1, Name: "p", Data: NodeData{Type: SurveyPhase}},
		{ID: 2, Name: "t", ParentID: ptr(1), Data: NodeData{Type: AnnotationTask, Variable: spanVar("t")}},
	}
	if _, err := Prepare(nodes); err == nil {
		t.Fatal("expected error for annotation task under survey phase")
	}
}

func TestCreatesCycle(t *testing.T) {
	nodes := []Node{
		{ID: 1, Name: "p", Data: NodeData{Type: AnnotationPhase}},
		{ID: 2, Name: "g", ParentID: ptr(1), Data: NodeData{Type: AnnotationGroup}},
		{ID: 3, Name: "h", ParentID: ptr(2), Data: NodeData{Type: AnnotationGroup}},
	}

	if CreatesCycle(nodes, 2, 3) != true {
		t.Error("moving 2 under its descendant 3 must create a cycle")
	}
	if CreatesCycle(nodes, 3, 1) != false {
		t.Error("moving 3 under 1 must not create a cycle")
	}
	if CreatesCycle(nodes, 2, 2) != true {
		t.Error("moving a node under itself must create a cycle")
	}

	// Pre-existing loop in malformed data: any move into it is unsafe.
	looped := []Node{
		{ID: 4, Name: "x", ParentID: ptr(5)},
		{ID: 5, Name: "y", ParentID: ptr(4)},
	}
	if CreatesCycle(looped, 9, 4) != true {
		t.Error("moving into an existing loop must be rejected")
	}
}

func spanVar(name string) *Variable {
	return &Variable{Name: name, Type: SelectCode, Codes: []Code{{Code: "x"}}}
}
