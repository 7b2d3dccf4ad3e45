package codebook

// NodeType identifies what a codebook node is: a phase, a group of
// questions, or a single question/task.
type NodeType string

const (
	SurveyPhase        NodeType = "Survey phase"
	AnnotationPhase    NodeType = "Annotation phase"
	QuestionGroup      NodeType = "Question group"
	AnnotationGroup    NodeType = "Annotation group"
	Question           NodeType = "Question"
	AnnotationQuestion NodeType = "Annotation question"
	AnnotationTask     NodeType = "Annotation task"

	// Root is the implicit parent of top-level nodes.
	Root NodeType = "root"
)

// TreeType is the structural role of a node in the codebook tree.
type TreeType string

const (
	TreePhase TreeType = "phase"
	TreeGroup TreeType = "group"
	TreeLeaf  TreeType = "leaf"
)

// PhaseType distinguishes survey phases (one pass of questions) from
// annotation phases (questions asked per unit).
type PhaseType string

const (
	PhaseSurvey     PhaseType = "survey"
	PhaseAnnotation PhaseType = "annotation"
)

// phaseSet is the set of phase types a node type is compatible with.
type phaseSet struct {
	survey     bool
	annotation bool
}

func (s phaseSet) subsetOf(other phaseSet) bool {
	if s.survey && !other.survey {
		return false
	}
	if s.annotation && !other.annotation {
		return false
	}
	return true
}

type nodeTraits struct {
	tree   TreeType
	phases phaseSet
}

// traits is the static compatibility table for node types. A child fits
// under a parent iff its phase set is a subset of the parent's.
var traits = map[NodeType]nodeTraits{
	SurveyPhase:        {TreePhase, phaseSet{survey: true}},
	AnnotationPhase:    {TreePhase, phaseSet{annotation: true}},
	QuestionGroup:      {TreeGroup, phaseSet{survey: true}},
	AnnotationGroup:    {TreeGroup, phaseSet{annotation: true}},
	Question:           {TreeLeaf, phaseSet{survey: true}},
	AnnotationQuestion: {TreeLeaf, phaseSet{annotation: true}},
	AnnotationTask:     {TreeLeaf, phaseSet{annotation: true}},
}

// allNodeTypes in stable display order, used for ValidChildren.
var allNodeTypes = []NodeType{
	SurveyPhase,
	AnnotationPhase,
	QuestionGroup,
	AnnotationGroup,
	Question,
	AnnotationQuestion,
	AnnotationTask,
}

// TreeTypeOf returns the structural role of a node type, or "" if unknown.
func TreeTypeOf(t NodeType) TreeType {
	return traits[t].tree
}

// IsValidParent reports whether a node of type child may be placed under a
// node of type parent. The root may only parent phases (and phases may only
// live at the root), leaves parent nothing, and the child's phase
// compatibility set must be a subset of the parent's.
func IsValidParent(child, parent NodeType) bool {
	ct, ok := traits[child]
	if !ok {
		return false
	}
	if parent == Root {
		return ct.tree == TreePhase
	}
	pt, ok := traits[parent]
	if !ok {
		return false
	}
	if ct.tree == TreePhase {
		return false
	}
	if pt.tree == TreeLeaf {
		return false
	}
	return ct.phases.subsetOf(pt.phases)
}

// ChildTypes partitions valid child types by structural role.
type ChildTypes struct {
	Phases []NodeType
	Groups []NodeType
	Leaves []NodeType
}

// ValidChildren returns every node type that IsValidParent accepts under a
// node of the given type, partitioned by tree type. Drives "add child" menus.
func ValidChildren(parent NodeType) ChildTypes {
	var out ChildTypes
	for _, t := range allNodeTypes {
		if !IsValidParent(t, parent) {
			continue
		}
		switch traits[t].tree {
		case TreePhase:
			out.Phases = append(out.Phases, t)
		case TreeGroup:
			out.Groups = append(out.Groups, t)
		case TreeLeaf:
			out.Leaves = append(out.Leaves, t)
		}
	}
	return out
}

// PhaseSettings holds navigation permissions for a phase node.
type PhaseSettings struct {
	CanGoBack bool `yaml:"can_go_back"`
	CanSkip   bool `yaml:"can_skip"`
}

// NodeData is the type-discriminated payload of a node: phase settings for
// phase nodes, a variable definition for leaf nodes, neither for groups.
type NodeData struct {
	Type     NodeType       `yaml:"type"`
	Phase    *PhaseSettings `yaml:"phase,omitempty"`
	Variable *Variable      `yaml:"variable,omitempty"`
}

// Node is one codebook tree node. ID, Name, ParentID, Position and Data come
// from the backing store; the remaining fields are computed by Prepare.
type Node struct {
	ID       int64    `yaml:"id"`
	Name     string   `yaml:"name"`
	ParentID *int64   `yaml:"parent"`
	Position int      `yaml:"position"`
	Data     NodeData `yaml:"data"`

	ParentPath []*Node   `yaml:"-"`
	Children   []int64   `yaml:"-"`
	TreeType   TreeType  `yaml:"-"`
	PhaseID    int64     `yaml:"-"`
	PhaseType  PhaseType `yaml:"-"`
}
