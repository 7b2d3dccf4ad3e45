package codebook

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Codebook is a named, prepared node tree. Nodes is always in depth-first
// position order with computed fields filled in (see Prepare).
type Codebook struct {
	Name  string `yaml:"name"`
	Nodes []Node `yaml:"nodes"`
}

// Load reads and parses a codebook YAML file.
func Load(path string) (*Codebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading codebook: %w", err)
	}
	cb, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing codebook %s: %w", path, err)
	}
	return cb, nil
}

// Parse parses YAML bytes into a prepared, validated Codebook.
func Parse(data []byte) (*Codebook, error) {
	var cb Codebook
	if err := yaml.Unmarshal(data, &cb); err != nil {
		return nil, fmt.Errorf("parsing codebook yaml: %w", err)
	}
	prepared, err := New(cb.Name, cb.Nodes)
	if err != nil {
		return nil, err
	}
	return prepared, nil
}

// New prepares and validates a codebook from raw nodes.
func New(name string, nodes []Node) (*Codebook, error) {
	prepared, err := Prepare(nodes)
	if err != nil {
		return nil, err
	}
	cb := &Codebook{Name: name, Nodes: prepared}
	if err := cb.validate(); err != nil {
		return nil, err
	}
	return cb, nil
}

// validate gates the shapes the engine is allowed to operate on. Structural
// tree errors are already caught by Prepare.
func (cb *Codebook) validate() error {
	names := make(map[string]bool)
	varNames := make(map[string]bool)
	for _, n := range cb.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node %d has no name", n.ID)
		}
		if names[n.Name] {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		names[n.Name] = true

		switch n.TreeType {
		case TreeLeaf:
			v := n.Data.Variable
			if v == nil {
				return fmt.Errorf("node %q (%s) has no variable", n.Name, n.Data.Type)
			}
			if v.Name == "" {
				return fmt.Errorf("node %q: variable has no name", n.Name)
			}
			if varNames[v.Name] {
				return fmt.Errorf("duplicate variable name %q", v.Name)
			}
			varNames[v.Name] = true
			if err := validateVariable(v); err != nil {
				return fmt.Errorf("variable %q: %w", v.Name, err)
			}
		case TreePhase:
			if n.Data.Variable != nil {
				return fmt.Errorf("phase node %q must not carry a variable", n.Name)
			}
		}
	}
	return nil
}

func validateVariable(v *Variable) error {
	switch v.Type {
	case SelectCode, Scale, SearchCode, Annotinder:
		if len(v.Codes) == 0 {
			return fmt.Errorf("type %q requires codes", v.Type)
		}
	case Inputs:
		if len(v.Items) == 0 {
			return fmt.Errorf("type %q requires items", v.Type)
		}
	case Relation:
		if len(v.Relations) == 0 {
			return fmt.Errorf("type %q requires relation rules", v.Type)
		}
		for i, r := range v.Relations {
			if len(r.Codes) == 0 {
				return fmt.Errorf("relation rule %d has no codes", i)
			}
		}
	case Confirm:
		// No payload required.
	default:
		return fmt.Errorf("unknown variable type %q", v.Type)
	}
	return nil
}

// Phases returns the top-level phase nodes in position order.
func (cb *Codebook) Phases() []*Node {
	var out []*Node
	for i := range cb.Nodes {
		if cb.Nodes[i].TreeType == TreePhase {
			out = append(out, &cb.Nodes[i])
		}
	}
	return out
}

// PhaseLeaves returns the leaf nodes of a phase in tree order.
func (cb *Codebook) PhaseLeaves(phaseID int64) []*Node {
	var out []*Node
	for i := range cb.Nodes {
		n := &cb.Nodes[i]
		if n.PhaseID == phaseID && n.TreeType == TreeLeaf {
			out = append(out, n)
		}
	}
	return out
}

// Node returns the node with the given id, or nil.
func (cb *Codebook) Node(id int64) *Node {
	for i := range cb.Nodes {
		if cb.Nodes[i].ID == id {
			return &cb.Nodes[i]
		}
	}
	return nil
}
