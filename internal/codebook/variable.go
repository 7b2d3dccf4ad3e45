package codebook

// VariableType identifies the kind of question a variable poses.
type VariableType string

const (
	SelectCode VariableType = "select code"
	Scale      VariableType = "scale"
	SearchCode VariableType = "search code"
	Annotinder VariableType = "annotinder"
	Confirm    VariableType = "confirm"
	Inputs     VariableType = "inputs"
	Relation   VariableType = "relation"
)

// Code is one answer option of a variable.
type Code struct {
	Code  string `yaml:"code"`
	Value string `yaml:"value,omitempty"`
	Color string `yaml:"color,omitempty"`
}

// Val returns the code's value, falling back to the code string itself.
func (c Code) Val() string {
	if c.Value != "" {
		return c.Value
	}
	return c.Code
}

// Item is one input of an "inputs" variable.
type Item struct {
	Name     string `yaml:"name"`
	Label    string `yaml:"label,omitempty"`
	Optional bool   `yaml:"optional,omitempty"`
}

// RelationMatch constrains one endpoint of a relation rule. An empty
// Variable or Values list matches anything (wildcard).
type RelationMatch struct {
	Variable string   `yaml:"variable,omitempty"`
	Values   []string `yaml:"values,omitempty"`
}

// RelationRule permits a set of relation codes between annotations matching
// the From and To constraints.
type RelationRule struct {
	Codes []Code         `yaml:"codes"`
	From  *RelationMatch `yaml:"from,omitempty"`
	To    *RelationMatch `yaml:"to,omitempty"`
}

// Variable is a question definition within a codebook.
type Variable struct {
	ID          int64          `yaml:"id,omitempty"`
	Name        string         `yaml:"name"`
	Type        VariableType   `yaml:"type"`
	Question    string         `yaml:"question,omitempty"`
	Instruction string         `yaml:"instruction,omitempty"`
	Multiple    bool           `yaml:"multiple,omitempty"`
	Codes       []Code         `yaml:"codes,omitempty"`
	Items       []Item         `yaml:"items,omitempty"`
	Relations   []RelationRule `yaml:"relations,omitempty"`
	Fields      []string       `yaml:"fields,omitempty"`
}
