// Package token turns unit text fields into position-addressable tokens.
// Spans and relations reference tokens by a single global index that runs
// across all fields of a unit.
package token

// Token is one word or punctuation unit of a text field.
type Token struct {
	Field      string `json:"field"`
	Index      int    `json:"index"`
	Offset     int    `json:"offset"`
	Length     int    `json:"length"`
	Paragraph  int    `json:"paragraph"`
	Text       string `json:"text"`
	Pre        string `json:"pre"`
	Post       string `json:"post"`
	CodingUnit bool   `json:"coding_unit"`
}

// Field is one text field of a unit. UnitStart/UnitEnd bound the codeable
// region in character offsets; text outside it is context framing that is
// shown but not annotatable. UnitEnd <= 0 means the field's end.
type Field struct {
	Name      string `json:"name" yaml:"name"`
	Value     string `json:"value" yaml:"value"`
	Markdown  bool   `json:"markdown,omitempty" yaml:"markdown,omitempty"`
	UnitStart int    `json:"unit_start,omitempty" yaml:"unit_start,omitempty"`
	UnitEnd   int    `json:"unit_end,omitempty" yaml:"unit_end,omitempty"`
}
