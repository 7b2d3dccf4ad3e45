package token

import "fmt"

// Columns is column-oriented pre-tokenized input, as delivered by servers
// that tokenize units upfront. Only Field and Text are required; every other
// column is backfilled deterministically when absent.
type Columns struct {
	Field      []string `json:"field"`
	Text       []string `json:"text"`
	Index      []int    `json:"index,omitempty"`
	Offset     []int    `json:"offset,omitempty"`
	Length     []int    `json:"length,omitempty"`
	Paragraph  []int    `json:"paragraph,omitempty"`
	Pre        []string `json:"pre,omitempty"`
	Post       []string `json:"post,omitempty"`
	CodingUnit []bool   `json:"coding_unit,omitempty"`
}

// Import normalizes column-oriented token data into a row-oriented token
// list. Missing offsets are derived from the preceding token's offset,
// length and whitespace within the same field; missing lengths from the
// token text; missing post whitespace defaults to a single space so that
// reconstructed text stays readable. This is a compatibility path for
// already-tokenized server data, not the primary tokenizer (see Parse).
func Import(cols Columns) ([]Token, error) {
	n := len(cols.Text)
	if len(cols.Field) != n {
		return nil, fmt.Errorf("token import: field column has %d entries, text has %d", len(cols.Field), n)
	}
	for name, l := range map[string]int{
		"index":       len(cols.Index),
		"offset":      len(cols.Offset),
		"length":      len(cols.Length),
		"paragraph":   len(cols.Paragraph),
		"pre":         len(cols.Pre),
		"post":        len(cols.Post),
		"coding_unit": len(cols.CodingUnit),
	} {
		if l != 0 && l != n {
			return nil, fmt.Errorf("token import: %s column has %d entries, want %d", name, l, n)
		}
	}

	out := make([]Token, n)
	for i := 0; i < n; i++ {
		t := Token{
			Field:      cols.Field[i],
			Text:       cols.Text[i],
			Index:      i,
			Paragraph:  0,
			CodingUnit: true,
		}
		if cols.Index != nil {
			t.Index = cols.Index[i]
		}
		if cols.Pre != nil {
			t.Pre = cols.Pre[i]
		}
		if cols.Post != nil {
			t.Post = cols.Post[i]
		} else if i+1 < n && cols.Field[i+1] == t.Field {
			t.Post = " "
		}
		if cols.Length != nil {
			t.Length = cols.Length[i]
		} else {
			t.Length = len([]rune(t.Text))
		}
		if cols.Paragraph != nil {
			t.Paragraph = cols.Paragraph[i]
		} else if i > 0 {
			t.Paragraph = out[i-1].Paragraph
			if cols.Field[i] != cols.Field[i-1] {
				t.Paragraph++
			}
		}
		if cols.CodingUnit != nil {
			t.CodingUnit = cols.CodingUnit[i]
		}
		if cols.Offset != nil {
			t.Offset = cols.Offset[i]
		} else if i > 0 && out[i-1].Field == t.Field {
			prev := out[i-1]
			t.Offset = prev.Offset + prev.Length + len([]rune(prev.Post)) + len([]rune(t.Pre))
		} else {
			t.Offset = len([]rune(t.Pre))
		}
		out[i] = t
	}
	return out, nil
}

// Text reassembles the visible text of a token range, whitespace included.
// ToColumns converts a token list back to column-oriented form, the shape
// units are stored and shipped in.
func ToColumns(tokens []Token) Columns {
	cols := Columns{
		Field:      make([]string, len(tokens)),
		Text:       make([]string, len(tokens)),
		Index:      make([]int, len(tokens)),
		Offset:     make([]int, len(tokens)),
		Length:     make([]int, len(tokens)),
		Paragraph:  make([]int, len(tokens)),
		Pre:        make([]string, len(tokens)),
		Post:       make([]string, len(tokens)),
		CodingUnit: make([]bool, len(tokens)),
	}
	for i, t := range tokens {
		cols.Field[i] = t.Field
		cols.Text[i] = t.Text
		cols.Index[i] = t.Index
		cols.Offset[i] = t.Offset
		cols.Length[i] = t.Length
		cols.Paragraph[i] = t.Paragraph
		cols.Pre[i] = t.Pre
		cols.Post[i] = t.Post
		cols.CodingUnit[i] = t.CodingUnit
	}
	return cols
}

func Text(tokens []Token) string {
	var b []byte
	for i, t := range tokens {
		if i > 0 {
			b = append(b, t.Pre...)
		}
		b = append(b, t.Text...)
		if i < len(tokens)-1 {
			b = append(b, t.Post...)
		}
	}
	return string(b)
}
