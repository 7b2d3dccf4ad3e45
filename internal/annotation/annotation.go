// Package annotation holds the in-memory store of coded judgments for a
// unit, indexed by id and by token position, with referential integrity
// between relations and their endpoints.
package annotation

import (
	"time"

	"github.com/google/uuid"

	"unitcoder/internal/token"
)

// Kind discriminates the annotation union.
type Kind string

const (
	KindQuestion Kind = "question"
	KindSpan     Kind = "span"
	KindRelation Kind = "relation"
)

// Status tracks whether an annotation still awaits submission.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// EmptyCode marks a span explicitly coded as nothing. At most one such
// placeholder may exist per (field, variable, span), and it never coexists
// with a real code at the same location.
const EmptyCode = "EMPTY"

// Span is an inclusive token index range [from, to].
type Span [2]int

// Context ties a question annotation to what was on screen when it was
// answered: a set of fields and/or a set of other annotation ids.
type Context struct {
	Fields []string `json:"fields,omitempty"`
	IDs    []string `json:"ids,omitempty"`
}

// Equal compares contexts as order-independent sets.
func (c *Context) Equal(o *Context) bool {
	if c == nil || o == nil {
		return c == o
	}
	return sameSet(c.Fields, o.Fields) && sameSet(c.IDs, o.IDs)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		seen[s]--
		if seen[s] < 0 {
			return false
		}
	}
	return true
}

// Client holds client-side rendering metadata, derived on library build.
type Client struct {
	Color     string       `json:"color,omitempty"`
	Text      string       `json:"text,omitempty"`
	Positions map[int]bool `json:"-"`
}

// Annotation is a single coded judgment: a question answer, a span tag, or
// a relation link between two other annotations.
type Annotation struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	Variable string `json:"variable"`
	Code     string `json:"code"`
	Value    string `json:"value,omitempty"`

	// Span fields.
	Field  string `json:"field,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Length int    `json:"length,omitempty"`
	Span   Span   `json:"span,omitempty"`

	// Relation fields.
	FromID string `json:"from_id,omitempty"`
	ToID   string `json:"to_id,omitempty"`

	Context *Context  `json:"context,omitempty"`
	Created time.Time `json:"created"`
	Status  Status    `json:"status"`
	Client  Client    `json:"client,omitempty"`
}

// NewID returns a collision-resistant annotation id. Only global uniqueness
// within a session is required.
func NewID() string {
	return uuid.NewString()
}

// NewQuestion creates a question annotation for a variable and code.
func NewQuestion(variable, code, value string, ctx *Context) Annotation {
	return Annotation{
		ID:       NewID(),
		Kind:     KindQuestion,
		Variable: variable,
		Code:     code,
		Value:    value,
		Context:  ctx,
		Created:  time.Now(),
		Status:   StatusPending,
	}
}

// NewSpan creates a span annotation covering tokens [span[0], span[1]] of a
// field. The character offset, length and cached text are resolved from the
// unit's token list.
func NewSpan(variable, code string, field string, span Span, tokens []token.Token) Annotation {
	a := Annotation{
		ID:       NewID(),
		Kind:     KindSpan,
		Variable: variable,
		Code:     code,
		Field:    field,
		Span:     span,
		Created:  time.Now(),
		Status:   StatusPending,
	}
	if span[0] >= 0 && span[1] < len(tokens) && span[0] <= span[1] {
		first, last := tokens[span[0]], tokens[span[1]]
		a.Offset = first.Offset
		a.Length = last.Offset + last.Length - first.Offset
		a.Client.Text = token.Text(tokens[span[0] : span[1]+1])
	}
	return a
}

// newEmptySpan creates the EMPTY placeholder that takes a removed span's
// place in edit mode.
func newEmptySpan(variable, field string, span Span, offset, length int) Annotation {
	return Annotation{
		ID:       NewID(),
		Kind:     KindSpan,
		Variable: variable,
		Code:     EmptyCode,
		Field:    field,
		Span:     span,
		Offset:   offset,
		Length:   length,
		Created:  time.Now(),
		Status:   StatusPending,
	}
}

// NewRelation creates a directed, coded link between two annotations.
func NewRelation(variable, code, fromID, toID string) Annotation {
	return Annotation{
		ID:       NewID(),
		Kind:     KindRelation,
		Variable: variable,
		Code:     code,
		FromID:   fromID,
		ToID:     toID,
		Created:  time.Now(),
		Status:   StatusPending,
	}
}

// sameLocation reports whether two span annotations occupy the identical
// (field, variable, span) tuple.
func sameLocation(a, b Annotation) bool {
	return a.Kind == KindSpan && b.Kind == KindSpan &&
		a.Field == b.Field && a.Variable == b.Variable && a.Span == b.Span
}
