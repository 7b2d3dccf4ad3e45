package annotation

import (
	"reflect"
	"testing"
	"time"

	"unitcoder/internal/codebook"
	"unitcoder/internal/token"
)

func testTokens(t *testing.T) []token.Token {
	t.Helper()
	return token.Parse([]token.Field{{Name: "body", Value: "The quick brown fox jumps over it"}})
}

func span(t *testing.T, variable, code string, from, to int) Annotation {
	t.Helper()
	return NewSpan(variable, code, "body", Span{from, to}, testTokens(t))
}

func TestSpanTokenPositions(t *testing.T) {
	lib := New(nil, nil)
	a := span(t, "claim", "claim", 1, 3)
	lib = lib.Add(a)

	got := lib.TokenPositions(a)
	want := map[int]bool{1: true, 2: true, 3: true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("positions = %v, want %v", got, want)
	}
}

func TestSpanTextAndOffsets(t *testing.T) {
	a := span(t, "claim", "claim", 1, 2)
	// "quick brown" starts at offset 4.
	if a.Offset != 4 {
		t.Errorf("offset = %d, want 4", a.Offset)
	}
	if a.Length != len("quick brown") {
		t.Errorf("length = %d, want %d", a.Length, len("quick brown"))
	}
	if a.Client.Text != "quick brown" {
		t.Errorf("text = %q, want %q", a.Client.Text, "quick brown")
	}
}

func TestRelationPositionsAreEndpointUnion(t *testing.T) {
	from := span(t, "claim", "claim", 0, 1)
	to := span(t, "claim", "claim", 4, 5)
	rel := NewRelation("stance", "supports", from.ID, to.ID)

	lib := New([]Annotation{from, to, rel}, nil)

	got := lib.TokenPositions(rel)
	want := map[int]bool{0: true, 1: true, 4: true, 5: true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("relation positions = %v, want %v", got, want)
	}
}

func TestByTokenIndex(t *testing.T) {
	a := span(t, "claim", "claim", 1, 2)
	b := span(t, "actor", "actor", 2, 3)
	lib := New([]Annotation{a, b}, nil)

	if len(lib.ByToken[2]) != 2 {
		t.Errorf("expected both annotations on token 2, got %v", lib.ByToken[2])
	}
	if len(lib.ByToken[0]) != 0 {
		t.Errorf("expected no annotations on token 0, got %v", lib.ByToken[0])
	}
}

func TestRemoveCascadesBrokenRelations(t *testing.T) {
	from := span(t, "claim", "claim", 0, 1)
	to := span(t, "claim", "claim", 4, 5)
	rel := NewRelation("stance", "supports", from.ID, to.ID)
	lib := New([]Annotation{from, to, rel}, nil)

	lib = lib.Remove(from.ID, false)

	if _, ok := lib.Get(rel.ID); ok {
		t.Error("relation with a deleted endpoint must be cascade-deleted")
	}
	if _, ok := lib.Get(to.ID); !ok {
		t.Error("the surviving endpoint must remain")
	}
	assertNoDanglingRelations(t, lib)
}

func TestRemoveCascadeFixpoint(t *testing.T) {
	// A relation chain: deleting the base span must take down both links.
	// Relations pointing at relations should be structurally impossible,
	// but the cleanup has to converge even on such data.
	base := span(t, "claim", "claim", 0, 0)
	other := span(t, "claim", "claim", 2, 2)
	rel1 := NewRelation("stance", "supports", base.ID, other.ID)
	rel2 := NewRelation("stance", "supports", rel1.ID, other.ID)
	lib := New([]Annotation{base, other, rel1, rel2}, nil)

	lib = lib.Remove(base.ID, false)

	if len(lib.Annotations) != 1 {
		t.Errorf("expected only the surviving span, got %d annotations", len(lib.Annotations))
	}
	assertNoDanglingRelations(t, lib)
}

func TestRemoveUnknownIDIsNoop(t *testing.T) {
	a := span(t, "claim", "claim", 0, 1)
	lib := New([]Annotation{a}, nil)
	out := lib.Remove("nope", false)
	if len(out.Annotations) != 1 {
		t.Error("removing an unknown id must not change the library")
	}
}

func TestAddRemoveRestoresState(t *testing.T) {
	a := span(t, "claim", "claim", 0, 1)
	lib := New([]Annotation{a}, nil)

	b := span(t, "claim", "other", 3, 4)
	after := lib.Add(b).Remove(b.ID, false)

	if !reflect.DeepEqual(after.Annotations, lib.Annotations) {
		t.Error("dictionary must be restored after add+remove")
	}
	if !reflect.DeepEqual(after.ByToken, lib.ByToken) {
		t.Errorf("byToken must be restored: %v vs %v", after.ByToken, lib.ByToken)
	}
	if !reflect.DeepEqual(after.CodeHistory, lib.CodeHistory) {
		t.Errorf("codeHistory must be restored: %v vs %v", after.CodeHistory, lib.CodeHistory)
	}
}

func TestEmptyPlaceholderOnRemove(t *testing.T) {
	a := span(t, "claim", "claim", 1, 2)
	lib := New(nil, nil).Add(a)

	lib = lib.Remove(a.ID, true)

	if len(lib.Annotations) != 1 {
		t.Fatalf("expected exactly one EMPTY placeholder, got %d annotations", len(lib.Annotations))
	}
	var empty Annotation
	for _, e := range lib.Annotations {
		empty = e
	}
	if empty.Code != EmptyCode {
		t.Errorf("placeholder code = %q, want %q", empty.Code, EmptyCode)
	}
	if empty.Span != a.Span || empty.Field != a.Field || empty.Variable != a.Variable {
		t.Error("placeholder must occupy the removed span's location")
	}
}

func TestNoEmptyPlaceholderWithSibling(t *testing.T) {
	a := span(t, "claim", "claim", 1, 2)
	b := span(t, "claim", "other", 1, 2)
	lib := New(nil, nil).Add(a).Add(b)

	lib = lib.Remove(a.ID, true)

	for _, e := range lib.Annotations {
		if e.Code == EmptyCode {
			t.Error("no placeholder while a sibling code covers the same span")
		}
	}
	if _, ok := lib.Get(b.ID); !ok {
		t.Error("sibling must survive")
	}
}

func TestAddEvictsEmptyPlaceholder(t *testing.T) {
	a := span(t, "claim", "claim", 1, 2)
	lib := New(nil, nil).Add(a).Remove(a.ID, true)

	real := span(t, "claim", "claim", 1, 2)
	lib = lib.Add(real)

	if len(lib.Annotations) != 1 {
		t.Fatalf("expected the real code to replace the placeholder, got %d annotations", len(lib.Annotations))
	}
	if _, ok := lib.Get(real.ID); !ok {
		t.Error("expected the real annotation to survive")
	}
}

func TestCodeHistoryMRU(t *testing.T) {
	lib := New(nil, nil)
	lib = lib.Add(span(t, "claim", "first", 0, 0))
	lib = lib.Add(span(t, "claim", "second", 1, 1))
	lib = lib.Add(span(t, "claim", "first", 2, 2))

	want := []string{"first", "second"}
	if !reflect.DeepEqual(lib.CodeHistory["claim"], want) {
		t.Errorf("code history = %v, want %v", lib.CodeHistory["claim"], want)
	}
}

func TestCodeHistoryRebuildOrder(t *testing.T) {
	early := span(t, "claim", "old", 0, 0)
	early.Created = time.Now().Add(-time.Hour)
	late := span(t, "claim", "new", 1, 1)

	lib := New([]Annotation{late, early}, nil)
	want := []string{"new", "old"}
	if !reflect.DeepEqual(lib.CodeHistory["claim"], want) {
		t.Errorf("code history = %v, want %v", lib.CodeHistory["claim"], want)
	}
}

func TestRepairColors(t *testing.T) {
	vm := codebook.NewVariableMap([]codebook.Variable{
		{Name: "claim", Type: codebook.SelectCode, Codes: []codebook.Code{
			{Code: "claim", Color: "#123456"},
			{Code: "uncolored"},
		}},
	})

	a := span(t, "claim", "claim", 0, 0)
	b := span(t, "claim", "uncolored", 1, 1)
	lib := New([]Annotation{a, b}, vm)

	got, _ := lib.Get(a.ID)
	if got.Client.Color != "#123456" {
		t.Errorf("expected authored color, got %q", got.Client.Color)
	}
	got, _ = lib.Get(b.ID)
	if got.Client.Color == "" {
		t.Error("expected derived color for uncolored code")
	}
	if got.Client.Color != DeriveColor("uncolored") {
		t.Error("derived color must be stable")
	}
}

func TestDeriveColorDeterministic(t *testing.T) {
	if DeriveColor("x") != DeriveColor("x") {
		t.Error("same value must derive the same color")
	}
	if len(DeriveColor("x")) != 7 {
		t.Errorf("expected #rrggbb, got %q", DeriveColor("x"))
	}
}

func assertNoDanglingRelations(t *testing.T, lib Library) {
	t.Helper()
	for id, a := range lib.Annotations {
		if a.Kind != KindRelation {
			continue
		}
		if _, ok := lib.Annotations[a.FromID]; !ok {
			t.Errorf("relation %s has dangling from_id", id)
		}
		if _, ok := lib.Annotations[a.ToID]; !ok {
			t.Errorf("relation %s has dangling to_id", id)
		}
	}
}
