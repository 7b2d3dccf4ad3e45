package token

import (
	"testing"
)

func TestParseSingleField(t *testing.T) {
	tokens := Parse([]Field{{Name: "body", Value: "The cat, obviously."}})

	want := []struct {
		text   string
		offset int
	}{
		{"The", 0}, {"cat", 4}, {",", 7}, {"obviously", 9}, {".", 18},
	}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(tokens), tokens)
	}
	for i, w := range want {
		if tokens[i].Text != w.text {
			t.Errorf("token %d text = %q, want %q", i, tokens[i].Text, w.text)
		}
		if tokens[i].Offset != w.offset {
			t.Errorf("token %d offset = %d, want %d", i, tokens[i].Offset, w.offset)
		}
		if tokens[i].Index != i {
			t.Errorf("token %d index = %d", i, tokens[i].Index)
		}
		if tokens[i].Field != "body" {
			t.Errorf("token %d field = %q", i, tokens[i].Field)
		}
	}
	if tokens[2].Post != " " {
		t.Errorf("expected post whitespace on the comma, got %q", tokens[2].Post)
	}
	if tokens[1].Post != "" {
		t.Errorf("no whitespace between 'cat' and the comma, got %q", tokens[1].Post)
	}
}

func TestParseParagraphs(t *testing.T) {
	tokens := Parse([]Field{{Name: "body", Value: "One two.\n\nThree four."}})
	if tokens[0].Paragraph != 0 || tokens[2].Paragraph != 0 {
		t.Error("first sentence must be paragraph 0")
	}
	// "Three" is token 3.
	if tokens[3].Paragraph != 1 {
		t.Errorf("token after blank line paragraph = %d, want 1", tokens[3].Paragraph)
	}
}

func TestParseMultiFieldGlobalIndex(t *testing.T) {
	tokens := Parse([]Field{
		{Name: "title", Value: "Hello world"},
		{Name: "body", Value: "Goodbye"},
	})
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}
	if tokens[2].Index != 2 {
		t.Errorf("expected global index to continue across fields, got %d", tokens[2].Index)
	}
	if tokens[2].Field != "body" || tokens[2].Offset != 0 {
		t.Errorf("field-local offset must restart: field=%q offset=%d", tokens[2].Field, tokens[2].Offset)
	}
	if tokens[2].Paragraph != tokens[1].Paragraph+1 {
		t.Error("field boundary must start a new paragraph")
	}
}

func TestParseCodingUnitWindow(t *testing.T) {
	// "Before. Unit text. After." with the codeable region covering "Unit text."
	value := "Before. Unit text. After."
	tokens := Parse([]Field{{Name: "body", Value: value, UnitStart: 8, UnitEnd: 18}})

	var inUnit []string
	for _, tok := range tokens {
		if tok.CodingUnit {
			inUnit = append(inUnit, tok.Text)
		}
	}
	want := []string{"Unit", "text", "."}
	if len(inUnit) != len(want) {
		t.Fatalf("coding unit tokens = %v, want %v", inUnit, want)
	}
	for i := range want {
		if inUnit[i] != want[i] {
			t.Fatalf("coding unit tokens = %v, want %v", inUnit, want)
		}
	}
}

func TestParseInnerPunctuation(t *testing.T) {
	tokens := Parse([]Field{{Name: "body", Value: "don't over-react!"}})
	if len(tokens) != 3 {
		t.Fatalf("expected [don't over-react !], got %v", tokens)
	}
	if tokens[0].Text != "don't" || tokens[1].Text != "over-react" || tokens[2].Text != "!" {
		t.Errorf("tokens = %q %q %q", tokens[0].Text, tokens[1].Text, tokens[2].Text)
	}
}

func TestParseLeadingWhitespace(t *testing.T) {
	tokens := Parse([]Field{{Name: "body", Value: "  hi"}})
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(tokens))
	}
	if tokens[0].Pre != "  " {
		t.Errorf("pre = %q, want two spaces", tokens[0].Pre)
	}
	if tokens[0].Offset != 2 {
		t.Errorf("offset = %d, want 2", tokens[0].Offset)
	}
}

func TestParseEmpty(t *testing.T) {
	if got := Parse(nil); len(got) != 0 {
		t.Errorf("expected no tokens, got %v", got)
	}
	if got := Parse([]Field{{Name: "body", Value: "   "}}); len(got) != 0 {
		t.Errorf("expected no tokens for whitespace-only field, got %v", got)
	}
}
