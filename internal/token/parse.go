package token

import (
	"strings"
	"unicode"
)

// Parse tokenizes the text fields of a unit into a single token list with a
// global sequential index. Tokens are runs of letters/digits (plus internal
// apostrophes and hyphens) or single punctuation characters. Whitespace is
// preserved on the surrounding tokens: leading whitespace on a field's first
// token as Pre, everything else as the preceding token's Post. The paragraph
// counter increments whenever the gap before a token contains a newline.
func Parse(fields []Field) []Token {
	var out []Token
	index := 0
	paragraph := 0

	for i, f := range fields {
		// A field boundary always starts a new paragraph.
		if i > 0 {
			paragraph++
		}
		out = append(out, parseField(f, &index, &paragraph)...)
	}
	return out
}

func parseField(f Field, index, paragraph *int) []Token {
	runes := []rune(f.Value)
	unitEnd := f.UnitEnd
	if unitEnd <= 0 || unitEnd > len(runes) {
		unitEnd = len(runes)
	}

	var out []Token
	i := 0
	pre := ""
	first := true

	for i < len(runes) {
		// Consume whitespace into the gap.
		start := i
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		gap := string(runes[start:i])
		if i >= len(runes) {
			if len(out) > 0 {
				out[len(out)-1].Post += gap
			}
			break
		}

		if first {
			pre = gap
		} else if gap != "" {
			out[len(out)-1].Post = gap
		}
		if strings.ContainsRune(gap, '\n') && !first {
			*paragraph++
		}

		// Consume one token.
		tokStart := i
		if isWordRune(runes[i]) {
			for i < len(runes) && (isWordRune(runes[i]) || isInnerRune(runes, i)) {
				i++
			}
		} else {
			i++
		}

		tok := Token{
			Field:      f.Name,
			Index:      *index,
			Offset:     tokStart,
			Length:     i - tokStart,
			Paragraph:  *paragraph,
			Text:       string(runes[tokStart:i]),
			Pre:        "",
			CodingUnit: tokStart >= f.UnitStart && tokStart < unitEnd,
		}
		if first {
			tok.Pre = pre
			first = false
		}
		out = append(out, tok)
		*index++
	}

	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isInnerRune allows apostrophes and hyphens inside a word ("don't",
// "long-term") without letting them start or end one.
func isInnerRune(runes []rune, i int) bool {
	r := runes[i]
	if r != '\'' && r != '-' {
		return false
	}
	return i+1 < len(runes) && isWordRune(runes[i+1]) && i > 0 && isWordRune(runes[i-1])
}
