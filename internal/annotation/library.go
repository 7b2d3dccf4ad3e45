package annotation

import (
	"sort"

	"unitcoder/internal/codebook"
)

// Library is the session-visible aggregate of annotations plus derived
// indices. All mutation entry points return a brand-new Library so that
// externally held snapshots are never mutated in place; correctness comes
// from rebuilding the derived indices wholesale rather than patching them.
type Library struct {
	Annotations map[string]Annotation
	ByToken     map[int][]string
	CodeHistory map[string][]string
}

// New builds a library from existing annotations, repairing client metadata
// against the variable map and deriving all indices.
func New(anns []Annotation, vm codebook.VariableMap) Library {
	dict := make(map[string]Annotation, len(anns))
	for _, a := range anns {
		dict[a.ID] = Repair(a, vm)
	}
	// Relations referencing annotations that no longer exist are healed on
	// load, same as on removal.
	dict = removeBrokenRelationsFixpoint(dict)
	return Library{
		Annotations: dict,
		ByToken:     tokenDictionary(dict),
		CodeHistory: codeHistoryOf(dict),
	}
}

// Add inserts an annotation, computes its token positions, evicts any EMPTY
// placeholder at the same (field, variable, span), and returns the updated
// library.
func (l Library) Add(a Annotation) Library {
	dict := cloneDict(l.Annotations)
	a.Client.Positions = tokenPositions(dict, a, nil)
	dict[a.ID] = a

	// An EMPTY placeholder marks "explicitly coded as nothing"; it must not
	// coexist with a real code at the same location.
	if a.Kind == KindSpan && a.Code != EmptyCode {
		for id, other := range dict {
			if id != a.ID && other.Code == EmptyCode && sameLocation(a, other) {
				delete(dict, id)
			}
		}
	}

	return Library{
		Annotations: dict,
		ByToken:     tokenDictionary(dict),
		CodeHistory: codeHistoryOf(dict),
	}
}

// Remove deletes an annotation and cascades away any relation left with a
// dangling endpoint. With keepEmpty, a span annotation that was the only
// code at its location is replaced by an EMPTY placeholder so edit mode can
// distinguish "never coded" from "explicitly coded as nothing". Removing an
// unknown id is a no-op.
func (l Library) Remove(id string, keepEmpty bool) Library {
	removed, ok := l.Annotations[id]
	if !ok {
		return l
	}
	dict := cloneDict(l.Annotations)
	delete(dict, id)

	if keepEmpty && removed.Kind == KindSpan && removed.Code != EmptyCode {
		solo := true
		for _, other := range dict {
			if sameLocation(removed, other) {
				solo = false
				break
			}
		}
		if solo {
			empty := newEmptySpan(removed.Variable, removed.Field, removed.Span, removed.Offset, removed.Length)
			empty.Client.Positions = tokenPositions(dict, empty, nil)
			dict[empty.ID] = empty
		}
	}

	dict = removeBrokenRelationsFixpoint(dict)

	return Library{
		Annotations: dict,
		ByToken:     tokenDictionary(dict),
		CodeHistory: codeHistoryOf(dict),
	}
}

// Get returns an annotation by id.
func (l Library) Get(id string) (Annotation, bool) {
	a, ok := l.Annotations[id]
	return a, ok
}

// List returns all annotations ordered by creation time, then id.
func (l Library) List() []Annotation {
	out := make([]Annotation, 0, len(l.Annotations))
	for _, a := range l.Annotations {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TokenPositions returns the set of token indices an annotation projects
// onto: the inclusive span range for spans, the union of both endpoints for
// relations, nothing for questions.
func (l Library) TokenPositions(a Annotation) map[int]bool {
	return tokenPositions(l.Annotations, a, nil)
}

// tokenPositions recursively resolves positions. Relations should only ever
// point at spans or questions, but the visited set guards the recursion
// against malformed relation chains all the same.
func tokenPositions(dict map[string]Annotation, a Annotation, visited map[string]bool) map[int]bool {
	positions := make(map[int]bool)
	switch a.Kind {
	case KindSpan:
		for i := a.Span[0]; i <= a.Span[1]; i++ {
			positions[i] = true
		}
	case KindRelation:
		if visited == nil {
			visited = make(map[string]bool)
		}
		if visited[a.ID] {
			return positions
		}
		visited[a.ID] = true
		for _, endpoint := range []string{a.FromID, a.ToID} {
			e, ok := dict[endpoint]
			if !ok {
				continue
			}
			for pos := range tokenPositions(dict, e, visited) {
				positions[pos] = true
			}
		}
	}
	return positions
}

// removeBrokenRelationsFixpoint cascade-deletes relations whose endpoints no
// longer resolve. Deleting one relation can orphan another that pointed at
// it, so the sweep is re-run until the dictionary stops shrinking.
func removeBrokenRelationsFixpoint(dict map[string]Annotation) map[string]Annotation {
	for {
		next, changed := removeBrokenRelations(dict)
		if !changed {
			return next
		}
		dict = next
	}
}

// removeBrokenRelations is one pure sweep: it returns a snapshot without
// relations that have a dangling endpoint, plus whether anything changed.
func removeBrokenRelations(dict map[string]Annotation) (map[string]Annotation, bool) {
	out := make(map[string]Annotation, len(dict))
	changed := false
	for id, a := range dict {
		if a.Kind == KindRelation {
			if _, ok := dict[a.FromID]; !ok {
				changed = true
				continue
			}
			if _, ok := dict[a.ToID]; !ok {
				changed = true
				continue
			}
		}
		out[id] = a
	}
	return out, changed
}

// tokenDictionary derives the token index -> annotation ids mapping. Ids per
// token are sorted for deterministic rendering.
func tokenDictionary(dict map[string]Annotation) map[int][]string {
	byToken := make(map[int][]string)
	for id, a := range dict {
		for pos := range tokenPositions(dict, a, nil) {
			byToken[pos] = append(byToken[pos], id)
		}
	}
	for pos := range byToken {
		sort.Strings(byToken[pos])
	}
	return byToken
}

// codeHistoryOf rebuilds the per-variable MRU code list from scratch:
// annotations in creation order, most recent first, deduplicated.
func codeHistoryOf(dict map[string]Annotation) map[string][]string {
	ordered := make([]Annotation, 0, len(dict))
	for _, a := range dict {
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Created.Equal(ordered[j].Created) {
			return ordered[i].Created.Before(ordered[j].Created)
		}
		return ordered[i].ID < ordered[j].ID
	})

	history := make(map[string][]string)
	for _, a := range ordered {
		if a.Code == EmptyCode || a.Code == "" {
			continue
		}
		history = pushCodeHistory(history, a.Variable, a.Code)
	}
	return history
}

// pushCodeHistory prepends a code to a variable's MRU list, deduplicated.
func pushCodeHistory(history map[string][]string, variable, code string) map[string][]string {
	prev := history[variable]
	next := make([]string, 0, len(prev)+1)
	next = append(next, code)
	for _, c := range prev {
		if c != code {
			next = append(next, c)
		}
	}
	history[variable] = next
	return history
}

func cloneDict(dict map[string]Annotation) map[string]Annotation {
	out := make(map[string]Annotation, len(dict))
	for id, a := range dict {
		out[id] = a
	}
	return out
}

// Repair backfills client color from the variable's code map, else derives a
// stable color from the code value so coloring is reproducible across
// reloads.
func Repair(a Annotation, vm codebook.VariableMap) Annotation {
	if a.Client.Color != "" || a.Code == "" || a.Code == EmptyCode {
		return a
	}
	if mv, ok := vm[a.Variable]; ok {
		if c, ok := mv.CodeMap[a.Code]; ok && c.Color != "" {
			a.Client.Color = c.Color
			return a
		}
	}
	a.Client.Color = DeriveColor(a.Code)
	return a
}
