package job

import (
	"sort"

	"unitcoder/internal/annotation"
)

// postQueue accumulates annotation mutations between flushes. Batches are
// keyed by session/phase token plus unit, so a failed flush from an earlier
// unit is retried alongside the current one.
type postQueue struct {
	batchesByKey map[string]*batch
}

type batch struct {
	key     string
	unitID  string
	added   map[string]annotationEntry
	removed map[string]string // annotation id -> variable name
}

type annotationEntry struct {
	variable string
	ann      annotation.Annotation
}

func newPostQueue() *postQueue {
	return &postQueue{batchesByKey: make(map[string]*batch)}
}

func (q *postQueue) batchFor(key, unitID string) *batch {
	full := key + "/" + unitID
	b, ok := q.batchesByKey[full]
	if !ok {
		b = &batch{
			key:     full,
			unitID:  unitID,
			added:   make(map[string]annotationEntry),
			removed: make(map[string]string),
		}
		q.batchesByKey[full] = b
	}
	return b
}

// add queues an annotation for submission. A queued removal of the same id
// is superseded.
func (q *postQueue) add(key, unitID string, a annotation.Annotation) {
	b := q.batchFor(key, unitID)
	delete(b.removed, a.ID)
	b.added[a.ID] = annotationEntry{variable: a.Variable, ann: a}
}

// remove queues a deletion. An annotation that was still queued for
// addition is simply dropped: the server never saw it.
func (q *postQueue) remove(key, unitID string, a annotation.Annotation) {
	b := q.batchFor(key, unitID)
	if _, ok := b.added[a.ID]; ok {
		delete(b.added, a.ID)
		return
	}
	b.removed[a.ID] = a.Variable
}

// batches returns all non-empty batches in stable key order.
func (q *postQueue) batches() []*batch {
	var out []*batch
	for _, b := range q.batchesByKey {
		if len(b.added) == 0 && len(b.removed) == 0 {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// clear drops a batch after a confirmed flush.
func (q *postQueue) clear(key string) {
	delete(q.batchesByKey, key)
}

// empty reports whether anything is pending.
func (q *postQueue) empty() bool {
	for _, b := range q.batchesByKey {
		if len(b.added) > 0 || len(b.removed) > 0 {
			return false
		}
	}
	return true
}

func (b *batch) addedByVariable() map[string][]annotation.Annotation {
	if len(b.added) == 0 {
		return nil
	}
	out := make(map[string][]annotation.Annotation)
	for _, e := range b.added {
		out[e.variable] = append(out[e.variable], e.ann)
	}
	for v := range out {
		sort.Slice(out[v], func(i, j int) bool { return out[v][i].ID < out[v][j].ID })
	}
	return out
}

func (b *batch) removedByVariable() map[string][]string {
	if len(b.removed) == 0 {
		return nil
	}
	out := make(map[string][]string)
	for id, v := range b.removed {
		out[v] = append(out[v], id)
	}
	for v := range out {
		sort.Strings(out[v])
	}
	return out
}
