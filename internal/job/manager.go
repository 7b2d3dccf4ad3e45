package job

import (
	"context"
	"errors"
	"fmt"

	"unitcoder/internal/annotation"
	"unitcoder/internal/codebook"
	"unitcoder/internal/token"
)

// ErrPreview signals that a finish operation was intercepted by preview
// mode: nothing was persisted and the cursor did not move. Hosts surface it
// as a notification, not a failure.
var ErrPreview = errors.New("preview mode: annotations are not saved")

// State is an immutable snapshot of the session for the host to render.
type State struct {
	Progress  Progress
	Unit      *Unit
	Library   annotation.Library
	Variables []codebook.Variable
}

// Manager is the annotation session state machine. All methods are meant to
// be called from a single goroutine (discrete user actions); mutations
// always derive fresh snapshots, so a host can hold on to a State without
// seeing it change underneath.
type Manager struct {
	server   JobServer
	session  *Session
	onChange func(State)

	codebook  *codebook.Codebook
	varmap    codebook.VariableMap
	variables []codebook.Variable

	progress Progress
	unit     *Unit
	lib      annotation.Library
	global   []annotation.Annotation

	queue *postQueue
}

// NewManager opens a session against the server and navigates to its
// current cursor.
func NewManager(ctx context.Context, server JobServer, onChange func(State)) (*Manager, error) {
	session, err := server.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	m := &Manager{
		server:   server,
		session:  session,
		onChange: onChange,
		progress: session.Progress,
		global:   session.GlobalAnnotations,
		queue:    newPostQueue(),
	}
	p := session.Progress
	if err := m.load(ctx, p.Phase, p.Unit, p.Variable); err != nil {
		return nil, err
	}
	return m, nil
}

// State returns the current snapshot.
func (m *Manager) State() State {
	return State{
		Progress:  m.progress,
		Unit:      m.unit,
		Library:   m.lib,
		Variables: m.variables,
	}
}

func (m *Manager) notify() {
	if m.onChange != nil {
		m.onChange(m.State())
	}
}

// Debriefing fetches the job's closing message from the server.
func (m *Manager) Debriefing(ctx context.Context) (*Debriefing, error) {
	return m.server.GetDebriefing(ctx)
}

// Navigate moves the cursor. A variable-only change within the current
// phase/unit short-circuits to the cheap path without refetching the unit.
// A phase index past the last phase is the terminal "job finished"
// transition. Navigation the phase's permissions do not allow, backward
// without CanGoBack or a forward seek past the first unfinished unit
// without CanSkip, is a defensive no-op.
func (m *Manager) Navigate(ctx context.Context, phase, unit, variable int) error {
	if phase >= len(m.progress.Phases) {
		m.progress.Finished = true
		m.notify()
		return nil
	}
	if phase < 0 || unit < 0 {
		return nil
	}

	if phase == m.progress.Phase && unit == m.progress.Unit && m.unit != nil {
		m.SetVariableIndex(variable)
		return nil
	}

	backward := phase < m.progress.Phase ||
		(phase == m.progress.Phase && unit < m.progress.Unit)
	if backward && !m.progress.CanGoBack {
		return nil
	}
	if !backward && !m.progress.CanSkip && m.seeksPastPending(phase, unit) {
		return nil
	}

	if err := m.load(ctx, phase, unit, variable); err != nil {
		return err
	}
	m.notify()
	return nil
}

// seeksPastPending reports whether the target position lies beyond the first
// unfinished unit of the target phase.
func (m *Manager) seeksPastPending(phase, unit int) bool {
	for i, done := range m.progress.Phases[phase].UnitsDone {
		if !done {
			return unit > i
		}
	}
	return false
}

// load fetches the codebook and unit for a cursor position and rebuilds the
// annotation library from scratch, merging unit-scoped and global
// annotations.
func (m *Manager) load(ctx context.Context, phase, unit, variable int) error {
	if phase >= len(m.progress.Phases) {
		m.progress.Finished = true
		return nil
	}

	cb, err := m.server.GetCodebook(ctx, phase)
	if err != nil {
		return fmt.Errorf("getting codebook for phase %d: %w", phase, err)
	}
	m.codebook = cb

	phaseNode := m.phaseNode(phase)
	m.variables = nil
	if phaseNode != nil {
		for _, leaf := range cb.PhaseLeaves(phaseNode.ID) {
			m.variables = append(m.variables, *leaf.Data.Variable)
		}
	}
	m.varmap = codebook.NewVariableMap(m.variables)

	u, err := m.server.GetUnit(ctx, phase, unit)
	if err != nil {
		return fmt.Errorf("getting unit %d of phase %d: %w", unit, phase, err)
	}
	if len(u.Tokens) == 0 && len(u.Fields) > 0 {
		u.Tokens = token.Parse(u.Fields)
	}
	m.unit = u

	anns := append(append([]annotation.Annotation(nil), u.Annotations...), m.global...)
	m.lib = annotation.New(anns, m.varmap)

	m.progress.Phase = phase
	m.progress.Unit = unit
	m.progress.Variable = clamp(variable, len(m.variables))
	if phaseNode != nil && phaseNode.Data.Phase != nil {
		m.progress.CanGoBack = phaseNode.Data.Phase.CanGoBack
		m.progress.CanSkip = phaseNode.Data.Phase.CanSkip
	} else {
		m.progress.CanGoBack = false
		m.progress.CanSkip = false
	}
	m.resetVariableProgress(phase)
	return nil
}

// phaseNode resolves the phase node for a phase index in the fetched
// codebook. Servers may return the full tree or just the requested phase.
func (m *Manager) phaseNode(phase int) *codebook.Node {
	phases := m.codebook.Phases()
	if len(phases) == 1 {
		return phases[0]
	}
	if phase >= 0 && phase < len(phases) {
		return phases[phase]
	}
	return nil
}

// resetVariableProgress rebuilds the per-variable statuses for the current
// unit, deriving "done" from annotations already present.
func (m *Manager) resetVariableProgress(phase int) {
	if phase >= len(m.progress.Phases) {
		return
	}
	pp := &m.progress.Phases[phase]
	pp.Variables = make([]VariableProgress, len(m.variables))
	for i, v := range m.variables {
		done := false
		for _, a := range m.lib.Annotations {
			if a.Variable == v.Name {
				done = true
				break
			}
		}
		pp.Variables[i] = VariableProgress{Name: v.Name, Done: done}
	}
}

// SetVariableIndex moves only the variable cursor. Out-of-range indices are
// ignored.
func (m *Manager) SetVariableIndex(i int) {
	if i < 0 || i >= len(m.variables) || i == m.progress.Variable {
		return
	}
	m.progress.Variable = i
	m.notify()
}

func clamp(i, n int) int {
	if n == 0 {
		return 0
	}
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// currentPhase returns the progress entry for the cursor phase.
func (m *Manager) currentPhase() *PhaseProgress {
	if m.progress.Phase >= len(m.progress.Phases) {
		return nil
	}
	return &m.progress.Phases[m.progress.Phase]
}

// FinishVariable posts queued annotations, marks the current variable done,
// and advances: next variable in phase, else next unit, else next phase.
// Survey phases advance wholesale to the next phase once their variables
// run out. In preview mode nothing is posted and the cursor stays put.
func (m *Manager) FinishVariable(ctx context.Context) error {
	return m.finishVariable(ctx, false)
}

// SkipVariable is FinishVariable with the skip flag: the variable is marked
// skipped rather than done. Requires the phase's skip permission.
func (m *Manager) SkipVariable(ctx context.Context) error {
	if !m.progress.CanSkip {
		return fmt.Errorf("skipping is not allowed in this phase")
	}
	return m.finishVariable(ctx, true)
}

func (m *Manager) finishVariable(ctx context.Context, skip bool) error {
	if m.progress.Finished {
		return nil
	}
	if m.server.Preview() {
		return ErrPreview
	}
	if err := m.flush(ctx); err != nil {
		return err
	}

	pp := m.currentPhase()
	if pp == nil {
		return nil
	}
	if m.progress.Variable < len(pp.Variables) {
		pp.Variables[m.progress.Variable].Done = !skip
		pp.Variables[m.progress.Variable].Skip = skip
	}

	if m.progress.Variable+1 < len(m.variables) {
		m.progress.Variable++
		m.notify()
		return nil
	}
	return m.finishUnit(ctx)
}

// finishUnit marks the current unit done and advances to the next unit, or
// to the next phase when the unit sequence (or a survey phase) runs out.
func (m *Manager) finishUnit(ctx context.Context) error {
	pp := m.currentPhase()
	if pp == nil {
		return nil
	}
	if pp.Type == codebook.PhaseSurvey {
		return m.finishPhase(ctx)
	}

	if m.progress.Unit < len(pp.UnitsDone) {
		pp.UnitsDone[m.progress.Unit] = true
	}
	if m.progress.Unit+1 < pp.NUnits {
		if err := m.load(ctx, m.progress.Phase, m.progress.Unit+1, 0); err != nil {
			return err
		}
		m.notify()
		return nil
	}
	return m.finishPhase(ctx)
}

// FinishPhase posts queued annotations and advances wholesale to the next
// phase. In preview mode it is intercepted like FinishVariable.
func (m *Manager) FinishPhase(ctx context.Context) error {
	if m.progress.Finished {
		return nil
	}
	if m.server.Preview() {
		return ErrPreview
	}
	if err := m.flush(ctx); err != nil {
		return err
	}
	return m.finishPhase(ctx)
}

func (m *Manager) finishPhase(ctx context.Context) error {
	if pp := m.currentPhase(); pp != nil {
		pp.Done = true
	}
	next := m.progress.Phase + 1
	if next >= len(m.progress.Phases) {
		m.progress.Finished = true
		m.notify()
		return nil
	}
	if err := m.load(ctx, next, 0, 0); err != nil {
		return err
	}
	m.notify()
	return nil
}

// CreateQuestionAnnotation records an answer to a question variable.
// Single-select (multiple=false) keeps at most one code per
// (variable, context): picking a different code replaces the old one,
// re-picking the same code toggles it off. Multi-select toggles codes
// independently. Context equality is order-independent.
func (m *Manager) CreateQuestionAnnotation(variableName string, code codebook.Code, multiple bool, actx *annotation.Context) error {
	if _, ok := m.varmap[variableName]; !ok {
		return fmt.Errorf("unknown variable %q", variableName)
	}

	var same, others []annotation.Annotation
	for _, a := range m.lib.Annotations {
		if a.Kind != annotation.KindQuestion || a.Variable != variableName || !a.Context.Equal(actx) {
			continue
		}
		if a.Code == code.Code {
			same = append(same, a)
		} else {
			others = append(others, a)
		}
	}

	// Re-selecting the current code toggles it off.
	if len(same) > 0 {
		for _, a := range same {
			m.removeFromLibrary(a.ID, false)
		}
		m.syncGlobal()
		m.notify()
		return nil
	}

	if !multiple {
		for _, a := range others {
			m.removeFromLibrary(a.ID, false)
		}
	}

	a := annotation.NewQuestion(variableName, code.Code, code.Val(), actx)
	m.addToLibrary(a)
	m.syncGlobal()
	m.notify()
	return nil
}

// CreateSpanAnnotation tags the inclusive token range span of a field.
func (m *Manager) CreateSpanAnnotation(variableName, code, field string, span annotation.Span) error {
	mv, ok := m.varmap[variableName]
	if !ok {
		return fmt.Errorf("unknown variable %q", variableName)
	}
	if m.unit == nil || span[0] < 0 || span[1] >= len(m.unit.Tokens) || span[0] > span[1] {
		return fmt.Errorf("span [%d,%d] out of range", span[0], span[1])
	}
	if _, ok := mv.CodeMap[code]; !ok {
		return fmt.Errorf("variable %q has no code %q", variableName, code)
	}

	a := annotation.NewSpan(variableName, code, field, span, m.unit.Tokens)
	m.addToLibrary(a)
	m.notify()
	return nil
}

// CreateRelationAnnotation links two existing annotations. Both endpoints
// must resolve (a hard failure otherwise), endpoints may not themselves be
// relations, and the code must be permitted by a relation rule matching
// both endpoints.
func (m *Manager) CreateRelationAnnotation(variableName, code, fromID, toID string) error {
	mv, ok := m.varmap[variableName]
	if !ok {
		return fmt.Errorf("unknown variable %q", variableName)
	}
	from, ok := m.lib.Get(fromID)
	if !ok {
		return fmt.Errorf("relation source %s not found", fromID)
	}
	to, ok := m.lib.Get(toID)
	if !ok {
		return fmt.Errorf("relation target %s not found", toID)
	}
	if from.Kind == annotation.KindRelation || to.Kind == annotation.KindRelation {
		return fmt.Errorf("relations cannot point at other relations")
	}
	if !relationPermitted(mv, code, from, to) {
		return fmt.Errorf("code %q is not valid between %q and %q", code, from.Variable, to.Variable)
	}

	a := annotation.NewRelation(variableName, code, fromID, toID)
	m.addToLibrary(a)
	m.notify()
	return nil
}

// relationPermitted checks the from/to rule tables: a rule must match both
// endpoints and list the code.
func relationPermitted(mv *codebook.MappedVariable, code string, from, to annotation.Annotation) bool {
	fromRules := mv.ValidFrom.Get(from.Variable, annotationValue(from))
	toRules := mv.ValidTo.Get(to.Variable, annotationValue(to))
	for rule, codes := range fromRules {
		if _, ok := toRules[rule]; !ok {
			continue
		}
		for _, c := range codes {
			if c.Code == code {
				return true
			}
		}
	}
	return false
}

func annotationValue(a annotation.Annotation) string {
	if a.Value != "" {
		return a.Value
	}
	return a.Code
}

// RemoveAnnotation deletes an annotation (no-op for unknown ids). Cascaded
// relation deletions and any EMPTY placeholder insertion are queued along
// with it.
func (m *Manager) RemoveAnnotation(id string, keepEmpty bool) error {
	if _, ok := m.lib.Get(id); !ok {
		return nil
	}
	m.removeFromLibrary(id, keepEmpty)
	m.syncGlobal()
	m.notify()
	return nil
}

// addToLibrary inserts an annotation with repaired client metadata and
// queues it for submission.
func (m *Manager) addToLibrary(a annotation.Annotation) {
	a = annotation.Repair(a, m.varmap)
	m.lib = m.lib.Add(a)
	m.queue.add(m.queueKey(), m.unitID(), a)
}

// removeFromLibrary deletes an annotation and queues the diff, including
// cascade-deleted relations. EMPTY placeholders are a client-side editing
// aid and never travel in a batch.
func (m *Manager) removeFromLibrary(id string, keepEmpty bool) {
	before := m.lib.Annotations
	m.lib = m.lib.Remove(id, keepEmpty)
	after := m.lib.Annotations

	key := m.queueKey()
	for oldID, a := range before {
		if _, ok := after[oldID]; !ok && a.Code != annotation.EmptyCode {
			m.queue.remove(key, m.unitID(), a)
		}
	}
	for newID, a := range after {
		if _, ok := before[newID]; !ok && a.Code != annotation.EmptyCode {
			m.queue.add(key, m.unitID(), a)
		}
	}
}

// syncGlobal keeps survey-scope annotations visible across units: answers
// given in a survey phase are merged into every later unit's library.
// Outside a survey phase a mutation can still delete a survey answer, so
// entries no longer present in the library are dropped; otherwise the stale
// copy would resurface on the next unit load.
func (m *Manager) syncGlobal() {
	pp := m.currentPhase()
	if pp != nil && pp.Type == codebook.PhaseSurvey {
		m.global = m.lib.List()
		return
	}
	var kept []annotation.Annotation
	for _, a := range m.global {
		if _, ok := m.lib.Get(a.ID); ok {
			kept = append(kept, a)
		}
	}
	m.global = kept
}

func (m *Manager) queueKey() string {
	return fmt.Sprintf("%s/%d", m.session.Token, m.progress.Phase)
}

func (m *Manager) unitID() string {
	if m.unit == nil {
		return ""
	}
	return m.unit.ID
}

// HasPending reports whether annotation mutations are still waiting to be
// flushed to the server.
func (m *Manager) HasPending() bool {
	return !m.queue.empty()
}

// flush posts all pending batches. The queue is cleared per batch only on
// confirmed success; a failure leaves it intact for retry on the next
// attempt (at-least-once delivery, the server is assumed idempotent).
func (m *Manager) flush(ctx context.Context) error {
	for _, b := range m.queue.batches() {
		payload := PostPayload{
			SessionToken: m.session.Token,
			Phase:        m.progress.Phase,
			UnitID:       b.unitID,
			Added:        b.addedByVariable(),
			Removed:      b.removedByVariable(),
			Progress:     m.progress,
		}
		if err := m.server.PostAnnotations(ctx, payload); err != nil {
			return fmt.Errorf("posting annotations: %w", err)
		}
		m.queue.clear(b.key)
	}
	return nil
}
