// Package job orchestrates an annotation session: it sequences navigation
// across phases, units and variables, applies annotation mutations, and
// batches submissions to a persistence boundary.
package job

import (
	"context"

	"unitcoder/internal/annotation"
	"unitcoder/internal/codebook"
	"unitcoder/internal/token"
)

// Unit is one document/item to be annotated. Tokens may be delivered
// pre-tokenized by the server; otherwise they are parsed from Fields on
// load.
type Unit struct {
	ID          string                  `json:"id"`
	Fields      []token.Field           `json:"fields"`
	Tokens      []token.Token           `json:"tokens,omitempty"`
	Annotations []annotation.Annotation `json:"annotations,omitempty"`
}

// VariableProgress is the completion state of one variable at the current
// navigation point.
type VariableProgress struct {
	Name string `json:"name"`
	Done bool   `json:"done"`
	Skip bool   `json:"skip"`
}

// PhaseProgress is the per-phase completion bookkeeping.
type PhaseProgress struct {
	PhaseID   int64              `json:"phase_id"`
	Label     string             `json:"label"`
	Type      codebook.PhaseType `json:"type"`
	NUnits    int                `json:"n_units"`
	UnitsDone []bool             `json:"units_done"`
	Variables []VariableProgress `json:"variables"`
	Done      bool               `json:"done"`
}

// Progress is the phase/unit/variable cursor plus navigation permissions.
type Progress struct {
	Phase    int  `json:"phase"`
	Unit     int  `json:"unit"`
	Variable int  `json:"variable"`
	Finished bool `json:"finished"`

	CanGoBack bool `json:"can_go_back"`
	CanSkip   bool `json:"can_skip"`

	Phases []PhaseProgress `json:"phases"`
}

// Session is what a server hands out when a coder joins a job.
type Session struct {
	Token             string                  `json:"token"`
	JobName           string                  `json:"job_name"`
	Progress          Progress                `json:"progress"`
	GlobalAnnotations []annotation.Annotation `json:"global_annotations,omitempty"`
}

// PostPayload is one batched flush of annotation mutations. Added and
// Removed are grouped per variable so the server can update variable-level
// status in the same write.
type PostPayload struct {
	SessionToken string                             `json:"session_token"`
	Phase        int                                `json:"phase"`
	UnitID       string                             `json:"unit_id"`
	Added        map[string][]annotation.Annotation `json:"added,omitempty"`
	Removed      map[string][]string                `json:"removed,omitempty"`
	Progress     Progress                           `json:"progress"`
}

// Debriefing is shown when a job is finished.
type Debriefing struct {
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}

// JobServer is the persistence boundary the manager talks to. Any backing
// implementation works: the sqlite-backed local server, the in-memory
// preview sandbox, or a remote API client.
type JobServer interface {
	GetSession(ctx context.Context) (*Session, error)
	GetCodebook(ctx context.Context, phase int) (*codebook.Codebook, error)
	GetUnit(ctx context.Context, phase, unit int) (*Unit, error)
	PostAnnotations(ctx context.Context, payload PostPayload) error
	GetDebriefing(ctx context.Context) (*Debriefing, error)

	// Preview reports sandbox mode: nothing is persisted and finishing
	// never advances the cursor.
	Preview() bool
}
