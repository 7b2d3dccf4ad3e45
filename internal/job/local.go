package job

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"unitcoder/internal/annotation"
	"unitcoder/internal/codebook"
	"unitcoder/internal/database"
	"unitcoder/internal/token"
)

// surveyUnitPrefix namespaces the synthetic unit ids of survey phases in the
// annotations table, so survey answers can be told apart from unit-scoped
// ones when a session resumes.
const surveyUnitPrefix = "survey-"

// LocalServer is the sqlite-backed JobServer used for solo coding on one
// machine. Sessions, units and annotations all live in the job database.
type LocalServer struct {
	db    *database.DB
	job   *database.Job
	cb    *codebook.Codebook
	token string
	coder string
}

// NewLocalServer opens a job in the database for the given session token.
// The session is created on first use; an existing token resumes where it
// left off.
func NewLocalServer(db *database.DB, jobName, sessionToken, coder string) (*LocalServer, error) {
	j, err := db.GetJob(jobName)
	if err != nil {
		return nil, fmt.Errorf("loading job %q: %w", jobName, err)
	}
	if j == nil {
		return nil, fmt.Errorf("job %q does not exist", jobName)
	}
	cb, err := codebook.Parse([]byte(j.CodebookYAML))
	if err != nil {
		return nil, fmt.Errorf("job %q: %w", jobName, err)
	}
	return &LocalServer{db: db, job: j, cb: cb, token: sessionToken, coder: coder}, nil
}

func (s *LocalServer) GetSession(ctx context.Context) (*Session, error) {
	stored, err := s.db.GetSession(s.token)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if stored == nil {
		var coder *string
		if s.coder != "" {
			coder = &s.coder
		}
		if err := s.db.InsertSession(s.token, s.job.ID, coder); err != nil {
			return nil, fmt.Errorf("creating session: %w", err)
		}
		stored = &database.Session{Token: s.token, JobID: s.job.ID}
	}

	nUnits, err := s.db.CountUnits(s.job.ID)
	if err != nil {
		return nil, fmt.Errorf("counting units: %w", err)
	}

	progress := BuildProgress(s.cb, nUnits)
	if stored.ProgressJSON != nil {
		var saved Progress
		if err := json.Unmarshal([]byte(*stored.ProgressJSON), &saved); err != nil {
			return nil, fmt.Errorf("parsing saved progress: %w", err)
		}
		// The saved cursor wins, but phase bookkeeping is rebuilt from the
		// codebook in case units were added since the last session.
		if len(saved.Phases) == len(progress.Phases) {
			progress = saved
			for i := range progress.Phases {
				if progress.Phases[i].Type == codebook.PhaseAnnotation {
					progress.Phases[i].NUnits = nUnits
					for len(progress.Phases[i].UnitsDone) < nUnits {
						progress.Phases[i].UnitsDone = append(progress.Phases[i].UnitsDone, false)
					}
				}
			}
		}
	}

	global, err := s.globalAnnotations()
	if err != nil {
		return nil, err
	}

	return &Session{
		Token:             s.token,
		JobName:           s.job.Name,
		Progress:          progress,
		GlobalAnnotations: global,
	}, nil
}

// globalAnnotations loads the session's survey-phase answers, which stay
// visible across every unit.
func (s *LocalServer) globalAnnotations() ([]annotation.Annotation, error) {
	rows, err := s.db.GetAnnotationsForSession(s.token)
	if err != nil {
		return nil, fmt.Errorf("loading session annotations: %w", err)
	}
	var out []annotation.Annotation
	for _, row := range rows {
		if !strings.HasPrefix(row.UnitID, surveyUnitPrefix) {
			continue
		}
		a, err := decodeAnnotation(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *LocalServer) GetCodebook(ctx context.Context, phase int) (*codebook.Codebook, error) {
	return s.cb, nil
}

func (s *LocalServer) GetUnit(ctx context.Context, phase, unit int) (*Unit, error) {
	phases := s.cb.Phases()
	if phase < 0 || phase >= len(phases) {
		return nil, fmt.Errorf("phase %d out of range", phase)
	}
	if phases[phase].PhaseType == codebook.PhaseSurvey {
		return &Unit{ID: fmt.Sprintf("%s%d", surveyUnitPrefix, phase)}, nil
	}

	stored, err := s.db.GetUnitAt(s.job.ID, unit)
	if err != nil {
		return nil, fmt.Errorf("loading unit %d: %w", unit, err)
	}
	if stored == nil {
		return nil, fmt.Errorf("unit %d out of range", unit)
	}

	u := &Unit{ID: stored.ExternalID}
	if err := json.Unmarshal([]byte(stored.FieldsJSON), &u.Fields); err != nil {
		return nil, fmt.Errorf("unit %s: parsing fields: %w", stored.ExternalID, err)
	}
	if stored.TokensJSON != nil {
		var cols token.Columns
		if err := json.Unmarshal([]byte(*stored.TokensJSON), &cols); err != nil {
			return nil, fmt.Errorf("unit %s: parsing tokens: %w", stored.ExternalID, err)
		}
		u.Tokens, err = token.Import(cols)
		if err != nil {
			return nil, fmt.Errorf("unit %s: %w", stored.ExternalID, err)
		}
	}

	rows, err := s.db.GetAnnotationsForUnit(s.token, stored.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("unit %s: loading annotations: %w", stored.ExternalID, err)
	}
	for _, row := range rows {
		a, err := decodeAnnotation(row)
		if err != nil {
			return nil, err
		}
		u.Annotations = append(u.Annotations, a)
	}
	return u, nil
}

func (s *LocalServer) PostAnnotations(ctx context.Context, payload PostPayload) error {
	for variable, anns := range payload.Added {
		for _, a := range anns {
			// EMPTY placeholders are client-side state; a well-behaved
			// client never sends them, a misbehaving one is not stored.
			if a.Code == annotation.EmptyCode {
				continue
			}
			a.Status = annotation.StatusDone
			body, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("encoding annotation %s: %w", a.ID, err)
			}
			row := database.AnnotationRow{
				ID:           a.ID,
				SessionToken: payload.SessionToken,
				JobID:        s.job.ID,
				UnitID:       payload.UnitID,
				Variable:     variable,
				BodyJSON:     string(body),
				Status:       string(annotation.StatusDone),
			}
			if err := s.db.UpsertAnnotation(row); err != nil {
				return fmt.Errorf("storing annotation %s: %w", a.ID, err)
			}
		}
	}
	for _, ids := range payload.Removed {
		for _, id := range ids {
			if err := s.db.DeleteAnnotation(id); err != nil {
				return fmt.Errorf("deleting annotation %s: %w", id, err)
			}
		}
	}

	progress, err := json.Marshal(payload.Progress)
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}
	if err := s.db.UpdateSessionProgress(payload.SessionToken, string(progress)); err != nil {
		return fmt.Errorf("saving progress: %w", err)
	}
	return nil
}

func (s *LocalServer) GetDebriefing(ctx context.Context) (*Debriefing, error) {
	return &Debriefing{Message: fmt.Sprintf("All done. Your annotations for %q are saved.", s.job.Name)}, nil
}

func (s *LocalServer) Preview() bool { return false }

func decodeAnnotation(row database.AnnotationRow) (annotation.Annotation, error) {
	var a annotation.Annotation
	if err := json.Unmarshal([]byte(row.BodyJSON), &a); err != nil {
		return a, fmt.Errorf("parsing annotation %s: %w", row.ID, err)
	}
	return a, nil
}
