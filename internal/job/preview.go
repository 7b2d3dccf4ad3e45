package job

import (
	"context"
	"fmt"

	"unitcoder/internal/codebook"
)

// PreviewServer is the in-memory sandbox JobServer used while authoring a
// codebook: it serves a codebook and a handful of sample units, persists
// nothing, and never advances the session cursor.
type PreviewServer struct {
	cb    *codebook.Codebook
	units []Unit
}

// NewPreviewServer creates a preview sandbox over a codebook and sample
// units.
func NewPreviewServer(cb *codebook.Codebook, units []Unit) *PreviewServer {
	return &PreviewServer{cb: cb, units: units}
}

func (s *PreviewServer) GetSession(ctx context.Context) (*Session, error) {
	return &Session{
		Token:    "preview",
		JobName:  s.cb.Name,
		Progress: BuildProgress(s.cb, len(s.units)),
	}, nil
}

func (s *PreviewServer) GetCodebook(ctx context.Context, phase int) (*codebook.Codebook, error) {
	return s.cb, nil
}

func (s *PreviewServer) GetUnit(ctx context.Context, phase, unit int) (*Unit, error) {
	phases := s.cb.Phases()
	if phase < 0 || phase >= len(phases) {
		return nil, fmt.Errorf("phase %d out of range", phase)
	}
	if phases[phase].PhaseType == codebook.PhaseSurvey {
		// Survey phases have no document; questions render on their own.
		return &Unit{ID: fmt.Sprintf("survey-%d", phase)}, nil
	}
	if unit < 0 || unit >= len(s.units) {
		return nil, fmt.Errorf("unit %d out of range", unit)
	}
	u := s.units[unit]
	return &u, nil
}

// PostAnnotations is a sink: preview mode never persists.
func (s *PreviewServer) PostAnnotations(ctx context.Context, payload PostPayload) error {
	return nil
}

func (s *PreviewServer) GetDebriefing(ctx context.Context) (*Debriefing, error) {
	return &Debriefing{Message: "End of preview."}, nil
}

func (s *PreviewServer) Preview() bool { return true }

// BuildProgress derives a fresh Progress from a codebook: one pass per
// survey phase, nUnits passes per annotation phase.
func BuildProgress(cb *codebook.Codebook, nUnits int) Progress {
	p := Progress{}
	for _, phase := range cb.Phases() {
		pp := PhaseProgress{
			PhaseID: phase.ID,
			Label:   phase.Name,
			Type:    phase.PhaseType,
			NUnits:  1,
		}
		if phase.PhaseType == codebook.PhaseAnnotation {
			pp.NUnits = nUnits
		}
		pp.UnitsDone = make([]bool, pp.NUnits)
		for _, leaf := range cb.PhaseLeaves(phase.ID) {
			pp.Variables = append(pp.Variables, VariableProgress{Name: leaf.Data.Variable.Name})
		}
		p.Phases = append(p.Phases, pp)
	}
	if len(p.Phases) > 0 {
		first := cb.Phases()[0]
		if first.Data.Phase != nil {
			p.CanGoBack = first.Data.Phase.CanGoBack
			p.CanSkip = first.Data.Phase.CanSkip
		}
	}
	return p
}
