// Package pipeline orchestrates job preparation: collecting units from the
// configured sources, fetching their body text, and pre-tokenizing them.
package pipeline

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"unitcoder/internal/collect"
	"unitcoder/internal/config"
	"unitcoder/internal/database"
	"unitcoder/internal/fetch"
	"unitcoder/internal/token"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	JobName string
	Steps   []StepResult
}

// Pipeline orchestrates the 3-step unit preparation pipeline.
type Pipeline struct {
	cfg *config.Config
	db  *database.DB
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	return &Pipeline{cfg: cfg, db: db}
}

// Run executes the full pipeline against a job.
func (p *Pipeline) Run(job *database.Job) *Result {
	r := &Result{JobName: job.Name}

	step := p.runCollect(job.ID)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	r.Steps = append(r.Steps, p.runFetch(job.ID))
	r.Steps = append(r.Steps, p.runTokenize(job.ID))

	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun(job *database.Job) *Result {
	r := &Result{JobName: job.Name}

	n, _ := p.db.CountUnits(job.ID)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("[dry-run] %d units already in job %q", n, job.Name),
	})

	needing, _ := p.db.GetUnitsNeedingFetch(job.ID)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("[dry-run] %d units need body fetching", len(needing)),
	})

	untokenized, _ := p.untokenizedUnits(job.ID)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Tokenize",
		Summary: fmt.Sprintf("[dry-run] %d units need tokenizing", len(untokenized)),
	})

	return r
}

func (p *Pipeline) runCollect(jobID int64) StepResult {
	log.Println("Step 1/3: Collecting units...")
	collector := collect.NewCollector(p.cfg, p.db)
	result, err := collector.Collect(jobID)
	if err != nil {
		return StepResult{Name: "Collect", Err: err}
	}
	return StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("Found %d new units (%d total, %d duplicates)", result.NewUnits, result.TotalFound, result.Duplicates),
	}
}

func (p *Pipeline) runFetch(jobID int64) StepResult {
	log.Println("Step 2/3: Fetching unit bodies...")
	fetcher := fetch.NewBodyFetcher(p.db, 15*time.Second)
	result := fetcher.FetchMissingBodies(jobID)
	return StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("Fetched %d unit bodies, %d failed", result.Fetched, result.Failed),
	}
}

// runTokenize parses each unit's fields into tokens and stores the
// column-oriented form, so annotation sessions skip parsing on load.
func (p *Pipeline) runTokenize(jobID int64) StepResult {
	log.Println("Step 3/3: Tokenizing units...")

	units, err := p.untokenizedUnits(jobID)
	if err != nil {
		return StepResult{Name: "Tokenize", Err: err}
	}

	tokenized := 0
	for _, unit := range units {
		var fields []token.Field
		if err := json.Unmarshal([]byte(unit.FieldsJSON), &fields); err != nil {
			return StepResult{Name: "Tokenize", Err: fmt.Errorf("unit %s: parsing fields: %w", unit.ExternalID, err)}
		}
		cols, err := json.Marshal(token.ToColumns(token.Parse(fields)))
		if err != nil {
			return StepResult{Name: "Tokenize", Err: fmt.Errorf("unit %s: encoding tokens: %w", unit.ExternalID, err)}
		}
		if err := p.db.UpdateUnitTokens(unit.ID, string(cols)); err != nil {
			return StepResult{Name: "Tokenize", Err: fmt.Errorf("unit %s: storing tokens: %w", unit.ExternalID, err)}
		}
		tokenized++
	}

	return StepResult{
		Name:    "Tokenize",
		Summary: fmt.Sprintf("Tokenized %d units", tokenized),
	}
}

// untokenizedUnits returns a job's units without stored tokens, skipping
// units whose body fetch is still pending.
func (p *Pipeline) untokenizedUnits(jobID int64) ([]database.Unit, error) {
	units, err := p.db.GetUnitsForJob(jobID)
	if err != nil {
		return nil, err
	}
	var out []database.Unit
	for _, u := range units {
		if u.TokensJSON != nil {
			continue
		}
		if u.URL != nil && !u.BodyFetched {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}
