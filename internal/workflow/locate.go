package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/deixis/appverify/internal/locate"
	"github.com/deixis/appverify/internal/report"
	"github.com/google/uuid"
)

// LocateResult holds the outcome of a discovery run.
type LocateResult struct {
	Record    *report.Record
	Candidate *locate.Candidate // nil when nothing was found
}

// Locate searches the candidate roots for the platform executable. A
// missing artifact is reported as an error matching locate.ErrNotFound,
// with the record still returned for diagnostics.
func (e *Engine) Locate(ctx context.Context) (*LocateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	strategy, err := locate.StrategyFor(e.Platform, e.Config.LinuxFormat)
	if err != nil {
		return nil, fmt.Errorf("selecting strategy: %w", err)
	}

	l := &locate.Locator{Strategy: strategy, AppName: e.AppName, Log: e.Log}
	rec := &report.Record{
		ID:       uuid.New().String(),
		Kind:     report.Locate,
		Platform: strategy.Name(),
		RepoRoot: e.RepoRoot,
	}
	res := &LocateResult{Record: rec}

	cand, err := l.Locate(e.Roots())
	if err != nil {
		var nf *locate.NotFoundError
		if errors.As(err, &nf) {
			rec.Roots = recordRoots(nf.Checked)
		}
		rec.Message = err.Error()
		e.save(rec)
		return res, err
	}

	res.Candidate = cand
	rec.Executable = cand.Path
	rec.Origin = string(cand.Root.Origin)
	rec.Roots = recordRoots(cand.Checked)
	if !cand.NameMatch {
		rec.Message = fmt.Sprintf("executable name does not contain %q", e.AppName)
	}
	e.save(rec)
	return res, nil
}

func recordRoots(checked []locate.Checked) []report.Root {
	out := make([]report.Root, 0, len(checked))
	for _, c := range checked {
		out = append(out, report.Root{Path: c.Path, Origin: string(c.Origin), Present: c.Present})
	}
	return out
}
