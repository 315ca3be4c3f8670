package workflow

import (
	"context"
	"time"

	"github.com/deixis/appverify/internal/report"
	"github.com/deixis/appverify/internal/verify"
	"github.com/google/uuid"
)

// VerifyOptions override the configured verification parameters.
// Zero values keep the configuration.
type VerifyOptions struct {
	Port         int
	Timeout      time.Duration
	PollInterval time.Duration
	Args         []string
}

// VerifyResult holds the outcome of a verification run.
type VerifyResult struct {
	Record *report.Record
	Result *verify.Result
}

// Verifier returns the verifier configured for this engine.
func (e *Engine) Verifier(opts VerifyOptions) *verify.Verifier {
	v := &verify.Verifier{
		Port:         e.Config.Port(),
		Timeout:      e.Config.Timeout(),
		PollInterval: e.Config.PollInterval(),
		Grace:        e.Config.Grace(),
		Diagnostics:  e.Diagnostics,
		Suppress:     e.Config.SuppressPatterns(),
		Log:          e.Log,
	}
	if opts.Port > 0 {
		v.Port = opts.Port
	}
	if opts.Timeout > 0 {
		v.Timeout = opts.Timeout
	}
	if opts.PollInterval > 0 {
		v.PollInterval = opts.PollInterval
	}
	return v
}

// Verify launches path and waits for the application to occupy its port.
func (e *Engine) Verify(ctx context.Context, path string, opts VerifyOptions) *VerifyResult {
	res := e.Verifier(opts).Verify(ctx, path, opts.Args...)

	id := res.RunID
	if id == "" {
		id = uuid.New().String()
	}
	rec := &report.Record{
		ID:         id,
		Kind:       report.Verify,
		Platform:   e.Platform,
		RepoRoot:   e.RepoRoot,
		Executable: path,
		Outcome:    string(res.Outcome),
		Port:       res.Port,
		ExitCode:   res.ExitCode,
		Signal:     res.Signal,
		Elapsed:    res.Elapsed,
		Message:    res.Message(),
	}
	e.save(rec)
	return &VerifyResult{Record: rec, Result: res}
}
