// Package workflow ties configuration, discovery and verification
// together. It is consumed by both the MCP server and the CLI commands.
package workflow

import (
	"io"
	"log"
	"path/filepath"
	"runtime"
	"time"

	"github.com/deixis/appverify/internal/config"
	"github.com/deixis/appverify/internal/locate"
	"github.com/deixis/appverify/internal/report"
)

// Engine holds shared dependencies for all workflow operations.
type Engine struct {
	Config   *config.Config
	RepoRoot string // packager project root; relative paths resolve here
	AppName  string // preferred executable name
	Platform string // GOOS the artifact is built for

	Store       report.Store // optional; records are best-effort
	Diagnostics io.Writer    // receives the child's filtered stderr
	Log         *log.Logger  // optional
}

// New builds an Engine for the current platform from a loaded config.
func New(loaded *config.LoadResult, store report.Store) *Engine {
	return &Engine{
		Config:   loaded.Config,
		RepoRoot: loaded.RepoRoot,
		AppName:  loaded.AppName,
		Platform: runtime.GOOS,
		Store:    store,
	}
}

// Roots assembles the candidate roots from config, environment and the
// packager's output record. A broken record is logged and ignored.
func (e *Engine) Roots() []locate.Root {
	recordPath := e.Config.OutputRecordPath()
	if !filepath.IsAbs(recordPath) {
		recordPath = filepath.Join(e.RepoRoot, recordPath)
	}
	recorded, err := locate.ReadRecord(recordPath)
	if err != nil {
		e.logf("ignoring output record: %v", err)
	}

	return locate.Roots(locate.RootOptions{
		RepoRoot:  e.RepoRoot,
		Override:  e.Config.Override(),
		OutDir:    e.Config.OutputDir(),
		AltOutDir: e.Config.AltOutputDir(),
		Recorded:  recorded,
	})
}

// save stores a record, logging rather than returning failures.
func (e *Engine) save(r *report.Record) {
	if e.Store == nil {
		return
	}
	r.CreatedAt = time.Now().UTC()
	if err := e.Store.Save(r); err != nil {
		e.logf("saving record %s: %v", r.ID, err)
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e.Log != nil {
		e.Log.Printf(format, args...)
	}
}
