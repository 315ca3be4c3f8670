// Package report persists diagnostic records of locate and verify runs.
// Saving a record is best-effort; callers never let a storage failure
// change the outcome of a run.
package report

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies the type of a run.
type Kind string

const (
	// Locate is an artifact discovery run.
	Locate Kind = "locate"
	// Verify is a launch-and-verify run.
	Verify Kind = "verify"
)

// Store persists and retrieves records.
type Store interface {
	Save(record *Record) error
	Load(id string) (*Record, error)
}

// Record holds the structured outcome of one run.
type Record struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	Platform  string    `json:"platform,omitempty"`
	RepoRoot  string    `json:"repo_root,omitempty"`

	// Locate fields.
	Executable string `json:"executable,omitempty"`
	Origin     string `json:"origin,omitempty"`
	Roots      []Root `json:"roots,omitempty"`

	// Verify fields.
	Outcome  string        `json:"outcome,omitempty"`
	Port     int           `json:"port,omitempty"`
	ExitCode *int          `json:"exit_code,omitempty"`
	Signal   string        `json:"signal,omitempty"`
	Elapsed  time.Duration `json:"elapsed,omitempty"`

	Message string `json:"message,omitempty"`
}

// Root is a searched directory as recorded for diagnostics.
type Root struct {
	Path    string `json:"path"`
	Origin  string `json:"origin"`
	Present bool   `json:"present"`
}

// Expect returns an error if the record's Kind does not match want.
func (r *Record) Expect(want Kind) error {
	if r.Kind != want {
		return fmt.Errorf("run %s is a %s run, not a %s run", r.ID, r.Kind, want)
	}
	return nil
}

// Format renders a record for people.
func Format(r *Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s (%s)\n", r.ID, r.Kind)
	if r.Platform != "" {
		fmt.Fprintf(&b, "Platform: %s\n", r.Platform)
	}
	if r.Executable != "" {
		fmt.Fprintf(&b, "Executable: %s\n", r.Executable)
	}
	if r.Origin != "" {
		fmt.Fprintf(&b, "Origin: %s\n", r.Origin)
	}
	if r.Outcome != "" {
		fmt.Fprintf(&b, "Outcome: %s\n", r.Outcome)
	}
	if r.Port > 0 {
		fmt.Fprintf(&b, "Port: %d\n", r.Port)
	}
	if r.ExitCode != nil {
		fmt.Fprintf(&b, "Exit code: %d\n", *r.ExitCode)
	}
	if r.Signal != "" {
		fmt.Fprintf(&b, "Signal: %s\n", r.Signal)
	}
	if r.Elapsed > 0 {
		fmt.Fprintf(&b, "Elapsed: %s\n", r.Elapsed.Round(time.Millisecond))
	}
	if len(r.Roots) > 0 {
		fmt.Fprintln(&b, "Roots:")
		for _, root := range r.Roots {
			state := "present"
			if !root.Present {
				state = "absent"
			}
			fmt.Fprintf(&b, "  %s (%s, %s)\n", root.Path, root.Origin, state)
		}
	}
	if r.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", r.Message)
	}
	return b.String()
}
