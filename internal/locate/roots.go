package locate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Origin tells where a candidate root came from.
type Origin string

const (
	// FromOverride is an explicit output directory override.
	FromOverride Origin = "override"
	// FromDefault is the repository's default output directory.
	FromDefault Origin = "default"
	// FromMake is the default output directory's nested make directory.
	FromMake Origin = "make"
	// FromParent is the output directory beside the repository's parent.
	FromParent Origin = "parent"
	// FromGrandparent is the output directory beside the repository's grandparent.
	FromGrandparent Origin = "grandparent"
	// FromSibling is the build directory of the alternate build entry point.
	FromSibling Origin = "sibling"
	// FromRecorded is an output path reported by a prior packaging run.
	FromRecorded Origin = "recorded"
)

// Root is a directory to search. Slice order is search priority.
type Root struct {
	Path   string `json:"path"`
	Origin Origin `json:"origin"`
}

// RootOptions describes where the packager may have written its output.
type RootOptions struct {
	RepoRoot  string
	Override  string   // optional; absolute or relative to RepoRoot
	OutDir    string   // default output directory, usually "out"
	AltOutDir string   // sibling build directory, usually "dist"
	Recorded  []string // output paths reported by a prior packaging run
}

// Roots assembles the candidate roots in priority order. It does not touch
// the filesystem. A path listed twice keeps its first position.
func Roots(opts RootOptions) []Root {
	var roots []Root
	seen := make(map[string]bool)
	add := func(p string, o Origin) {
		if p == "" {
			return
		}
		p = resolve(opts.RepoRoot, p)
		if seen[p] {
			return
		}
		seen[p] = true
		roots = append(roots, Root{Path: p, Origin: o})
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = "out"
	}

	add(opts.Override, FromOverride)
	add(outDir, FromDefault)
	add(filepath.Join(outDir, "make"), FromMake)

	parent := filepath.Dir(filepath.Clean(opts.RepoRoot))
	add(filepath.Join(parent, outDir), FromParent)
	add(filepath.Join(filepath.Dir(parent), outDir), FromGrandparent)

	add(opts.AltOutDir, FromSibling)
	for _, p := range opts.Recorded {
		add(p, FromRecorded)
	}
	return roots
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// outputRecord is the packager's record of where it wrote output.
type outputRecord struct {
	OutputPaths []string `json:"outputPaths"`
}

// ReadRecord reads the output paths recorded by a prior packaging run.
// A missing record is not an error.
func ReadRecord(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading output record: %w", err)
	}
	var rec outputRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing output record %s: %w", path, err)
	}
	return rec.OutputPaths, nil
}
