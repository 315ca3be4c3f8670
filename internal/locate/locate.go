// Package locate finds the platform executable produced by a packaging
// step. The search is read-only: it never creates, changes or removes
// anything on disk.
package locate

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is matched by *NotFoundError.
var ErrNotFound = errors.New("no executable found")

// skipDirs are dependency caches and version control directories.
var skipDirs = map[string]bool{
	"node_modules":     true,
	"bower_components": true,
	".git":             true,
	".hg":              true,
	".svn":             true,
	".cache":           true,
}

// Checked records whether a root existed when it was searched.
type Checked struct {
	Root
	Present bool `json:"present"`
}

// Candidate is the executable chosen for the current platform.
type Candidate struct {
	Path      string
	Root      Root
	NameMatch bool      // the file name contains the application name
	Checked   []Checked // roots examined up to and including Root
}

// NotFoundError reports that no root held an acceptable executable.
type NotFoundError struct {
	Strategy string
	Checked  []Checked
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no %s executable found; checked:", e.Strategy)
	for _, c := range e.Checked {
		state := "present"
		if !c.Present {
			state = "absent"
		}
		fmt.Fprintf(&b, "\n  %s (%s, %s)", c.Path, c.Origin, state)
	}
	return b.String()
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Locator searches candidate roots with one platform strategy.
type Locator struct {
	Strategy Strategy
	AppName  string      // preferred substring of the executable name
	Log      *log.Logger // optional
}

// Locate returns the first acceptable executable across roots, in root
// priority order. Absent roots are skipped and reported in the result.
func (l *Locator) Locate(roots []Root) (*Candidate, error) {
	isRoot := make(map[string]bool, len(roots))
	for _, r := range roots {
		isRoot[r.Path] = true
	}

	var checked []Checked
	for _, r := range roots {
		info, err := os.Stat(r.Path)
		present := err == nil && info.IsDir()
		checked = append(checked, Checked{Root: r, Present: present})
		if !present {
			l.logf("root %s (%s) absent", r.Path, r.Origin)
			continue
		}

		path, match, ok := l.search(r.Path, isRoot)
		if ok {
			return &Candidate{Path: path, Root: r, NameMatch: match, Checked: checked}, nil
		}
	}
	return nil, &NotFoundError{Strategy: l.Strategy.Name(), Checked: checked}
}

// search walks one root depth-first using an explicit stack. Files of a
// directory are considered before its subdirectories, both in lexical
// order. A name-matching file ends the search at once; otherwise the first
// accepted file is returned when the root is exhausted.
func (l *Locator) search(root string, isRoot map[string]bool) (string, bool, bool) {
	bundles, _ := l.Strategy.(BundleResolver)
	if bundles != nil {
		if exe, ok := bundles.ResolveBundle(Entry{Path: root, Name: filepath.Base(root), IsDir: true}); ok {
			return exe, l.matches(exe), true
		}
	}

	var fallback string
	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			l.logf("skipping %s: %v", dir, err)
			continue
		}

		var subdirs []string
		for _, de := range entries {
			full := filepath.Join(dir, de.Name())
			if de.IsDir() {
				if skipDirs[de.Name()] || isRoot[full] {
					continue
				}
				if bundles != nil {
					if exe, ok := bundles.ResolveBundle(Entry{Path: full, Name: de.Name(), IsDir: true}); ok {
						return exe, l.matches(exe), true
					}
				}
				subdirs = append(subdirs, full)
				continue
			}
			if !de.Type().IsRegular() {
				continue
			}
			info, err := de.Info()
			if err != nil {
				continue
			}
			e := Entry{Path: full, Name: de.Name(), Mode: info.Mode().Perm()}
			if !l.Strategy.Accept(e) {
				continue
			}
			if l.matches(full) {
				return full, true, true
			}
			if fallback == "" {
				fallback = full
			}
		}

		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	if fallback != "" {
		return fallback, false, true
	}
	return "", false, false
}

func (l *Locator) matches(path string) bool {
	if l.AppName == "" {
		return false
	}
	return strings.Contains(strings.ToLower(filepath.Base(path)), strings.ToLower(l.AppName))
}

func (l *Locator) logf(format string, args ...any) {
	if l.Log != nil {
		l.Log.Printf(format, args...)
	}
}
