package locate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Entry is a filesystem entry met during traversal.
type Entry struct {
	Path  string
	Name  string
	IsDir bool
	Mode  fs.FileMode // permission bits; meaningful for files only
}

// Strategy decides whether a file is the application's entry point on one
// platform.
type Strategy interface {
	Name() string
	Accept(e Entry) bool
}

// BundleResolver is implemented by strategies whose platform packages the
// application as a directory bundle with the executable at a fixed
// location inside it.
type BundleResolver interface {
	// ResolveBundle returns the conventional executable inside dir when dir
	// is a bundle and that executable exists.
	ResolveBundle(dir Entry) (string, bool)
}

// Linux packaging formats.
const (
	LinuxAny      = "any"
	LinuxAppImage = "appimage"
	LinuxUnpacked = "unpacked"
)

// StrategyFor returns the strategy for goos. linuxFormat narrows the Linux
// strategy and is ignored elsewhere.
func StrategyFor(goos, linuxFormat string) (Strategy, error) {
	switch goos {
	case "windows":
		return windowsStrategy{}, nil
	case "darwin":
		return darwinStrategy{}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		switch linuxFormat {
		case "", LinuxAny:
			return linuxStrategy{}, nil
		case LinuxAppImage:
			return appImageStrategy{}, nil
		case LinuxUnpacked:
			return unpackedStrategy{}, nil
		}
		return nil, fmt.Errorf("unknown linux format %q", linuxFormat)
	}
	return nil, fmt.Errorf("unsupported platform %q", goos)
}

func containsAny(name string, parts ...string) bool {
	lower := strings.ToLower(name)
	for _, p := range parts {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func executable(m fs.FileMode) bool { return m&0o111 != 0 }

type windowsStrategy struct{}

func (windowsStrategy) Name() string { return "windows" }

func (windowsStrategy) Accept(e Entry) bool {
	if e.IsDir || !strings.HasSuffix(strings.ToLower(e.Name), ".exe") {
		return false
	}
	return !containsAny(e.Name, "electron", "crashpad")
}

type darwinStrategy struct{}

func (darwinStrategy) Name() string { return "darwin" }

func (darwinStrategy) Accept(e Entry) bool {
	if e.IsDir || !executable(e.Mode) {
		return false
	}
	return !containsAny(e.Name, "helper", "crashpad")
}

// ResolveBundle looks for Contents/MacOS/<name> inside a <name>.app bundle.
func (darwinStrategy) ResolveBundle(dir Entry) (string, bool) {
	if !dir.IsDir || !strings.HasSuffix(dir.Name, ".app") {
		return "", false
	}
	exe := filepath.Join(dir.Path, "Contents", "MacOS", strings.TrimSuffix(dir.Name, ".app"))
	info, err := os.Stat(exe)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return exe, true
}

type appImageStrategy struct{}

func (appImageStrategy) Name() string { return "linux-appimage" }

func (appImageStrategy) Accept(e Entry) bool {
	return !e.IsDir && strings.HasSuffix(e.Name, ".AppImage")
}

type unpackedStrategy struct{}

func (unpackedStrategy) Name() string { return "linux-unpacked" }

func (unpackedStrategy) Accept(e Entry) bool {
	if e.IsDir || !executable(e.Mode) || strings.Contains(e.Name, ".so") {
		return false
	}
	return !containsAny(e.Name, "chrome", "crashpad")
}

// linuxStrategy accepts either Linux packaging format.
type linuxStrategy struct{}

func (linuxStrategy) Name() string { return "linux" }

func (linuxStrategy) Accept(e Entry) bool {
	return appImageStrategy{}.Accept(e) || unpackedStrategy{}.Accept(e)
}
