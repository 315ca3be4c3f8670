package runner

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// LineFilter relays complete lines to W, prefixed with Prefix, dropping
// any line that contains one of the Suppress fragments. A trailing partial
// line is held until more input arrives or Flush is called.
type LineFilter struct {
	W        io.Writer
	Prefix   string
	Suppress []string

	mu      sync.Mutex
	pending bytes.Buffer
}

// Write always consumes all of p, so the child never sees a short write.
func (f *LineFilter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending.Write(p)
	for {
		i := bytes.IndexByte(f.pending.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(f.pending.Next(i + 1))
		f.emit(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush relays any held partial line.
func (f *LineFilter) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending.Len() > 0 {
		f.emit(f.pending.String())
		f.pending.Reset()
	}
}

func (f *LineFilter) emit(line string) {
	if f.W == nil || strings.TrimSpace(line) == "" {
		return
	}
	for _, s := range f.Suppress {
		if s != "" && strings.Contains(line, s) {
			return
		}
	}
	_, _ = io.WriteString(f.W, f.Prefix+line+"\n")
}
