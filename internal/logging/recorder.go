package logging

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one recorded diagnostic line.
type Entry struct {
	Time    time.Time `json:"time" yaml:"time"`
	Level   string    `json:"level" yaml:"level"`
	Message string    `json:"message" yaml:"message"`
}

var _ InternalLogger = (*Recorder)(nil)

// Recorder keeps diagnostics in memory so they can be returned with a dry run.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

func (r *Recorder) append(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{
		Time:    r.now(),
		Level:   level,
		Message: msg,
	})
}

func (r *Recorder) Debug(format string, args ...any) {
	r.append("debug", format, args...)
}

func (r *Recorder) Info(format string, args ...any) {
	r.append("info", format, args...)
}

func (r *Recorder) Warn(format string, args ...any) {
	r.append("warn", format, args...)
}

func (r *Recorder) Error(format string, args ...any) {
	r.append("error", format, args...)
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Messages returns the recorded messages at the given level.
func (r *Recorder) Messages(level string) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// NewCompositeLogger creates a MultiLogger that logs to both zerolog and the recorder.
func NewCompositeLogger(rec *Recorder, zlog zerolog.Logger) MultiLogger {
	return NewMultiLogger(
		NewZLogger(zlog),
		rec,
	)
}
