package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const DefaultMaxSize = 2 * 1024 * 1024 // 2MB

var levels = map[string]int32{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

var minLevel atomic.Int32

func init() {
	minLevel.Store(levels["info"])
}

// SetLevel sets the lowest level Logf will emit. Unknown names fall back to info.
func SetLevel(name string) {
	lvl, ok := levels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		lvl = levels["info"]
	}
	minLevel.Store(lvl)
}

// Enabled reports whether messages at level are emitted.
func Enabled(level string) bool {
	lvl, ok := levels[level]
	if !ok {
		return true
	}
	return lvl >= minLevel.Load()
}

// Logf writes a level-prefixed line through the standard logger.
func Logf(level, format string, args ...any) {
	if !Enabled(level) {
		return
	}
	log.Output(2, fmt.Sprintf("["+strings.ToUpper(level)+"] "+format, args...))
}

func Debugf(format string, args ...any) { Logf("debug", format, args...) }
func Infof(format string, args ...any)  { Logf("info", format, args...) }
func Warnf(format string, args ...any)  { Logf("warn", format, args...) }
func Errorf(format string, args ...any) { Logf("error", format, args...) }

// RotatingWriter is a file writer that moves the file to path+".1" once it
// grows past maxSize. Only one backup is kept.
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// NewRotatingWriter opens path for appending.
func NewRotatingWriter(path string, maxSize int64) (*RotatingWriter, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	w := &RotatingWriter{
		file:    f,
		path:    path,
		size:    size,
		maxSize: maxSize,
	}
	if size > maxSize {
		w.mu.Lock()
		w.rotate()
		w.mu.Unlock()
	}
	return w, nil
}

// Setup points the standard logger at stdout and a rotating file.
func Setup(path string, level string) (*RotatingWriter, error) {
	SetLevel(level)

	rw, err := NewRotatingWriter(path, DefaultMaxSize)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rw))
	return rw, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	w.size += int64(n)

	if w.size > w.maxSize {
		w.rotate()
	}
	return n, err
}

func (w *RotatingWriter) rotate() {
	w.file.Close()
	os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		// w.file is closed; discard until the next rotation
		w.file, _ = os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		return
	}
	w.file = f
	w.size = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
