// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package eventlog implements the append-only log primitive (C2): atomic
// line-append, size-triggered rotation, and crash-safe replay. Both the
// durable event stream and the high-frequency activity logger are built
// on top of it.
package eventlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// Log is an append-only, rotatable, line-oriented file. Each line is
// expected to be one JSON object; the log itself treats lines as opaque
// bytes.
type Log struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	file     *os.File

	// lockRetries bounds advisory-lock contention retries on Append
	// before the caller's failure policy kicks in (unlocked fallback
	// for the activity log, hard failure for the main stream).
	lockRetries int
}

// Option configures a Log.
type Option func(*Log)

// WithMaxBytes sets the size threshold that triggers rotation on the next
// Append call that would exceed it.
func WithMaxBytes(n int64) Option {
	return func(l *Log) { l.maxBytes = n }
}

// WithLockRetries sets the number of advisory-lock acquisition attempts
// before Append gives up (§4.1: "≥ 5 attempts").
func WithLockRetries(n int) Option {
	return func(l *Log) { l.lockRetries = n }
}

// Open opens (creating if necessary) the log file at path.
func Open(path string, opts ...Option) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}

	l := &Log{path: path, file: f, maxBytes: 0, lockRetries: 5}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the active file path.
func (l *Log) Path() string { return l.path }

// Size returns the current file size.
func (l *Log) Size() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	info, err := l.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Append writes line (without a trailing newline) atomically, rotating
// first if the resulting size would exceed maxBytes. allowUnlockedFallback
// controls the §4.1 failure policy: the activity logger falls back to an
// unlocked append on lock contention to preserve availability; the main
// event stream must not take that shortcut and instead returns an error.
func (l *Log) Append(line []byte, allowUnlockedFallback bool) (rotated bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	locked, lockErr := l.tryLock()
	if lockErr != nil {
		if !allowUnlockedFallback {
			return false, fmt.Errorf("acquire log lock: %w", lockErr)
		}
		// Availability over consistency: proceed without the advisory
		// lock rather than drop the line.
	}
	if locked {
		defer l.unlock()
	}

	if l.maxBytes > 0 {
		info, statErr := l.file.Stat()
		if statErr == nil && info.Size()+int64(len(line))+1 > l.maxBytes {
			if rotErr := l.rotateLocked(); rotErr != nil {
				return false, rotErr
			}
			rotated = true
		}
	}

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := l.file.Write(buf); err != nil {
		return rotated, fmt.Errorf("append to log: %w", err)
	}
	return rotated, nil
}

// Rotate renames the active file with a timestamp suffix and truncates a
// fresh file in its place.
func (l *Log) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rotateLocked()
}

func (l *Log) rotateLocked() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log before rotate: %w", err)
	}

	suffix := time.Now().UnixMilli()
	rotatedPath := fmt.Sprintf("%s.%d", l.path, suffix)
	if err := os.Rename(l.path, rotatedPath); err != nil {
		return fmt.Errorf("rename log for rotation: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopen log after rotation: %w", err)
	}
	l.file = f
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// ReadAllFile returns every line currently in the file at path, in write
// order. A missing file yields no lines and no error. If scanning stops
// early (e.g. a line longer than the 16 MiB scanner buffer), the lines
// read before that point are returned together with the error. Lines are
// returned as opaque bytes; checking each one as JSON is left to the
// caller (stream).
func ReadAllFile(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log for replay: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("scan log: %w", err)
	}
	return lines, nil
}

// tryLock attempts to acquire an advisory exclusive lock on the file,
// retrying up to lockRetries times with a short backoff.
func (l *Log) tryLock() (bool, error) {
	var lastErr error
	for i := 0; i < l.lockRetries; i++ {
		err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return true, nil
		}
		lastErr = err
		time.Sleep(time.Duration(10*(i+1)) * time.Millisecond)
	}
	return false, lastErr
}

func (l *Log) unlock() {
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
}
