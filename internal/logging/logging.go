// Package logging persists run timelines as JSONL files and locates
// them again for replay. Persistence is a plain store subscriber; the
// harness core owns nothing beyond the in-memory store.
package logging

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/loomhq/loom/internal/entry"
	"github.com/loomhq/loom/internal/store"
)

// RunLogger manages the JSONL timeline file for one run.
type RunLogger struct {
	Dir     string
	RunID   string
	LogPath string
	file    *os.File
}

// NewRunLogger creates the per-project log directory and the run's
// JSONL file. runID should be the run's unique identifier.
func NewRunLogger(baseDir, workDir, runID string) (*RunLogger, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("log base dir is empty")
	}
	logDir, err := FindLogDir(baseDir, workDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("%s.jsonl", runID))
	file, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	return &RunLogger{Dir: logDir, RunID: runID, LogPath: logPath, file: file}, nil
}

// Record subscribes to st and writes every entry as one JSON line,
// history first, until the store closes or ctx ends. Each line is
// flushed as it is written, so an interrupted run loses at most the
// entry in flight. It blocks; run it in its own goroutine and join it
// before calling Close, since the subscriber queue drains
// asynchronously after the store closes.
func (r *RunLogger) Record(ctx context.Context, st *store.MsgStore) error {
	w := bufio.NewWriter(r.file)
	for e := range st.Subscribe(ctx) {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry %d: %w", e.Seq, err)
		}
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write log file: %w", err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush log file: %w", err)
		}
	}
	return nil
}

// Close closes the log file.
func (r *RunLogger) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// ReadEntries loads a persisted timeline back for replay.
func ReadEntries(path string) ([]entry.Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	var entries []entry.Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e entry.Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("parse log line: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return entries, nil
}

// ReplayStore loads a persisted timeline into a fresh store. Entries
// keep their recorded sequence numbers and enter via Push, so
// subscribers see exactly the stream the live run produced. The
// returned store is already closed; a subscription replays the history
// and then finishes.
func ReplayStore(path string) (*store.MsgStore, error) {
	entries, err := ReadEntries(path)
	if err != nil {
		return nil, err
	}
	st := store.NewMsgStore()
	for _, e := range entries {
		st.Push(e)
	}
	st.Close()
	return st, nil
}

// FindLogDir resolves the log directory for a working directory: the
// base dir plus a project slug derived from the repository root.
func FindLogDir(baseDir, workDir string) (string, error) {
	if baseDir == "" {
		return "", fmt.Errorf("log base dir is empty")
	}
	resolvedWorkDir := workDir
	if resolvedWorkDir == "" {
		resolvedWorkDir = "."
	}
	if abs, err := filepath.Abs(resolvedWorkDir); err == nil {
		resolvedWorkDir = abs
	}
	baseDir = resolveBaseDir(baseDir, resolvedWorkDir)
	projectRoot := resolveProjectRoot(resolvedWorkDir)
	return filepath.Join(baseDir, projectSlug(projectRoot)), nil
}

// FindLatestLog finds the most recent JSONL log file in a directory.
// It returns an empty path when the directory has none.
func FindLatestLog(logDir string) (string, error) {
	dirEntries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read log dir: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".jsonl") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(logDir, de.Name()),
			modTime: info.ModTime(),
		})
	}
	if len(candidates) == 0 {
		return "", nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})
	return candidates[0].path, nil
}

func resolveBaseDir(baseDir, workDir string) string {
	if filepath.IsAbs(baseDir) {
		return filepath.Clean(baseDir)
	}
	return filepath.Clean(filepath.Join(workDir, baseDir))
}

func resolveProjectRoot(workDir string) string {
	if workDir == "" {
		return "."
	}
	if _, err := exec.LookPath("git"); err == nil {
		cmd := exec.Command("git", "-C", workDir, "rev-parse", "--show-toplevel")
		if output, err := cmd.Output(); err == nil {
			root := strings.TrimSpace(string(output))
			if root != "" {
				return root
			}
		}
	}
	return workDir
}

func projectSlug(projectRoot string) string {
	name := filepath.Base(projectRoot)
	return fmt.Sprintf("%s-%s", slugify(name), hashPath(projectRoot))
}

func slugify(input string) string {
	if strings.TrimSpace(input) == "" {
		return "project"
	}

	var b strings.Builder
	lastUnderscore := false
	for i := 0; i < len(input); i++ {
		c := input[i]
		valid := (c >= 'A' && c <= 'Z') ||
			(c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') ||
			c == '.' || c == '_' || c == '-'
		if !valid {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		b.WriteByte(c)
		lastUnderscore = false
	}

	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		return "project"
	}
	return slug
}

func hashPath(input string) string {
	sum := sha1.Sum([]byte(input))
	return hex.EncodeToString(sum[:])[:8]
}
