// Package process owns spawned agent subprocesses. A Handle controls a
// whole process group, not a single process, so descendants spawned by
// the agent are reaped together with it.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// DefaultGrace is how long Stop waits for cooperative shutdown before
// escalating to SIGKILL.
const DefaultGrace = 5 * time.Second

// SpawnError reports a failed spawn attempt: executable not located,
// invalid working directory, or permission denied. Spawn failures are
// fatal to the attempt and never retried by the harness.
type SpawnError struct {
	Cmd string
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Cmd, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitResult describes how a process terminated.
type ExitResult struct {
	// Code is the exit status, or -1 when the process was killed by a
	// signal before exiting.
	Code int

	// Signal names the terminating signal, empty for a normal exit.
	Signal string
}

// Success reports a clean zero exit.
func (r ExitResult) Success() bool {
	return r.Code == 0 && r.Signal == ""
}

// InterruptFunc is an adapter-supplied cooperative shutdown protocol.
// When absent, Stop falls back to signalling the process group.
type InterruptFunc func(ctx context.Context, h *Handle) error

// Handle is an owned, killable, waitable handle to a spawned process
// group with all three stdio streams piped. It is exclusively owned by
// the run that created it; Close must be called when the handle is
// abandoned so no agent process outlives the harness.
type Handle struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	pgid   int

	interrupt InterruptFunc
	exitCh    chan ExitResult

	waitOnce  sync.Once
	closeOnce sync.Once
	stdinOnce sync.Once
	done      chan struct{}
	exited    atomic.Bool
	result    ExitResult
	waitErr   error
}

// Option configures a Handle at spawn time.
type Option func(*Handle)

// WithInterrupt installs a cooperative shutdown protocol used by Stop
// before force termination.
func WithInterrupt(fn InterruptFunc) Option {
	return func(h *Handle) { h.interrupt = fn }
}

// Spawn starts argv[0] with the remaining arguments as the leader of a
// new process group, working directory dir, and the given environment
// (nil means inherit). All three stdio streams are piped.
func Spawn(argv []string, dir string, env []string, opts ...Option) (*Handle, error) {
	if len(argv) == 0 {
		return nil, &SpawnError{Cmd: "", Err: errors.New("empty argv")}
	}
	name := argv[0]

	path, err := exec.LookPath(name)
	if err != nil {
		return nil, &SpawnError{Cmd: name, Err: err}
	}
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, &SpawnError{Cmd: name, Err: fmt.Errorf("working directory: %w", err)}
		}
		if !info.IsDir() {
			return nil, &SpawnError{Cmd: name, Err: fmt.Errorf("working directory %s is not a directory", dir)}
		}
	}

	cmd := exec.Command(path, argv[1:]...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}
	setGroupAttr(cmd)

	h := &Handle{
		cmd:    cmd,
		exitCh: make(chan ExitResult, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.stdin, err = cmd.StdinPipe(); err != nil {
		return nil, &SpawnError{Cmd: name, Err: err}
	}
	if h.stdout, err = cmd.StdoutPipe(); err != nil {
		return nil, &SpawnError{Cmd: name, Err: err}
	}
	if h.stderr, err = cmd.StderrPipe(); err != nil {
		return nil, &SpawnError{Cmd: name, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Cmd: name, Err: err}
	}
	h.pgid = cmd.Process.Pid
	return h, nil
}

// Stdout returns the piped standard output stream.
func (h *Handle) Stdout() io.Reader { return h.stdout }

// Stderr returns the piped standard error stream.
func (h *Handle) Stderr() io.Reader { return h.stderr }

// Pid returns the process group leader's pid.
func (h *Handle) Pid() int { return h.pgid }

// FeedStdin writes the composed prompt once and shuts the write side
// down so the child sees end-of-input. It must complete before log
// draining is considered started; adapters that block on end-of-input
// depend on the close.
func (h *Handle) FeedStdin(text string) error {
	var err error
	h.stdinOnce.Do(func() {
		if _, werr := io.WriteString(h.stdin, text); werr != nil {
			err = fmt.Errorf("write stdin: %w", werr)
		}
		if cerr := h.stdin.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close stdin: %w", cerr)
		}
	})
	return err
}

// CloseStdin signals end-of-input without writing anything.
func (h *Handle) CloseStdin() {
	h.stdinOnce.Do(func() { _ = h.stdin.Close() })
}

// reap runs cmd.Wait exactly once and records the result. Callers must
// not start it while the stdio pipes are still being drained; Wait is
// only invoked by the run after drain completion, or on Close when the
// handle is being abandoned anyway.
func (h *Handle) reap() {
	h.waitOnce.Do(func() {
		go func() {
			err := h.cmd.Wait()
			h.result, h.waitErr = exitResult(err, h.cmd.ProcessState)
			h.exited.Store(true)
			close(h.done)
			h.exitCh <- h.result
		}()
	})
}

func exitResult(waitErr error, state *os.ProcessState) (ExitResult, error) {
	if state != nil {
		if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return ExitResult{Code: -1, Signal: ws.Signal().String()}, nil
		}
		return ExitResult{Code: state.ExitCode()}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return ExitResult{Code: exitErr.ExitCode()}, nil
	}
	return ExitResult{Code: -1}, waitErr
}

// Wait suspends the caller until the child terminates, without blocking
// other goroutines. Cancelling ctx abandons the wait but leaves the
// process running; use Stop or Close for termination.
func (h *Handle) Wait(ctx context.Context) (ExitResult, error) {
	h.reap()
	select {
	case <-ctx.Done():
		return ExitResult{}, ctx.Err()
	case <-h.done:
		return h.result, h.waitErr
	}
}

// ExitNotify returns a channel that receives the exit result exactly
// once after the process has been reaped.
func (h *Handle) ExitNotify() <-chan ExitResult { return h.exitCh }

// Exited reports whether the child has been reaped.
func (h *Handle) Exited() bool { return h.exited.Load() }

// Stop requests termination with two escalation tiers: the cooperative
// interrupt protocol if one was installed (otherwise an interrupt
// signal to the process group), then an unconditional kill once grace
// expires. A Stop after natural exit is a no-op, not an error.
func (h *Handle) Stop(ctx context.Context, grace time.Duration) error {
	if h.Exited() {
		return nil
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	if h.interrupt != nil {
		_ = h.interrupt(ctx, h)
	} else if err := interruptGroup(h.pgid); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("interrupt process group: %w", err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
	case <-timer.C:
	}
	return h.Kill()
}

// Kill forcefully terminates the whole process group. Killing an
// already dead group is a no-op.
func (h *Handle) Kill() error {
	if h.Exited() {
		return nil
	}
	if err := killGroup(h.pgid); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill process group: %w", err)
	}
	return nil
}

// Close releases the handle. If the child has not exited gracefully the
// process group is terminated; abandoning a handle never leaves an
// orphaned agent behind. Close is idempotent and always reaps.
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.CloseStdin()
		if !h.Exited() {
			err = h.Kill()
		}
		h.reap()
	})
	return err
}
