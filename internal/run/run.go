// Package run ties one agent invocation together: spawn, prompt feed,
// concurrent log drains, process wait, and the terminal entry that
// every timeline is guaranteed to end with. Cancellation escalates
// from cooperative shutdown to a process-group kill behind one call.
package run

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/loomhq/loom/internal/entry"
	"github.com/loomhq/loom/internal/executor"
	"github.com/loomhq/loom/internal/process"
	"github.com/loomhq/loom/internal/store"
)

// Options configures one run.
type Options struct {
	// Dir is the working directory for the agent process.
	Dir string

	// Prompt is the composed prompt fed to stdin once.
	Prompt string

	// SessionID, when set, makes this a follow-up spawn resuming the
	// prior session.
	SessionID string

	// Grace is the cooperative-shutdown window used by Cancel.
	Grace time.Duration
}

// Run is one live agent invocation and its timeline.
type Run struct {
	// ID identifies the run (log file naming, UI).
	ID string

	st     *store.MsgStore
	handle *process.Handle
	drain  *executor.Drain
	grace  time.Duration

	cancelOnce sync.Once
	cancelled  atomic.Bool
	done       chan struct{}
	result     process.ExitResult
}

// Start spawns the agent and attaches log normalization. The returned
// Run's store already receives entries; the caller subscribes or waits
// as it pleases. All run goroutines terminate together when the
// process exits or the run is cancelled.
func Start(ctx context.Context, ex executor.Executor, opts Options) (*Run, error) {
	var (
		h   *process.Handle
		err error
	)
	if opts.SessionID != "" {
		h, err = ex.SpawnFollowUp(ctx, opts.Dir, opts.Prompt, opts.SessionID)
	} else {
		h, err = ex.Spawn(ctx, opts.Dir, opts.Prompt)
	}
	if err != nil {
		return nil, err
	}

	st := store.NewMsgStore()
	r := &Run{
		ID:     uuid.NewString(),
		st:     st,
		handle: h,
		drain:  ex.NormalizeLogs(ctx, h, st, opts.Dir),
		grace:  opts.Grace,
		done:   make(chan struct{}),
	}
	go r.finish()
	return r, nil
}

// finish waits for both drains, reaps the process, guarantees the
// terminal entry, and closes the store.
func (r *Run) finish() {
	defer close(r.done)
	defer r.handle.Close()

	drainErr := r.drain.Wait()
	res, waitErr := r.handle.Wait(context.Background())
	r.result = res

	// Both producers are done; the provider resumes safely from the
	// store's tail for the synthetic system entries.
	index := store.StartFrom(r.st)
	commit := func(e entry.Entry) {
		r.st.Append(index, e)
	}

	if drainErr != nil {
		commit(entry.Raw(entry.OriginSystem, fmt.Sprintf("log drain error: %v", drainErr)))
	}
	if waitErr != nil {
		commit(entry.Raw(entry.OriginSystem, fmt.Sprintf("wait error: %v", waitErr)))
	}

	// The agent's own successful result is the terminal entry; in
	// every other outcome we synthesize one so consumers never have to
	// distinguish "stuck" from "failed" by timeout.
	if !(r.drain.SawResult() && res.Success()) {
		status := entry.StatusFailure
		summary := exitSummary(res)
		switch {
		case r.cancelled.Load():
			status = entry.StatusCancelled
			summary = "run cancelled"
		case res.Success():
			status = entry.StatusSuccess
			summary = "process exited without a result"
		}
		commit(entry.Result(entry.OriginSystem, status, summary))
	}

	r.st.Close()
}

func exitSummary(res process.ExitResult) string {
	if res.Signal != "" {
		return fmt.Sprintf("process killed by signal %s", res.Signal)
	}
	return fmt.Sprintf("process exited with code %d", res.Code)
}

// Store returns the run's timeline.
func (r *Run) Store() *store.MsgStore { return r.st }

// SessionID returns the session announced by the agent, once its init
// entry has been processed.
func (r *Run) SessionID() string { return r.drain.SessionID() }

// Cancel requests termination: stop feeding input, attempt cooperative
// shutdown, kill the process group once the grace window expires. It
// is idempotent, safe concurrently with drain and approval activity,
// and a no-op when the run already finished.
func (r *Run) Cancel(ctx context.Context) error {
	var err error
	r.cancelOnce.Do(func() {
		r.cancelled.Store(true)
		r.handle.CloseStdin()
		err = r.handle.Stop(ctx, r.grace)
	})
	return err
}

// Wait suspends until the run's timeline is complete (terminal entry
// committed, store closed) or ctx ends.
func (r *Run) Wait(ctx context.Context) (process.ExitResult, error) {
	select {
	case <-ctx.Done():
		return process.ExitResult{}, ctx.Err()
	case <-r.done:
		return r.result, nil
	}
}

// Result returns the exit result after Wait has returned.
func (r *Run) Result() process.ExitResult { return r.result }
