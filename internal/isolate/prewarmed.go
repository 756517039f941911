package isolate

import (
	"context"
	"encoding/json"
	"fmt"
)

// State is the pre-warmed isolate's lifecycle (spec.md §4.7).
type State int

const (
	StateCreated State = iota
	StateLoading
	StateReady
	StateExecuting
	StateDone
	StateFailed
)

// Result is what an ExecutingHandle's Wait yields.
type Result struct {
	RawResult json.RawMessage
	Err       error
	Logs      string
}

// ExecutingHandle is returned by StartExecution; it can be awaited
// independently of spawning the next pre-warmed isolate (spec.md §4.8).
type ExecutingHandle struct {
	resultCh <-chan Result
}

func (h *ExecutingHandle) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-h.resultCh:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Prewarmed owns one isolate that loads its modules eagerly on a dedicated
// goroutine and waits for args before executing main exactly once (spec.md
// §4.7). The zero value is not usable; construct with Spawn.
type Prewarmed struct {
	argsCh   chan map[string]json.RawMessage
	resultCh chan Result
	readyCh  chan error
	consumed bool

	argNames string
}

// SpawnConfig bundles Spawn's inputs.
type SpawnConfig struct {
	EnvPrelude      string
	UserCode        string
	Entrypoint      string
	ArgNames        []string
	Annotation      Annotation
	JobID           string
	SnapshotDir     string
	SnapshotMax     int
	EnterpriseMode  bool
	HeapLimitBytes  uint64
}

// Spawn creates the isolate and immediately begins loading modules on its
// own goroutine (standing in for the dedicated OS thread spec.md §4.7 and
// §5 require — goja's single-goroutine Runtime gives the same exclusivity
// without needing one real OS thread per isolate). It returns right away;
// callers block on WaitReady for the Loading -> Ready transition.
func Spawn(ctx context.Context, cfg SpawnConfig) *Prewarmed {
	if !cfg.EnterpriseMode {
		cfg.Annotation.ProxyURL = ""
	}

	p := &Prewarmed{
		argsCh:   make(chan map[string]json.RawMessage, 1),
		resultCh: make(chan Result, 1),
		readyCh:  make(chan error, 1),
	}

	go p.run(ctx, cfg)

	return p
}

func (p *Prewarmed) run(ctx context.Context, cfg SpawnConfig) {
	// Loading happens here, immediately, before anything about args is
	// known — this is the whole point of pre-warming (spec.md §2's
	// "per-job latency excludes module-load cost"). Ready is signaled as
	// soon as Load returns, which is before StartExecution can possibly
	// have been called.
	loaded := Load(ctx, cfg.EnvPrelude, cfg.UserCode, cfg.Entrypoint, cfg.ArgNames,
		cfg.Annotation, cfg.JobID, cfg.SnapshotDir, cfg.SnapshotMax)
	p.readyCh <- loaded.Err()

	select {
	case args, ok := <-p.argsCh:
		if !ok {
			// start_execution was never called: drop cleanly without executing.
			loaded.Close()
			return
		}

		res := loaded.Run(ctx, args)

		result := Result{Logs: res.Logs}
		switch {
		case res.MemoryExhausted:
			result.Err = fmt.Errorf("isolate exceeded its memory limit")
		case res.JSError != nil:
			result.Err = fmt.Errorf("%s: %s", res.JSError.Name, res.JSError.Message)
		default:
			result.RawResult = json.RawMessage(res.Result)
		}

		p.resultCh <- result

	case <-ctx.Done():
		// Drop guard: terminate the isolate if the surrounding task is
		// canceled while idle, before start_execution is ever called
		// (spec.md "A drop guard terminates V8 if the surrounding task is
		// canceled").
		loaded.Close()
	}
}

// WaitReady blocks until the isolate has finished loading modules.
func (p *Prewarmed) WaitReady(ctx context.Context) error {
	select {
	case err := <-p.readyCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartExecution sends args over the isolate's single-use channel and
// consumes the instance; calling it twice panics, matching the Rust
// original's "instance is consumed" invariant (spec.md §4.7).
func (p *Prewarmed) StartExecution(args map[string]json.RawMessage) *ExecutingHandle {
	if p.consumed {
		panic("isolate: start_execution called twice")
	}
	p.consumed = true

	p.argsCh <- args
	close(p.argsCh)

	return &ExecutingHandle{resultCh: p.resultCh}
}

// Drop releases the isolate without executing it, closing the args channel
// so the loading goroutine exits cleanly (spec.md §4.7 "If start_execution
// is never called, the isolate drops cleanly").
func (p *Prewarmed) Drop() {
	if p.consumed {
		return
	}
	p.consumed = true
	close(p.argsCh)
}
