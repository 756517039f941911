package isolate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Pipeline overlaps warming the next isolate with running the current job,
// so the only latency a dedicated worker's critical path sees is argument
// marshalling and result collection (spec.md §4.8).
type Pipeline struct {
	cfgFor func(jobID string) SpawnConfig
	warm   *Prewarmed

	jobsRun  atomic.Int64
	jobsFail atomic.Int64
}

// Stats is a snapshot of a Pipeline's throughput, exposed by the admin/debug
// API's pre-warmed pool stats endpoint.
type Stats struct {
	JobsRun    int64 `json:"jobs_run"`
	JobsFailed int64 `json:"jobs_failed"`
	Warm       bool  `json:"warm"`
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		JobsRun:    p.jobsRun.Load(),
		JobsFailed: p.jobsFail.Load(),
		Warm:       p.warm != nil,
	}
}

// NewPipeline spawns the first isolate and blocks until it is ready, so the
// first job runs against a warm isolate just like every job after it.
// cfgFor builds the SpawnConfig for a given job id; callers typically close
// over a fixed module (env prelude, user code, entrypoint, arg names,
// annotation) shared across a run of jobs against the same script.
func NewPipeline(ctx context.Context, cfgFor func(jobID string) SpawnConfig, firstJobID string) (*Pipeline, error) {
	p := &Pipeline{cfgFor: cfgFor}

	p.warm = Spawn(ctx, cfgFor(firstJobID))
	if err := p.warm.WaitReady(ctx); err != nil {
		return nil, fmt.Errorf("warm first isolate: %w", err)
	}

	return p, nil
}

// RunResult is one job's outcome plus the logs collected while it ran.
type RunResult struct {
	Result json.RawMessage
	Err    error
	Logs   string
}

// Run executes one job against the currently warm isolate while spawning
// the next isolate in parallel, so its module load overlaps this job's
// execution (spec.md §4.8 steps a-d). nextJobID names the job that will run
// on the isolate spawned here; its SpawnConfig is resolved eagerly so
// loading can start immediately.
func (p *Pipeline) Run(ctx context.Context, args map[string]json.RawMessage, nextJobID string) (RunResult, error) {
	handle := p.warm.StartExecution(args)

	next := Spawn(ctx, p.cfgFor(nextJobID))

	result, err := handle.Wait(ctx)
	if err != nil {
		p.jobsFail.Add(1)
		return RunResult{}, err
	}

	if readyErr := next.WaitReady(ctx); readyErr != nil {
		return RunResult{}, fmt.Errorf("warm next isolate: %w", readyErr)
	}

	p.warm = next
	p.jobsRun.Add(1)
	if result.Err != nil {
		p.jobsFail.Add(1)
	}

	return RunResult{Result: result.RawResult, Err: result.Err, Logs: result.Logs}, nil
}

// Close drops the currently warm, unexecuted isolate without running it
// (spec.md §4.7 "if start_execution is never called, the isolate drops
// cleanly"). Call this when shutting the pipeline down between runs.
func (p *Pipeline) Close() {
	if p.warm != nil {
		p.warm.Drop()
	}
}
