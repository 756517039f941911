package isolate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPrewarmed_ReadyBeforeStartExecution is the regression test for the
// Loading/Ready state-machine inversion: WaitReady must return as soon as
// module loading finishes, before StartExecution is ever called. Before the
// fix, run() blocked on <-argsCh first and only loaded afterward, so this
// would hang until ctx's deadline.
func TestPrewarmed_ReadyBeforeStartExecution(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := Spawn(ctx, SpawnConfig{
		UserCode: `export function main() { return 1; }`,
		JobID:    "ready-before-start",
	})
	defer p.Drop()

	readyErr := p.WaitReady(ctx)
	require.NoError(t, readyErr)
}

// TestPrewarmed_DropWithoutExecutionIsClean checks spec.md §4.7's "if
// start_execution is never called, the isolate drops cleanly": Drop after
// WaitReady, with no execution, must not hang or panic.
func TestPrewarmed_DropWithoutExecutionIsClean(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := Spawn(ctx, SpawnConfig{
		UserCode: `export function main() { return 1; }`,
		JobID:    "drop-clean",
	})
	require.NoError(t, p.WaitReady(ctx))

	done := make(chan struct{})
	go func() {
		p.Drop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Drop() did not return promptly")
	}

	assert.NotPanics(t, p.Drop)
}

// TestPrewarmed_StartExecutionTwicePanics checks the "instance is consumed"
// invariant.
func TestPrewarmed_StartExecutionTwicePanics(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := Spawn(ctx, SpawnConfig{
		UserCode: `export function main() { return 1; }`,
		JobID:    "consumed-twice",
	})
	require.NoError(t, p.WaitReady(ctx))

	handle := p.StartExecution(nil)
	_, err := handle.Wait(ctx)
	require.NoError(t, err)

	assert.Panics(t, func() { p.StartExecution(nil) })
}

// TestPrewarmed_DropGuardWhileIdle exercises the ctx-cancellation branch
// added alongside the Load/Run split: canceling the isolate's context while
// it is idle (Ready, before StartExecution) must terminate it without a
// hang, and a subsequent Drop must not panic.
func TestPrewarmed_DropGuardWhileIdle(t *testing.T) {
	isolateCtx, cancelIsolate := context.WithCancel(context.Background())

	waitCtx, cancelWait := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelWait()

	p := Spawn(isolateCtx, SpawnConfig{
		UserCode: `export function main() { return 1; }`,
		JobID:    "drop-guard-idle",
	})
	require.NoError(t, p.WaitReady(waitCtx))

	cancelIsolate()

	// Give the run() goroutine a moment to observe ctx.Done() and exit its
	// select; Drop afterward must still be safe even though the goroutine
	// already tore the isolate down on its own.
	time.Sleep(50 * time.Millisecond)
	assert.NotPanics(t, p.Drop)
}
