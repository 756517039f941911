package isolate

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPipeline_FreshIsolatePerJob covers testable property 8: module-level
// mutable state in user code is reinitialized between jobs because each job
// runs on its own isolate, even though the pipeline keeps one warm ahead of
// time.
func TestPipeline_FreshIsolatePerJob(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const counterScript = `
var calls = 0;
export function main() {
  calls = calls + 1;
  return calls;
}
`

	cfgFor := func(jobID string) SpawnConfig {
		return SpawnConfig{
			UserCode: counterScript,
			JobID:    jobID,
			ArgNames: nil,
		}
	}

	p, err := NewPipeline(ctx, cfgFor, "job-1")
	require.NoError(t, err)
	defer p.Close()

	res1, err := p.Run(ctx, map[string]json.RawMessage{}, "job-2")
	require.NoError(t, err)
	require.NoError(t, res1.Err)
	assert.JSONEq(t, "1", string(res1.Result))

	res2, err := p.Run(ctx, map[string]json.RawMessage{}, "job-3")
	require.NoError(t, err)
	require.NoError(t, res2.Err)
	assert.JSONEq(t, "1", string(res2.Result))
}

func TestPipeline_OverlapsWarmingWithExecution(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfgFor := func(jobID string) SpawnConfig {
		return SpawnConfig{
			UserCode: `export function main(x) { return x + 1; }`,
			JobID:    jobID,
			ArgNames: []string{"x"},
		}
	}

	p, err := NewPipeline(ctx, cfgFor, "job-1")
	require.NoError(t, err)
	defer p.Close()

	one, _ := json.Marshal(1)
	res, err := p.Run(ctx, map[string]json.RawMessage{"x": one}, "job-2")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.JSONEq(t, "2", string(res.Result))
}
