package isolate

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExecute_Arithmetic checks that a synchronous entrypoint's return
// value becomes the job result.
func TestExecute_Arithmetic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, _ := json.Marshal(2)
	b, _ := json.Marshal(3)
	args := map[string]json.RawMessage{"a": a, "b": b}

	res := Execute(ctx, "", `export function main(a, b) { return a + b; }`, args,
		"main", []string{"a", "b"}, Annotation{}, "job-arith", "", 0)

	require.Nil(t, res.JSError)
	assert.False(t, res.MemoryExhausted)
	assert.JSONEq(t, "5", res.Result)
	assert.False(t, res.HadResultStream)
}

// TestExecute_StreamMerge checks that when main returns an
// async-iterable and the eventual JSON return is null, the collected stream
// content becomes the result.
func TestExecute_StreamMerge(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const script = `
export async function* main() {
  yield "first";
  yield "second";
}
`
	res := Execute(ctx, "", script, map[string]json.RawMessage{}, "main", nil, Annotation{}, "job-stream", "", 0)

	require.Nil(t, res.JSError)
	assert.True(t, res.HadResultStream)
	assert.Equal(t, "first\nsecond\n", res.Result)
}

// TestExecute_JSErrorHasLine verifies the fix for the missing JSError.Line
// field: a thrown error's line number is extracted from its stack.
func TestExecute_JSErrorHasLine(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const script = `
export function main() {
  throw new Error("boom");
}
`
	res := Execute(ctx, "", script, map[string]json.RawMessage{}, "main", nil, Annotation{}, "job-throw", "", 0)

	require.NotNil(t, res.JSError)
	assert.Equal(t, "boom", res.JSError.Message)
	assert.NotZero(t, res.JSError.Line)
}

// TestExecute_LoadFailureHasLine checks the Go-side firstStackLine
// extraction path for a module-load failure (a syntax error never reaches
// the entry script's catch handler).
func TestExecute_LoadFailureHasLine(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const script = `export function main( {`
	res := Execute(ctx, "", script, map[string]json.RawMessage{}, "main", nil, Annotation{}, "job-syntax", "", 0)

	require.NotNil(t, res.JSError)
	assert.Contains(t, res.JSError.Message, "load user module")
}

func TestFirstStackLine(t *testing.T) {
	assert.Equal(t, 42, firstStackLine("at main (user.js:42:7)"))
	assert.Equal(t, 0, firstStackLine("no position info here"))
}
