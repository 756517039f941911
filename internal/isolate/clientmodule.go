package isolate

import "regexp"

// clientModuleSource is the synthetic "client module" every isolate loads
// before user code: deployment-wide helpers available to every script
// (spec.md §4.6 "Two modules are loaded per isolate"). It is intentionally
// small; most host capability (fetch, timers, console) is wired directly
// into the runtime rather than reimplemented in JS.
const clientModuleSource = `
var wmclient = {
  getArgs: function() { return __wm_getStaticArgs(); },
  log: function(msg) { __wm_log(String(msg)); },
};
`

// exportPattern strips ES module export syntax from user source. goja runs
// scripts, not ES modules; "export function main(...)" and
// "export default function main(...)" degrade to ordinary top-level
// function declarations that the entry script can look up by name. An
// anonymous "export default function(...)" is left without a name.
var exportPattern = regexp.MustCompile(`(?m)^\s*export\s+(default\s+)?`)

// StripExports rewrites user source so its top-level declarations become
// plain globals reachable after evaluation.
func StripExports(source string) string {
	return exportPattern.ReplaceAllString(source, "")
}

// BuildEntryScript returns the script run after user code is loaded: it
// reads positional args in arg-name order, calls the entrypoint, drains an
// async-iterable return value as a stream, and reports the final result
// through the host-installed __wm_setResult callback (spec.md §4.6
// "Invoke an entry script").
func BuildEntryScript(entrypoint string) string {
	if entrypoint == "" {
		entrypoint = "main"
	}

	return `
(function() {
  function isAsyncIterable(v) {
    return v != null && typeof v[Symbol.asyncIterator] === "function";
  }

  async function run() {
    var args = __wm_getPositionalArgs();
    var value = await ` + entrypoint + `.apply(null, args);

    if (isAsyncIterable(value)) {
      for await (var chunk of value) {
        console.log("WM_STREAM: " + String(chunk).replace(/\n/g, "\\n"));
      }
      return null;
    }

    return value === undefined ? null : value;
  }

  run().then(
    function(v) { __wm_setResult(JSON.stringify(v === undefined ? null : v), null); },
    function(e) {
      var message = e && e.message ? e.message : String(e);
      var stack = e && e.stack ? e.stack : "";
      var line = 0;
      var m = /:(\d+):\d+/.exec(stack);
      if (m) { line = parseInt(m[1], 10); }
      __wm_setResult(null, JSON.stringify({message: message, stack: stack, name: e && e.name || "Error", line: line}));
    }
  );
})();
`
}
