// Package runnable resolves a job's runnable_path into the JavaScript
// module the isolate runtime executes: environment prelude, user source,
// entrypoint name and the proxy/user-agent annotation parsed from its
// leading comment block. Where that source actually lives (object storage,
// a git checkout, a bundler output directory) is a deployment concern; the
// worker only needs the Loader interface, and FileLoader is the bundled
// default backed by a local checkout mounted into the worker's container.
package runnable

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/isolate"
)

// ErrNotFound is returned when a runnable path does not resolve to a file.
var ErrNotFound = errors.New("runnable not found")

// Module is everything isolate.SpawnConfig needs about a script beyond the
// per-job arguments.
type Module struct {
	EnvPrelude string
	UserCode   string
	Entrypoint string
	Annotation isolate.Annotation
}

// Loader resolves a runnable_path to its Module.
type Loader interface {
	Load(ctx context.Context, path string) (Module, error)
}

// FileLoader reads scripts from a directory tree rooted at BaseDir, one
// ".js" file per runnable path. EnvPrelude is shared across every script
// this loader serves (e.g. host-provided polyfills); Entrypoint defaults to
// "main" per spec.md §4.6 unless DefaultEntrypoint is set.
type FileLoader struct {
	BaseDir           string
	EnvPrelude        string
	DefaultEntrypoint string
}

func NewFileLoader(baseDir, envPrelude string) *FileLoader {
	return &FileLoader{BaseDir: baseDir, EnvPrelude: envPrelude, DefaultEntrypoint: "main"}
}

// Load reads <BaseDir>/<path>.js. path is cleaned against the base
// directory first so a runnable_path like "../../etc/passwd" can never
// escape BaseDir.
func (l *FileLoader) Load(ctx context.Context, path string) (Module, error) {
	rel := filepath.Clean(string(filepath.Separator) + strings.TrimSuffix(path, ".js") + ".js")
	full := filepath.Join(l.BaseDir, rel)

	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return Module{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return Module{}, fmt.Errorf("read runnable %q: %w", path, err)
	}

	entrypoint := l.DefaultEntrypoint
	if entrypoint == "" {
		entrypoint = "main"
	}

	return Module{
		EnvPrelude: l.EnvPrelude,
		UserCode:   string(data),
		Entrypoint: entrypoint,
		Annotation: isolate.ParseAnnotations(string(data)),
	}, nil
}
