// Package keyresolver renders a debounce key template with argument
// interpolation into a canonical string (spec.md §4.1).
package keyresolver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

// MaxKeyLength caps the resolved key's length to bound index size
// (spec.md §9 "Key interpolation safety").
const MaxKeyLength = 1024

const (
	tokenPrefix = "$args["
	tokenSuffix = "]"
)

// Resolve renders template against workspaceID, runnablePath, and args.
// An absent template falls back to "{workspace_id}:{runnable_path}".
func Resolve(template string, workspaceID uuid.UUID, runnablePath string, args domain.Args) (string, error) {
	if template == "" {
		return fmt.Sprintf("%s:%s", workspaceID, runnablePath), nil
	}

	resolved := interpolate(template, args)
	if len(resolved) > MaxKeyLength {
		return "", domain.ErrInvalidDebounceKey.WithError(
			fmt.Errorf("resolved key is %d bytes, max is %d", len(resolved), MaxKeyLength),
		)
	}

	return resolved, nil
}

// interpolate replaces every `$args[<name>]` token with the JSON-stringified
// value of the named arg. An absent arg becomes an empty string. Unmatched
// tokens (missing closing bracket) are left literal.
func interpolate(template string, args domain.Args) string {
	var b strings.Builder
	rest := template

	for {
		idx := strings.Index(rest, tokenPrefix)
		if idx == -1 {
			b.WriteString(rest)
			break
		}

		b.WriteString(rest[:idx])
		afterPrefix := rest[idx+len(tokenPrefix):]

		closeIdx := strings.Index(afterPrefix, tokenSuffix)
		if closeIdx == -1 {
			// No closing bracket: the token is left literal, verbatim.
			b.WriteString(rest[idx:])
			break
		}

		name := afterPrefix[:closeIdx]
		b.WriteString(argValueString(args, name))
		rest = afterPrefix[closeIdx+len(tokenSuffix):]
	}

	return b.String()
}

func argValueString(args domain.Args, name string) string {
	raw, ok := args[name]
	if !ok || raw == nil {
		return ""
	}

	// Values are already JSON (domain.RawJSON); re-marshal through
	// json.RawMessage so malformed stored args degrade to empty rather than
	// corrupting the key.
	var msg json.RawMessage = raw
	out, err := json.Marshal(msg)
	if err != nil {
		return ""
	}

	// json.Marshal of a RawMessage containing a JSON string literal yields
	// the quoted string including quotes; that's the "JSON-stringified
	// value" spec.md asks for, quotes included (e.g. args["name"]="alice"
	// renders as `"alice"`, matching arbitrary JSON values like numbers or
	// arrays rendering as their own JSON form).
	return string(out)
}
