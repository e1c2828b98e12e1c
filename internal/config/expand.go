package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/duckhq/duckwatch/internal/duckerr"
)

// placeholderPattern matches ${NAME} where NAME is a shell-style
// identifier, per spec §4.6.
var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// VariableProvider resolves a placeholder name to its value. The
// production provider consults the process environment; tests inject a
// map.
type VariableProvider interface {
	Lookup(name string) (string, bool)
}

// MapProvider is a VariableProvider backed by a fixed map, used by
// tests and anywhere variables are supplied programmatically.
type MapProvider map[string]string

func (m MapProvider) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// EnvProvider resolves placeholders against the process environment.
type EnvProvider struct{ lookup func(string) (string, bool) }

func (e EnvProvider) Lookup(name string) (string, bool) { return e.lookup(name) }

// NewEnvProvider returns a VariableProvider backed by os.LookupEnv.
func NewEnvProvider() EnvProvider {
	return EnvProvider{lookup: os.LookupEnv}
}

// Expand substitutes ${NAME} placeholders on the raw document text
// *before* any JSON parsing happens, per spec §4.6. Substituting first
// is what lets a placeholder stand in for a non-string field — e.g.
// "brightness": ${HUE_BRIGHTNESS} with HUE_BRIGHTNESS="128" expanding
// to the JSON number 128 — rather than only ever filling in inside an
// already-quoted string leaf. A reference to an undeclared variable is
// a hard ErrConfigParse naming the offending variable.
func Expand(raw []byte, vars VariableProvider) ([]byte, error) {
	expanded, err := expandString(string(raw), vars)
	if err != nil {
		return nil, err
	}
	return []byte(expanded), nil
}

func expandString(s string, vars VariableProvider) (string, error) {
	var outerErr error
	result := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := vars.Lookup(name)
		if !ok {
			outerErr = duckerr.Wrap(duckerr.ErrConfigParse, fmt.Errorf("undeclared variable %q", name))
			return match
		}
		return value
	})
	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}
