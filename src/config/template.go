package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTemplate means a template names a variable that is unknown or unbound.
var ErrTemplate = errors.New("invalid template")

// Template variables understood by Expand. An argument that is exactly
// "{inputs}" is replaced by the archive inputs, one argument each.
var templateVars = map[string]bool{
	"platform":      true,
	"configuration": true,
	"solution":      true,
	"output":        true,
	"deploy":        true,
	"library":       true,
	"module":        true,
	"report":        true,
	"out":           true,
	"inputs":        true,
	"test_results":  true,
	"docs_config":   true,
}

// InputsArg is the argument placeholder that expands to the archive inputs.
const InputsArg = "{inputs}"

// Vars holds the values substituted into templates.
type Vars map[string]string

// With returns a copy of v with key set to value.
func (v Vars) With(key, value string) Vars {
	out := make(Vars, len(v)+1)
	for k, val := range v {
		out[k] = val
	}
	out[key] = value
	return out
}

// Expand substitutes every {name} in tmpl with vars[name]. An unknown name
// or a name with no value is an error; "{{" and "}}" are not special.
func Expand(tmpl string, vars Vars) (string, error) {
	var b strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		name := rest[open+1 : open+end]
		if !templateVars[name] {
			return "", fmt.Errorf("%w %q: unknown variable {%s}", ErrTemplate, tmpl, name)
		}
		value, ok := vars[name]
		if !ok {
			return "", fmt.Errorf("%w %q: variable {%s} is not available here", ErrTemplate, tmpl, name)
		}
		b.WriteString(rest[:open])
		b.WriteString(value)
		rest = rest[open+end+1:]
	}
}

// ExpandArgs expands each argument template. The exact argument "{inputs}"
// is replaced in place by inputs.
func ExpandArgs(args []string, vars Vars, inputs []string) ([]string, error) {
	out := make([]string, 0, len(args)+len(inputs))
	for _, a := range args {
		if a == InputsArg {
			out = append(out, inputs...)
			continue
		}
		s, err := Expand(a, vars)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// placeholders returns every {name} in tmpl, in order.
func placeholders(tmpl string) []string {
	var names []string
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			return names
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return names
		}
		names = append(names, rest[open+1:open+end])
		rest = rest[open+end+1:]
	}
}

// unknownVars returns the placeholder names in tmpl that Expand would reject.
func unknownVars(tmpl string) []string {
	var unknown []string
	for _, name := range placeholders(tmpl) {
		if !templateVars[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// misplacedInputs reports whether tmpl uses {inputs} other than as the
// whole of an archive argument, the only place it expands.
func misplacedInputs(field, tmpl string) bool {
	if field == "archive.args" && tmpl == InputsArg {
		return false
	}
	for _, name := range placeholders(tmpl) {
		if name == "inputs" {
			return true
		}
	}
	return false
}
