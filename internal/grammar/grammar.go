package grammar

import (
	"strings"

	"gds_terminal/internal/registry"
)

// Normalize upper-cases a raw command, trims it and collapses runs of
// whitespace into single spaces.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToUpper(raw)), " ")
}

// Parse parses a raw command using the default registry.
func Parse(raw string) (registry.Intent, error) {
	return ParseWith(registry.Default(), raw)
}

// ParseWith parses a raw command using the given registry. It returns
// ErrUnknownCommand or a *SyntaxError when the command cannot be parsed.
func ParseWith(reg *registry.Registry, raw string) (registry.Intent, error) {
	text := Normalize(raw)
	intent, rules := reg.Dispatch(text)
	if intent != nil {
		return intent, nil
	}
	if len(rules) == 0 {
		return nil, ErrUnknownCommand
	}
	return nil, &SyntaxError{Prefix: registry.Prefix(text), Expected: rules[0].Example()}
}

// Trace reports every format tried for a raw command.
func Trace(raw string) []*registry.TraceResult {
	return registry.Default().DispatchWithTrace(Normalize(raw))
}
