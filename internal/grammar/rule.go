package grammar

import (
	"strings"
	"sync"

	"gds_terminal/internal/patterns"
	"gds_terminal/internal/registry"
)

// buildFunc turns a match into an intent. It returns false when the captures
// are well formed lexically but not semantically (duplicate option, 31FEB).
type buildFunc func(m *patterns.Match) (registry.Intent, bool)

// rule is a grok-backed registry.Rule. The compiler is built on first use.
type rule struct {
	name     string
	prefixes []string
	priority int
	formats  []patterns.Format
	build    buildFunc

	once     sync.Once
	compiler *patterns.Compiler
	err      error
}

func (r *rule) getCompiler() (*patterns.Compiler, error) {
	r.once.Do(func() {
		r.compiler = patterns.NewCompiler(r.formats, nil)
		r.err = r.compiler.Compile()
	})
	return r.compiler, r.err
}

func (r *rule) Name() string       { return r.name }
func (r *rule) Prefixes() []string { return r.prefixes }
func (r *rule) Priority() int      { return r.priority }
func (r *rule) Example() string    { return r.formats[0].Example }

func (r *rule) QuickCheck(text string) bool {
	for _, p := range r.prefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

func (r *rule) Parse(text string) registry.Intent {
	compiler, err := r.getCompiler()
	if err != nil {
		return nil
	}
	match := compiler.Parse(text)
	if match == nil {
		return nil
	}
	intent, ok := r.build(match)
	if !ok {
		return nil
	}
	return intent
}

// ParseWithTrace implements registry.Traceable.
func (r *rule) ParseWithTrace(text string) *registry.TraceResult {
	trace := &registry.TraceResult{
		RuleName:   r.name,
		QuickCheck: &registry.QuickCheck{Passed: r.QuickCheck(text)},
	}
	if !trace.QuickCheck.Passed {
		trace.QuickCheck.Reason = "prefix not handled"
		return trace
	}

	compiler, err := r.getCompiler()
	if err != nil {
		trace.QuickCheck.Reason = "Failed to get compiler: " + err.Error()
		return trace
	}

	compilerTrace := compiler.ParseWithTrace(text)
	for _, ft := range compilerTrace.Formats {
		trace.Formats = append(trace.Formats, registry.FormatTrace{
			Name:     ft.Name,
			Matched:  ft.Matched,
			Pattern:  ft.Pattern,
			Captures: ft.Captures,
		})
	}

	if compilerTrace.Match != nil {
		if intent, ok := r.build(compilerTrace.Match); ok {
			trace.Intent = intent
			trace.Matched = true
		} else {
			trace.QuickCheck.Reason = "captures rejected"
		}
	}
	return trace
}
