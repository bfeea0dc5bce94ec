package registry

// TraceResult contains trace information from a rule's attempt to parse a command.
type TraceResult struct {
	RuleName   string        // Name of the rule.
	QuickCheck *QuickCheck   // QuickCheck result.
	Formats    []FormatTrace // Format/pattern match attempts.
	Matched    bool          // Whether the rule produced an intent.
	Intent     Intent        // The produced intent (if matched).
}

// QuickCheck contains the result of a rule's quick check.
type QuickCheck struct {
	Passed bool   // Whether the quick check passed.
	Reason string // Optional reason for the result.
}

// FormatTrace contains debug information about a format/pattern match attempt.
type FormatTrace struct {
	Name     string            // Format or pattern name.
	Matched  bool              // Whether the pattern matched.
	Pattern  string            // The regex pattern used.
	Captures map[string]string // Captured groups (if matched).
}

// Traceable is implemented by rules that support debug tracing.
// A regex can match while the rule still rejects the command (an unknown
// option, an impossible date), so Matched may be false when a format matched.
type Traceable interface {
	ParseWithTrace(text string) *TraceResult
}

// DispatchWithTrace runs every rule for the command's prefix and collects
// their traces. Rules that are not Traceable are reported with their plain
// Parse outcome.
func (r *Registry) DispatchWithTrace(text string) []*TraceResult {
	rules := r.Rules(text)
	traces := make([]*TraceResult, 0, len(rules))
	for _, rule := range rules {
		if t, ok := rule.(Traceable); ok {
			traces = append(traces, t.ParseWithTrace(text))
			continue
		}
		tr := &TraceResult{
			RuleName:   rule.Name(),
			QuickCheck: &QuickCheck{Passed: rule.QuickCheck(text)},
		}
		if tr.QuickCheck.Passed {
			tr.Intent = rule.Parse(text)
			tr.Matched = tr.Intent != nil
		}
		traces = append(traces, tr)
	}
	return traces
}
