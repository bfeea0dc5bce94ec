// Package patterns provides the grok-style pattern compiler used by the
// command grammar.
package patterns

import (
	"regexp"
	"strings"
)

// Format represents one command format with named capture groups.
type Format struct {
	Name     string         // Format name for identification
	Pattern  string         // Pattern with {PLACEHOLDER} syntax
	Example  string         // Trainee-facing example of the format
	Compiled *regexp.Regexp // Compiled regex (populated by Compile)
	Fields   []string       // Field names in capture order (for documentation)
}

// Compiler manages pattern compilation and parsing for a set of formats.
type Compiler struct {
	basePatterns map[string]string
	formats      []Format
}

// NewCompiler creates a new pattern compiler with the given formats.
// It merges the provided base patterns with the global BasePatterns,
// allowing local patterns to override global ones.
func NewCompiler(formats []Format, localPatterns map[string]string) *Compiler {
	c := &Compiler{
		basePatterns: make(map[string]string),
		formats:      make([]Format, len(formats)),
	}

	for k, v := range BasePatterns {
		c.basePatterns[k] = v
	}
	for k, v := range localPatterns {
		c.basePatterns[k] = v
	}

	copy(c.formats, formats)

	return c
}

// Compile expands all {PLACEHOLDER} references and compiles regexes.
// Every format is anchored so that it must match the whole command.
func (c *Compiler) Compile() error {
	for i := range c.formats {
		re, err := regexp.Compile(c.Expand(c.formats[i].Pattern))
		if err != nil {
			return err
		}
		c.formats[i].Compiled = re
	}
	return nil
}

// Expand replaces {PLACEHOLDER} with actual regex patterns and anchors the
// result.
func (c *Compiler) Expand(pattern string) string {
	result := pattern
	for name, regex := range c.basePatterns {
		result = strings.ReplaceAll(result, "{"+name+"}", regex)
	}
	return `^(?:` + result + `)$`
}

// Formats returns the compiled formats in declaration order.
func (c *Compiler) Formats() []Format {
	return c.formats
}

// Match represents a successful pattern match with extracted fields.
type Match struct {
	FormatName string            // Name of the matched format
	Captures   map[string]string // Named capture group values
}

// Parse attempts to parse text using all compiled formats.
// Returns the first successful match, or nil if no format matches.
func (c *Compiler) Parse(text string) *Match {
	upperText := strings.ToUpper(text)

	for _, format := range c.formats {
		if format.Compiled == nil {
			continue
		}
		if captures, ok := submatch(format.Compiled, upperText); ok {
			return &Match{FormatName: format.Name, Captures: captures}
		}
	}

	return nil
}

func submatch(re *regexp.Regexp, text string) (map[string]string, bool) {
	match := re.FindStringSubmatch(text)
	if match == nil {
		return nil, false
	}
	captures := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		captures[name] = match[i]
	}
	return captures, true
}

// GetCapture is a helper to safely get a capture value with a default.
func (m *Match) GetCapture(name string, defaultVal string) string {
	if m == nil {
		return defaultVal
	}
	if val, ok := m.Captures[name]; ok && val != "" {
		return val
	}
	return defaultVal
}

// FormatTrace contains debug information about a format match attempt.
type FormatTrace struct {
	Name     string            // Format name
	Matched  bool              // Whether the pattern matched
	Pattern  string            // The expanded regex pattern
	Captures map[string]string // Captured groups (if matched)
}

// ParseTrace contains complete trace information for a parse attempt.
type ParseTrace struct {
	Formats []FormatTrace // All format match attempts
	Match   *Match        // The first successful match (if any)
}

// ParseWithTrace attempts to parse text and returns detailed trace information.
func (c *Compiler) ParseWithTrace(text string) *ParseTrace {
	upperText := strings.ToUpper(text)
	trace := &ParseTrace{
		Formats: make([]FormatTrace, 0, len(c.formats)),
	}

	for _, format := range c.formats {
		ft := FormatTrace{
			Name:    format.Name,
			Pattern: c.Expand(format.Pattern),
		}
		if format.Compiled != nil {
			ft.Captures, ft.Matched = submatch(format.Compiled, upperText)
		}
		trace.Formats = append(trace.Formats, ft)

		if ft.Matched && trace.Match == nil {
			trace.Match = &Match{FormatName: format.Name, Captures: ft.Captures}
		}
	}

	return trace
}
