// Package registry provides the command rule registry used to dispatch raw
// terminal commands to the grammar rule that understands them.
package registry

import (
	"sort"
	"strings"
	"sync"
)

// PrefixLength is the number of leading characters that select a rule.
const PrefixLength = 2

// Intent is the common interface for all parsed commands.
type Intent interface {
	Kind() string // e.g., "AN", "SS", "NM"
}

// Rule is implemented by each command grammar rule.
type Rule interface {
	// Name returns the rule's unique identifier.
	Name() string

	// Prefixes returns the two-letter command prefixes this rule handles.
	Prefixes() []string

	// Example returns the trainee-facing example of a well-formed command.
	Example() string

	// QuickCheck performs a fast string check before expensive regex.
	// Returns true if the command MIGHT be parseable (false = definitely skip).
	QuickCheck(text string) bool

	// Priority determines order when multiple rules share a prefix.
	// Lower number = checked first.
	Priority() int

	// Parse attempts to parse the command, returns nil if it does not match
	// end to end.
	Parse(text string) Intent
}

// Registry holds all registered rules organised by prefix.
type Registry struct {
	mu sync.RWMutex

	// byPrefix maps prefixes to rule slices, sorted by Priority (ascending).
	byPrefix map[string][]Rule

	sorted bool
}

// New creates a new Registry instance.
func New() *Registry {
	return &Registry{
		byPrefix: make(map[string][]Rule),
	}
}

// Global default registry.
var defaultRegistry = New()

// Default returns the global registry instance.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a rule to the default registry.
// Called during init() in the grammar package.
func Register(r Rule) {
	defaultRegistry.Register(r)
}

// Register adds a rule to the registry.
func (r *Registry) Register(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, prefix := range rule.Prefixes() {
		prefix = strings.ToUpper(prefix)
		r.byPrefix[prefix] = append(r.byPrefix[prefix], rule)
	}
	r.sorted = false
}

// Sort orders every prefix's rules by priority, keeping registration order on
// ties. Dispatch sorts lazily if this has not been called.
func (r *Registry) Sort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sortLocked()
}

func (r *Registry) sortLocked() {
	if r.sorted {
		return
	}
	for prefix := range r.byPrefix {
		rules := r.byPrefix[prefix]
		sort.SliceStable(rules, func(i, j int) bool {
			return rules[i].Priority() < rules[j].Priority()
		})
	}
	r.sorted = true
}

// Prefix returns the dispatch prefix of a normalized command, or "" when the
// command is too short to carry one.
func Prefix(text string) string {
	if len(text) < PrefixLength {
		return ""
	}
	return text[:PrefixLength]
}

// Rules returns the rules registered for the command's prefix in dispatch
// order. An empty result means the command word is unknown.
func (r *Registry) Rules(text string) []Rule {
	r.Sort()

	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := r.byPrefix[Prefix(text)]
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Dispatch returns the intent produced by the first rule for the command's
// prefix that parses it, along with the rules that were consulted. A nil
// intent with no rules means the prefix is unknown; a nil intent with rules
// means the command is malformed.
func (r *Registry) Dispatch(text string) (Intent, []Rule) {
	rules := r.Rules(text)
	for _, rule := range rules {
		if !rule.QuickCheck(text) {
			continue
		}
		if intent := rule.Parse(text); intent != nil {
			return intent, rules
		}
	}
	return nil, rules
}

// RegisteredPrefixes returns all prefixes that have rules registered.
func (r *Registry) RegisteredPrefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefixes := make([]string, 0, len(r.byPrefix))
	for prefix := range r.byPrefix {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// RuleCount returns the total number of unique registered rules.
// Rules registered for several prefixes are only counted once.
func (r *Registry) RuleCount() int {
	return len(r.AllRules())
}

// AllRules returns every registered rule once, ordered by name.
func (r *Registry) AllRules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var result []Rule
	for _, rules := range r.byPrefix {
		for _, rule := range rules {
			if !seen[rule.Name()] {
				seen[rule.Name()] = true
				result = append(result, rule)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}
