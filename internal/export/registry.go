package export

import (
	"fmt"
	"sort"
)

// Registry maps rule names to rules. It is built once at startup and
// immutable afterwards; the selector and pipeline hold a reference and only
// read from it.
type Registry struct {
	rules map[string]*Rule
	names []string
}

// NewRegistry builds a registry from the given rules. Duplicate names and
// invalid rules are rejected.
func NewRegistry(rules ...*Rule) (*Registry, error) {
	reg := &Registry{rules: make(map[string]*Rule, len(rules))}
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		if _, exists := reg.rules[rule.Name]; exists {
			return nil, fmt.Errorf("duplicate rule name %q", rule.Name)
		}
		reg.rules[rule.Name] = rule
		reg.names = append(reg.names, rule.Name)
	}
	sort.Strings(reg.names)
	return reg, nil
}

// Get returns the rule registered under name.
func (r *Registry) Get(name string) (*Rule, bool) {
	rule, ok := r.rules[name]
	return rule, ok
}

// Names returns the registered rule names in stable order.
func (r *Registry) Names() []string {
	return r.names
}

// Rules returns the rules in name order.
func (r *Registry) Rules() []*Rule {
	rules := make([]*Rule, 0, len(r.names))
	for _, name := range r.names {
		rules = append(rules, r.rules[name])
	}
	return rules
}
