package validator

import "parserator/internal/domain"

// Registry maps validation types to TypeChecker implementations.
type Registry struct {
	checkers map[domain.ValidationType]TypeChecker
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[domain.ValidationType]TypeChecker)}
}

// NewDefaultRegistry returns a Registry holding a checker for every built-in type.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, c := range builtinCheckers() {
		r.Register(c)
	}
	return r
}

// Register adds a checker to the registry.
func (r *Registry) Register(c TypeChecker) {
	r.checkers[c.Type()] = c
}

// Get returns the checker for a type, or nil if not found.
func (r *Registry) Get(t domain.ValidationType) TypeChecker {
	return r.checkers[t]
}

// All returns all registered checkers.
func (r *Registry) All() []TypeChecker {
	out := make([]TypeChecker, 0, len(r.checkers))
	for _, c := range r.checkers {
		out = append(out, c)
	}
	return out
}
