// ABOUTME: Name-keyed command registry populated once at startup
// ABOUTME: Read-only afterwards and shared by every connection

package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type MapRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	aliases  map[string]string
	sealed   bool
}

func NewMapRegistry() *MapRegistry {
	return &MapRegistry{
		handlers: make(map[string]Handler),
		aliases:  make(map[string]string),
	}
}

// Register adds a command for method. The registry name is method + "Command".
func (r *MapRegistry) Register(method string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("registry is sealed, cannot register %q", method)
	}
	if method == "" || h == nil {
		return fmt.Errorf("invalid command registration for %q", method)
	}
	name := method + Suffix
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("command %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Alias makes alias resolve to the command registered for target.
func (r *MapRegistry) Alias(alias, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("registry is sealed, cannot alias %q", alias)
	}
	if _, exists := r.handlers[target+Suffix]; !exists {
		return fmt.Errorf("alias %q points at unknown method %q", alias, target)
	}
	r.aliases[alias+Suffix] = target + Suffix
	return nil
}

// Seal rejects any further registration.
func (r *MapRegistry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

func (r *MapRegistry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if target, ok := r.aliases[name]; ok {
		name = target
	}
	h, ok := r.handlers[name]
	return h, ok
}

// Methods lists the registered method names, aliases included, sorted.
func (r *MapRegistry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.handlers)+len(r.aliases))
	for name := range r.handlers {
		methods = append(methods, strings.TrimSuffix(name, Suffix))
	}
	for name := range r.aliases {
		methods = append(methods, strings.TrimSuffix(name, Suffix))
	}
	sort.Strings(methods)
	return methods
}
