package event

import "time"

// SchemaFunc structurally validates a payload. It returns field-level
// findings; an empty result means the payload is well-formed.
type SchemaFunc func(data map[string]any) map[string]string

// RuleFunc applies a type-specific business rule to an already
// structurally-valid event.
type RuleFunc func(ev *Event) *RejectionError

// RateLimit declares the per-type emission budget. MaxEvents <= 0 disables
// enforcement for the type.
type RateLimit struct {
	Window    time.Duration
	MaxEvents int
}

// TypeConfig is the immutable per-type registry entry. One per registered
// event type, defined at startup.
type TypeConfig struct {
	Type          string
	Schema        SchemaFunc
	BusinessRule  RuleFunc
	Authorization Scope
	Persistence   bool
	Broadcast     bool
	Priority      Priority
	RateLimit     RateLimit
}

// Registry maps event types to their configuration. It is built once at
// startup and read-only afterwards, so lookups need no synchronization.
type Registry struct {
	types map[string]*TypeConfig
}

func NewRegistry(configs ...*TypeConfig) *Registry {
	r := &Registry{types: make(map[string]*TypeConfig, len(configs))}
	for _, cfg := range configs {
		r.types[cfg.Type] = cfg
	}
	return r
}

// Lookup returns the configuration for an event type.
func (r *Registry) Lookup(eventType string) (*TypeConfig, bool) {
	cfg, ok := r.types[eventType]
	return cfg, ok
}

// Types lists the registered event types.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	return out
}

// ShouldPersist reports whether events of the given type are flagged for
// durable storage. Unknown types are never persisted.
func (r *Registry) ShouldPersist(eventType string) bool {
	cfg, ok := r.types[eventType]
	return ok && cfg.Persistence
}
