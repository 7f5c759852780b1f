package config

// Factory constructs a fresh instance of a configurable type.
type Factory func() Configurable

// Registry maps class identifiers to factories. It is populated at process
// start and read-only afterwards; Lookup is safe for concurrent use once
// registration is done.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given class identifier. Registering the
// same identifier twice is a programming error and panics.
func (r *Registry) Register(class string, factory Factory) {
	if _, ok := r.factories[class]; ok {
		panic("class registered twice: " + class)
	}
	r.factories[class] = factory
}

// Lookup returns the factory for a class identifier.
func (r *Registry) Lookup(class string) (Factory, bool) {
	f, ok := r.factories[class]
	return f, ok
}

// Classes returns the registered class identifiers, unordered.
func (r *Registry) Classes() []string {
	classes := make([]string, 0, len(r.factories))
	for c := range r.factories {
		classes = append(classes, c)
	}
	return classes
}
