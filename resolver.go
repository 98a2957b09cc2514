package dispatch

// Resolver picks a named executor for a call. It is an extension point:
// integrations that route calls to qualified pools (per-method annotations,
// configuration lookups) implement it; the base behavior defers to the
// dispatcher's default executor.
type Resolver interface {
	// Qualifier returns the name of the executor to use for the given
	// declared method signature, or "" to use the default.
	Qualifier(method string) string
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(method string) string

func (f ResolverFunc) Qualifier(method string) string {
	return f(method)
}

// NopResolver always defers to the default executor.
type NopResolver struct{}

func (NopResolver) Qualifier(string) string {
	return ""
}
