package dynflag

import "io"

// std backs the package-level API. Flags declared with the package-level
// constructors register here.
var std = NewRegistry()

// Init initializes the default registry. Idempotent; see Registry.Init.
func Init() { std.Init() }

// Feature declares a feature flag in the default registry.
func Feature(kind, name string, opts ...FlagOption) *Flag {
	return std.newFlag(classFeature, kind, name, 2, opts)
}

// Default declares a default-on flag in the default registry.
func Default(kind, name string, opts ...FlagOption) *Flag {
	return std.newFlag(classDefault, kind, name, 2, opts)
}

// DefaultSlow declares a default-on, expected-off flag in the default
// registry.
func DefaultSlow(kind, name string, opts ...FlagOption) *Flag {
	return std.newFlag(classDefaultSlow, kind, name, 2, opts)
}

// Opt declares an opt-in flag in the default registry.
func Opt(kind, name string, opts ...FlagOption) *Flag {
	return std.newFlag(classOpt, kind, name, 2, opts)
}

// Activate is Registry.Activate on the default registry.
func Activate(pattern string) (int, error) { return std.Activate(pattern) }

// Deactivate is Registry.Deactivate on the default registry.
func Deactivate(pattern string) (int, error) { return std.Deactivate(pattern) }

// Unhook is Registry.Unhook on the default registry.
func Unhook(pattern string) (int, error) { return std.Unhook(pattern) }

// Rehook is Registry.Rehook on the default registry.
func Rehook(pattern string) (int, error) { return std.Rehook(pattern) }

// ActivateKind is Registry.ActivateKind on the default registry.
func ActivateKind(kind, pattern string) (int, error) { return std.ActivateKind(kind, pattern) }

// DeactivateKind is Registry.DeactivateKind on the default registry.
func DeactivateKind(kind, pattern string) (int, error) { return std.DeactivateKind(kind, pattern) }

// ListState is Registry.ListState on the default registry.
func ListState(pattern string, visit func(State) bool) (int, error) {
	return std.ListState(pattern, visit)
}

// WriteState is Registry.WriteState on the default registry.
func WriteState(w io.Writer, pattern string) (int, error) {
	return std.WriteState(w, pattern)
}

// LoadConfig is Registry.LoadConfig on the default registry.
func LoadConfig(src io.Reader) (int, error) { return std.LoadConfig(src) }
