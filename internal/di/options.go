package di

import (
	"reflect"
)

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithProviders adds constructor functions to the dependency injection container.
// Each provider should be a constructor function that returns one or more values.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container. A provider whose result type matches
// a core constructor replaces it.
//
// Example:
//
//	WithProviders(
//	    func() execx.Commander { return execx.NewFake() },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	providers []any
}

func resultTypes(constructor any) []string {
	t := reflect.TypeOf(constructor)
	if t == nil || t.Kind() != reflect.Func {
		return nil
	}

	errorType := reflect.TypeOf((*error)(nil)).Elem()
	var names []string
	for i := 0; i < t.NumOut(); i++ {
		if out := t.Out(i); out != errorType {
			names = append(names, out.String())
		}
	}
	return names
}

func overrides(constructor any, overridden map[string]bool) bool {
	for _, name := range resultTypes(constructor) {
		if overridden[name] {
			return true
		}
	}
	return false
}
