// Package di provides a lightweight wrapper around uber's dig dependency injection framework.
// It simplifies container setup and provides type-safe dependency retrieval with generics.
package di

import (
	"context"

	"github.com/savaki/airflow-kit/internal/config"
	"go.uber.org/dig"
)

// Container defines a dependency injection container based on uber's dig.
// This interface allows for easy testing and mocking of the DI container.
type Container interface {
	// Invoke executes a function, injecting its dependencies from the container.
	Invoke(function any, opts ...dig.InvokeOption) error
	// Provide registers a constructor function in the container.
	Provide(constructor any, opts ...dig.ProvideOption) error
	// Scope creates a scoped sub-container with its own set of values.
	Scope(name string, opts ...dig.ScopeOption) *dig.Scope
}

// MustGet returns an instance constructed via dependency injection or panics.
// This is a convenience function for retrieving a dependency from the container
// when you're certain it exists. If the dependency cannot be resolved, it will panic.
//
// Example:
//
//	r := MustGet[*runner.Runner](container)
func MustGet[T any](container Container) (want T) {
	callback := func(got T) {
		want = got
	}
	if err := container.Invoke(callback); err != nil {
		panic(err)
	}
	return want
}

// Get is the non-panicking form of MustGet, for commands that surface
// construction failures to the operator.
func Get[T any](container Container) (want T, err error) {
	err = container.Invoke(func(got T) {
		want = got
	})
	return want, err
}

// New creates a new dependency injection container for cfg. The context and
// the normalized config are registered so constructors can take them as
// parameters.
//
// Example:
//
//	container, err := New(ctx, cfg,
//	    WithProviders(
//	        func() execx.Commander { return execx.NewFake() },
//	    ),
//	)
func New(ctx context.Context, cfg config.Config, opts ...Option) (Container, error) {
	// Build options
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}

	// Create dig container
	container := dig.New()

	if err := container.Provide(func() context.Context { return ctx }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() config.Config { return cfg }); err != nil {
		return nil, err
	}

	// Overrides replace core constructors, so they are registered first and
	// the matching core entries are skipped.
	overridden := map[string]bool{}
	for _, provider := range o.providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
		for _, name := range resultTypes(provider) {
			overridden[name] = true
		}
	}

	for _, provider := range core {
		if overrides(provider, overridden) {
			continue
		}
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	return container, nil
}

var core = []any{
	ProvideCommander,
	ProvideComposeClient,
	ProvideRunner,
	ProvideValueSource,
	ProvideBootstrapper,
	ProvideImageBuilder,
}
