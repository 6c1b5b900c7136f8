// Package di wires the shield components into a samber/do container.
//
// Every component is a lazy provider; NewContainer only registers them.
// StartCoreComponents forces the ones the server needs at boot, and
// injector.Shutdown releases them in reverse dependency order.
package di

import "github.com/samber/do/v2"

// NewContainer creates a root scope with every core provider registered
func NewContainer(opts ConfigOptions) *do.RootScope {
	injector := do.New()
	RegisterCoreProviders(injector, opts)
	return injector
}
