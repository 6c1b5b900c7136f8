package breaker

import (
	"sort"

	"github.com/KOMKZ/yogan-shield/logger"
	"go.uber.org/zap"
)

// Registry owns one breaker per dependency. It is built once at startup and read-only
// afterwards, so lookups need no lock.
type Registry struct {
	breakers map[string]*CircuitBreaker
	log      *logger.CtxZapLogger
}

// NewRegistry builds every breaker in cfg. opts apply to each breaker.
func NewRegistry(cfg RegistryConfig, log *logger.CtxZapLogger, opts ...Option) (*Registry, error) {
	if log == nil {
		log = logger.GetLogger("yogan")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		breakers: make(map[string]*CircuitBreaker, len(cfg.Breakers)),
		log:      log,
	}

	base := []Option{WithLogger(log), WithStateChangeListener(r.logTransition)}
	for name := range cfg.Breakers {
		cb, err := New(name, cfg.resolve(name), append(base, opts...)...)
		if err != nil {
			return nil, err
		}
		r.breakers[name] = cb
	}
	return r, nil
}

func (r *Registry) logTransition(name string, from, to State) {
	fields := []zap.Field{
		zap.String("breaker", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	}
	if to == StateOpen {
		r.log.Warn("circuit breaker opened", fields...)
		return
	}
	r.log.Info("circuit breaker state changed", fields...)
}

// Get returns the named breaker
func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	cb, ok := r.breakers[name]
	return cb, ok
}

// MustGet returns the named breaker or panics. Use only for names fixed at startup.
func (r *Registry) MustGet(name string) *CircuitBreaker {
	cb, ok := r.breakers[name]
	if !ok {
		panic(ErrNotFound.WithMsgf("circuit breaker %q not registered", name))
	}
	return cb
}

// Names returns the registered names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns a snapshot of every breaker keyed by name
func (r *Registry) Stats() map[string]Stats {
	out := make(map[string]Stats, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.Stats()
	}
	return out
}

// AnyOpen reports whether any breaker is currently OPEN
func (r *Registry) AnyOpen() bool {
	for _, cb := range r.breakers {
		if cb.State() == StateOpen {
			return true
		}
	}
	return false
}

// Open returns the names of OPEN breakers, sorted
func (r *Registry) Open() []string {
	var open []string
	for _, name := range r.Names() {
		if r.breakers[name].State() == StateOpen {
			open = append(open, name)
		}
	}
	return open
}
