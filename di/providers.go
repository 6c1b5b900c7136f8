package di

import (
	"fmt"

	"github.com/KOMKZ/yogan-shield/config"
	"github.com/KOMKZ/yogan-shield/logger"
	"github.com/samber/do/v2"
)

const defaultConfigDir = "./configs"

// ConfigOptions where configuration comes from
type ConfigOptions struct {
	ConfigPath   string
	ConfigPrefix string
	// Bindings config key -> unprefixed env var, e.g. redis.addr -> REDIS_URL
	Bindings map[string]string
	Flags    interface{}
}

// ProvideConfigLoader builds the layered loader; nothing else is loaded before it
func ProvideConfigLoader(opts ConfigOptions) func(do.Injector) (*config.Loader, error) {
	return func(do.Injector) (*config.Loader, error) {
		dir, prefix := opts.ConfigPath, opts.ConfigPrefix
		if dir == "" {
			dir = defaultConfigDir
		}
		if prefix == "" {
			prefix = config.DefaultEnvPrefix
		}

		b := config.NewLoaderBuilder().WithConfigPath(dir).WithEnvPrefix(prefix).WithFlags(opts.Flags)
		for key, env := range opts.Bindings {
			b.WithEnvBinding(key, env)
		}
		loader, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("build config loader: %w", err)
		}
		return loader, nil
	}
}

// ProvideLoggerManager reads the logger section and installs the result as
// the process-wide manager, so logger.GetLogger follows configuration.
// A broken section falls back to defaults instead of failing startup.
func ProvideLoggerManager(i do.Injector) (*logger.Manager, error) {
	cfg := logger.DefaultManagerConfig()
	if loader, err := do.Invoke[*config.Loader](i); err == nil {
		if err := loader.UnmarshalKey("logger", &cfg); err != nil {
			cfg = logger.DefaultManagerConfig()
		}
	}
	cfg.ApplyDefaults()
	return logger.InitManager(cfg), nil
}

// ProvideCtxLogger the logger injected as *logger.CtxZapLogger
func ProvideCtxLogger(module string) func(do.Injector) (*logger.CtxZapLogger, error) {
	return func(i do.Injector) (*logger.CtxZapLogger, error) {
		return moduleLogger(i, module), nil
	}
}

func moduleLogger(i do.Injector, module string) *logger.CtxZapLogger {
	if mgr, err := do.Invoke[*logger.Manager](i); err == nil && mgr != nil {
		return mgr.GetLogger(module)
	}
	return logger.GetLogger(module)
}
