package config

import (
	"cmp"
	"os"
	"path/filepath"
)

// DefaultEnvPrefix SHIELD_HTTP__PORT, SHIELD_ENV ...
const DefaultEnvPrefix = "SHIELD"

const defaultEnvName = "dev"

// LoaderBuilder assembles the layered sources:
// config.yaml < {env}.yaml < environment < flags
type LoaderBuilder struct {
	dir       string
	envPrefix string
	bindings  map[string]string
	flags     interface{}
}

func NewLoaderBuilder() *LoaderBuilder {
	return &LoaderBuilder{bindings: map[string]string{}}
}

func (b *LoaderBuilder) WithConfigPath(dir string) *LoaderBuilder {
	b.dir = dir
	return b
}

func (b *LoaderBuilder) WithEnvPrefix(prefix string) *LoaderBuilder {
	b.envPrefix = prefix
	return b
}

// WithEnvBinding "redis.addr" -> "REDIS_URL"
func (b *LoaderBuilder) WithEnvBinding(key, envKey string) *LoaderBuilder {
	b.bindings[key] = envKey
	return b
}

// WithFlags flags is a struct (or pointer to one), see FlagSource
func (b *LoaderBuilder) WithFlags(flags interface{}) *LoaderBuilder {
	b.flags = flags
	return b
}

// Build loads once; call Loader.Load again to reload
func (b *LoaderBuilder) Build() (*Loader, error) {
	loader := NewLoader()
	for _, src := range b.sources() {
		loader.AddSource(src)
	}
	if err := loader.Load(); err != nil {
		return nil, err
	}
	return loader, nil
}

func (b *LoaderBuilder) sources() []ConfigSource {
	var srcs []ConfigSource
	if b.dir != "" {
		srcs = append(srcs,
			NewFileSource(filepath.Join(b.dir, "config.yaml"), PriorityFile),
			NewFileSource(filepath.Join(b.dir, GetEnv()+".yaml"), PriorityEnvFile))
	}
	if b.envPrefix != "" || len(b.bindings) > 0 {
		env := NewEnvSource(b.envPrefix, PriorityEnv)
		for key, name := range b.bindings {
			env.AddBinding(key, name)
		}
		srcs = append(srcs, env)
	}
	if b.flags != nil {
		srcs = append(srcs, NewFlagSource(b.flags, PriorityFlags))
	}
	return srcs
}

// GetEnv SHIELD_ENV, then APP_ENV, then "dev"
func GetEnv() string {
	return cmp.Or(os.Getenv(DefaultEnvPrefix+"_ENV"), os.Getenv("APP_ENV"), defaultEnvName)
}
