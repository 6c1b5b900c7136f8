package redis

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	ModeStandalone = "standalone"
	ModeCluster    = "cluster"
)

const defaultAddr = "127.0.0.1:6379"

// Config redis 连接配置（限流窗口、缓存、统计共用一个客户端）
type Config struct {
	Mode string `mapstructure:"mode" json:"mode"`
	// Addrs standalone 只用第一个地址
	Addrs []string `mapstructure:"addrs" json:"addrs"`
	// Addr 单地址写法，Addrs 为空时生效
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"-"`
	DB       int    `mapstructure:"db" json:"db"`

	PoolSize     int `mapstructure:"pool_size" json:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns" json:"min_idle_conns"`
	// MaxRetries -1 关闭客户端重试
	MaxRetries int `mapstructure:"max_retries" json:"max_retries"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"`

	Connect ConnectConfig `mapstructure:"connect" json:"connect"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
}

// ConnectConfig 启动探测：PING 重试次数与退避
type ConnectConfig struct {
	Attempts int           `mapstructure:"attempts" json:"attempts"`
	Backoff  time.Duration `mapstructure:"backoff" json:"backoff"`
	// Required 为 false 时 redis 不可达也照常启动：限流放行，缓存全部未命中
	Required bool `mapstructure:"required" json:"required"`
}

// DefaultConfig local standalone instance
func DefaultConfig() Config {
	return Config{
		Mode:         ModeStandalone,
		Addrs:        []string{defaultAddr},
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		Connect: ConnectConfig{
			Attempts: 5,
			Backoff:  200 * time.Millisecond,
		},
	}
}

// ApplyDefaults fills zero values from DefaultConfig
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if len(c.Addrs) == 0 && c.Addr != "" {
		c.Addrs = []string{c.Addr}
	}
	if len(c.Addrs) == 0 {
		c.Addrs = d.Addrs
	}
	setDefault(&c.PoolSize, d.PoolSize)
	setDefault(&c.MinIdleConns, d.MinIdleConns)
	setDefault(&c.MaxRetries, d.MaxRetries)
	setDefault(&c.DialTimeout, d.DialTimeout)
	setDefault(&c.ReadTimeout, d.ReadTimeout)
	setDefault(&c.WriteTimeout, d.WriteTimeout)
	setDefault(&c.Connect.Attempts, d.Connect.Attempts)
	setDefault(&c.Connect.Backoff, d.Connect.Backoff)
}

func setDefault[T int | time.Duration](field *T, v T) {
	if *field == 0 {
		*field = v
	}
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(ModeStandalone, ModeCluster)),
		validation.Field(&c.Addrs, validation.Required, validation.Each(validation.Required)),
		// cluster 只有 db 0
		validation.Field(&c.DB, validation.Min(0), validation.Max(15),
			validation.When(c.Mode == ModeCluster, validation.In(0))),
		validation.Field(&c.PoolSize, validation.Min(0)),
		validation.Field(&c.MinIdleConns, validation.Min(0)),
		validation.Field(&c.MaxRetries, validation.Min(-1)),
		validation.Field(&c.Connect),
	)
}

func (c ConnectConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Attempts, validation.Required, validation.Min(1)),
		validation.Field(&c.Backoff, validation.Min(time.Duration(0))),
	)
}
