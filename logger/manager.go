package logger

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager owns one CtxZapLogger per module
type Manager struct {
	cfg     ManagerConfig
	loggers map[string]*CtxZapLogger
	writers []*lumberjack.Logger
	mu      sync.RWMutex
}

var (
	globalManager *Manager
	globalMu      sync.Mutex
)

// NewManager creates an independent manager; zero fields get defaults
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		cfg:     cfg,
		loggers: make(map[string]*CtxZapLogger),
	}
}

// InitManager replaces the process-wide manager used by GetLogger.
// The previous manager, if any, is flushed and closed.
func InitManager(cfg ManagerConfig) *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalManager != nil {
		globalManager.CloseAll()
	}
	globalManager = NewManager(cfg)
	return globalManager
}

// GetLogger returns the module logger, creating it on first use
func (m *Manager) GetLogger(module string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[module]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.loggers[module]; ok {
		return l
	}

	base := m.build(module).With(zap.String("module", module))
	l := &CtxZapLogger{
		base:   base.WithOptions(zap.AddCallerSkip(1)),
		module: module,
		config: &m.cfg,
	}
	m.loggers[module] = l
	return l
}

// build assembles console and rotated file cores for one module
func (m *Manager) build(module string) *zap.Logger {
	encoder := newEncoder(m.cfg.Encoding)
	level := ParseLevel(m.cfg.Level)
	var cores []zapcore.Core

	if m.cfg.EnableConsole {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	if m.cfg.EnableFile {
		now := time.Now()
		info := m.fileWriter(m.cfg.filePath(module, "info", now))
		cores = append(cores, zapcore.NewCore(encoder, info, zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= level && l < zapcore.ErrorLevel
		})))
		errw := m.fileWriter(m.cfg.filePath(module, "error", now))
		cores = append(cores, zapcore.NewCore(encoder, errw, zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= zapcore.ErrorLevel
		})))
	}

	if len(cores) == 0 {
		return zap.NewNop()
	}

	var opts []zap.Option
	if m.cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), opts...)
}

func (m *Manager) fileWriter(path string) zapcore.WriteSyncer {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    m.cfg.MaxSize,
		MaxBackups: m.cfg.MaxBackups,
		MaxAge:     m.cfg.MaxAge,
		Compress:   m.cfg.Compress,
		LocalTime:  true,
	}
	m.writers = append(m.writers, lj)
	return zapcore.AddSync(lj)
}

// CloseAll flushes every logger and closes rotated files
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.loggers {
		_ = l.base.Sync()
	}
	for _, w := range m.writers {
		_ = w.Close()
	}
	m.loggers = make(map[string]*CtxZapLogger)
	m.writers = nil
}

// Shutdown lets the DI container close the manager
func (m *Manager) Shutdown() error {
	m.CloseAll()
	return nil
}

// Config returns the effective configuration
func (m *Manager) Config() ManagerConfig {
	return m.cfg
}

func newEncoder(encoding string) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		CallerKey:      "caller",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if encoding == "console" {
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// ============================================
// package level helpers (global manager)
// ============================================

func global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalManager == nil {
		globalManager = NewManager(DefaultManagerConfig())
	}
	return globalManager
}

// GetLogger returns a module logger from the global manager
func GetLogger(module string) *CtxZapLogger {
	return global().GetLogger(module)
}

// CloseAll flushes the global manager
func CloseAll() {
	globalMu.Lock()
	m := globalManager
	globalMu.Unlock()
	if m != nil {
		m.CloseAll()
	}
}

// Debug logs through the global manager
func Debug(module, msg string, fields ...zap.Field) { GetLogger(module).Debug(msg, fields...) }

// Info logs through the global manager
func Info(module, msg string, fields ...zap.Field) { GetLogger(module).Info(msg, fields...) }

// Warn logs through the global manager
func Warn(module, msg string, fields ...zap.Field) { GetLogger(module).Warn(msg, fields...) }

// Error logs through the global manager
func Error(module, msg string, fields ...zap.Field) { GetLogger(module).Error(msg, fields...) }
