package logger

import (
	"strings"
)

// GinLogWriter routes gin's plain text output into a module logger
type GinLogWriter struct {
	log *CtxZapLogger
}

// NewGinLogWriter creates a writer for gin.DefaultWriter / gin.DefaultErrorWriter
func NewGinLogWriter(log *CtxZapLogger) *GinLogWriter {
	if log == nil {
		log = GetLogger("gin")
	}
	return &GinLogWriter{log: log}
}

// Write implements io.Writer
func (w *GinLogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}

	switch {
	case strings.Contains(msg, "[GIN-debug]"):
		w.log.Debug(msg)
	case strings.Contains(msg, "[Recovery]"), strings.Contains(msg, "panic recovered"):
		w.log.Error(msg)
	default:
		w.log.Info(msg)
	}
	return len(p), nil
}
