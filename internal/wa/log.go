package wa

import (
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
)

// zapLogger routes whatsmeow's internal logging into the session log.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewLogger adapts a zap logger to whatsmeow's logging interface.
func NewLogger(log *zap.Logger, module string) waLog.Logger {
	return &zapLogger{s: log.Named(module).Sugar()}
}

func (l *zapLogger) Warnf(msg string, args ...any)  { l.s.Warnf(msg, args...) }
func (l *zapLogger) Errorf(msg string, args ...any) { l.s.Errorf(msg, args...) }
func (l *zapLogger) Infof(msg string, args ...any)  { l.s.Infof(msg, args...) }
func (l *zapLogger) Debugf(msg string, args ...any) { l.s.Debugf(msg, args...) }

func (l *zapLogger) Sub(module string) waLog.Logger {
	return &zapLogger{s: l.s.Named(module)}
}
