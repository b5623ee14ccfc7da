package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	rotateThresholdKB = 1024
	maxRolls          = 5
)

// Logger wraps a zap logger writing JSON lines to a rotating file. The
// terminal belongs to the chat UI, so nothing is written to stdout or stderr.
type Logger struct {
	*zap.Logger
	rotator *rotator.Rotator
}

// New opens logPath for rotation and returns a logger at the given level.
// Session name and PID are included as initial fields.
func New(logPath, sessionName string, level zapcore.Level) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	r, err := rotator.New(logPath, rotateThresholdKB, false, maxRolls)
	if err != nil {
		return nil, fmt.Errorf("create file rotator: %w", err)
	}

	core := zapcore.NewCore(jsonEncoder(), zapcore.AddSync(r), level)
	z := zap.New(core,
		zap.AddCaller(),
		zap.Fields(
			zap.String("session", sessionName),
			zap.Int("pid", os.Getpid()),
		),
	)
	return &Logger{Logger: z, rotator: r}, nil
}

func jsonEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// Close flushes buffered entries and closes the log file.
func (l *Logger) Close() error {
	_ = l.Logger.Sync()
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Close()
}
