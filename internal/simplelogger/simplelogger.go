// Package simplelogger builds the process logger. Output goes to the file named by MERGEVIEW_LOG_FILE, never to stdout or stderr.
package simplelogger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvVar names the environment variable holding the log file path.
const EnvVar = "MERGEVIEW_LOG_FILE"

// New returns a logger that appends JSON lines to the file specified by MERGEVIEW_LOG_FILE.
//
// If MERGEVIEW_LOG_FILE is unset/empty or the path can't be opened as a file, New returns a no-op logger. The returned close func flushes and closes the file; it
// is always non-nil.
func New() (*zap.Logger, func()) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return zap.NewNop(), func() {}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zap.NewNop(), func() {}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.DebugLevel)
	logger := zap.New(core)

	return logger, func() {
		_ = logger.Sync()
		_ = f.Close()
	}
}
