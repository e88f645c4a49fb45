package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the application logger: console output always, plus an
// optional rotated JSON file when logFile is non-empty. The returned closer
// flushes buffered entries and closes the rotation handle; call it before
// process exit.
func NewLogger(logFile string, debug bool) (*zap.SugaredLogger, func()) {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(zapcore.AddSync(os.Stdout)),
			level,
		),
	}

	var rotator *lumberjack.Logger
	if logFile != "" {
		rotator = &lumberjack.Logger{
			Filename:  logFile,
			MaxSize:   200, // MB
			LocalTime: true,
			Compress:  true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(rotator),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closer := func() {
		_ = logger.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
	return logger.Sugar(), closer
}

// NewNopLogger returns a logger that discards everything. Used in tests.
func NewNopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
