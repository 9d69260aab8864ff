package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger, set by Initialize.
var Log = zap.NewNop()

// Initialize builds the process logger. Production uses the JSON encoder with
// an ISO8601 "timestamp" key, anything else the colored console encoder. When
// cloudWatchWriter is non-nil every entry is also written to it as JSON.
func Initialize(env string, debug bool, cloudWatchWriter io.Writer) *zap.Logger {
	return build(env, debug, os.Stdout, cloudWatchWriter)
}

func build(env string, debug bool, out io.Writer, cloudWatchWriter io.Writer) *zap.Logger {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	var consoleEncoder zapcore.Encoder
	if env == "production" {
		consoleEncoder = zapcore.NewJSONEncoder(config.EncoderConfig)
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(config.EncoderConfig)
	}
	core := zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(out)), level)

	if cloudWatchWriter != nil {
		cwConfig := config.EncoderConfig
		cwConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cwCore := zapcore.NewCore(zapcore.NewJSONEncoder(cwConfig), zapcore.Lock(zapcore.AddSync(cloudWatchWriter)), level)
		core = zapcore.NewTee(core, cwCore)
	}

	Log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return Log
}
