package cmd

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newZapLogger builds the JSON logger shared by all commands. Debug
// enables the debug level; everything above it is always emitted.
func newZapLogger(debug bool) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		LevelKey:       "level",
		MessageKey:     "msg",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "file",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(os.Stdout),
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			if debug {
				return true
			}
			return lvl > zapcore.DebugLevel
		}))
	return zap.New(core)
}
