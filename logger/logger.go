// Package logger configures the process-wide zap logger with the JSON
// shape Cloud Logging expects (severity key, GCP level names).
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var zapLog = newLogger(os.Stdout, zapcore.InfoLevel)

func init() {
	zap.ReplaceGlobals(zapLog)
}

func encodeLevel() zapcore.LevelEncoder {
	return func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		switch l {
		case zapcore.DebugLevel:
			enc.AppendString("DEBUG")
		case zapcore.InfoLevel:
			enc.AppendString("INFO")
		case zapcore.WarnLevel:
			enc.AppendString("WARNING")
		case zapcore.ErrorLevel:
			enc.AppendString("ERROR")
		case zapcore.DPanicLevel:
			enc.AppendString("CRITICAL")
		case zapcore.PanicLevel:
			enc.AppendString("ALERT")
		case zapcore.FatalLevel:
			enc.AppendString("EMERGENCY")
		}
	}
}

func newLogger(out zapcore.WriteSyncer, level zapcore.Level) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.LevelKey = "severity"
	encoderConfig.MessageKey = "msg"
	encoderConfig.EncodeLevel = encodeLevel()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(out),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core)
}

// ParseLevel maps a LOG_LEVEL value to a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init rebuilds the global logger at the given level and installs it for zap.L().
func Init(level string) {
	InitWriter(os.Stdout, level)
}

// InitWriter is Init with a custom destination; the CLI logs to stderr.
func InitWriter(out zapcore.WriteSyncer, level string) {
	zapLog = newLogger(out, ParseLevel(level))
	zap.ReplaceGlobals(zapLog)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = zapLog.Sync()
}

func Info(message string, fields ...zap.Field) {
	zapLog.Info(message, fields...)
}

func Debug(message string, fields ...zap.Field) {
	zapLog.Debug(message, fields...)
}

func Warn(message string, fields ...zap.Field) {
	zapLog.Warn(message, fields...)
}

func Error(message string, fields ...zap.Field) {
	zapLog.Error(message, fields...)
}

func Fatal(message string, fields ...zap.Field) {
	zapLog.Fatal(message, fields...)
}
