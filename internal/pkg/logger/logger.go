package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats accepted by NewWithFormat
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New 创建一个新的 zap logger实例 (JSON 输出)
// level: 日志级别 (debug, info, warn, error)
func New(level string) (*zap.Logger, error) {
	return NewWithFormat(level, FormatJSON)
}

// NewWithFormat builds a logger writing to stdout in the given format.
// Unknown levels fall back to info and unknown formats to JSON.
func NewWithFormat(level, format string) (*zap.Logger, error) {
	return build(level, format)
}

func build(level, format string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if format == FormatConsole {
		config = zap.NewDevelopmentConfig()
	}

	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	// 自定义时间格式
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	config.DisableCaller = false

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
