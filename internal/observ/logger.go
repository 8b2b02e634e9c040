package observ

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFile = "carepath.log"

// NewLogger builds the JSON production logger in production and the
// console development logger otherwise. output "file" writes to a rotated
// file under path instead of stdout.
func NewLogger(env, level, output, path string) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	if output != "file" {
		return config.Build()
	}

	var encoder zapcore.Encoder
	if env == "production" {
		encoder = zapcore.NewJSONEncoder(config.EncoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(config.EncoderConfig)
	}
	w, err := fileWriter(path)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(encoder, w, config.Level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// fileWriter creates the log directory up front. lumberjack would only
// fail on the first write, after startup has already reported success.
func fileWriter(path string) (zapcore.WriteSyncer, error) {
	if path == "" {
		path = "."
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(path, logFile),
		MaxSize:    100, // megabytes
		MaxBackups: 7,
		MaxAge:     14, // days
		Compress:   true,
	}), nil
}
