package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Name  string
	Level string
	// File receives every entry at Level or above as JSON.
	File string
	// ErrorFile receives ERROR entries only.
	ErrorFile string
	// Console defaults to stdout.
	Console io.Writer
}

type Logger struct {
	*zap.SugaredLogger
}

func New(opts Options) (*Logger, error) {
	for _, file := range []string{opts.File, opts.ErrorFile} {
		if file == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(console), level),
	}
	if opts.File != "" {
		cores = append(cores, zapcore.NewCore(fileEncoder, rotating(opts.File), level))
	}
	if opts.ErrorFile != "" {
		cores = append(cores, zapcore.NewCore(fileEncoder, rotating(opts.ErrorFile), zapcore.ErrorLevel))
	}

	zapLogger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if opts.Name != "" {
		zapLogger = zapLogger.Named(opts.Name)
	}
	return &Logger{zapLogger.Sugar()}, nil
}

// Nop discards everything. Handy for commands that only print results.
func Nop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

func rotating(file string) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})
}

func (l *Logger) Close() {
	_ = l.Sync()
}
