package sdk

import (
	"github.com/norman-ai/norman-sdk-go/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func consoleConfig(debug bool) zap.Config {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	return zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// configureLogger replaces the global logger according to cfg. With
// LogFile set, JSON logs are also written to a rotating file.
func configureLogger(cfg *config.Config) error {
	zc := consoleConfig(cfg.Debug)
	logger, err := zc.Build()
	if err != nil {
		return err
	}
	if cfg.LogFile != "" {
		file := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(newRotator(cfg.LogFile)),
			zc.Level,
		)
		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, file)
		}))
	}
	zap.ReplaceGlobals(logger)
	return nil
}

func newRotator(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
}
