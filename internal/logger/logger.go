package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SplayLobster/MemoApp2/internal/config"
)

// New создает логгер по настройкам из конфига.
// service добавляется ко всем записям полем "service".
func New(cfg *config.ConfigLogger, service string) (*zap.SugaredLogger, error) {
	level := zapcore.InfoLevel
	encoding := "json"
	if cfg != nil {
		if cfg.Level != "" {
			if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
				return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
			}
		}
		if cfg.Encoding != "" {
			encoding = cfg.Encoding
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	switch encoding {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("unknown log encoding %q", encoding)
	}

	// Логи пишем в stderr, stdout остается для вывода CLI
	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level)

	log := zap.New(core, zap.AddCaller())
	if service != "" {
		log = log.With(zap.String("service", service))
	}
	return log.Sugar(), nil
}
