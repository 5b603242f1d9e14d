package bootstrap

import (
	"fmt"
	"os"

	"casehub/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger builds the process logger. Development mode writes colored
// console lines; otherwise entries are JSON.
func InitLogger(level string, development bool) (*zap.Logger, *zap.SugaredLogger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	var encoder zapcore.Encoder
	if development {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), lvl)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// InitConfig loads the configuration and resolves service credentials
// through the configured secrets provider.
func InitConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load config: %v\n", err)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	manager, err := config.NewSecretManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}
	if err := config.LoadSecrets(cfg, manager); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	return cfg, nil
}

func logConfig(cfg *config.Config, sugar *zap.SugaredLogger) {
	sugar.Infow("Config loaded",
		"instance", cfg.Instance.Name,
		"database", cfg.Database.Type,
		"index_server", fmt.Sprintf("%s:%d", cfg.IndexServer.Host, cfg.IndexServer.Port),
		"messaging", fmt.Sprintf("%s:%d", cfg.Messaging.Host, cfg.Messaging.Port),
		"coordination", cfg.Coordination.Endpoints,
		"secrets_provider", cfg.Secrets.Provider)
}
