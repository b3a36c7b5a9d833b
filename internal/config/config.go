package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// expandEnvWithDefaults расширяет переменные окружения с поддержкой дефолтных значений
// Формат: ${VAR:-default}
func expandEnvWithDefaults(s string) string {
	// Регулярное выражение для поиска ${VAR:-default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Извлекаем имя переменной и значение по умолчанию
		matches := re.FindStringSubmatch(match)
		if len(matches) < 2 {
			return match
		}

		varName := matches[1]
		defaultValue := ""
		if len(matches) > 2 {
			defaultValue = matches[2]
		}

		// Пытаемся получить значение из переменных окружения
		value := os.Getenv(varName)
		if value == "" {
			// Если переменная не установлена, используем значение по умолчанию
			return defaultValue
		}
		return value
	})
}

// InitConfig читает конфигурационный файл и возвращает экземпляр конфигурации
// Использует generic для работы с произвольным типом конфигурации
func InitConfig[C any](configFile string) (*C, error) {
	v := viper.New()
	ext := strings.TrimLeft(filepath.Ext(configFile), ".")

	v.SetConfigFile(configFile)
	v.SetConfigType(ext)
	err := v.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("v.ReadInConfig: %w", err)
	}

	// Заменяем переменные окружения формата ${VAR:-default} на их значения
	for _, k := range v.AllKeys() {
		value := v.GetString(k)
		if value == "" {
			continue
		}
		// Используем кастомную функцию для поддержки дефолтных значений
		expanded := expandEnvWithDefaults(value)

		// Пытаемся определить тип значения и установить его правильно
		// Если значение выглядит как число или boolean, пытаемся распарсить
		if expanded == "true" || expanded == "false" {
			boolValue, _ := strconv.ParseBool(expanded)
			v.Set(k, boolValue)
		} else if intValue, err := strconv.Atoi(expanded); err == nil {
			v.Set(k, intValue)
		} else {
			v.Set(k, expanded)
		}
	}

	cfg := new(C)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("v.Unmarshal: %w", err)
	}

	return cfg, nil
}

// Load загружает .env (если есть), читает конфигурационный файл и заполняет значения по умолчанию
func Load(configFile string) (*Config, error) {
	// Отсутствие .env не ошибка: переменные могут прийти из окружения процесса
	_ = godotenv.Load()

	cfg, err := InitConfig[Config](configFile)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// ApplyDefaults заполняет отсутствующие секции и нулевые значения
func ApplyDefaults(cfg *Config) {
	if cfg.Logger == nil {
		cfg.Logger = &ConfigLogger{}
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Encoding == "" {
		cfg.Logger.Encoding = "json"
	}

	if cfg.Store == nil {
		cfg.Store = &ConfigStore{}
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "http"
	}
	if cfg.Store.BaseURL == "" {
		cfg.Store.BaseURL = "http://localhost:8080"
	}
	if cfg.Store.GRPCAddr == "" {
		cfg.Store.GRPCAddr = "localhost:50051"
	}
	if cfg.Store.AppCode == "" {
		cfg.Store.AppCode = "memo-app"
	}
	if cfg.Store.DataName == "" {
		cfg.Store.DataName = "notes"
	}
	if cfg.Store.TimeoutMS == 0 {
		cfg.Store.TimeoutMS = 10000
	}
	if cfg.Store.OperationMS == 0 {
		cfg.Store.OperationMS = 5000
	}
	if cfg.Store.Redis == nil {
		cfg.Store.Redis = &ConfigRedis{}
	}
	if cfg.Store.Redis.Addr == "" {
		cfg.Store.Redis.Addr = "localhost:6379"
	}
	if cfg.Store.Redis.PingTimeout == 0 {
		cfg.Store.Redis.PingTimeout = 2000
	}
	if cfg.Store.SQL == nil {
		cfg.Store.SQL = &ConfigSQL{}
	}
	if cfg.Store.SQL.PingAttempts == 0 {
		cfg.Store.SQL.PingAttempts = 5
	}
	if cfg.Store.SQL.PingRetryWait == 0 {
		cfg.Store.SQL.PingRetryWait = 2000
	}
	if cfg.Store.Blob == nil {
		cfg.Store.Blob = &ConfigBlob{}
	}
	if cfg.Store.Blob.BucketURL == "" {
		cfg.Store.Blob.BucketURL = "mem://"
	}

	if cfg.Lock == nil {
		cfg.Lock = &ConfigLock{}
	}
	if cfg.Lock.IntervalMS == 0 {
		cfg.Lock.IntervalMS = 500
	}
	if cfg.Lock.ReleaseTimeoutMS == 0 {
		cfg.Lock.ReleaseTimeoutMS = 10000
	}

	if cfg.Server == nil {
		cfg.Server = &ConfigServer{}
	}
	if cfg.Server.PortGRPC == 0 {
		cfg.Server.PortGRPC = 50051
	}
	if cfg.Server.PortHTTP == 0 {
		cfg.Server.PortHTTP = 8080
	}
	if cfg.Server.Backend == "" {
		cfg.Server.Backend = "memory"
	}
	if cfg.Server.GracefulShutdownTimeout == 0 {
		cfg.Server.GracefulShutdownTimeout = 10
	}

	if cfg.Gateway == nil {
		cfg.Gateway = &ConfigGateway{}
	}
	if cfg.Gateway.CORSAllowedOrigins == "" {
		cfg.Gateway.CORSAllowedOrigins = "*"
	}

	if cfg.Auth == nil {
		cfg.Auth = &ConfigAuth{}
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "ono"
	}

	if cfg.Events == nil {
		cfg.Events = &ConfigEvents{}
	}
}
