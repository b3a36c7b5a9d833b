package config

import "time"

// ConfigLogger настройки логирования
type ConfigLogger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // json или console
}

// ConfigRedis настройки Redis бэкенда
type ConfigRedis struct {
	Addr        string `mapstructure:"addr"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	PingTimeout int    `mapstructure:"ping_timeout_ms"`
}

// ConfigSQL настройки PostgreSQL бэкенда
type ConfigSQL struct {
	DSN           string `mapstructure:"dsn"`
	PingAttempts  int    `mapstructure:"ping_attempts"`
	PingRetryWait int    `mapstructure:"ping_retry_wait_ms"`
	Migrate       bool   `mapstructure:"migrate"`
}

// ConfigBlob настройки blob бэкенда
type ConfigBlob struct {
	BucketURL string `mapstructure:"bucket_url"`
}

// ConfigStore настройки хранилища документов.
// Backend: удаленное хранилище (http, grpc) или локальный бэкенд (memory, redis, blob, sql).
type ConfigStore struct {
	Backend     string       `mapstructure:"backend"`
	BaseURL     string       `mapstructure:"base_url"`
	GRPCAddr    string       `mapstructure:"grpc_addr"`
	AppCode     string       `mapstructure:"app_code"`
	DataName    string       `mapstructure:"data_name"`
	Token       string       `mapstructure:"token"`
	TimeoutMS   int          `mapstructure:"timeout_ms"`
	OperationMS int          `mapstructure:"operation_timeout_ms"`
	RPS         int          `mapstructure:"rps"`
	Burst       int          `mapstructure:"burst"`
	Redis       *ConfigRedis `mapstructure:"redis"`
	SQL         *ConfigSQL   `mapstructure:"sql"`
	Blob        *ConfigBlob  `mapstructure:"blob"`
}

// ConfigLock настройки протокола занятости документа
type ConfigLock struct {
	IntervalMS       int `mapstructure:"interval_ms"`
	JitterMS         int `mapstructure:"jitter_ms"`
	MaxAttempts      int `mapstructure:"max_attempts"`
	DeadlineMS       int `mapstructure:"deadline_ms"`
	LeaseTTLMS       int `mapstructure:"lease_ttl_ms"`
	ReleaseTimeoutMS int `mapstructure:"release_timeout_ms"`
}

// ConfigServer настройки сервера хранилища
type ConfigServer struct {
	UseReflection           bool   `mapstructure:"use_reflection"`
	PortGRPC                int    `mapstructure:"port_grpc"`
	PortHTTP                int    `mapstructure:"port_http"`
	Backend                 string `mapstructure:"backend"`
	HTTPReadTimeout         int    `mapstructure:"http_read_timeout"`
	HTTPWriteTimeout        int    `mapstructure:"http_write_timeout"`
	HTTPIdleTimeout         int    `mapstructure:"http_idle_timeout"`
	HTTPReadHeaderTimeout   int    `mapstructure:"http_read_header_timeout"`
	GracefulShutdownTimeout int    `mapstructure:"graceful_shutdown_timeout"`
}

// ConfigGateway настройки HTTP поверхности хранилища
type ConfigGateway struct {
	CORSAllowedOrigins string `mapstructure:"cors_allowed_origins"`
	CORSMaxAge         int    `mapstructure:"cors_max_age"`
	RateLimitRPS       int    `mapstructure:"rate_limit_rps"`
	RateLimitBurst     int    `mapstructure:"rate_limit_burst"`
}

// ConfigAuth настройки токенов доступа
type ConfigAuth struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	TokenTTL  int    `mapstructure:"token_ttl"`
}

// ConfigEvents настройки публикации событий заметок
type ConfigEvents struct {
	TopicURL string `mapstructure:"topic_url"`
}

// Config основная структура конфигурации
type Config struct {
	Logger  *ConfigLogger  `mapstructure:"logger"`
	Store   *ConfigStore   `mapstructure:"store"`
	Lock    *ConfigLock    `mapstructure:"lock"`
	Server  *ConfigServer  `mapstructure:"server"`
	Gateway *ConfigGateway `mapstructure:"gateway"`
	Auth    *ConfigAuth    `mapstructure:"auth"`
	Events  *ConfigEvents  `mapstructure:"events"`
}

// Millis переводит миллисекунды из конфига в time.Duration
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
