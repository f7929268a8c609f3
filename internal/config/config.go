// Пакет config — загрузка и валидация конфигурации Filegate
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Filegate.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Объектное хранилище (S3-совместимое) ---

	// Endpoint объектного хранилища (host:port, без схемы)
	S3Endpoint string
	// Access key
	S3AccessKey string
	// Secret key
	S3SecretKey string
	// Имя бакета для файлов портала
	S3Bucket string
	// Регион (для AWS; MinIO игнорирует)
	S3Region string
	// Использовать TLS при подключении к хранилищу
	S3UseSSL bool

	// --- Политика загрузки ---

	// Максимальный размер файла в байтах (по умолчанию 100 MiB).
	// Проверяется ДО выдачи upload capability: прямая загрузка в хранилище
	// обходит любые серверные лимиты на стриминг.
	MaxFileSize int64
	// TTL presigned URL для загрузки
	UploadURLTTL time.Duration
	// TTL presigned URL для скачивания
	DownloadURLTTL time.Duration
	// TTL presigned URL для удаления
	DeleteURLTTL time.Duration

	// --- Keycloak / JWT ---

	// URL Keycloak (например, https://keycloak.kryukov.lan)
	KeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Путь к CA-сертификату для TLS-соединений с Keycloak (опционально)
	CACertPath string

	// --- Маппинг групп → ролей ---

	// Группы Keycloak, дающие роль admin (через запятую)
	RoleAdminGroups []string

	// --- Фоновые задачи ---

	// Интервал сверки метаданных с хранилищем (0 — отключена)
	ReconcileInterval time.Duration
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы topologymetrics
	DephealthGroup string

	// --- Кэш метаданных ---

	// Максимальное количество записей в LRU-кэше
	CacheSize int
	// TTL записи кэша
	CacheTTL time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
//
//nolint:cyclop // последовательная загрузка параметров
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FG_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("FG_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("FG_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("FG_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// FG_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FG_LOG_LEVEL: %w", err)
	}

	// FG_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FG_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// FG_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("FG_DB_HOST")
	if err != nil {
		return nil, err
	}

	// FG_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("FG_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("FG_DB_PORT: %w", err)
	}

	// FG_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("FG_DB_NAME")
	if err != nil {
		return nil, err
	}

	// FG_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("FG_DB_USER")
	if err != nil {
		return nil, err
	}

	// FG_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("FG_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// FG_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("FG_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("FG_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Объектное хранилище ---

	// FG_S3_ENDPOINT — обязательный (host:port, без схемы)
	cfg.S3Endpoint, err = getEnvRequired("FG_S3_ENDPOINT")
	if err != nil {
		return nil, err
	}
	if strings.Contains(cfg.S3Endpoint, "://") {
		return nil, fmt.Errorf("FG_S3_ENDPOINT: укажите endpoint без схемы (host:port), схема задаётся через FG_S3_USE_SSL")
	}

	// FG_S3_ACCESS_KEY — обязательный
	cfg.S3AccessKey, err = getEnvRequired("FG_S3_ACCESS_KEY")
	if err != nil {
		return nil, err
	}

	// FG_S3_SECRET_KEY — обязательный
	cfg.S3SecretKey, err = getEnvRequired("FG_S3_SECRET_KEY")
	if err != nil {
		return nil, err
	}

	// FG_S3_BUCKET — обязательный
	cfg.S3Bucket, err = getEnvRequired("FG_S3_BUCKET")
	if err != nil {
		return nil, err
	}

	// FG_S3_REGION — регион (по умолчанию пустой)
	cfg.S3Region = getEnvDefault("FG_S3_REGION", "")

	// FG_S3_USE_SSL — TLS при подключении к хранилищу (по умолчанию false)
	cfg.S3UseSSL, err = getEnvBool("FG_S3_USE_SSL", false)
	if err != nil {
		return nil, fmt.Errorf("FG_S3_USE_SSL: %w", err)
	}

	// --- Политика загрузки ---

	// FG_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 100 MiB)
	cfg.MaxFileSize, err = getEnvInt64("FG_MAX_FILE_SIZE", 100*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("FG_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize < 1 {
		return nil, fmt.Errorf("FG_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// FG_UPLOAD_URL_TTL — TTL upload capability (по умолчанию 300s).
	// Короткое окно: URL используется сразу после выдачи.
	cfg.UploadURLTTL, err = getEnvDuration("FG_UPLOAD_URL_TTL", 300*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FG_UPLOAD_URL_TTL: %w", err)
	}

	// FG_DOWNLOAD_URL_TTL — TTL download capability (по умолчанию 1h).
	// Длиннее upload: допускает сетевые задержки и редиректы на стороне клиента.
	cfg.DownloadURLTTL, err = getEnvDuration("FG_DOWNLOAD_URL_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FG_DOWNLOAD_URL_TTL: %w", err)
	}

	// FG_DELETE_URL_TTL — TTL delete capability (по умолчанию 300s)
	cfg.DeleteURLTTL, err = getEnvDuration("FG_DELETE_URL_TTL", 300*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FG_DELETE_URL_TTL: %w", err)
	}

	// --- Keycloak / JWT ---

	// FG_KEYCLOAK_URL — обязательный
	cfg.KeycloakURL, err = getEnvRequired("FG_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	// FG_KEYCLOAK_REALM — realm (по умолчанию filegate)
	cfg.KeycloakRealm = getEnvDefault("FG_KEYCLOAK_REALM", "filegate")

	// FG_JWT_ISSUER — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTIssuer = getEnvDefault("FG_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))

	// FG_JWT_JWKS_URL — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTJWKSURL = getEnvDefault("FG_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	// FG_JWT_LEEWAY — допуск времени при валидации JWT (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("FG_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FG_JWT_LEEWAY: %w", err)
	}

	// FG_JWKS_REFRESH_INTERVAL — интервал обновления JWKS (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("FG_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FG_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// FG_CA_CERT_PATH — путь к CA-сертификату (опционально)
	cfg.CACertPath = getEnvDefault("FG_CA_CERT_PATH", "")

	// FG_ROLE_ADMIN_GROUPS — группы для роли admin (по умолчанию "filegate-admins")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("FG_ROLE_ADMIN_GROUPS", "filegate-admins"))

	// --- Фоновые задачи ---

	// FG_RECONCILE_INTERVAL — интервал сверки (по умолчанию 1h, 0 — отключена)
	cfg.ReconcileInterval, err = getEnvDuration("FG_RECONCILE_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FG_RECONCILE_INTERVAL: %w", err)
	}

	// FG_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("FG_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FG_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// FG_DEPHEALTH_GROUP — имя группы topologymetrics (по умолчанию filegate)
	cfg.DephealthGroup = getEnvDefault("FG_DEPHEALTH_GROUP", "filegate")

	// --- Кэш метаданных ---

	// FG_CACHE_SIZE — размер LRU-кэша (по умолчанию 1000)
	cfg.CacheSize, err = getEnvInt("FG_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("FG_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("FG_CACHE_SIZE: значение должно быть положительным")
	}

	// FG_CACHE_TTL — TTL записи кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("FG_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FG_CACHE_TTL: %w", err)
	}

	// --- Graceful shutdown ---

	// FG_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FG_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FG_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL (для метрик и миграций).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// S3EndpointURL возвращает полный URL объектного хранилища (со схемой).
func (c *Config) S3EndpointURL() string {
	scheme := "http"
	if c.S3UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.S3Endpoint)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 из переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
