package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения для теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"FG_DB_HOST":       "localhost",
		"FG_DB_NAME":       "filegate",
		"FG_DB_USER":       "filegate",
		"FG_DB_PASSWORD":   "secret",
		"FG_S3_ENDPOINT":   "minio.local:9000",
		"FG_S3_ACCESS_KEY": "minio",
		"FG_S3_SECRET_KEY": "minio-secret",
		"FG_S3_BUCKET":     "filegate",
		"FG_KEYCLOAK_URL":  "https://keycloak.kryukov.lan",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("MaxFileSize = %d, ожидается 104857600", cfg.MaxFileSize)
	}
	if cfg.UploadURLTTL != 300*time.Second {
		t.Errorf("UploadURLTTL = %v, ожидается 5m", cfg.UploadURLTTL)
	}
	if cfg.DownloadURLTTL != time.Hour {
		t.Errorf("DownloadURLTTL = %v, ожидается 1h", cfg.DownloadURLTTL)
	}
	if cfg.DeleteURLTTL != 300*time.Second {
		t.Errorf("DeleteURLTTL = %v, ожидается 5m", cfg.DeleteURLTTL)
	}
	if cfg.JWTIssuer != "https://keycloak.kryukov.lan/realms/filegate" {
		t.Errorf("JWTIssuer = %q: ожидается авто-вычисленный issuer", cfg.JWTIssuer)
	}
	if cfg.JWTJWKSURL != "https://keycloak.kryukov.lan/realms/filegate/protocol/openid-connect/certs" {
		t.Errorf("JWTJWKSURL = %q: ожидается авто-вычисленный JWKS URL", cfg.JWTJWKSURL)
	}
	if len(cfg.RoleAdminGroups) != 1 || cfg.RoleAdminGroups[0] != "filegate-admins" {
		t.Errorf("RoleAdminGroups = %v, ожидается [filegate-admins]", cfg.RoleAdminGroups)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	envs := minimalEnvs()
	delete(envs, "FG_S3_BUCKET")
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() без FG_S3_BUCKET должен вернуть ошибку")
	}
}

func TestLoad_EndpointWithScheme(t *testing.T) {
	envs := minimalEnvs()
	envs["FG_S3_ENDPOINT"] = "https://minio.local:9000"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() с endpoint со схемой должен вернуть ошибку")
	}
}

func TestLoad_Overrides(t *testing.T) {
	envs := minimalEnvs()
	envs["FG_PORT"] = "9090"
	envs["FG_LOG_LEVEL"] = "debug"
	envs["FG_LOG_FORMAT"] = "text"
	envs["FG_MAX_FILE_SIZE"] = "1048576"
	envs["FG_DOWNLOAD_URL_TTL"] = "30m"
	envs["FG_ROLE_ADMIN_GROUPS"] = "ops, portal-admins"
	envs["FG_RECONCILE_INTERVAL"] = "0s"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, ожидается 9090", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize = %d, ожидается 1048576", cfg.MaxFileSize)
	}
	if cfg.DownloadURLTTL != 30*time.Minute {
		t.Errorf("DownloadURLTTL = %v, ожидается 30m", cfg.DownloadURLTTL)
	}
	if len(cfg.RoleAdminGroups) != 2 || cfg.RoleAdminGroups[0] != "ops" || cfg.RoleAdminGroups[1] != "portal-admins" {
		t.Errorf("RoleAdminGroups = %v, ожидается [ops portal-admins]", cfg.RoleAdminGroups)
	}
	if cfg.ReconcileInterval != 0 {
		t.Errorf("ReconcileInterval = %v, ожидается 0 (отключена)", cfg.ReconcileInterval)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"некорректный порт", "FG_PORT", "abc"},
		{"некорректный уровень логов", "FG_LOG_LEVEL", "trace"},
		{"некорректный формат логов", "FG_LOG_FORMAT", "xml"},
		{"некорректный размер", "FG_MAX_FILE_SIZE", "-1"},
		{"некорректная длительность", "FG_UPLOAD_URL_TTL", "5 minutes"},
		{"некорректный SSL mode", "FG_DB_SSL_MODE", "maybe"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tc.key] = tc.value
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() с %s=%q должен вернуть ошибку", tc.key, tc.value)
			}
		})
	}
}

func TestS3EndpointURL(t *testing.T) {
	cfg := &Config{S3Endpoint: "minio.local:9000"}
	if got := cfg.S3EndpointURL(); got != "http://minio.local:9000" {
		t.Errorf("S3EndpointURL() = %q, ожидается http://minio.local:9000", got)
	}

	cfg.S3UseSSL = true
	if got := cfg.S3EndpointURL(); got != "https://minio.local:9000" {
		t.Errorf("S3EndpointURL() = %q, ожидается https://minio.local:9000", got)
	}
}
