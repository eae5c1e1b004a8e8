package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultServerPort      = "8080"
	defaultStorageEndpoint = "localhost:9000"
	defaultStorageBucket   = "inspections"
	defaultTimezone        = "Asia/Seoul"
	defaultExportTimeout   = 5 * time.Minute
	defaultAdminID         = "admin"

	// Переменные окружения.
	envServerPort       = "SERVER_PORT"
	envTLSCertFile      = "TLS_CERT_FILE"
	envTLSKeyFile       = "TLS_KEY_FILE"
	envDatabaseDSN      = "DATABASE_DSN"
	envDBMigrate        = "DB_MIGRATE"
	envStorageEndpoint  = "STORAGE_ENDPOINT"
	envStorageBucket    = "STORAGE_BUCKET"
	envStorageUseSSL    = "STORAGE_USE_SSL"
	envServiceAccessKey = "STORAGE_SERVICE_ACCESS_KEY"
	envServiceSecretKey = "STORAGE_SERVICE_SECRET_KEY" //nolint:gosec // Имя переменной окружения
	envPublicAccessKey  = "STORAGE_PUBLIC_ACCESS_KEY"
	envPublicSecretKey  = "STORAGE_PUBLIC_SECRET_KEY" //nolint:gosec // Имя переменной окружения
	envEncryptionKey    = "ENCRYPTION_KEY"
	envAdminID          = "ADMIN_ID"
	envAdminPassword    = "ADMIN_PASSWORD" //nolint:gosec // Имя переменной окружения
	envJWTSecret        = "JWT_SECRET"     //nolint:gosec // Имя переменной окружения
	envTimezone         = "APP_TIMEZONE"
	envExportTimeout    = "EXPORT_TIMEOUT"

	// Части DSN, если DATABASE_DSN не задан (как в docker-compose).
	envDBUser = "POSTGRES_USER"
	envDBPass = "POSTGRES_PASSWORD" //nolint:gosec // Ложное срабатывание, это имя переменной окружения
	envDBName = "POSTGRES_DB"
	envDBHost = "POSTGRES_HOST"
	envDBPort = "POSTGRES_PORT"
)

// config хранит конфигурацию сервера.
type config struct {
	Port        string
	CertFile    string
	KeyFile     string
	DatabaseDSN string
	Migrate     bool

	StorageEndpoint  string
	StorageBucket    string
	StorageUseSSL    bool
	ServiceAccessKey string
	ServiceSecretKey string
	PublicAccessKey  string
	PublicSecretKey  string

	EncryptionKey string
	AdminID       string
	AdminPassword string
	JWTSecret     string

	Timezone      string
	ExportTimeout time.Duration
}

// TLSEnabled сообщает, заданы ли оба файла для HTTPS.
func (c *config) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// parseFlags загружает .env, разбирает флаги и переменные окружения.
// Порядок приоритета: флаг, переменная окружения, значение по умолчанию.
// Все отсутствующие обязательные параметры возвращаются одной ошибкой.
func parseFlags() (*config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Не удалось прочитать .env: %v", err)
	}

	cfg := &config{}
	var errs []error

	migrate, err := envBool(envDBMigrate, true)
	errs = append(errs, err)
	useSSL, err := envBool(envStorageUseSSL, false)
	errs = append(errs, err)
	exportTimeout, err := envDuration(envExportTimeout, defaultExportTimeout)
	errs = append(errs, err)

	// Определяем флаги
	flag.StringVar(&cfg.Port, "port", envOr(envServerPort, defaultServerPort),
		fmt.Sprintf("Порт HTTP-сервера (env: %s)", envServerPort))
	flag.StringVar(&cfg.CertFile, "cert-file", os.Getenv(envTLSCertFile),
		fmt.Sprintf("Путь к файлу TLS-сертификата (env: %s)", envTLSCertFile))
	flag.StringVar(&cfg.KeyFile, "key-file", os.Getenv(envTLSKeyFile),
		fmt.Sprintf("Путь к файлу TLS-ключа (env: %s)", envTLSKeyFile))
	flag.StringVar(&cfg.DatabaseDSN, "database-dsn", envOr(envDatabaseDSN, dsnFromParts()),
		fmt.Sprintf("Строка подключения к базе данных (env: %s)", envDatabaseDSN))
	flag.BoolVar(&cfg.Migrate, "migrate", migrate,
		fmt.Sprintf("Применять миграции при запуске (env: %s)", envDBMigrate))
	flag.StringVar(&cfg.StorageEndpoint, "storage-endpoint", envOr(envStorageEndpoint, defaultStorageEndpoint),
		fmt.Sprintf("Адрес S3-совместимого хранилища (env: %s)", envStorageEndpoint))
	flag.StringVar(&cfg.StorageBucket, "storage-bucket", envOr(envStorageBucket, defaultStorageBucket),
		fmt.Sprintf("Бакет для фотографий (env: %s)", envStorageBucket))
	flag.BoolVar(&cfg.StorageUseSSL, "storage-ssl", useSSL,
		fmt.Sprintf("HTTPS для хранилища (env: %s)", envStorageUseSSL))
	flag.StringVar(&cfg.Timezone, "timezone", envOr(envTimezone, defaultTimezone),
		fmt.Sprintf("Часовой пояс для папок и фильтра \"сегодня\" (env: %s)", envTimezone))
	flag.DurationVar(&cfg.ExportTimeout, "export-timeout", exportTimeout,
		fmt.Sprintf("Предельное время выгрузки (env: %s)", envExportTimeout))

	// Парсим флаги
	flag.Parse()

	// Секреты задаются только через окружение
	cfg.ServiceAccessKey = os.Getenv(envServiceAccessKey)
	cfg.ServiceSecretKey = os.Getenv(envServiceSecretKey)
	cfg.PublicAccessKey = os.Getenv(envPublicAccessKey)
	cfg.PublicSecretKey = os.Getenv(envPublicSecretKey)
	cfg.EncryptionKey = os.Getenv(envEncryptionKey)
	cfg.AdminID = envOr(envAdminID, defaultAdminID)
	cfg.AdminPassword = os.Getenv(envAdminPassword)
	cfg.JWTSecret = os.Getenv(envJWTSecret)

	// Проверяем обязательные параметры
	if cfg.DatabaseDSN == "" {
		errs = append(errs, errors.New("не указана строка подключения к БД (--database-dsn или "+envDatabaseDSN+")"))
	}
	if cfg.ServiceAccessKey == "" || cfg.ServiceSecretKey == "" {
		errs = append(errs, fmt.Errorf("не указаны ключи хранилища (%s и %s)", envServiceAccessKey, envServiceSecretKey))
	}
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		errs = append(errs, errors.New("для HTTPS нужны оба файла: сертификат и ключ"))
	}
	if cfg.ExportTimeout <= 0 {
		errs = append(errs, errors.New("время выгрузки должно быть положительным"))
	}

	if err = errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// dsnFromParts формирует строку подключения из POSTGRES_*, если задан хост.
func dsnFromParts() string {
	host, ok := os.LookupEnv(envDBHost)
	if !ok || host == "" {
		return ""
	}
	// sslmode=disable - для локальной сети docker-compose
	//nolint:nosprintfhostport // DSN - это URL, а не просто host:port
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		envOr(envDBUser, "postgres"), os.Getenv(envDBPass), host, envOr(envDBPort, "5432"), envOr(envDBName, "inspections"))
}

// envOr получает значение переменной окружения или возвращает значение по умолчанию.
func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, fmt.Errorf("некорректное значение %s=%q: %w", key, value, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("некорректное значение %s=%q: %w", key, value, err)
	}
	return d, nil
}
