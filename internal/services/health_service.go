package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bough38-web/inspection-app/internal/storage"
)

const healthProbeTimeout = 3 * time.Second

// Статусы проверок диагностики (помимо storage.Probe*).
const (
	CheckMissingConfig = "missing_config"
	CheckWrongKeyType  = "wrong_key_type"
)

const (
	envPresent = "PRESENT (Hidden)"
	envMissing = "MISSING"
)

// Prober проверяет доступность хранилища. Реализуется *storage.MinioClient.
type Prober interface {
	Probe(ctx context.Context) error
}

// Pinger проверяет доступность БД. Реализуется *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthConfig - сведения о конфигурации для отчета. Значения секретов
// в отчет не попадают, только признак наличия.
type HealthConfig struct {
	Version          string
	DatabaseDSN      string
	StorageEndpoint  string
	StorageBucket    string
	ServiceAccessKey string
	ServiceSecretKey string
	PublicAccessKey  string
	PublicSecretKey  string
	EncryptionKey    string
	AdminPassword    string
}

// HealthReport - отчет диагностики.
type HealthReport struct {
	Status     string            `json:"status"` // ok или degraded
	Configured bool              `json:"configured"`
	Checks     map[string]string `json:"checks"`
	Env        map[string]string `json:"env"`
	Version    string            `json:"version"`
	Timestamp  time.Time         `json:"timestamp"`
}

// HealthService собирает отчет о конфигурации и зависимостях.
type HealthService interface {
	Check(ctx context.Context) HealthReport
}

var _ HealthService = (*healthService)(nil)

type healthService struct {
	cfg          HealthConfig
	db           Pinger
	serviceStore Prober
	publicStore  Prober
	now          func() time.Time
}

// NewHealthService создает сервис диагностики. Любая зависимость может быть nil,
// тогда она помечается как missing_config.
func NewHealthService(cfg HealthConfig, db Pinger, serviceStore, publicStore Prober) HealthService {
	return &healthService{
		cfg:          cfg,
		db:           db,
		serviceStore: serviceStore,
		publicStore:  publicStore,
		now:          time.Now,
	}
}

// Check выполняет проверки параллельно, каждую с собственным таймаутом.
func (s *healthService) Check(ctx context.Context) HealthReport {
	var dbStatus, serviceStatus, publicStatus string

	var g errgroup.Group
	g.Go(func() error {
		dbStatus = s.checkDatabase(ctx)
		return nil
	})
	g.Go(func() error {
		serviceStatus = s.checkStore(ctx, s.serviceStore, s.cfg.ServiceAccessKey, s.cfg.ServiceSecretKey)
		return nil
	})
	g.Go(func() error {
		publicStatus = s.checkPublicStore(ctx)
		return nil
	})
	_ = g.Wait()

	report := HealthReport{
		Configured: s.configured(),
		Checks: map[string]string{
			"database":        dbStatus,
			"storage_service": serviceStatus,
			"storage_public":  publicStatus,
		},
		Env:       s.maskedEnv(),
		Version:   s.cfg.Version,
		Timestamp: s.now().UTC(),
	}

	report.Status = "ok"
	if !report.Configured {
		report.Status = "degraded"
	}
	for name, st := range report.Checks {
		// Публичный уровень хранилища необязателен: без ключей изображения отдает служебный клиент
		if name == "storage_public" && st == CheckMissingConfig {
			continue
		}
		if st != storage.ProbeOK {
			report.Status = "degraded"
		}
	}
	return report
}

func (s *healthService) configured() bool {
	return s.cfg.DatabaseDSN != "" &&
		s.cfg.StorageEndpoint != "" &&
		s.cfg.StorageBucket != "" &&
		s.cfg.ServiceAccessKey != "" &&
		s.cfg.ServiceSecretKey != ""
}

func (s *healthService) checkDatabase(ctx context.Context) string {
	if s.db == nil || s.cfg.DatabaseDSN == "" {
		return CheckMissingConfig
	}
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return storage.ProbeUnreachable
	}
	return storage.ProbeOK
}

func (s *healthService) checkStore(ctx context.Context, p Prober, accessKey, secretKey string) string {
	if p == nil || accessKey == "" || secretKey == "" || s.cfg.StorageEndpoint == "" {
		return CheckMissingConfig
	}
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()
	return storage.Classify(p.Probe(ctx))
}

// checkPublicStore дополнительно проверяет, что для чтения не используется служебный ключ.
func (s *healthService) checkPublicStore(ctx context.Context) string {
	if s.cfg.PublicAccessKey != "" && s.cfg.PublicAccessKey == s.cfg.ServiceAccessKey {
		return CheckWrongKeyType
	}
	return s.checkStore(ctx, s.publicStore, s.cfg.PublicAccessKey, s.cfg.PublicSecretKey)
}

func (s *healthService) maskedEnv() map[string]string {
	return map[string]string{
		"DATABASE_DSN":               presence(s.cfg.DatabaseDSN),
		"STORAGE_ENDPOINT":           maskEndpoint(s.cfg.StorageEndpoint),
		"STORAGE_BUCKET":             s.cfg.StorageBucket,
		"STORAGE_SERVICE_ACCESS_KEY": presence(s.cfg.ServiceAccessKey),
		"STORAGE_SERVICE_SECRET_KEY": presence(s.cfg.ServiceSecretKey),
		"STORAGE_PUBLIC_ACCESS_KEY":  presence(s.cfg.PublicAccessKey),
		"STORAGE_PUBLIC_SECRET_KEY":  presence(s.cfg.PublicSecretKey),
		"ENCRYPTION_KEY":             presence(s.cfg.EncryptionKey),
		"ADMIN_PASSWORD":             presence(s.cfg.AdminPassword),
	}
}

func presence(v string) string {
	if v == "" {
		return envMissing
	}
	return envPresent
}

// maskEndpoint оставляет только начало адреса.
func maskEndpoint(endpoint string) string {
	const visible = 12
	if endpoint == "" {
		return envMissing
	}
	r := []rune(endpoint)
	if len(r) <= visible {
		return endpoint
	}
	return string(r[:visible]) + "..."
}
