package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bough38-web/inspection-app/internal/handlers"
)

func TestSetupRouter(t *testing.T) {
	// Обработчики с nil зависимостями, так как тестируем только роутинг
	deps := &dependencies{
		jwtSecret:         []byte("secret"),
		authHandler:       handlers.NewAuthHandler(nil),
		inspectionHandler: handlers.NewInspectionHandler(nil, time.UTC),
		exportHandler:     handlers.NewExportHandler(nil, nil, time.UTC),
		imageHandler:      handlers.NewImageHandler(nil),
		healthHandler:     handlers.NewHealthHandler(nil),
	}

	r := setupRouter(deps)
	require.NotNil(t, r)

	// Проверяем наличие маршрутов
	routes := []struct {
		method  string
		pattern string
	}{
		{http.MethodGet, "/ping"},
		{http.MethodGet, "/metrics"},
		{http.MethodPost, "/api/submit"},
		{http.MethodGet, "/api/health-check"},
		{http.MethodPost, "/api/admin/login"},
		{http.MethodPost, "/api/admin/logout"},
		{http.MethodGet, "/api/inspections/"},
		{http.MethodGet, "/api/inspections/stats"},
		{http.MethodPost, "/api/inspections/delete"},
		{http.MethodGet, "/api/download-zip"},
		{http.MethodGet, "/api/proxy-image"},
		{http.MethodGet, "/api/export/csv"},
		{http.MethodGet, "/api/export/xlsx"},
		{http.MethodPost, "/api/export/jobs"},
		{http.MethodGet, "/api/export/jobs/{id}"},
		{http.MethodGet, "/api/export/jobs/{id}/file"},
	}
	for _, rt := range routes {
		assert.True(t, hasRoute(r, rt.method, rt.pattern), "%s %s", rt.method, rt.pattern)
	}

	t.Run("Панель администратора закрыта без токена", func(t *testing.T) {
		for _, path := range []string{"/api/inspections", "/api/download-zip?id=x", "/api/export/csv"} {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
		}
	})

	t.Run("Ping доступен без токена", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

// Вспомогательная функция для проверки наличия маршрута.
func hasRoute(r chi.Router, method, pattern string) bool {
	found := false
	// Ошибка от chi.Walk используется только для прерывания обхода
	_ = chi.Walk(r, func(m, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if m == method && route == pattern {
			found = true
			return errors.New("found")
		}
		return nil
	})
	return found
}

func TestSetupDependencies(t *testing.T) {
	// Сохраняем оригинальные функции и восстанавливаем после тестов
	originalNewPostgresDB := newPostgresDB
	originalRunMigrations := runMigrations
	defer func() {
		newPostgresDB = originalNewPostgresDB
		runMigrations = originalRunMigrations
	}()

	mockDB := func(_ string) (*sqlx.DB, error) {
		db, _, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		return sqlx.NewDb(db, "sqlmock"), nil
	}

	baseConfig := func() *config {
		return &config{
			DatabaseDSN:      "dummy-dsn-for-mock",
			Migrate:          true,
			StorageEndpoint:  "localhost:9000",
			StorageBucket:    "inspections",
			ServiceAccessKey: "svc-access",
			ServiceSecretKey: "svc-secret",
			Timezone:         "Asia/Seoul",
			ExportTimeout:    time.Minute,
		}
	}

	t.Run("Ошибка: Некорректный DatabaseDSN", func(t *testing.T) {
		newPostgresDB = originalNewPostgresDB
		cfg := baseConfig()
		cfg.DatabaseDSN = "невалидный dsn"

		_, err := setupDependencies(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ошибка инициализации БД")
	})

	t.Run("Ошибка: Миграции не применились", func(t *testing.T) {
		newPostgresDB = mockDB
		runMigrations = func(*sqlx.DB) error { return errors.New("dirty database") }

		_, err := setupDependencies(baseConfig())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ошибка применения миграций")
	})

	t.Run("Ошибка: Неизвестный часовой пояс", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Timezone = "Mars/Olympus"

		_, err := setupDependencies(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "неизвестный часовой пояс")
	})

	t.Run("Ошибка: Некорректный endpoint хранилища", func(t *testing.T) {
		newPostgresDB = mockDB
		runMigrations = func(*sqlx.DB) error { return nil }
		cfg := baseConfig()
		cfg.StorageEndpoint = "invalid-endpoint:!!!"

		_, err := setupDependencies(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ошибка инициализации клиента MinIO")
	})

	t.Run("Успешное выполнение (без реальной проверки соединений)", func(t *testing.T) {
		newPostgresDB = mockDB
		migrated := false
		runMigrations = func(*sqlx.DB) error {
			migrated = true
			return nil
		}
		cfg := baseConfig()
		cfg.PublicAccessKey = "pub-access"
		cfg.PublicSecretKey = "pub-secret"

		deps, err := setupDependencies(cfg)
		require.NoError(t, err)
		require.NotNil(t, deps)
		defer deps.db.Close()

		assert.True(t, migrated)
		assert.NotNil(t, deps.serviceStore)
		assert.NotNil(t, deps.publicStore)
		assert.Len(t, deps.jwtSecret, jwtSecretLength, "случайный секрет, если JWT_SECRET не задан")
		assert.NotNil(t, deps.authHandler)
		assert.NotNil(t, deps.inspectionHandler)
		assert.NotNil(t, deps.exportHandler)
		assert.NotNil(t, deps.imageHandler)
		assert.NotNil(t, deps.healthHandler)
		assert.NotNil(t, deps.exportJobs)
	})

	t.Run("Без публичных ключей и без миграций", func(t *testing.T) {
		newPostgresDB = mockDB
		runMigrations = func(*sqlx.DB) error {
			t.Fatal("миграции не должны запускаться")
			return nil
		}
		cfg := baseConfig()
		cfg.Migrate = false
		cfg.JWTSecret = "fixed"

		deps, err := setupDependencies(cfg)
		require.NoError(t, err)
		defer deps.db.Close()

		assert.Nil(t, deps.publicStore)
		assert.Equal(t, []byte("fixed"), deps.jwtSecret)
	})
}
