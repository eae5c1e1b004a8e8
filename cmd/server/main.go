package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // Asia/Seoul в минимальных образах без zoneinfo

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bough38-web/inspection-app/internal/fieldcrypt"
	"github.com/bough38-web/inspection-app/internal/handlers"
	appmiddleware "github.com/bough38-web/inspection-app/internal/middleware"
	"github.com/bough38-web/inspection-app/internal/repository"
	"github.com/bough38-web/inspection-app/internal/services"
	"github.com/bough38-web/inspection-app/internal/storage"
)

const (
	defaultReadTimeout     = 60 * time.Second // загрузка трех фото с мобильной сети
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 15 * time.Second
	ensureBucketTimeout    = 10 * time.Second
	jwtSecretLength        = 32
)

// version задается при сборке через -ldflags "-X main.version=...".
var version = "dev"

// Подменяются в тестах.
var (
	newPostgresDB = repository.NewPostgresDB
	runMigrations = repository.Migrate
)

// Структура для хранения инициализированных зависимостей.
type dependencies struct {
	db           *sqlx.DB
	serviceStore *storage.MinioClient // повышенные права: запись и удаление
	publicStore  *storage.MinioClient // только чтение для прокси изображений
	exportJobs   *services.ExportJobs
	jwtSecret    []byte

	authHandler       *handlers.AuthHandler
	inspectionHandler *handlers.InspectionHandler
	exportHandler     *handlers.ExportHandler
	imageHandler      *handlers.ImageHandler
	healthHandler     *handlers.HealthHandler
}

// main - точка входа. Вызывает run и обрабатывает ошибку.
func main() {
	if err := run(); err != nil {
		log.Printf("Ошибка выполнения сервера: %v", err)
		os.Exit(1)
	}
}

// run содержит основную логику запуска сервера и возвращает ошибку.
func run() error {
	log.Printf("Запуск сервера приема осмотров (версия %s)...", version)

	cfg, err := parseFlags()
	if err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}

	deps, err := setupDependencies(cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации зависимостей: %w", err)
	}
	// Отложенное закрытие соединения с БД
	defer func() {
		if closeErr := deps.db.Close(); closeErr != nil {
			log.Printf("Ошибка закрытия соединения с БД: %v", closeErr)
		}
	}()

	// Отсутствие бакета не мешает старту: health-check покажет missing_bucket
	bucketCtx, cancelBucket := context.WithTimeout(context.Background(), ensureBucketTimeout)
	if err = deps.serviceStore.EnsureBucket(bucketCtx); err != nil {
		log.Printf("Предупреждение: бакет хранилища недоступен: %v", err)
	}
	cancelBucket()

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     setupRouter(deps),
		ReadTimeout: defaultReadTimeout,
		// Синхронная выгрузка Excel может идти до export-timeout
		WriteTimeout: cfg.ExportTimeout + defaultShutdownTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if cfg.TLSEnabled() {
			log.Printf("Запуск HTTPS-сервера на порту %s (сертификат: %s)...", cfg.Port, cfg.CertFile)
			serveErr <- server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
			return
		}
		log.Printf("Запуск HTTP-сервера на порту %s...", cfg.Port)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ошибка запуска сервера: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Получен сигнал остановки, завершаем обработку запросов...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки сервера: %w", err)
	}
	deps.exportJobs.Wait()
	log.Println("Сервер остановлен.")
	return nil
}

// setupDependencies инициализирует и возвращает все необходимые зависимости сервера.
func setupDependencies(cfg *config) (*dependencies, error) {
	deps := &dependencies{}
	var err error

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("неизвестный часовой пояс '%s': %w", cfg.Timezone, err)
	}

	// 1. Подключение к БД и миграции
	deps.db, err = newPostgresDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации БД: %w", err)
	}
	log.Println("Соединение с БД успешно установлено.")
	closeDB := func() {
		if dbCloseErr := deps.db.Close(); dbCloseErr != nil {
			log.Printf("Ошибка закрытия соединения с БД: %v", dbCloseErr)
		}
	}

	if cfg.Migrate {
		if err = runMigrations(deps.db); err != nil {
			closeDB()
			return nil, fmt.Errorf("ошибка применения миграций: %w", err)
		}
	}

	// 2. Клиенты хранилища: служебный и публичный
	deps.serviceStore, err = storage.NewMinioClient(storage.MinioConfig{
		Endpoint:        cfg.StorageEndpoint,
		AccessKeyID:     cfg.ServiceAccessKey,
		SecretAccessKey: cfg.ServiceSecretKey,
		UseSSL:          cfg.StorageUseSSL,
		BucketName:      cfg.StorageBucket,
	})
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
	}

	var publicProber services.Prober
	imageStore := deps.serviceStore
	if cfg.PublicAccessKey != "" && cfg.PublicSecretKey != "" {
		deps.publicStore, err = storage.NewMinioClient(storage.MinioConfig{
			Endpoint:        cfg.StorageEndpoint,
			AccessKeyID:     cfg.PublicAccessKey,
			SecretAccessKey: cfg.PublicSecretKey,
			UseSSL:          cfg.StorageUseSSL,
			BucketName:      cfg.StorageBucket,
		})
		if err != nil {
			closeDB()
			return nil, fmt.Errorf("ошибка инициализации публичного клиента MinIO: %w", err)
		}
		publicProber = deps.publicStore
		imageStore = deps.publicStore
	} else {
		log.Println("Публичные ключи хранилища не заданы, изображения отдаются служебным клиентом.")
	}

	// 3. Шифрование и секрет токенов
	encryptionKey := cfg.EncryptionKey
	if encryptionKey == "" {
		log.Printf("%s не задан, для шифрования используется секрет хранилища.", envEncryptionKey)
		encryptionKey = cfg.ServiceSecretKey
	}
	cipher, err := fieldcrypt.New(encryptionKey)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("ошибка инициализации шифрования: %w", err)
	}

	deps.jwtSecret = []byte(cfg.JWTSecret)
	if len(deps.jwtSecret) == 0 {
		log.Printf("%s не задан, токены действуют до перезапуска процесса.", envJWTSecret)
		deps.jwtSecret = make([]byte, jwtSecretLength)
		if _, err = rand.Read(deps.jwtSecret); err != nil {
			closeDB()
			return nil, fmt.Errorf("ошибка генерации секрета токенов: %w", err)
		}
	}

	// 4. Репозиторий и сервисы
	inspectionRepo := repository.NewPostgresInspectionRepository(deps.db)

	inspectionService := services.NewInspectionService(inspectionRepo, deps.serviceStore, cipher,
		services.WithLocation(loc))
	exportService := services.NewExportService(inspectionService, inspectionRepo, deps.serviceStore, cipher,
		loc, cfg.ExportTimeout)
	deps.exportJobs = services.NewExportJobs(exportService, cfg.ExportTimeout)

	authService, err := services.NewAuthService(cfg.AdminID, cfg.AdminPassword, deps.jwtSecret)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("ошибка инициализации входа администратора: %w", err)
	}

	healthService := services.NewHealthService(services.HealthConfig{
		Version:          version,
		DatabaseDSN:      cfg.DatabaseDSN,
		StorageEndpoint:  cfg.StorageEndpoint,
		StorageBucket:    cfg.StorageBucket,
		ServiceAccessKey: cfg.ServiceAccessKey,
		ServiceSecretKey: cfg.ServiceSecretKey,
		PublicAccessKey:  cfg.PublicAccessKey,
		PublicSecretKey:  cfg.PublicSecretKey,
		EncryptionKey:    cfg.EncryptionKey,
		AdminPassword:    cfg.AdminPassword,
	}, deps.db, deps.serviceStore, publicProber)

	// 5. Создание обработчиков
	deps.authHandler = handlers.NewAuthHandler(authService)
	deps.inspectionHandler = handlers.NewInspectionHandler(inspectionService, loc)
	deps.exportHandler = handlers.NewExportHandler(exportService, deps.exportJobs, loc)
	deps.imageHandler = handlers.NewImageHandler(imageStore)
	deps.healthHandler = handlers.NewHealthHandler(healthService)

	return deps, nil
}

// setupRouter настраивает и возвращает роутер chi.
func setupRouter(deps *dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appmiddleware.Metrics)

	// --- Маршруты --- //
	r.Get("/ping", handlers.Ping)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Определяем базовый маршрут /api
	r.Route("/api", func(r chi.Router) {
		// Публичные маршруты: прием формы, диагностика, вход
		r.Post("/submit", deps.inspectionHandler.Submit)
		r.Get("/health-check", deps.healthHandler.Check)
		r.Post("/admin/login", deps.authHandler.Login)
		r.Post("/admin/logout", deps.authHandler.Logout)

		// Панель администратора (требует аутентификации)
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Authenticator(deps.jwtSecret))

			r.Route("/inspections", func(r chi.Router) {
				r.Get("/", deps.inspectionHandler.List)
				r.Get("/stats", deps.inspectionHandler.Stats)
				r.Post("/delete", deps.inspectionHandler.Delete)
			})
			r.Get("/download-zip", deps.exportHandler.DownloadZip)
			r.Get("/proxy-image", deps.imageHandler.Proxy)

			r.Route("/export", func(r chi.Router) {
				r.Get("/csv", deps.exportHandler.CSV)
				r.Get("/xlsx", deps.exportHandler.XLSX)
				r.Post("/jobs", deps.exportHandler.StartJob)
				r.Get("/jobs/{id}", deps.exportHandler.JobStatus)
				r.Get("/jobs/{id}/file", deps.exportHandler.JobFile)
			})
		})
	})
	return r
}
