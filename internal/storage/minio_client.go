package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectInfo - краткие сведения об объекте в хранилище.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// FileStorage определяет интерфейс для взаимодействия с объектным хранилищем.
type FileStorage interface {
	UploadFile(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	DownloadFile(ctx context.Context, objectKey string) (io.ReadCloser, error)
	// ListFiles возвращает объекты с ключами, начинающимися с prefix, отсортированные по ключу.
	ListFiles(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// DeleteFiles удаляет объекты по точным ключам. Возвращает ошибку,
	// если не удалось удалить хотя бы один объект.
	DeleteFiles(ctx context.Context, objectKeys []string) error
}

// MinioClient реализует FileStorage для MinIO / любого S3-совместимого хранилища.
type MinioClient struct {
	client     *minio.Client
	bucketName string
}

// MinioConfig содержит параметры для подключения к MinIO.
type MinioConfig struct {
	Endpoint        string // Адрес хранилища (например, "localhost:9000")
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string // Имя бакета для фотографий
	Region          string // Регион (не обязательно для MinIO)
}

// NewMinioClient создает новый клиент MinIO.
// Сетевых запросов не выполняет: проверка бакета - в EnsureBucket.
func NewMinioClient(cfg MinioConfig) (*MinioClient, error) {
	log.Printf("Инициализация клиента MinIO для эндпоинта %s...", cfg.Endpoint)

	if cfg.BucketName == "" {
		return nil, errors.New("не указано имя бакета")
	}

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
	}

	return &MinioClient{
		client:     minioClient,
		bucketName: cfg.BucketName,
	}, nil
}

// EnsureBucket проверяет существование бакета и создает его при необходимости.
func (c *MinioClient) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucketName)
	if err != nil {
		return fmt.Errorf("ошибка проверки существования бакета '%s': %w", c.bucketName, err)
	}
	if exists {
		log.Printf("Бакет '%s' уже существует.", c.bucketName)
		return nil
	}

	log.Printf("Бакет '%s' не найден, попытка создания...", c.bucketName)
	if err = c.client.MakeBucket(ctx, c.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("ошибка создания бакета '%s': %w", c.bucketName, err)
	}
	log.Printf("Бакет '%s' успешно создан.", c.bucketName)
	return nil
}

// Probe проверяет доступность бакета текущими учетными данными.
// Используется диагностикой; ошибку классифицирует Classify.
func (c *MinioClient) Probe(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		return ErrBucketNotFound
	}
	return nil
}

// UploadFile загружает файл, перезаписывая существующий объект с тем же ключом.
func (c *MinioClient) UploadFile(
	ctx context.Context,
	objectKey string,
	reader io.Reader,
	size int64,
	contentType string,
) error {
	log.Printf("[Minio] Загрузка файла '%s' в бакет '%s'...", objectKey, c.bucketName)

	opts := minio.PutObjectOptions{
		ContentType: contentType,
	}

	uploadInfo, err := c.client.PutObject(ctx, c.bucketName, objectKey, reader, size, opts)
	if err != nil {
		log.Printf("[Minio] Ошибка загрузки файла '%s': %v", objectKey, err)
		return fmt.Errorf("ошибка загрузки файла в MinIO: %w", err)
	}

	log.Printf("[Minio] Файл '%s' успешно загружен, размер: %d, ETag: %s", objectKey, uploadInfo.Size, uploadInfo.ETag)
	return nil
}

// DownloadFile скачивает файл из MinIO.
// Возвращает io.ReadCloser, который нужно закрыть после использования.
func (c *MinioClient) DownloadFile(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	log.Printf("[Minio] Скачивание файла '%s' из бакета '%s'...", objectKey, c.bucketName)

	object, err := c.client.GetObject(ctx, c.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, c.downloadError(objectKey, err)
	}

	// GetObject ленивый: отсутствие объекта обнаруживается только на Stat/Read
	if _, err = object.Stat(); err != nil {
		_ = object.Close()
		return nil, c.downloadError(objectKey, err)
	}

	return object, nil
}

func (c *MinioClient) downloadError(objectKey string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		log.Printf("[Minio] Файл '%s' не найден в бакете '%s'", objectKey, c.bucketName)
		return ErrObjectNotFound
	}
	log.Printf("[Minio] Ошибка получения файла '%s': %v", objectKey, err)
	return fmt.Errorf("ошибка получения файла из MinIO: %w", err)
}

// ListFiles возвращает все объекты под префиксом (рекурсивно).
func (c *MinioClient) ListFiles(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}

	var objects []ObjectInfo
	for obj := range c.client.ListObjects(ctx, c.bucketName, opts) {
		if obj.Err != nil {
			log.Printf("[Minio] Ошибка получения списка объектов '%s': %v", prefix, obj.Err)
			return nil, fmt.Errorf("ошибка получения списка объектов из MinIO: %w", obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue // маркеры "папок"
		}
		objects = append(objects, ObjectInfo{Key: obj.Key, Size: obj.Size, ContentType: obj.ContentType})
	}

	log.Printf("[Minio] Под префиксом '%s' найдено объектов: %d", prefix, len(objects))
	return objects, nil
}

// DeleteFiles удаляет объекты пакетно.
func (c *MinioClient) DeleteFiles(ctx context.Context, objectKeys []string) error {
	if len(objectKeys) == 0 {
		return nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(objectKeys))
	for _, key := range objectKeys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	var errs []error
	for rErr := range c.client.RemoveObjects(ctx, c.bucketName, objectsCh, minio.RemoveObjectsOptions{}) {
		log.Printf("[Minio] Ошибка удаления объекта '%s': %v", rErr.ObjectName, rErr.Err)
		errs = append(errs, fmt.Errorf("%s: %w", rErr.ObjectName, rErr.Err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrDeleteFailed, errors.Join(errs...))
	}

	log.Printf("[Minio] Удалено объектов: %d", len(objectKeys))
	return nil
}

// Кастомные ошибки хранилища.
var (
	ErrObjectNotFound = errors.New("объект не найден в хранилище")
	ErrBucketNotFound = errors.New("бакет не найден")
	ErrDeleteFailed   = errors.New("не удалось удалить часть объектов")
)
