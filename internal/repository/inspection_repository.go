package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bough38-web/inspection-app/internal/models"
)

// Коды ошибок PostgreSQL.
const (
	pgUniqueViolationCode = "23505"
	pgInvalidTextReprCode = "22P02" // например, строка не является UUID
)

const (
	inspectionColumns = `id, created_at, branch, name, contract_no, business_name, ` +
		`activity_type, status, photo_count, folder_path`
	inspectionSelectFromTable = `SELECT ` + inspectionColumns + ` FROM inspections`
)

// InspectionRepository определяет методы для работы с записями осмотров.
type InspectionRepository interface {
	// Create вставляет запись и заполняет ID и CreatedAt, назначенные БД.
	Create(ctx context.Context, inspection *models.Inspection) error
	// List возвращает записи по фильтру, новые первыми.
	List(ctx context.Context, filter models.InspectionFilter) ([]models.Inspection, error)
	GetByID(ctx context.Context, id string) (*models.Inspection, error)
	// UpdateUploadResult фиксирует итог загрузки фотографий.
	UpdateUploadResult(ctx context.Context, id string, status string, photoCount int) error
	DeleteByID(ctx context.Context, id string) error
	// BranchStats возвращает количество записей по филиалам, по убыванию.
	BranchStats(ctx context.Context) ([]models.BranchStat, error)
}

// postgresInspectionRepository реализует InspectionRepository для PostgreSQL.
type postgresInspectionRepository struct {
	db *sqlx.DB
}

// NewPostgresInspectionRepository создает новый экземпляр репозитория осмотров для PostgreSQL.
func NewPostgresInspectionRepository(db *sqlx.DB) InspectionRepository {
	return &postgresInspectionRepository{db: db}
}

// Create создает новую запись осмотра.
func (r *postgresInspectionRepository) Create(ctx context.Context, inspection *models.Inspection) error {
	query := `INSERT INTO inspections (branch, name, contract_no, business_name, activity_type, status, photo_count, folder_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		inspection.Branch,
		inspection.Name,
		inspection.ContractNo,
		inspection.BusinessName,
		inspection.ActivityType,
		inspection.Status,
		inspection.PhotoCount,
		inspection.FolderPath,
	).Scan(&inspection.ID, &inspection.CreatedAt)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Printf("[Repo] Папка '%s' уже занята другой записью", inspection.FolderPath)
			return ErrFolderPathTaken
		}
		log.Printf("[Repo] Ошибка при создании записи осмотра (филиал '%s'): %v", inspection.Branch, err)
		return fmt.Errorf("ошибка выполнения запроса на создание записи: %w", err)
	}

	log.Printf("[Repo] Запись осмотра создана с ID %s", inspection.ID)
	return nil
}

// List возвращает записи, удовлетворяющие фильтру.
func (r *postgresInspectionRepository) List(
	ctx context.Context,
	filter models.InspectionFilter,
) ([]models.Inspection, error) {
	query, args := buildListQuery(filter)

	inspections := []models.Inspection{}
	if err := r.db.SelectContext(ctx, &inspections, query, args...); err != nil {
		log.Printf("[Repo] Ошибка при получении списка осмотров: %v", err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение списка записей: %w", err)
	}

	log.Printf("[Repo] Найдено записей осмотров: %d", len(inspections))
	return inspections, nil
}

// buildListQuery собирает SELECT с условиями только для заполненных полей фильтра.
func buildListQuery(filter models.InspectionFilter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}

	if filter.Branch != "" {
		add("branch = ?", filter.Branch)
	}
	if filter.From != nil {
		add("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		add("created_at < ?", *filter.To)
	}
	if len(filter.IDs) > 0 {
		add("id = ANY(?::uuid[])", pq.Array(filter.IDs))
	}

	query := inspectionSelectFromTable
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	return query + " ORDER BY created_at DESC", args
}

// GetByID находит запись по идентификатору.
func (r *postgresInspectionRepository) GetByID(ctx context.Context, id string) (*models.Inspection, error) {
	query := inspectionSelectFromTable + ` WHERE id = $1`
	var inspection models.Inspection

	err := r.db.GetContext(ctx, &inspection, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			log.Printf("[Repo] Запись осмотра %s не найдена", id)
			return nil, ErrInspectionNotFound
		}
		log.Printf("[Repo] Ошибка при поиске записи осмотра %s: %v", id, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение записи: %w", err)
	}

	return &inspection, nil
}

// UpdateUploadResult обновляет статус и фактическое количество фотографий.
func (r *postgresInspectionRepository) UpdateUploadResult(
	ctx context.Context,
	id string,
	status string,
	photoCount int,
) error {
	query := `UPDATE inspections SET status = $1, photo_count = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, status, photoCount, id)
	if err != nil {
		log.Printf("[Repo] Ошибка обновления статуса записи %s: %v", id, err)
		return fmt.Errorf("ошибка выполнения запроса на обновление записи: %w", err)
	}
	if err = checkAffected(result); err != nil {
		log.Printf("[Repo] Запись %s для обновления статуса не найдена", id)
		return err
	}

	log.Printf("[Repo] Запись %s: статус '%s', фото: %d", id, status, photoCount)
	return nil
}

// DeleteByID удаляет запись по идентификатору.
func (r *postgresInspectionRepository) DeleteByID(ctx context.Context, id string) error {
	query := `DELETE FROM inspections WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if isInvalidText(err) {
			return ErrInspectionNotFound
		}
		log.Printf("[Repo] Ошибка удаления записи %s: %v", id, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление записи: %w", err)
	}
	if err = checkAffected(result); err != nil {
		return err
	}

	log.Printf("[Repo] Запись осмотра %s удалена", id)
	return nil
}

// BranchStats считает записи по филиалам.
func (r *postgresInspectionRepository) BranchStats(ctx context.Context) ([]models.BranchStat, error) {
	query := `SELECT branch, COUNT(*) AS count FROM inspections GROUP BY branch ORDER BY count DESC, branch`

	stats := []models.BranchStat{}
	if err := r.db.SelectContext(ctx, &stats, query); err != nil {
		log.Printf("[Repo] Ошибка при подсчете статистики по филиалам: %v", err)
		return nil, fmt.Errorf("ошибка выполнения запроса статистики: %w", err)
	}
	return stats, nil
}

func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	if rows == 0 {
		return ErrInspectionNotFound
	}
	return nil
}

func isInvalidText(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextReprCode
}

// Кастомные ошибки репозитория.
var (
	ErrInspectionNotFound = errors.New("запись осмотра не найдена")
	ErrFolderPathTaken    = errors.New("папка уже используется другой записью")
)
