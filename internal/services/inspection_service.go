package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bough38-web/inspection-app/internal/checklist"
	"github.com/bough38-web/inspection-app/internal/fieldcrypt"
	"github.com/bough38-web/inspection-app/internal/models"
	"github.com/bough38-web/inspection-app/internal/photo"
	"github.com/bough38-web/inspection-app/internal/repository"
	"github.com/bough38-web/inspection-app/internal/storage"
)

const (
	// MaxPhotos - максимальное количество фотографий в одной записи.
	MaxPhotos     = 3
	uploadRetries = 3
	folderDateFmt = "2006-01-02"
)

var contractNoRe = regexp.MustCompile(`^[0-9]{8}$`)

// FieldCipher шифрует чувствительное поле записи. Реализуется *fieldcrypt.Cipher.
type FieldCipher interface {
	Encrypt(plain string) fieldcrypt.Result
	Decrypt(stored string) fieldcrypt.Result
}

// Photo - одна фотография из формы в исходном виде.
type Photo struct {
	Filename string
	Data     []byte
}

// SubmitRequest - данные формы осмотра.
type SubmitRequest struct {
	Branch       string
	Name         string
	ContractNo   string
	BusinessName string
	Checklist    checklist.Checklist
	Photos       []Photo
}

// DeleteOutcome - итог удаления одной записи.
type DeleteOutcome string

const (
	DeleteDeleted  DeleteOutcome = "deleted"
	DeleteNotFound DeleteOutcome = "not_found"
	DeleteFailed   DeleteOutcome = "failed" // файлы не удалены, запись сохранена
)

// DeleteItemResult - результат по одному идентификатору.
type DeleteItemResult struct {
	ID     string        `json:"id"`
	Result DeleteOutcome `json:"result"`
}

// DeleteResult - результат пакетного удаления.
type DeleteResult struct {
	Deleted int                `json:"deleted"` // только полностью удаленные записи
	Results []DeleteItemResult `json:"results"`
}

// InspectionService определяет интерфейс приема и просмотра записей осмотра.
type InspectionService interface {
	Submit(ctx context.Context, req SubmitRequest) (*models.Inspection, error)
	List(ctx context.Context, filter models.InspectionFilter) ([]models.Inspection, error)
	BranchStats(ctx context.Context) ([]models.BranchStat, error)
	Delete(ctx context.Context, ids []string) (*DeleteResult, error)
}

var _ InspectionService = (*inspectionService)(nil) // Проверка соответствия интерфейсу

type inspectionService struct {
	repo       repository.InspectionRepository
	storage    storage.FileStorage
	cipher     FieldCipher
	now        func() time.Time
	location   *time.Location
	newBackOff func() backoff.BackOff
}

// InspectionOption настраивает inspectionService.
type InspectionOption func(*inspectionService)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) InspectionOption {
	return func(s *inspectionService) { s.now = now }
}

// WithLocation задает часовой пояс для даты папки.
func WithLocation(loc *time.Location) InspectionOption {
	return func(s *inspectionService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithBackOff задает стратегию паузы между повторами загрузки.
func WithBackOff(newBackOff func() backoff.BackOff) InspectionOption {
	return func(s *inspectionService) { s.newBackOff = newBackOff }
}

// NewInspectionService создает новый экземпляр сервиса записей осмотра.
func NewInspectionService(
	repo repository.InspectionRepository,
	fileStorage storage.FileStorage,
	cipher FieldCipher,
	opts ...InspectionOption,
) InspectionService {
	s := &inspectionService{
		repo:     repo,
		storage:  fileStorage,
		cipher:   cipher,
		now:      time.Now,
		location: time.UTC,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit проверяет форму, сохраняет запись и загружает фотографии.
func (s *inspectionService) Submit(ctx context.Context, req SubmitRequest) (*models.Inspection, error) {
	activity, photos, err := s.validate(&req)
	if err != nil {
		log.Printf("[InspectionService:Submit] Форма отклонена: %v", err)
		return nil, err
	}

	encrypted := s.cipher.Encrypt(req.BusinessName)
	if encrypted.Status != fieldcrypt.StatusOK {
		log.Printf("[InspectionService:Submit] Ошибка шифрования названия: %v", encrypted.Err)
		return nil, errors.New("внутренняя ошибка сервера при шифровании данных")
	}

	inspection := &models.Inspection{
		Branch:       req.Branch,
		Name:         req.Name,
		ContractNo:   req.ContractNo,
		BusinessName: encrypted.Value,
		ActivityType: activity,
		Status:       models.StatusSubmitted,
		PhotoCount:   len(photos),
		FolderPath:   s.folderPath(),
	}
	if err = s.repo.Create(ctx, inspection); err != nil {
		log.Printf("[InspectionService:Submit] Ошибка репозитория при создании записи: %v", err)
		return nil, errors.New("внутренняя ошибка сервера при сохранении записи")
	}
	inspectionsSubmitted.Inc()

	// Вызывающему отдается копия с открытым названием, переданная в репозиторий структура не меняется
	result := *inspection
	result.BusinessName = req.BusinessName

	// Запись уже создана: загрузку и итоговый статус доводим до конца даже при отключении клиента
	ctx = context.WithoutCancel(ctx)
	stored := s.uploadPhotos(ctx, result.FolderPath, photos)

	status := models.StatusComplete
	if stored < len(photos) {
		status = models.StatusIncomplete
		log.Printf("[InspectionService:Submit] Запись %s: сохранено фото %d из %d",
			result.ID, stored, len(photos))
	}
	if err = s.repo.UpdateUploadResult(ctx, result.ID, status, stored); err != nil {
		// Запись уже создана, статус останется submitted
		log.Printf("[InspectionService:Submit] Не удалось зафиксировать итог загрузки %s: %v", result.ID, err)
		return &result, nil
	}
	result.Status = status
	result.PhotoCount = stored

	log.Printf("[InspectionService:Submit] Запись %s принята (филиал %s, фото %d)",
		result.ID, result.Branch, stored)
	return &result, nil
}

// validate нормализует поля формы и возвращает закодированный чек-лист и готовые к загрузке фото.
func (s *inspectionService) validate(req *SubmitRequest) (string, [][]byte, error) {
	req.Branch = strings.TrimSpace(req.Branch)
	req.Name = strings.TrimSpace(req.Name)
	req.ContractNo = strings.TrimSpace(req.ContractNo)
	req.BusinessName = strings.TrimSpace(req.BusinessName)

	if !models.IsValidBranch(req.Branch) {
		return "", nil, ErrBranchRequired
	}
	if req.Name == "" {
		return "", nil, ErrNameRequired
	}
	if req.ContractNo != "" && !contractNoRe.MatchString(req.ContractNo) {
		return "", nil, ErrContractNoFormat
	}
	if req.BusinessName == "" {
		return "", nil, ErrBusinessNameRequired
	}

	activity, err := checklist.Encode(req.Checklist)
	if err != nil {
		if errors.Is(err, checklist.ErrEmpty) {
			return "", nil, ErrChecklistEmpty
		}
		if errors.Is(err, checklist.ErrNoteNoStatus) {
			return "", nil, ErrChecklistNote
		}
		return "", nil, &ValidationError{Field: "activity_type", Message: err.Error()}
	}

	if len(req.Photos) > MaxPhotos {
		return "", nil, ErrTooManyPhotos
	}
	photos := make([][]byte, 0, len(req.Photos))
	for _, p := range req.Photos {
		data, nErr := photo.Normalize(bytes.NewReader(p.Data))
		if nErr != nil {
			log.Printf("[InspectionService:Submit] Не удалось обработать фото '%s': %v", p.Filename, nErr)
			return "", nil, ErrPhotoFormat
		}
		photos = append(photos, data)
	}

	return activity, photos, nil
}

// folderPath строит путь вида YYYY-MM-DD/<32 hex>, не зависящий от введенных данных.
func (s *inspectionService) folderPath() string {
	date := s.now().In(s.location).Format(folderDateFmt)
	return date + "/" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// uploadPhotos загружает фото параллельно и возвращает количество сохраненных.
func (s *inspectionService) uploadPhotos(ctx context.Context, folder string, photos [][]byte) int {
	uploaded := make([]bool, len(photos))

	var g errgroup.Group
	for i, data := range photos {
		g.Go(func() error {
			key := fmt.Sprintf("%s/%d%s", folder, i+1, photo.Extension)
			op := func() error {
				return s.storage.UploadFile(ctx, key, bytes.NewReader(data), int64(len(data)), photo.ContentType)
			}
			b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uploadRetries), ctx)
			if err := backoff.Retry(op, b); err != nil {
				photoUploadFailures.Inc()
				log.Printf("[InspectionService:Submit] Фото '%s' не загружено после повторов: %v", key, err)
				return nil
			}
			uploaded[i] = true
			return nil
		})
	}
	_ = g.Wait()

	stored := 0
	for _, ok := range uploaded {
		if ok {
			stored++
		}
	}
	return stored
}

// List возвращает записи по фильтру с расшифрованным названием.
func (s *inspectionService) List(ctx context.Context, filter models.InspectionFilter) ([]models.Inspection, error) {
	if len(filter.IDs) > 0 {
		filter.IDs = validIDs(filter.IDs)
		if len(filter.IDs) == 0 {
			return []models.Inspection{}, nil
		}
	}

	inspections, err := s.repo.List(ctx, filter)
	if err != nil {
		log.Printf("[InspectionService:List] Ошибка репозитория: %v", err)
		return nil, errors.New("внутренняя ошибка сервера при получении записей")
	}

	for i := range inspections {
		inspections[i].BusinessName = decryptField(s.cipher, inspections[i].ID, inspections[i].BusinessName)
	}
	return inspections, nil
}

// decryptField расшифровывает значение, при ошибке оставляя его как есть.
func decryptField(c FieldCipher, id, stored string) string {
	res := c.Decrypt(stored)
	if res.Status == fieldcrypt.StatusFailed {
		decryptFallbacks.Inc()
		log.Printf("[InspectionService] Не удалось расшифровать поле записи %s: %v", id, res.Err)
	}
	return res.Value
}

// validIDs отбрасывает идентификаторы, не являющиеся UUID.
func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(strings.TrimSpace(id)); err == nil {
			valid = append(valid, strings.TrimSpace(id))
		}
	}
	return valid
}

// BranchStats возвращает количество записей по филиалам.
func (s *inspectionService) BranchStats(ctx context.Context) ([]models.BranchStat, error) {
	stats, err := s.repo.BranchStats(ctx)
	if err != nil {
		log.Printf("[InspectionService:BranchStats] Ошибка репозитория: %v", err)
		return nil, errors.New("внутренняя ошибка сервера при подсчете статистики")
	}
	return stats, nil
}

// Delete удаляет записи вместе с файлами. Запись удаляется только после
// успешного удаления всех ее файлов.
func (s *inspectionService) Delete(ctx context.Context, ids []string) (*DeleteResult, error) {
	if len(ids) == 0 {
		return nil, ErrNothingToDelete
	}

	result := &DeleteResult{Results: make([]DeleteItemResult, 0, len(ids))}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		outcome := s.deleteOne(ctx, id)
		if outcome == DeleteDeleted {
			result.Deleted++
		}
		result.Results = append(result.Results, DeleteItemResult{ID: id, Result: outcome})
	}

	log.Printf("[InspectionService:Delete] Удалено записей: %d из %d", result.Deleted, len(result.Results))
	return result, nil
}

func (s *inspectionService) deleteOne(ctx context.Context, id string) DeleteOutcome {
	if _, err := uuid.Parse(id); err != nil {
		return DeleteNotFound
	}

	inspection, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrInspectionNotFound) {
			return DeleteNotFound
		}
		log.Printf("[InspectionService:Delete] Ошибка получения записи %s: %v", id, err)
		return DeleteFailed
	}

	if inspection.FolderPath != "" {
		files, lErr := s.storage.ListFiles(ctx, inspection.FolderPath+"/")
		if lErr != nil {
			log.Printf("[InspectionService:Delete] Ошибка списка файлов %s: %v", inspection.FolderPath, lErr)
			return DeleteFailed
		}
		keys := make([]string, 0, len(files))
		for _, f := range files {
			keys = append(keys, f.Key)
		}
		if dErr := s.storage.DeleteFiles(ctx, keys); dErr != nil {
			log.Printf("[InspectionService:Delete] Файлы записи %s удалены не полностью: %v", id, dErr)
			return DeleteFailed
		}
	}

	if err = s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrInspectionNotFound) {
			return DeleteNotFound
		}
		log.Printf("[InspectionService:Delete] Ошибка удаления записи %s: %v", id, err)
		return DeleteFailed
	}
	return DeleteDeleted
}
