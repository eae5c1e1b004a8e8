package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bough38-web/inspection-app/internal/checklist"
	"github.com/bough38-web/inspection-app/internal/models"
	"github.com/bough38-web/inspection-app/internal/photo"
	"github.com/bough38-web/inspection-app/internal/repository"
	"github.com/bough38-web/inspection-app/internal/storage"
)

const (
	imageWorkers   = 4 // параллельных загрузок миниатюр при выгрузке XLSX
	sheetName      = "점검내역"
	photoRowHeight = 90 // высота строки с фото, в пунктах
	photoColWidth  = 22
	exportDateFmt  = "2006-01-02 15:04"
	utf8BOM        = "\ufeff"
)

// ProgressFunc получает количество записанных строк и их общее число.
type ProgressFunc func(done, total int)

// Archive - готовый ZIP-архив одной записи.
type Archive struct {
	Filename string
	Data     []byte
}

// ExportService определяет выгрузку записей в файлы.
type ExportService interface {
	// BuildArchive собирает все файлы записи в ZIP.
	BuildArchive(ctx context.Context, id string) (*Archive, error)
	WriteCSV(ctx context.Context, filter models.InspectionFilter, w io.Writer) error
	WriteSpreadsheet(ctx context.Context, filter models.InspectionFilter, w io.Writer, progress ProgressFunc) error
}

var _ ExportService = (*exportService)(nil)

type exportService struct {
	inspections InspectionService
	repo        repository.InspectionRepository
	storage     storage.FileStorage
	cipher      FieldCipher
	location    *time.Location
	timeout     time.Duration
}

// NewExportService создает сервис выгрузки. Список записей берется через
// inspections, чтобы фильтрация и расшифровка совпадали с просмотром.
func NewExportService(
	inspections InspectionService,
	repo repository.InspectionRepository,
	fileStorage storage.FileStorage,
	cipher FieldCipher,
	location *time.Location,
	timeout time.Duration,
) ExportService {
	if location == nil {
		location = time.UTC
	}
	return &exportService{
		inspections: inspections,
		repo:        repo,
		storage:     fileStorage,
		cipher:      cipher,
		location:    location,
		timeout:     timeout,
	}
}

// BuildArchive собирает ZIP из всех файлов под папкой записи.
func (s *exportService) BuildArchive(ctx context.Context, id string) (*Archive, error) {
	inspection, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrInspectionNotFound) {
			return nil, ErrNotFound
		}
		log.Printf("[ExportService:Archive] Ошибка получения записи %s: %v", id, err)
		return nil, errors.New("внутренняя ошибка сервера при получении записи")
	}
	if inspection.FolderPath == "" {
		return nil, ErrNotFound
	}

	files, err := s.storage.ListFiles(ctx, inspection.FolderPath+"/")
	if err != nil {
		log.Printf("[ExportService:Archive] Ошибка списка файлов %s: %v", inspection.FolderPath, err)
		return nil, errors.New("внутренняя ошибка сервера при получении файлов")
	}
	if len(files) == 0 {
		log.Printf("[ExportService:Archive] У записи %s нет файлов", id)
		return nil, ErrNoFiles
	}

	businessName := decryptField(s.cipher, inspection.ID, inspection.BusinessName)
	folder := archiveFolder(businessName, inspection.ContractNo)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		if err = s.addToArchive(ctx, zw, folder+"/"+path.Base(f.Key), f.Key); err != nil {
			_ = zw.Close()
			log.Printf("[ExportService:Archive] Ошибка добавления '%s': %v", f.Key, err)
			return nil, errors.New("внутренняя ошибка сервера при сборке архива")
		}
	}
	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("ошибка завершения архива: %w", err)
	}

	log.Printf("[ExportService:Archive] Архив записи %s: файлов %d, %d байт", id, len(files), buf.Len())
	return &Archive{Filename: folder + ".zip", Data: buf.Bytes()}, nil
}

func (s *exportService) addToArchive(ctx context.Context, zw *zip.Writer, name, key string) error {
	rc, err := s.storage.DownloadFile(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	entry, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, rc)
	return err
}

// archiveFolder строит безопасное имя папки из названия и номера договора.
func archiveFolder(businessName, contractNo string) string {
	name := businessName
	if contractNo != "" {
		name += "_" + contractNo
	}
	return sanitizeFilename(name)
}

// sanitizeFilename заменяет запрещенные в именах файлов символы и пробелы на '_'.
func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`\/:*?"<>|`, r), r < 0x20, r == 0x7f:
			return '_'
		case r == ' ', r == '\t', r == '\u3000':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, ".")
	if name == "" {
		return "inspection"
	}
	return name
}

// WriteCSV пишет записи в CSV с BOM для корректного открытия в Excel.
func (s *exportService) WriteCSV(ctx context.Context, filter models.InspectionFilter, w io.Writer) error {
	inspections, err := s.inspections.List(ctx, filter)
	if err != nil {
		return err
	}

	if _, err = io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("ошибка записи CSV: %w", err)
	}
	cw := csv.NewWriter(w)
	if err = cw.Write([]string{"ID", "날짜", "지사", "담당자", "계약번호", "상호명", "활동내역", "사진수"}); err != nil {
		return fmt.Errorf("ошибка записи CSV: %w", err)
	}
	for _, in := range inspections {
		contractNo := in.ContractNo
		if contractNo != "" {
			contractNo = "'" + contractNo // сохраняем ведущие нули
		}
		err = cw.Write([]string{
			in.ID,
			in.CreatedAt.In(s.location).Format(exportDateFmt),
			in.Branch,
			in.Name,
			contractNo,
			in.BusinessName,
			in.ActivityType,
			strconv.Itoa(in.PhotoCount),
		})
		if err != nil {
			return fmt.Errorf("ошибка записи CSV: %w", err)
		}
	}
	cw.Flush()
	if err = cw.Error(); err != nil {
		return fmt.Errorf("ошибка записи CSV: %w", err)
	}

	exportRows.WithLabelValues("csv").Add(float64(len(inspections)))
	log.Printf("[ExportService:CSV] Выгружено строк: %d", len(inspections))
	return nil
}

// rowImages - миниатюры одной строки; done закрывается, когда они готовы.
type rowImages struct {
	thumbs [][]byte
	done   chan struct{}
}

// WriteSpreadsheet пишет записи в XLSX со встроенными миниатюрами фото.
// Миниатюры загружаются пулом воркеров, строки пишутся строго по порядку.
func (s *exportService) WriteSpreadsheet(
	ctx context.Context,
	filter models.InspectionFilter,
	w io.Writer,
	progress ProgressFunc,
) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	inspections, err := s.inspections.List(ctx, filter)
	if err != nil {
		return err
	}
	total := len(inspections)
	if progress == nil {
		progress = func(int, int) {}
	}

	f := excelize.NewFile()
	defer func() {
		if cErr := f.Close(); cErr != nil {
			log.Printf("[ExportService:XLSX] Ошибка закрытия книги: %v", cErr)
		}
	}()
	if err = s.writeHeader(f); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	slots := s.fetchImages(ctx, inspections)

	columns := checklist.Columns()
	photoCol := 8 + len(columns) // первая колонка с фото (1-based)
	for i, in := range inspections {
		select {
		case <-slots[i].done:
		case <-ctx.Done():
			return fmt.Errorf("выгрузка XLSX прервана: %w", ctx.Err())
		}

		row := i + 2
		if err = s.writeRow(f, row, in, columns); err != nil {
			return err
		}
		for j, thumb := range slots[i].thumbs {
			cell, cErr := excelize.CoordinatesToCellName(photoCol+j, row)
			if cErr != nil {
				return cErr
			}
			pErr := f.AddPictureFromBytes(sheetName, cell, &excelize.Picture{
				Extension: ".png",
				File:      thumb,
				Format:    &excelize.GraphicOptions{AutoFit: true, LockAspectRatio: true},
			})
			if pErr != nil {
				log.Printf("[ExportService:XLSX] Не удалось вставить фото записи %s: %v", in.ID, pErr)
			}
		}
		if len(slots[i].thumbs) > 0 {
			if err = f.SetRowHeight(sheetName, row, photoRowHeight); err != nil {
				return err
			}
		}
		progress(i+1, total)
	}

	if err = f.Write(w); err != nil {
		return fmt.Errorf("ошибка записи XLSX: %w", err)
	}

	exportRows.WithLabelValues("xlsx").Add(float64(total))
	log.Printf("[ExportService:XLSX] Выгружено строк: %d", total)
	return nil
}

func (s *exportService) writeHeader(f *excelize.File) error {
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("ошибка создания листа: %w", err)
	}

	header := []interface{}{"ID", "날짜", "지사", "담당자", "계약번호", "상호명"}
	for _, c := range checklist.Columns() {
		header = append(header, c.Header)
	}
	header = append(header, "사진수")
	for i := 1; i <= MaxPhotos; i++ {
		header = append(header, "사진"+strconv.Itoa(i))
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("ошибка записи заголовка: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastCell, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err = f.SetCellStyle(sheetName, "A1", lastCell, style); err != nil {
		return err
	}

	firstPhoto, _ := excelize.ColumnNumberToName(len(header) - MaxPhotos + 1)
	lastPhoto, _ := excelize.ColumnNumberToName(len(header))
	return f.SetColWidth(sheetName, firstPhoto, lastPhoto, photoColWidth)
}

func (s *exportService) writeRow(f *excelize.File, row int, in models.Inspection, columns []checklist.Column) error {
	decoded := checklist.Decode(in.ActivityType)
	values := []interface{}{
		in.ID,
		in.CreatedAt.In(s.location).Format(exportDateFmt),
		in.Branch,
		in.Name,
		in.ContractNo,
		in.BusinessName,
	}
	for _, c := range columns {
		values = append(values, decoded.Value(c.Key))
	}
	values = append(values, in.PhotoCount)

	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err = f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("ошибка записи строки %d: %w", row, err)
	}
	return nil
}

// fetchImages запускает пул загрузки миниатюр. Готовность строки i
// сигнализируется закрытием slots[i].done.
func (s *exportService) fetchImages(ctx context.Context, inspections []models.Inspection) []rowImages {
	slots := make([]rowImages, len(inspections))
	for i := range slots {
		slots[i].done = make(chan struct{})
	}

	jobs := make(chan int)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range inspections {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	for range imageWorkers {
		g.Go(func() error {
			for i := range jobs {
				slots[i].thumbs = s.thumbnails(gctx, inspections[i])
				close(slots[i].done)
			}
			return nil
		})
	}
	go func() { _ = g.Wait() }()

	return slots
}

// thumbnails скачивает до MaxPhotos фото записи и готовит миниатюры.
// Ошибки по отдельным фото пропускаются.
func (s *exportService) thumbnails(ctx context.Context, in models.Inspection) [][]byte {
	if in.FolderPath == "" || in.PhotoCount == 0 {
		return nil
	}

	files, err := s.storage.ListFiles(ctx, in.FolderPath+"/")
	if err != nil {
		log.Printf("[ExportService:XLSX] Ошибка списка файлов %s: %v", in.FolderPath, err)
		return nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	if len(files) > MaxPhotos {
		files = files[:MaxPhotos]
	}

	thumbs := make([][]byte, 0, len(files))
	for _, file := range files {
		if ctx.Err() != nil {
			return thumbs
		}
		data, dErr := s.download(ctx, file.Key)
		if dErr != nil {
			log.Printf("[ExportService:XLSX] Не удалось скачать '%s': %v", file.Key, dErr)
			continue
		}
		thumb, tErr := photo.Thumbnail(data)
		if tErr != nil {
			log.Printf("[ExportService:XLSX] Не удалось уменьшить '%s': %v", file.Key, tErr)
			continue
		}
		thumbs = append(thumbs, thumb)
	}
	return thumbs
}

func (s *exportService) download(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.storage.DownloadFile(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
