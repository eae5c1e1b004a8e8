package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/bough38-web/inspection-app/internal/checklist"
	"github.com/bough38-web/inspection-app/internal/services"
)

const (
	maxSubmitBytes  = 40 << 20 // три фото по 10МБ плюс поля формы
	maxMemoryBytes  = 32 << 20
	photosFormField = "photos"
	legacyFormField = "activity_type"
	noteFieldSuffix = "_note"
)

// InspectionHandler обрабатывает прием и просмотр записей осмотра.
type InspectionHandler struct {
	service services.InspectionService
	loc     *time.Location
	now     func() time.Time
}

// NewInspectionHandler создает новый экземпляр InspectionHandler.
func NewInspectionHandler(s services.InspectionService, loc *time.Location) *InspectionHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &InspectionHandler{service: s, loc: loc, now: time.Now}
}

// submitResponse - ответ на успешный прием формы.
type submitResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// deleteRequest - тело запроса на пакетное удаление.
type deleteRequest struct {
	IDs []string `json:"ids"`
}

// deleteResponse - ответ на пакетное удаление.
type deleteResponse struct {
	OK bool `json:"ok"`
	*services.DeleteResult
}

// Submit принимает multipart-форму осмотра с фотографиями.
func (h *InspectionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBytes)
	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		log.Printf("[InspectionHandler:Submit] Ошибка разбора формы: %v", err)
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	items, err := checklistFromForm(r)
	if err != nil {
		log.Printf("[InspectionHandler:Submit] Некорректный чек-лист: %v", err)
		writeError(w, http.StatusBadRequest, checklist.ErrUnknownStatus.Error())
		return
	}

	var photoFiles []*multipart.FileHeader
	if r.MultipartForm != nil {
		photoFiles = r.MultipartForm.File[photosFormField]
	}
	if len(photoFiles) > services.MaxPhotos {
		writeError(w, http.StatusBadRequest, services.ErrTooManyPhotos.Message)
		return
	}
	photos, err := readPhotos(photoFiles)
	if err != nil {
		log.Printf("[InspectionHandler:Submit] Ошибка чтения фото: %v", err)
		writeError(w, http.StatusBadRequest, services.ErrPhotoFormat.Message)
		return
	}

	inspection, err := h.service.Submit(r.Context(), services.SubmitRequest{
		Branch:       r.FormValue("branch"),
		Name:         r.FormValue("name"),
		ContractNo:   r.FormValue("contract_no"),
		BusinessName: r.FormValue("business_name"),
		Checklist:    items,
		Photos:       photos,
	})
	if err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Message)
			return
		}
		log.Printf("[InspectionHandler:Submit] Ошибка сервиса: %v", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{OK: true, ID: inspection.ID})
}

// checklistFromForm собирает чек-лист из полей пунктов. Если ни одно поле
// не передано, разбирается готовая строка из устаревшего поля activity_type.
func checklistFromForm(r *http.Request) (checklist.Checklist, error) {
	items := checklist.Checklist{}
	present := false
	for _, cat := range checklist.Categories {
		for _, item := range cat.Items {
			raw, ok := r.Form[item.Key]
			note := r.FormValue(item.Key + noteFieldSuffix)
			if !ok && note == "" {
				continue
			}
			present = true

			status := checklist.StatusNone
			if len(raw) > 0 {
				st, err := checklist.ParseStatus(raw[0])
				if err != nil {
					return nil, fmt.Errorf("пункт %s: %w", item.Key, err)
				}
				status = st
			}
			if status != checklist.StatusNone || note != "" {
				items[item.Key] = checklist.Entry{Status: status, Note: note}
			}
		}
	}

	if !present {
		if legacy := r.FormValue(legacyFormField); legacy != "" {
			return checklist.Decode(legacy).Items, nil
		}
	}
	return items, nil
}

func readPhotos(files []*multipart.FileHeader) ([]services.Photo, error) {
	photos := make([]services.Photo, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("открытие %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("чтение %s: %w", fh.Filename, err)
		}
		if len(data) == 0 {
			continue // пустое поле файла браузер отправляет без содержимого
		}
		photos = append(photos, services.Photo{Filename: fh.Filename, Data: data})
	}
	return photos, nil
}

// List возвращает записи по фильтру из query-параметров.
func (h *InspectionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := filterParamsFromQuery(r).toFilter(h.loc, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadDate)
		return
	}

	inspections, err := h.service.List(r.Context(), filter)
	if err != nil {
		log.Printf("[InspectionHandler:List] Ошибка получения списка: %v", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	writeJSON(w, http.StatusOK, inspections)
}

// Stats возвращает количество записей по филиалам.
func (h *InspectionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.BranchStats(r.Context())
	if err != nil {
		log.Printf("[InspectionHandler:Stats] Ошибка получения статистики: %v", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Delete удаляет выбранные записи вместе с файлами.
func (h *InspectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[InspectionHandler:Delete] Ошибка декодирования запроса: %v", err)
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	result, err := h.service.Delete(r.Context(), req.IDs)
	if err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Message)
			return
		}
		log.Printf("[InspectionHandler:Delete] Ошибка удаления: %v", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{OK: true, DeleteResult: result})
}
