package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bough38-web/inspection-app/internal/services"
)

const (
	contentTypeZip  = "application/zip"
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	msgJobNotFound = "작업을 찾을 수 없습니다."
	msgJobNotReady = "아직 생성 중입니다."
	msgJobFailed   = "엑셀 생성에 실패했습니다."
)

// ExportHandler обрабатывает выгрузку архивов и отчетов.
type ExportHandler struct {
	export services.ExportService
	jobs   *services.ExportJobs
	loc    *time.Location
	now    func() time.Time
}

// NewExportHandler создает новый экземпляр ExportHandler.
func NewExportHandler(export services.ExportService, jobs *services.ExportJobs, loc *time.Location) *ExportHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportHandler{export: export, jobs: jobs, loc: loc, now: time.Now}
}

// jobStartResponse - ответ на запуск фоновой выгрузки.
type jobStartResponse struct {
	OK    bool   `json:"ok"`
	JobID string `json:"job_id"`
}

// DownloadZip отдает фотографии одной записи одним архивом.
func (h *ExportHandler) DownloadZip(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	archive, err := h.export.BuildArchive(r.Context(), id)
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	case errors.Is(err, services.ErrNoFiles):
		writeError(w, http.StatusNotFound, msgNoFiles)
		return
	case err != nil:
		log.Printf("[ExportHandler:DownloadZip] Ошибка сборки архива %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeAttachment(w, contentTypeZip, archive.Filename, archive.Data)
}

// CSV отдает записи по фильтру в CSV.
func (h *ExportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	filter, err := filterParamsFromQuery(r).toFilter(h.loc, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadDate)
		return
	}

	var buf bytes.Buffer
	if err = h.export.WriteCSV(r.Context(), filter, &buf); err != nil {
		log.Printf("[ExportHandler:CSV] Ошибка выгрузки: %v", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	writeAttachment(w, contentTypeCSV, h.reportName("csv"), buf.Bytes())
}

// XLSX синхронно строит книгу Excel с миниатюрами.
func (h *ExportHandler) XLSX(w http.ResponseWriter, r *http.Request) {
	filter, err := filterParamsFromQuery(r).toFilter(h.loc, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadDate)
		return
	}

	var buf bytes.Buffer
	if err = h.export.WriteSpreadsheet(r.Context(), filter, &buf, nil); err != nil {
		log.Printf("[ExportHandler:XLSX] Ошибка выгрузки: %v", err)
		writeError(w, http.StatusInternalServerError, msgJobFailed)
		return
	}
	writeAttachment(w, contentTypeXLSX, h.reportName("xlsx"), buf.Bytes())
}

// StartJob запускает фоновую выгрузку Excel.
func (h *ExportHandler) StartJob(w http.ResponseWriter, r *http.Request) {
	var params filterParams
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			log.Printf("[ExportHandler:StartJob] Ошибка декодирования запроса: %v", err)
			writeError(w, http.StatusBadRequest, msgBadRequest)
			return
		}
	}
	filter, err := params.toFilter(h.loc, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadDate)
		return
	}

	id := h.jobs.Start(filter)
	writeJSON(w, http.StatusAccepted, jobStartResponse{OK: true, JobID: id})
}

// JobStatus возвращает прогресс фоновой выгрузки.
func (h *ExportHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, msgJobNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// JobFile отдает готовую книгу фоновой выгрузки.
func (h *ExportHandler) JobFile(w http.ResponseWriter, r *http.Request) {
	data, err := h.jobs.File(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, services.ErrJobNotFound):
		writeError(w, http.StatusNotFound, msgJobNotFound)
		return
	case errors.Is(err, services.ErrJobNotReady):
		writeError(w, http.StatusConflict, msgJobNotReady)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, msgJobFailed)
		return
	}
	writeAttachment(w, contentTypeXLSX, h.reportName("xlsx"), data)
}

func (h *ExportHandler) reportName(ext string) string {
	return fmt.Sprintf("inspections_%s.%s", h.now().In(h.loc).Format("20060102_1504"), ext)
}

// writeAttachment отдает файл на скачивание. Имя передается и в
// ASCII-виде, и в кодировке RFC 5987 для корейских названий.
func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
		asciiFilename(filename), url.PathEscape(filename)))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("[Handlers] Ошибка отправки файла '%s': %v", filename, err)
	}
}

func asciiFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
