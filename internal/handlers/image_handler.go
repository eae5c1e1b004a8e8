package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/bough38-web/inspection-app/internal/storage"
)

const imageCacheControl = "public, max-age=31536000, immutable"

var imageContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ImageHandler отдает сохраненные фотографии через сервер.
type ImageHandler struct {
	storage storage.FileStorage
}

// NewImageHandler создает новый экземпляр ImageHandler.
func NewImageHandler(s storage.FileStorage) *ImageHandler {
	return &ImageHandler{storage: s}
}

// Proxy отдает объект хранилища по пути из параметра path.
func (h *ImageHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("path")
	if !validObjectKey(key) {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	obj, err := h.storage.DownloadFile(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, msgNotFound)
			return
		}
		log.Printf("[ImageHandler:Proxy] Ошибка получения '%s': %v", key, err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	defer obj.Close()

	contentType, ok := imageContentTypes[strings.ToLower(path.Ext(key))]
	if !ok {
		contentType = "image/webp"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", imageCacheControl)
	w.WriteHeader(http.StatusOK)
	if _, err = io.Copy(w, obj); err != nil {
		log.Printf("[ImageHandler:Proxy] Ошибка отправки '%s': %v", key, err)
	}
}

// validObjectKey отсекает пустые, абсолютные пути и выход за пределы папки записи.
func validObjectKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
