// Package photo нормализует фотографии перед загрузкой в хранилище
// и готовит миниатюры для встраивания в отчёты.
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Регистрируем декодер WebP для старых файлов
)

const (
	// MaxDimension - предельный размер стороны после нормализации.
	MaxDimension = 1280
	// Quality - качество JPEG при повторном кодировании.
	Quality = 75
	// ThumbnailDimension - предельный размер миниатюры для XLSX.
	ThumbnailDimension = 320

	// Extension и ContentType нормализованных фото.
	Extension   = ".jpg"
	ContentType = "image/jpeg"
)

// ErrUnsupported возвращается для данных, которые не удалось декодировать как изображение.
var ErrUnsupported = errors.New("неподдерживаемый формат изображения")

// Normalize применяет EXIF-ориентацию, уменьшает изображение так, чтобы
// ни одна сторона не превышала MaxDimension (без увеличения), и
// перекодирует его в JPEG.
func Normalize(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return encode(fit(img, MaxDimension), imaging.JPEG, imaging.JPEGQuality(Quality))
}

// Thumbnail уменьшает изображение до ThumbnailDimension и кодирует в PNG,
// который поддерживается любой библиотекой таблиц.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return encode(fit(img, ThumbnailDimension), imaging.PNG)
}

// fit уменьшает изображение, сохраняя пропорции. Маленькие изображения не трогаем.
func fit(img image.Image, limit int) image.Image {
	b := img.Bounds()
	if b.Dx() <= limit && b.Dy() <= limit {
		return img
	}
	return imaging.Fit(img, limit, limit, imaging.Lanczos)
}

func encode(img image.Image, format imaging.Format, opts ...imaging.EncodeOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return nil, fmt.Errorf("ошибка кодирования изображения: %w", err)
	}
	return buf.Bytes(), nil
}
