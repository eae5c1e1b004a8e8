package services_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bough38-web/inspection-app/internal/fieldcrypt"
	"github.com/bough38-web/inspection-app/internal/models"
	"github.com/bough38-web/inspection-app/internal/storage"
)

// --- Mocks ---

// MockInspectionRepository is a mock for InspectionRepository.
type MockInspectionRepository struct {
	mock.Mock
}

func (m *MockInspectionRepository) Create(ctx context.Context, inspection *models.Inspection) error {
	args := m.Called(ctx, inspection)
	return args.Error(0)
}

func (m *MockInspectionRepository) List(
	ctx context.Context,
	filter models.InspectionFilter,
) ([]models.Inspection, error) {
	args := m.Called(ctx, filter)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.Inspection), args.Error(1)
}

func (m *MockInspectionRepository) GetByID(ctx context.Context, id string) (*models.Inspection, error) {
	args := m.Called(ctx, id)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.Inspection), args.Error(1)
}

func (m *MockInspectionRepository) UpdateUploadResult(
	ctx context.Context,
	id string,
	status string,
	photoCount int,
) error {
	args := m.Called(ctx, id, status, photoCount)
	return args.Error(0)
}

func (m *MockInspectionRepository) DeleteByID(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockInspectionRepository) BranchStats(ctx context.Context) ([]models.BranchStat, error) {
	args := m.Called(ctx)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.BranchStat), args.Error(1)
}

// MockFileStorage is a mock for FileStorage.
type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) UploadFile(
	ctx context.Context,
	objectKey string,
	reader io.Reader,
	size int64,
	contentType string,
) error {
	// Consume the reader to simulate reading
	_, _ = io.Copy(io.Discard, reader)
	args := m.Called(ctx, objectKey, reader, size, contentType)
	return args.Error(0)
}

func (m *MockFileStorage) DownloadFile(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	args := m.Called(ctx, objectKey)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	// Каждый вызов получает свежий reader
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return io.NopCloser(bytes.NewReader(ret.([]byte))), args.Error(1)
}

func (m *MockFileStorage) ListFiles(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	args := m.Called(ctx, prefix)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]storage.ObjectInfo), args.Error(1)
}

func (m *MockFileStorage) DeleteFiles(ctx context.Context, objectKeys []string) error {
	args := m.Called(ctx, objectKeys)
	return args.Error(0)
}

// failingCipher всегда возвращает ошибку шифра.
type failingCipher struct{}

func (failingCipher) Encrypt(plain string) fieldcrypt.Result {
	return fieldcrypt.Result{Value: plain, Status: fieldcrypt.StatusFailed, Err: io.ErrUnexpectedEOF}
}

func (failingCipher) Decrypt(stored string) fieldcrypt.Result {
	return fieldcrypt.Result{Value: stored, Status: fieldcrypt.StatusFailed, Err: io.ErrUnexpectedEOF}
}

// --- Helpers ---

func newTestCipher(t *testing.T) *fieldcrypt.Cipher {
	t.Helper()
	c, err := fieldcrypt.New("test-secret")
	require.NoError(t, err)
	return c
}

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{B: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
