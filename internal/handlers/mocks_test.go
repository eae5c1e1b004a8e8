package handlers_test

import (
	"bytes"
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/bough38-web/inspection-app/internal/models"
	"github.com/bough38-web/inspection-app/internal/services"
	"github.com/bough38-web/inspection-app/internal/storage"
)

// --- Mock InspectionService --- //

type MockInspectionService struct {
	mock.Mock
}

func (m *MockInspectionService) Submit(ctx context.Context, req services.SubmitRequest) (*models.Inspection, error) {
	args := m.Called(ctx, req)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.Inspection), args.Error(1)
}

func (m *MockInspectionService) List(ctx context.Context, filter models.InspectionFilter) ([]models.Inspection, error) {
	args := m.Called(ctx, filter)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.Inspection), args.Error(1)
}

func (m *MockInspectionService) BranchStats(ctx context.Context) ([]models.BranchStat, error) {
	args := m.Called(ctx)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.BranchStat), args.Error(1)
}

func (m *MockInspectionService) Delete(ctx context.Context, ids []string) (*services.DeleteResult, error) {
	args := m.Called(ctx, ids)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*services.DeleteResult), args.Error(1)
}

// --- Mock ExportService --- //

type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) BuildArchive(ctx context.Context, id string) (*services.Archive, error) {
	args := m.Called(ctx, id)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*services.Archive), args.Error(1)
}

// WriteCSV пишет в w байты, переданные первым значением Return.
func (m *MockExportService) WriteCSV(ctx context.Context, filter models.InspectionFilter, w io.Writer) error {
	args := m.Called(ctx, filter)
	if data, ok := args.Get(0).([]byte); ok {
		_, _ = w.Write(data)
	}
	return args.Error(1)
}

// WriteSpreadsheet пишет в w байты, переданные первым значением Return.
func (m *MockExportService) WriteSpreadsheet(
	ctx context.Context,
	filter models.InspectionFilter,
	w io.Writer,
	progress services.ProgressFunc,
) error {
	args := m.Called(ctx, filter)
	if progress != nil {
		progress(1, 1)
	}
	if data, ok := args.Get(0).([]byte); ok {
		_, _ = w.Write(data)
	}
	return args.Error(1)
}

// --- Mock FileStorage --- //

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
	args := m.Called(ctx, objectKey, reader, size, contentType)
	return args.Error(0)
}

func (m *MockFileStorage) DownloadFile(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	args := m.Called(ctx, objectKey)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
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

// --- Mock AuthService --- //

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(username, password string) (string, error) {
	args := m.Called(username, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) Enabled() bool {
	args := m.Called()
	return args.Bool(0)
}

// --- Stub HealthService --- //

type stubHealthService struct {
	report services.HealthReport
}

func (s stubHealthService) Check(context.Context) services.HealthReport {
	return s.report
}
