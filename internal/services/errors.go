package services

import "errors"

// ValidationError - ошибка проверки входных данных.
// Message показывается пользователю без изменений.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Ошибки проверки формы осмотра.
var (
	ErrBranchRequired       = &ValidationError{Field: "branch", Message: "지사를 선택해주세요."}
	ErrNameRequired         = &ValidationError{Field: "name", Message: "이름 필수"}
	ErrContractNoFormat     = &ValidationError{Field: "contract_no", Message: "계약번호 8자리"}
	ErrBusinessNameRequired = &ValidationError{Field: "business_name", Message: "상호명 필수"}
	ErrChecklistEmpty       = &ValidationError{Field: "activity_type", Message: "최소 하나 이상의 활동 내역을 완성해주세요."}
	ErrChecklistNote        = &ValidationError{Field: "activity_type", Message: "점검 상태를 선택한 항목에만 내역을 입력할 수 있습니다."}
	ErrTooManyPhotos        = &ValidationError{Field: "photos", Message: "사진은 최대 3장까지 업로드 가능합니다."}
	ErrPhotoFormat          = &ValidationError{Field: "photos", Message: "이미지 형식을 확인해주세요."}
	ErrNothingToDelete      = &ValidationError{Field: "ids", Message: "삭제할 항목을 선택해주세요."}
)

// Кастомные ошибки сервиса.
var (
	ErrNotFound = errors.New("запись не найдена")
	ErrNoFiles  = errors.New("у записи нет файлов")

	ErrInvalidCredentials = errors.New("неверное имя пользователя или пароль")
	ErrLoginDisabled      = errors.New("вход администратора не настроен")

	ErrJobNotFound = errors.New("задача выгрузки не найдена")
	ErrJobNotReady = errors.New("задача выгрузки еще не завершена")
	ErrJobFailed   = errors.New("задача выгрузки завершилась ошибкой")
)
