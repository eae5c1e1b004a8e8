package models

import "time"

// Статусы записи осмотра.
const (
	StatusSubmitted  = "submitted"  // строка создана, фото ещё загружаются
	StatusComplete   = "complete"   // все фото сохранены в хранилище
	StatusIncomplete = "incomplete" // часть фото не удалось сохранить после повторов
)

// Inspection представляет одну запись полевого осмотра.
// Тэги `db` используются для маппинга с полями БД с помощью sqlx.
type Inspection struct {
	ID           string    `db:"id" json:"id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	Branch       string    `db:"branch" json:"branch"`
	Name         string    `db:"name" json:"name"`
	ContractNo   string    `db:"contract_no" json:"contract_no"`
	BusinessName string    `db:"business_name" json:"business_name"` // В БД хранится в зашифрованном виде
	ActivityType string    `db:"activity_type" json:"activity_type"`
	Status       string    `db:"status" json:"status"`
	PhotoCount   int       `db:"photo_count" json:"photo_count"`
	FolderPath   string    `db:"folder_path" json:"folder_path"`
}

// InspectionFilter задаёт условия выборки записей.
// Пустые поля не участвуют в фильтрации.
type InspectionFilter struct {
	Branch string
	From   *time.Time // created_at >= From
	To     *time.Time // created_at < To
	IDs    []string
}

// BranchStat - количество записей по одному филиалу.
type BranchStat struct {
	Branch string `db:"branch" json:"branch"`
	Count  int    `db:"count" json:"count"`
}
