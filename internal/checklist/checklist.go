// Package checklist кодирует результаты чек-листа осмотра в одну
// аннотированную строку для хранения и разбирает её обратно для отчётов.
//
// Формат строки: `[고객소통] 안부:양호, 보안:- [시스템점검] 카메라:조치완료, ...`.
package checklist

import (
	"errors"
	"fmt"
	"strings"
)

// Status - состояние одного пункта чек-листа.
type Status string

// Допустимые состояния пункта. Пустая строка означает "не заполнено".
const (
	StatusNone          Status = ""
	StatusGood          Status = "양호"
	StatusActionDone    Status = "조치완료"
	StatusNotApplicable Status = "해당없음"
)

const (
	placeholder = "-"
	notePrefix  = "(내역:"
	noteSuffix  = ")"
)

// Item описывает пункт категории.
type Item struct {
	Key   string // ключ поля формы, например "customer_1"
	Label string // короткая метка в закодированной строке
	Title string // полное название для форм и отчётов
}

// Category описывает категорию чек-листа.
type Category struct {
	Key   string
	Tag   string // метка в квадратных скобках
	Items []Item
}

// Categories - категории в фиксированном порядке кодирования.
var Categories = []Category{
	{
		Key: "customer",
		Tag: "고객소통",
		Items: []Item{
			{Key: "customer_1", Label: "안부", Title: "안부인사 및 불편사항 점검"},
			{Key: "customer_2", Label: "보안", Title: "보안 이슈 사전 청취"},
		},
	},
	{
		Key: "appearance",
		Tag: "외관점검",
		Items: []Item{
			{Key: "appearance_1", Label: "표지판", Title: "표지판(스티커) 교체"},
			{Key: "appearance_2", Label: "이물질", Title: "장비 이물질 제거(환경개선)"},
		},
	},
	{
		Key: "system",
		Tag: "시스템점검",
		Items: []Item{
			{Key: "system_1", Label: "카메라", Title: "카메라 정상 작동 확인"},
			{Key: "system_2", Label: "리더기", Title: "영상저장장치 리더기 점검"},
			{Key: "system_3", Label: "락", Title: "락 정상 작동여부 확인"},
		},
	},
}

// Entry - значение одного пункта.
type Entry struct {
	Status Status
	Note   string // необязательное пояснение, сериализуется как (내역:...)
}

// Checklist - заполненные пункты по ключу Item.Key.
type Checklist map[string]Entry

// Ошибки кодирования.
var (
	ErrEmpty         = errors.New("최소 하나 이상의 활동 내역을 완성해주세요.")
	ErrUnknownStatus = errors.New("알 수 없는 점검 상태")
	ErrUnknownItem   = errors.New("알 수 없는 점검 항목")
	ErrNoteNoStatus  = errors.New("점검 상태를 선택한 항목에만 내역을 입력할 수 있습니다.")
)

// ParseStatus проверяет, что строка является допустимым состоянием.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !st.valid() {
		return StatusNone, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

func (s Status) valid() bool {
	switch s {
	case StatusNone, StatusGood, StatusActionDone, StatusNotApplicable:
		return true
	}
	return false
}

// Encode сворачивает чек-лист в строку.
// Категории без единого заполненного пункта пропускаются; если не заполнена
// ни одна категория, возвращается ErrEmpty.
func Encode(c Checklist) (string, error) {
	for key, e := range c {
		if findItem(key) == nil {
			return "", fmt.Errorf("%w: %q", ErrUnknownItem, key)
		}
		if !e.Status.valid() {
			return "", fmt.Errorf("%w: %q", ErrUnknownStatus, e.Status)
		}
		// Пояснение без состояния не сериализуется
		if e.Status == StatusNone && sanitizeNote(e.Note) != "" {
			return "", fmt.Errorf("%w: %q", ErrNoteNoStatus, key)
		}
	}

	parts := make([]string, 0, len(Categories))
	for _, cat := range Categories {
		if !c.hasValues(cat) {
			continue
		}
		pairs := make([]string, 0, len(cat.Items))
		for _, item := range cat.Items {
			pairs = append(pairs, item.Label+":"+encodeValue(c[item.Key]))
		}
		parts = append(parts, "["+cat.Tag+"] "+strings.Join(pairs, ", "))
	}

	if len(parts) == 0 {
		return "", ErrEmpty
	}
	return strings.Join(parts, " "), nil
}

// hasValues - есть ли в категории хотя бы один заполненный пункт.
func (c Checklist) hasValues(cat Category) bool {
	for _, item := range cat.Items {
		if c[item.Key].Status != StatusNone {
			return true
		}
	}
	return false
}

func encodeValue(e Entry) string {
	if e.Status == StatusNone {
		return placeholder
	}
	note := sanitizeNote(e.Note)
	if note == "" {
		return string(e.Status)
	}
	return string(e.Status) + notePrefix + note + noteSuffix
}

// sanitizeNote убирает символы грамматики строки, чтобы пояснение
// не ломало разбор.
func sanitizeNote(note string) string {
	note = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ',', '(', ')', '\n', '\r', '\t':
			return ' '
		}
		return r
	}, note)
	return strings.Join(strings.Fields(note), " ")
}

func findItem(key string) *Item {
	for ci := range Categories {
		for ii := range Categories[ci].Items {
			if Categories[ci].Items[ii].Key == key {
				return &Categories[ci].Items[ii]
			}
		}
	}
	return nil
}
