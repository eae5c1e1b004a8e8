package checklist

import "strings"

// Result - результат разбора строки.
type Result struct {
	Items Checklist
	// Categories - сколько известных меток категорий найдено в строке.
	// Ноль означает, что строка не распознана и все поля пусты.
	Categories int
}

// Value возвращает значение пункта для отчёта: состояние и, если есть,
// пояснение в виде суффикса "(내역: ...)".
func (r Result) Value(key string) string {
	e, ok := r.Items[key]
	if !ok {
		return ""
	}
	if e.Note == "" {
		return string(e.Status)
	}
	if e.Status == StatusNone {
		return "(내역: " + e.Note + ")"
	}
	return string(e.Status) + " (내역: " + e.Note + ")"
}

// Decode разбирает строку обратно в чек-лист. Никогда не падает:
// нераспознанные части просто оставляют соответствующие поля пустыми.
func Decode(s string) Result {
	res := Result{Items: Checklist{}}
	for _, cat := range Categories {
		content, ok := segment(s, "["+cat.Tag+"]")
		if !ok {
			continue
		}
		res.Categories++

		for _, pair := range strings.Split(content, ",") {
			label, value, found := strings.Cut(pair, ":")
			if !found {
				continue
			}
			item := cat.itemByLabel(strings.TrimSpace(label))
			if item == nil {
				continue // неизвестные метки игнорируем
			}
			entry := decodeValue(strings.TrimSpace(value))
			if entry.Status == StatusNone && entry.Note == "" {
				continue
			}
			res.Items[item.Key] = entry
		}
	}
	return res
}

// segment возвращает содержимое после метки до следующей '[' или конца строки.
func segment(s, tag string) (string, bool) {
	idx := strings.Index(s, tag)
	if idx < 0 {
		return "", false
	}
	rest := s[idx+len(tag):]
	if end := strings.IndexByte(rest, '['); end >= 0 {
		rest = rest[:end]
	}
	return rest, true
}

func decodeValue(v string) Entry {
	if v == placeholder || v == "" {
		return Entry{}
	}
	var e Entry
	if i := strings.Index(v, notePrefix); i >= 0 && strings.HasSuffix(v, noteSuffix) {
		e.Note = strings.TrimSpace(v[i+len(notePrefix) : len(v)-len(noteSuffix)])
		v = strings.TrimSpace(v[:i])
	}
	if v != placeholder {
		e.Status = Status(v)
	}
	return e
}

func (c Category) itemByLabel(label string) *Item {
	for i := range c.Items {
		if c.Items[i].Label == label {
			return &c.Items[i]
		}
	}
	return nil
}

// Column - колонка отчёта для одного пункта чек-листа.
type Column struct {
	Key    string
	Header string // "고객소통-안부"
}

// Columns возвращает колонки отчёта в порядке категорий.
func Columns() []Column {
	var cols []Column
	for _, cat := range Categories {
		for _, item := range cat.Items {
			cols = append(cols, Column{Key: item.Key, Header: cat.Tag + "-" + item.Label})
		}
	}
	return cols
}
