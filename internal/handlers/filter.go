package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bough38-web/inspection-app/internal/models"
)

const dateLayout = "2006-01-02"

var errBadDate = errors.New("некорректная дата фильтра")

// filterParams - параметры фильтра из query или JSON.
type filterParams struct {
	Branch string   `json:"branch"`
	Date   string   `json:"date"` // today или YYYY-MM-DD
	From   string   `json:"from"` // YYYY-MM-DD, включительно
	To     string   `json:"to"`   // YYYY-MM-DD, включительно
	IDs    []string `json:"ids"`
}

func filterParamsFromQuery(r *http.Request) filterParams {
	q := r.URL.Query()
	p := filterParams{
		Branch: q.Get("branch"),
		Date:   q.Get("date"),
		From:   q.Get("from"),
		To:     q.Get("to"),
	}
	for _, id := range strings.Split(q.Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			p.IDs = append(p.IDs, id)
		}
	}
	return p
}

// toFilter переводит параметры в фильтр. Даты считаются в часовом поясе loc.
func (p filterParams) toFilter(loc *time.Location, now time.Time) (models.InspectionFilter, error) {
	filter := models.InspectionFilter{IDs: p.IDs}

	if b := strings.TrimSpace(p.Branch); b != "" && b != "all" && b != "전체" {
		filter.Branch = b
	}

	if p.Date != "" {
		var day time.Time
		if p.Date == "today" {
			n := now.In(loc)
			day = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
		} else {
			d, err := time.ParseInLocation(dateLayout, p.Date, loc)
			if err != nil {
				return filter, errBadDate
			}
			day = d
		}
		next := day.AddDate(0, 0, 1)
		filter.From, filter.To = &day, &next
		return filter, nil
	}

	if p.From != "" {
		from, err := time.ParseInLocation(dateLayout, p.From, loc)
		if err != nil {
			return filter, errBadDate
		}
		filter.From = &from
	}
	if p.To != "" {
		to, err := time.ParseInLocation(dateLayout, p.To, loc)
		if err != nil {
			return filter, errBadDate
		}
		to = to.AddDate(0, 0, 1)
		filter.To = &to
	}
	return filter, nil
}
