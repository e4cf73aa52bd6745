package repository

import (
	"fmt"
	"strings"
)

// paging clamps page and size and returns the row offset.
func paging(page, size, defaultSize, maxSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxSize {
		size = defaultSize
	}
	return page, size, (page - 1) * size
}

func sortOrder(raw, fallback string) string {
	order := strings.ToUpper(raw)
	if order != "ASC" && order != "DESC" {
		return fallback
	}
	return order
}

func sortColumn(raw string, allowed map[string]string, fallback string) string {
	if column, ok := allowed[raw]; ok {
		return column
	}
	return allowed[fallback]
}

// whereBuilder accumulates positional conditions.
type whereBuilder struct {
	conditions []string
	args       []interface{}
}

func (w *whereBuilder) add(format string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conditions = append(w.conditions, fmt.Sprintf(format, len(w.args)))
}

func (w *whereBuilder) clause() string {
	if len(w.conditions) == 0 {
		return "1=1"
	}
	return strings.Join(w.conditions, " AND ")
}
