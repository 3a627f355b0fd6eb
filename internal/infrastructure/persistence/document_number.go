package persistence

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// maxDocumentNumber returns the highest sequence suffix among document
// numbers of the form "{prefix}-{year}-{seq}". Parsing happens in Go so the
// query stays portable between PostgreSQL and SQLite.
func maxDocumentNumber(db *gorm.DB, model interface{}, column, prefix string, year int) (int, error) {
	like := fmt.Sprintf("%s-%d-%%", prefix, year)
	var numbers []string
	if err := db.Model(model).
		Where(fmt.Sprintf("%s LIKE ?", column), like).
		Pluck(column, &numbers).Error; err != nil {
		return 0, err
	}
	max := 0
	for _, n := range numbers {
		idx := strings.LastIndex(n, "-")
		if idx < 0 {
			continue
		}
		seq, err := strconv.Atoi(n[idx+1:])
		if err != nil {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	return max, nil
}
