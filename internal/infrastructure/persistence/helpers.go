package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pipemill/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate applies a FOR UPDATE row lock. SQLite has no row locks; its
// whole-file write lock gives the same isolation, so the clause is skipped.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// forUpdateNoWait applies a FOR UPDATE NOWAIT row lock, surfacing lock
// contention immediately instead of blocking
func forUpdateNoWait(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"})
}

// translateLockError maps a lock_not_available failure to the domain's
// PIECES_LOCKED error
func translateLockError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
		return shared.ErrPiecesLocked
	}
	if strings.Contains(err.Error(), "could not obtain lock") {
		return shared.ErrPiecesLocked
	}
	return err
}

// applyFilter applies pagination and ordering from a shared.Filter
func applyFilter(db *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	dir := strings.ToLower(filter.OrderDir)
	if dir != "asc" {
		dir = "desc"
	}
	return db.
		Order(fmt.Sprintf("%s %s, id %s", orderBy, dir, dir)).
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize)
}

// paginate counts the filtered query, applies the page window, and scans
// into items
func paginate[T any](db *gorm.DB, filter shared.Filter) (shared.Paginated[T], error) {
	var items []T
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return shared.Paginated[T]{}, err
	}
	if err := applyFilter(db, filter).Find(&items).Error; err != nil {
		return shared.Paginated[T]{}, err
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	return shared.NewPaginated(items, total, page, pageSize), nil
}

// translateNotFound maps gorm.ErrRecordNotFound to the domain error
func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}
