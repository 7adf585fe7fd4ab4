package tenantdb

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a row does not exist or is not visible to the
// current unit of work. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("tenantdb: record not found")

// ListOptions pages and orders List results.
type ListOptions struct {
	Limit  int
	Offset int
	Order  string
}

// Repository is a typed entry point to one tenant-scoped table. It never
// accepts a tenant parameter: every statement is narrowed by the plugin from
// the holder on ctx.
type Repository[T any] struct {
	db *gorm.DB
}

// NewRepository binds a repository for T to db. db must have the plugin
// installed.
func NewRepository[T any](db *gorm.DB) *Repository[T] {
	return &Repository[T]{db: db}
}

// Query starts a statement on T's table for custom filters.
func (r *Repository[T]) Query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(new(T))
}

// Get loads the row with the given primary key.
func (r *Repository[T]) Get(ctx context.Context, id any) (*T, error) {
	row := new(T)
	err := r.db.WithContext(ctx).Where(clause.Eq{Column: clause.PrimaryColumn, Value: id}).Take(row).Error
	if err != nil {
		return nil, translate(err)
	}
	return row, nil
}

// List returns visible rows.
func (r *Repository[T]) List(ctx context.Context, opts ListOptions) ([]T, error) {
	q := r.db.WithContext(ctx)
	if opts.Order != "" {
		q = q.Order(opts.Order)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of visible rows.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(new(T)).Count(&n).Error
	return n, err
}

// Create inserts rows, stamping each with the current tenant. Associations
// are not written; insert them through their own repository.
func (r *Repository[T]) Create(ctx context.Context, rows ...*T) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&rows).Error
}

// Update writes every column of row back by primary key.
func (r *Repository[T]) Update(ctx context.Context, row *T) error {
	res := r.db.WithContext(ctx).Model(row).Select("*").Omit(clause.Associations).Updates(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateFields writes only the given columns of row.
func (r *Repository[T]) UpdateFields(ctx context.Context, row *T, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(row).Omit(clause.Associations).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes row permanently.
func (r *Repository[T]) Delete(ctx context.Context, row *T) error {
	res := r.db.WithContext(ctx).Delete(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks row deleted. T must embed SoftDeleteModel.
func (r *Repository[T]) SoftDelete(ctx context.Context, row *T) error {
	sd, ok := any(row).(SoftDeletable)
	if !ok {
		return fmt.Errorf("tenantdb: %T is not soft-deletable", row)
	}
	db := r.db.WithContext(ctx)
	sd.softDeleteModel().MarkDeleted(db.NowFunc())
	res := db.Model(row).Update(columnSoftDeletedAt, sd.softDeleteModel().SoftDeletedAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
