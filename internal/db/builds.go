package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tphummel/pcbuild/internal/models"
)

// CreateBuild inserts a build and its component rows in one transaction.
func (d *DB) CreateBuild(ctx context.Context, b *models.Build) (err error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO builds (id, name, description, use_case, is_public, total_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Description, b.UseCase, b.IsPublic, b.TotalPrice.String(),
		b.CreatedAt.UTC().Format(time.RFC3339),
		b.UpdatedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}

	for i, bc := range b.Components {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO build_components (build_id, position, component_id, quantity)
			VALUES (?, ?, ?, ?)`,
			b.ID, i, bc.ComponentID, bc.Quantity,
		); err != nil {
			return fmt.Errorf("insert build component %s: %w", bc.ComponentID, err)
		}
	}
	return tx.Commit()
}

const buildColumns = `id, name, description, use_case, is_public, total_price, created_at, updated_at`

// GetBuild returns the build with the given ID and its components, or
// sql.ErrNoRows if not found.
func (d *DB) GetBuild(ctx context.Context, id string) (*models.Build, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+buildColumns+` FROM builds WHERE id = ?`, id)
	b, err := scanBuild(row)
	if err != nil {
		return nil, err
	}
	if err := d.loadBuildComponents(ctx, []*models.Build{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// BuildFilter narrows and orders a build listing.
type BuildFilter struct {
	PublicOnly bool
	UseCase    string
	SortBy     string
	Page       int
	Limit      int
}

var buildOrder = map[string]string{
	"created-desc": "created_at DESC, id ASC",
	"created-asc":  "created_at ASC, id ASC",
	"price-desc":   "CAST(total_price AS REAL) DESC, id ASC",
	"price-asc":    "CAST(total_price AS REAL) ASC, id ASC",
	"name-asc":     "name ASC, id ASC",
}

// ValidBuildSorts is the set of accepted BuildFilter.SortBy values.
var ValidBuildSorts = map[string]bool{
	"created-desc": true,
	"created-asc":  true,
	"price-desc":   true,
	"price-asc":    true,
	"name-asc":     true,
}

// ListBuilds returns one page of builds matching f with their components,
// along with the total number of matches.
func (d *DB) ListBuilds(ctx context.Context, f BuildFilter) ([]*models.Build, int, error) {
	var (
		where []string
		args  []any
	)
	if f.PublicOnly {
		where = append(where, "is_public = 1")
	}
	if f.UseCase != "" {
		where = append(where, "use_case = ? COLLATE NOCASE")
		args = append(args, f.UseCase)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM builds`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order, ok := buildOrder[f.SortBy]
	if !ok {
		order = buildOrder["created-desc"]
	}
	limit, offset := pageBounds(f.Page, f.Limit)
	rows, err := d.conn.QueryContext(ctx,
		`SELECT `+buildColumns+` FROM builds`+clause+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}

	var builds []*models.Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, err
	}
	rows.Close()

	if err := d.loadBuildComponents(ctx, builds); err != nil {
		return nil, 0, err
	}
	return builds, total, nil
}

// DeleteBuild removes the build with the given ID and its component rows.
// Returns sql.ErrNoRows if no such build exists.
func (d *DB) DeleteBuild(ctx context.Context, id string) (err error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM build_components WHERE build_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM builds WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// loadBuildComponents fills in the ordered component rows of each build,
// joined with their catalog records.
func (d *DB) loadBuildComponents(ctx context.Context, builds []*models.Build) error {
	for _, b := range builds {
		rows, err := d.conn.QueryContext(ctx, `
			SELECT bc.quantity, `+prefixed("c.", componentColumns)+`
			FROM build_components bc JOIN components c ON c.id = bc.component_id
			WHERE bc.build_id = ?
			ORDER BY bc.position`, b.ID)
		if err != nil {
			return err
		}
		b.Components = []models.BuildComponent{}
		for rows.Next() {
			var qty int
			c, err := scanComponent(prependScan(rows, &qty))
			if err != nil {
				rows.Close()
				return err
			}
			b.Components = append(b.Components, models.BuildComponent{
				ComponentID: c.ID,
				Quantity:    qty,
				Component:   c,
			})
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func scanBuild(s scanner) (*models.Build, error) {
	var b models.Build
	var total, createdAt, updatedAt string
	if err := s.Scan(
		&b.ID, &b.Name, &b.Description, &b.UseCase, &b.IsPublic,
		&total, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	b.TotalPrice, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse total_price %q: %w", total, err)
	}
	if b.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &b, nil
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = prefix + p
	}
	return strings.Join(parts, ", ")
}

// leadingScanner scans extra leading columns before handing the rest of the
// row to the wrapped destination list.
type leadingScanner struct {
	s    scanner
	lead []any
}

func (l leadingScanner) Scan(dest ...any) error {
	return l.s.Scan(append(l.lead, dest...)...)
}

func prependScan(s scanner, lead ...any) scanner {
	return leadingScanner{s: s, lead: lead}
}
