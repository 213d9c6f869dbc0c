package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tphummel/pcbuild/internal/models"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at path, enables WAL mode, and runs migrations.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// An in-memory database lives only as long as its connection.
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS categories (
			name         TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			description  TEXT NOT NULL DEFAULT '',
			icon         TEXT NOT NULL DEFAULT '',
			sort_order   INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS components (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			brand          TEXT NOT NULL DEFAULT '',
			model          TEXT NOT NULL DEFAULT '',
			description    TEXT NOT NULL DEFAULT '',
			category       TEXT NOT NULL,
			price          TEXT NOT NULL DEFAULT '0',
			in_stock       INTEGER NOT NULL DEFAULT 1,
			specifications TEXT NOT NULL DEFAULT '{}',
			created_at     DATETIME NOT NULL,
			updated_at     DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_components_category ON components(category);
		CREATE INDEX IF NOT EXISTS idx_components_name ON components(name);
		CREATE INDEX IF NOT EXISTS idx_components_brand ON components(brand);

		CREATE TABLE IF NOT EXISTS builds (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			use_case    TEXT NOT NULL DEFAULT '',
			is_public   INTEGER NOT NULL DEFAULT 0,
			total_price TEXT NOT NULL DEFAULT '0',
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_builds_public ON builds(is_public);
		CREATE TABLE IF NOT EXISTS build_components (
			build_id     TEXT NOT NULL REFERENCES builds(id),
			position     INTEGER NOT NULL,
			component_id TEXT NOT NULL REFERENCES components(id),
			quantity     INTEGER NOT NULL,
			PRIMARY KEY (build_id, position)
		);
	`)
	return err
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping verifies the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// Categories returns every category ordered by sort order, with the number
// of catalog components in each.
func (d *DB) Categories(ctx context.Context) ([]models.CategoryInfo, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT c.name, c.display_name, c.description, c.icon, c.sort_order, COUNT(p.id)
		FROM categories c LEFT JOIN components p ON p.category = c.name
		GROUP BY c.name
		ORDER BY c.sort_order, c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []models.CategoryInfo
	for rows.Next() {
		var c models.CategoryInfo
		var name string
		if err := rows.Scan(&name, &c.DisplayName, &c.Description, &c.Icon, &c.SortOrder, &c.ComponentCount); err != nil {
			return nil, err
		}
		c.Name = models.Category(name)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// CountByCategory returns the number of components per category. It backs
// the catalog gauge in the metrics package.
func (d *DB) CountByCategory() (map[string]int, error) {
	rows, err := d.conn.Query(`SELECT category, COUNT(*) FROM components GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		counts[cat] = n
	}
	return counts, rows.Err()
}

// CreateComponent inserts a new component record.
func (d *DB) CreateComponent(ctx context.Context, c *models.Component) error {
	return insertComponent(ctx, d.conn, c, false)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertComponent(ctx context.Context, conn execer, c *models.Component, ignoreExisting bool) error {
	specs, err := json.Marshal(specsOrEmpty(c.Specifications))
	if err != nil {
		return fmt.Errorf("encode specifications: %w", err)
	}
	verb := "INSERT"
	if ignoreExisting {
		verb = "INSERT OR IGNORE"
	}
	_, err = conn.ExecContext(ctx, verb+` INTO components
		(id, name, brand, model, description, category, price, in_stock, specifications, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Brand, c.Model, c.Description, string(c.Category),
		c.Price.String(), c.InStock, string(specs),
		c.CreatedAt.UTC().Format(time.RFC3339),
		c.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// Seed writes categories and components in one transaction. Components that
// already exist are left untouched.
func (d *DB) Seed(ctx context.Context, categories []models.CategoryInfo, components []models.Component) (err error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, c := range categories {
		if _, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO categories (name, display_name, description, icon, sort_order)
			VALUES (?, ?, ?, ?, ?)`,
			string(c.Name), c.DisplayName, c.Description, c.Icon, c.SortOrder,
		); err != nil {
			return fmt.Errorf("seed category %s: %w", c.Name, err)
		}
	}

	now := time.Now().UTC()
	for i := range components {
		c := components[i]
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
		if err = insertComponent(ctx, tx, &c, true); err != nil {
			return fmt.Errorf("seed component %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

const componentColumns = `id, name, brand, model, description, category, price, in_stock, specifications, created_at, updated_at`

// GetComponent returns the component with the given ID, or sql.ErrNoRows if not found.
func (d *DB) GetComponent(ctx context.Context, id string) (*models.Component, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+componentColumns+` FROM components WHERE id = ?`, id)
	return scanComponent(row)
}

// ComponentsByIDs looks up a set of components by ID. IDs with no matching
// record are absent from the result; duplicates in ids are looked up once.
func (d *DB) ComponentsByIDs(ctx context.Context, ids []string) (map[string]*models.Component, error) {
	found := make(map[string]*models.Component, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	unique := make([]any, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(unique)), ",")

	rows, err := d.conn.QueryContext(ctx,
		`SELECT `+componentColumns+` FROM components WHERE id IN (`+placeholders+`)`, unique...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		found[c.ID] = c
	}
	return found, rows.Err()
}

// ComponentFilter narrows and orders a component listing. Zero values mean
// "no filter".
type ComponentFilter struct {
	Category string
	Brand    string
	Search   string
	PriceMin *decimal.Decimal
	PriceMax *decimal.Decimal
	InStock  *bool
	SortBy   string
	Page     int
	Limit    int
}

var componentOrder = map[string]string{
	"price-asc":  "CAST(price AS REAL) ASC, name ASC",
	"price-desc": "CAST(price AS REAL) DESC, name ASC",
	"name-asc":   "name ASC",
	"name-desc":  "name DESC",
}

// ValidComponentSorts is the set of accepted ComponentFilter.SortBy values.
var ValidComponentSorts = map[string]bool{
	"price-asc":  true,
	"price-desc": true,
	"name-asc":   true,
	"name-desc":  true,
}

// ListComponents returns one page of components matching f along with the
// total number of matches.
func (d *DB) ListComponents(ctx context.Context, f ComponentFilter) ([]*models.Component, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, f.Category)
	}
	if f.Brand != "" {
		where = append(where, "brand LIKE ?")
		args = append(args, "%"+f.Brand+"%")
	}
	if f.Search != "" {
		where = append(where, "(name LIKE ? OR description LIKE ? OR model LIKE ?)")
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if f.PriceMin != nil {
		where = append(where, "CAST(price AS REAL) >= ?")
		args = append(args, f.PriceMin.InexactFloat64())
	}
	if f.PriceMax != nil {
		where = append(where, "CAST(price AS REAL) <= ?")
		args = append(args, f.PriceMax.InexactFloat64())
	}
	if f.InStock != nil {
		where = append(where, "in_stock = ?")
		args = append(args, *f.InStock)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM components`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order, ok := componentOrder[f.SortBy]
	if !ok {
		order = componentOrder["name-asc"]
	}
	limit, offset := pageBounds(f.Page, f.Limit)
	rows, err := d.conn.QueryContext(ctx,
		`SELECT `+componentColumns+` FROM components`+clause+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var components []*models.Component
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, 0, err
		}
		components = append(components, c)
	}
	return components, total, rows.Err()
}

func pageBounds(page, limit int) (int, int) {
	if limit < 1 {
		limit = 20
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComponent(s scanner) (*models.Component, error) {
	var c models.Component
	var category, price, specs, createdAt, updatedAt string
	if err := s.Scan(
		&c.ID, &c.Name, &c.Brand, &c.Model, &c.Description,
		&category, &price, &c.InStock, &specs,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	c.Category = models.Category(category)

	var err error
	c.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	if err := json.Unmarshal([]byte(specs), &c.Specifications); err != nil {
		return nil, fmt.Errorf("parse specifications: %w", err)
	}
	c.Specifications = specsOrEmpty(c.Specifications)
	if c.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &c, nil
}

func parseTime(v, column string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s %q: %w", column, v, err)
	}
	return t, nil
}

func specsOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
