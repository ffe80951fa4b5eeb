// Package products stores the catalog in PostgreSQL. Images and attributes
// are kept as jsonb; text search runs against a generated tsvector column.
package products

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/dbx"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const productColumns = `id, title, description, price_cents, images, category, brand, attributes, stock, rating, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	var images, attributes []byte
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.PriceCents, &images, &p.Category,
		&p.Brand, &attributes, &p.Stock, &p.Rating, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(images, &p.Images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	if err := json.Unmarshal(attributes, &p.Attributes); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return p, nil
}

// filterClause builds the WHERE part shared by the count and page queries.
func filterClause(f models.ProductFilter) (string, []any) {
	var conds []string
	var args []any
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, s)
		conds = append(conds, fmt.Sprintf("search_vector @@ plainto_tsquery('simple', $%d)", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of products matching filter and the total number
// of matches. filter must be normalized; its sort column is trusted.
func (r *PostgresRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int, error) {
	where, args := filterClause(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	dir := "ASC"
	if filter.Sort.Desc {
		dir = "DESC"
	}
	args = append(args, filter.Limit, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		productColumns, where, filter.Sort.Field, dir, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	items := make([]models.Product, 0, filter.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return items, total, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// FindByIDs loads every existing product among ids in one query.
// Unknown or malformed ids are silently absent from the result.
func (r *PostgresRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	if len(args) == 0 {
		return []models.Product{}, nil
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + strings.Join(placeholders, ", ") + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Product, 0, len(args))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func encodeJSONColumns(p *models.Product) (string, string, error) {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	attrs := p.Attributes
	if attrs == nil {
		attrs = map[string][]string{}
	}
	ib, err := json.Marshal(images)
	if err != nil {
		return "", "", err
	}
	ab, err := json.Marshal(attrs)
	if err != nil {
		return "", "", err
	}
	return string(ib), string(ab), nil
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	images, attrs, err := encodeJSONColumns(p)
	if err != nil {
		return nil, fmt.Errorf("encode product: %w", err)
	}

	query :=
		`INSERT INTO products (title, description, price_cents, images, category, brand, attributes, stock, rating)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		p.Title, p.Description, p.PriceCents, images, p.Category, p.Brand, attrs, p.Stock, p.Rating).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// Update overwrites a product. Orders keep their own snapshot, so a new
// price only affects carts and future orders.
func (r *PostgresRepository) Update(ctx context.Context, p *models.Product) error {
	if _, err := uuid.Parse(p.ID); err != nil {
		return common.ErrorNotFound
	}
	images, attrs, err := encodeJSONColumns(p)
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}

	query :=
		`UPDATE products
		 SET title = $1, description = $2, price_cents = $3, images = $4, category = $5,
		     brand = $6, attributes = $7, stock = $8, rating = $9, updated_at = now()
		 WHERE id = $10
		 RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		p.Title, p.Description, p.PriceCents, images, p.Category, p.Brand, attrs, p.Stock, p.Rating, p.ID).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
