// Package carts stores one cart per user in PostgreSQL with an optimistic
// version counter.
package carts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/dbx"
	"github.com/dmitrijs2005/storefront/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetOrCreate is safe under concurrent first access: the insert is a no-op
// when the cart exists and the select then reads whichever row won.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, userID string) (*models.Cart, error) {
	insert :=
		`INSERT INTO carts (user_id)
		 VALUES ($1)
		 ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, insert, userID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	query :=
		`SELECT id, user_id, items, version, created_at, updated_at
		 FROM carts
		 WHERE user_id = $1`

	cart := &models.Cart{}
	var items []byte
	err := r.db.QueryRowContext(ctx, query, userID).
		Scan(&cart.ID, &cart.UserID, &items, &cart.Version, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(items, &cart.Items); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return cart, nil
}

func (r *PostgresRepository) Save(ctx context.Context, cart *models.Cart) error {
	items := cart.Items
	if items == nil {
		items = []models.CartItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}

	query :=
		`UPDATE carts
		 SET items = $1, version = version + 1, updated_at = now()
		 WHERE id = $2 AND version = $3
		 RETURNING version, updated_at`

	err = r.db.QueryRowContext(ctx, query, string(b), cart.ID, cart.Version).
		Scan(&cart.Version, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
