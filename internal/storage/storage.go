package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"drinkMenuAPI/internal/drink"
)

var (
	ErrNotFound       = errors.New("drink not found")
	ErrDuplicateTitle = errors.New("drink title already exists")
)

// Store persists drinks. Every write touches a single row, so a failed
// write leaves nothing behind.
type Store interface {
	ListDrinks(ctx context.Context) ([]*drink.Drink, error)
	GetDrink(ctx context.Context, id int64) (*drink.Drink, error)
	// CreateDrink inserts d and sets d.ID to the id assigned by the store.
	CreateDrink(ctx context.Context, d *drink.Drink) error
	// UpdateDrink overwrites title and recipe of the row with d.ID.
	UpdateDrink(ctx context.Context, d *drink.Drink) error
	DeleteDrink(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
	Close()
}

// Open picks the backend from the URL scheme: postgres:// and postgresql://
// go to pgx, sqlite: and file: go to the embedded sqlite driver.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		s, err := OpenPostgres(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.HasPrefix(databaseURL, "sqlite:"), strings.HasPrefix(databaseURL, "file:"):
		s, err := OpenSQLite(ctx, strings.TrimPrefix(databaseURL, "sqlite:"))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database url %q", databaseURL)
	}
}

func scanRecipe(d *drink.Drink, raw string) error {
	recipe, err := drink.ParseRecipe([]byte(raw))
	if err != nil {
		return fmt.Errorf("drink %d has a corrupt recipe: %w", d.ID, err)
	}
	d.Recipe = recipe
	return nil
}
