package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"drinkMenuAPI/internal/drink"
)

const pgUniqueViolation = "23505"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS drinks (
	id     SERIAL PRIMARY KEY,
	title  VARCHAR(80) NOT NULL UNIQUE,
	recipe TEXT NOT NULL
)`

type PostgresStore struct {
	db *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create drinks table: %w", err)
	}

	return NewPostgresStore(pool), nil
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListDrinks(ctx context.Context) ([]*drink.Drink, error) {
	rows, err := s.db.Query(ctx, `SELECT id, title, recipe FROM drinks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list drinks: %w", err)
	}
	defer rows.Close()

	drinks := []*drink.Drink{}
	for rows.Next() {
		var d drink.Drink
		var recipe string
		if err := rows.Scan(&d.ID, &d.Title, &recipe); err != nil {
			return nil, err
		}
		if err := scanRecipe(&d, recipe); err != nil {
			return nil, err
		}
		drinks = append(drinks, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return drinks, nil
}

func (s *PostgresStore) GetDrink(ctx context.Context, id int64) (*drink.Drink, error) {
	var d drink.Drink
	var recipe string
	err := s.db.QueryRow(ctx, `SELECT id, title, recipe FROM drinks WHERE id = $1`, id).
		Scan(&d.ID, &d.Title, &recipe)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get drink %d: %w", id, err)
	}
	if err := scanRecipe(&d, recipe); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresStore) CreateDrink(ctx context.Context, d *drink.Drink) error {
	recipe, err := d.Recipe.Serialize()
	if err != nil {
		return err
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO drinks (title, recipe) VALUES ($1, $2) RETURNING id`,
		d.Title, recipe,
	).Scan(&d.ID)
	if err != nil {
		return pgWriteError("create", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDrink(ctx context.Context, d *drink.Drink) error {
	recipe, err := d.Recipe.Serialize()
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE drinks SET title = $1, recipe = $2 WHERE id = $3`,
		d.Title, recipe, d.ID,
	)
	if err != nil {
		return pgWriteError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteDrink(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM drinks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete drink %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

func pgWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateTitle
	}
	return fmt.Errorf("failed to %s drink: %w", op, err)
}
