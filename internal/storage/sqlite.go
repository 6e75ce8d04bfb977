package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"drinkMenuAPI/internal/drink"
)

type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the database at path. ":memory:"
// gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := migrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys=ON;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS drinks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL UNIQUE,
			recipe TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("failed to prepare sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListDrinks(ctx context.Context) ([]*drink.Drink, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, recipe FROM drinks ORDER BY id`)
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
	return drinks, rows.Err()
}

func (s *SQLiteStore) GetDrink(ctx context.Context, id int64) (*drink.Drink, error) {
	var d drink.Drink
	var recipe string
	err := s.db.QueryRowContext(ctx, `SELECT id, title, recipe FROM drinks WHERE id = ?`, id).
		Scan(&d.ID, &d.Title, &recipe)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get drink %d: %w", id, err)
	}
	if err := scanRecipe(&d, recipe); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLiteStore) CreateDrink(ctx context.Context, d *drink.Drink) error {
	recipe, err := d.Recipe.Serialize()
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO drinks (title, recipe) VALUES (?, ?)`, d.Title, recipe)
	if err != nil {
		return sqliteWriteError("create", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

func (s *SQLiteStore) UpdateDrink(ctx context.Context, d *drink.Drink) error {
	recipe, err := d.Recipe.Serialize()
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE drinks SET title = ?, recipe = ? WHERE id = ?`,
		d.Title, recipe, d.ID,
	)
	if err != nil {
		return sqliteWriteError("update", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteDrink(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drinks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete drink %d: %w", id, err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func sqliteWriteError(op string, err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return ErrDuplicateTitle
	}
	return fmt.Errorf("failed to %s drink: %w", op, err)
}
