package store

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

// createTables is the fixed DDL sequence. Money columns hold two-place
// decimal strings; timestamps are stored as UTC datetimes.
var createTables = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		shipping_address TEXT NOT NULL DEFAULT '',
		payment_reference TEXT NOT NULL DEFAULT '',
		subscribed BOOLEAN NOT NULL DEFAULT 1,
		unsubscribe_reason TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cart_lines (
		user_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		PRIMARY KEY (user_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		rating INTEGER NOT NULL,
		text TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		shipping_address TEXT NOT NULL,
		subtotal NUMERIC NOT NULL,
		shipping_fee NUMERIC NOT NULL,
		total NUMERIC NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		order_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price NUMERIC NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		fingerprint TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS consumed_tokens (
		jti TEXT PRIMARY KEY,
		consumed_at DATETIME NOT NULL
	)`,
}

var dropTables = []string{
	"DROP TABLE IF EXISTS consumed_tokens",
	"DROP TABLE IF EXISTS sessions",
	"DROP TABLE IF EXISTS order_lines",
	"DROP TABLE IF EXISTS orders",
	"DROP TABLE IF EXISTS reviews",
	"DROP TABLE IF EXISTS purchases",
	"DROP TABLE IF EXISTS cart_lines",
	"DROP TABLE IF EXISTS products",
	"DROP TABLE IF EXISTS users",
}

// Bootstrap creates the schema and seeds fixture rows into empty tables. It
// is idempotent across restarts. devReset additionally drops every table
// first; it exists for development fixtures and must stay off in production.
func (s *Store) Bootstrap(ctx context.Context, devReset bool) error {
	if devReset {
		log.Println("DEV_RESET enabled: dropping all tables")
		for _, stmt := range dropTables {
			if _, err := s.Execute(ctx, stmt); err != nil {
				return fmt.Errorf("failed to drop table: %w", err)
			}
		}
	}
	for _, stmt := range createTables {
		if _, err := s.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	if err := s.seedUsers(ctx); err != nil {
		return err
	}
	return s.seedProducts(ctx)
}

func (s *Store) seedUsers(ctx context.Context) error {
	empty, err := s.tableEmpty(ctx, "users")
	if err != nil || !empty {
		return err
	}
	seeds := []struct {
		username, password, role, address, payment string
	}{
		{"admin", "admin12345", "admin", "", ""},
		{"budi", "rahasia123", "user", "Jl. Melati 7, Bandung", "card-4242"},
	}
	for _, u := range seeds {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash fixture password: %w", err)
		}
		_, err = s.Execute(ctx,
			`INSERT INTO users (username, password_hash, role, shipping_address, payment_reference, subscribed, created_at)
			 VALUES (?, ?, ?, ?, ?, 1, CURRENT_TIMESTAMP)`,
			u.username, string(hash), u.role, u.address, u.payment)
		if err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.username, err)
		}
		log.Printf("Seeded user: %s (role %s)", u.username, u.role)
	}
	return nil
}

func (s *Store) seedProducts(ctx context.Context) error {
	empty, err := s.tableEmpty(ctx, "products")
	if err != nil || !empty {
		return err
	}
	seeds := []struct {
		name, description, price string
		stock                    int
	}{
		{"Laptop", "High performance laptop", "1200.00", 10},
		{"Keyboard", "Mechanical keyboard", "75.00", 25},
		{"Mouse", "Ergonomic wireless mouse", "25.00", 50},
	}
	for _, p := range seeds {
		_, err := s.Execute(ctx,
			`INSERT INTO products (name, description, price, stock, created_at, updated_at)
			 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
			p.name, p.description, p.price, p.stock)
		if err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.name, err)
		}
		log.Printf("Seeded product: %s", p.name)
	}
	return nil
}

func (s *Store) tableEmpty(ctx context.Context, table string) (bool, error) {
	// table names come from the fixed DDL above, never from callers
	var count int64
	if _, err := s.QueryOne(ctx, &count, "SELECT COUNT(*) FROM "+table); err != nil {
		return false, err
	}
	return count == 0, nil
}
