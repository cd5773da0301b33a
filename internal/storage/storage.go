// Package storage persists users, device-scoped refresh tokens, provider
// token triples, and ingested training activities using GORM. Postgres backs
// production; the pure-Go sqlite driver backs tests and local development.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tyemirov/paceline/internal/fault"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("storage.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("storage.empty_database_url")
	errSQLiteEmptyPath     = errors.New("storage.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("storage.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("storage.unsupported_no_scheme")
)

// Store owns the database handle shared by every repository method. It is
// constructed once at process start and injected into components.
type Store struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (store *Store) Driver() string {
	return store.driverLabel
}

// Open connects to the database selected by the URL scheme and migrates the
// schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("storage.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if openErr != nil {
		return nil, fmt.Errorf("storage.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(
		&User{},
		&RefreshToken{},
		&ProviderToken{},
		&Activity{},
		&Lap{},
		&Stream{},
	); migrateErr != nil {
		return nil, fmt.Errorf("storage.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &Store{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// Close releases the underlying connection pool.
func (store *Store) Close() error {
	sqlDB, err := store.db.DB()
	if err != nil {
		return fmt.Errorf("storage.close.%s: %w", store.driverLabel, err)
	}
	return sqlDB.Close()
}

func (store *Store) storageError(operation string, cause error) error {
	return fault.Wrap(fault.ErrStorage, fmt.Sprintf("storage.%s.%s", operation, store.driverLabel), cause)
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("storage.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("storage.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("storage.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("storage.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
