package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
)

const migrationsDir = "sql/migrations"

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

// goose хранит настройки глобально.
var gooseMu sync.Mutex

func setupGoose() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(log.StandardLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// MigrateUp применяет up-миграции.
// steps=0 означает "применить все доступные".
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := setupGoose(); err != nil {
		return err
	}

	if steps <= 0 {
		if err := goose.UpContext(ctx, s.db, migrationsDir); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		return nil
	}

	for i := 0; i < steps; i++ {
		if err := goose.UpByOneContext(ctx, s.db, migrationsDir); err != nil {
			if errors.Is(err, goose.ErrNoNextVersion) {
				return nil
			}
			return fmt.Errorf("migrate up step %d: %w", i+1, err)
		}
	}
	return nil
}

// MigrateDown откатывает миграции.
// steps<=0 интерпретируется как 1 шаг для безопасного поведения.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	if steps <= 0 {
		steps = 1
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := setupGoose(); err != nil {
		return err
	}

	for i := 0; i < steps; i++ {
		version, err := goose.GetDBVersionContext(ctx, s.db)
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version == 0 {
			return nil
		}
		if err := goose.DownContext(ctx, s.db, migrationsDir); err != nil {
			return fmt.Errorf("migrate down step %d: %w", i+1, err)
		}
	}
	return nil
}

// MigrationStatus возвращает текущую версию схемы и количество известных миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, errStoreNotInitialized
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := setupGoose(); err != nil {
		return 0, 0, err
	}

	version, err := goose.GetDBVersionContext(ctx, s.db)
	if err != nil {
		return 0, 0, fmt.Errorf("read schema version: %w", err)
	}

	known, err := goose.CollectMigrations(migrationsDir, 0, goose.MaxVersion)
	if err != nil {
		return 0, 0, fmt.Errorf("collect migrations: %w", err)
	}

	return version, len(known), nil
}
