package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"task-tracker/internal/model"
)

// PoolConfig bounds the process-wide connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewDB opens the backing store selected by dsn and runs migrations.
// postgres:// and postgresql:// DSNs use Postgres; anything else is a SQLite path.
func NewDB(dsn string, pool PoolConfig) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "task_tracker.db"
	}

	dialector, err := openDialector(dsn)
	if err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         dbLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&model.User{}, &model.Task{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return db, nil
}

// Ping checks that the pool can still reach the store.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// Close releases the process-wide pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func openDialector(dsn string) (gorm.Dialector, error) {
	if isPostgresDSN(dsn) {
		return postgres.Open(dsn), nil
	}
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}
	return sqlite.Open(sqliteDSN(dsn)), nil
}

// sqliteDSN adds the connection options the engine relies on unless the caller set them.
// Write transactions must take the database lock at BEGIN so two read-modify-write
// sequences on the same user cannot interleave.
func sqliteDSN(dsn string) string {
	defaults := []struct{ key, value string }{
		{"_txlock", "immediate"},
		{"_busy_timeout", "5000"},
		{"_foreign_keys", "1"},
	}
	if !strings.Contains(dsn, ":memory:") && !strings.Contains(dsn, "mode=memory") {
		defaults = append(defaults, struct{ key, value string }{"_journal_mode", "WAL"})
	}

	var params []string
	for _, d := range defaults {
		if strings.Contains(dsn, d.key+"=") {
			continue
		}
		params = append(params, d.key+"="+d.value)
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + sep + strings.Join(params, "&")
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	// Ignore DSNs with explicit mode=memory or network.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	// Strip file: prefix if present.
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
