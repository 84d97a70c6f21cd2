package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gigshield/reviewcore/internal/conf"
	"github.com/gigshield/reviewcore/internal/logger"
	"github.com/gigshield/reviewcore/internal/model"
)

// taskConfigTTL bounds how stale a cached pricing row may be.
const taskConfigTTL = 5 * time.Minute

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance

	configCache *cache.Cache
	inTx        bool
}

var _ Interface = (*DataStore)(nil)

// Open connects to the database selected in settings and migrates the schema.
func Open(settings *conf.Settings) (*DataStore, error) {
	db := settings.Database
	switch db.Driver {
	case "sqlite":
		return OpenSQLite(db.SQLite.Path, db.SlowQueryThreshold)
	case "mysql":
		return OpenMySQL(db.MySQLDSN(), db.SlowQueryThreshold, db.MaxOpenConns)
	default:
		return nil, validationError("unsupported database driver", "database.driver", db.Driver)
	}
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(path string, slowQuery time.Duration) (*DataStore, error) {
	log := GetLogger()

	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, resourceError(err, "create_database_dir", "directory")
			}
		}
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(log, slowQuery),
		TranslateError: true,
	})
	if err != nil {
		return nil, dbError(err, "open_sqlite", "", "path", path)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, dbError(err, "open_sqlite", "", "path", path)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY on
	// transaction upgrades.
	sqlDB.SetMaxOpenConns(1)

	log.Info("opened SQLite database", logger.String("path", path))
	return newDataStore(db)
}

// OpenMySQL connects to MySQL using a go-sql-driver DSN.
func OpenMySQL(dsn string, slowQuery time.Duration, maxOpenConns int) (*DataStore, error) {
	log := GetLogger()

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(log, slowQuery),
		TranslateError: true,
	})
	if err != nil {
		log.Error("failed to open MySQL database", logger.Error(err))
		return nil, dbError(err, "open_mysql", "")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, dbError(err, "open_mysql", "")
	}
	if maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(maxOpenConns)
		sqlDB.SetMaxIdleConns(maxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("connected to MySQL database")
	return newDataStore(db)
}

func newDataStore(db *gorm.DB) (*DataStore, error) {
	ds := &DataStore{
		DB:          db,
		configCache: cache.New(taskConfigTTL, 2*taskConfigTTL),
	}
	if err := ds.Migrate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Migrate creates or updates every table owned by the review subsystem.
func (ds *DataStore) Migrate() error {
	start := time.Now()
	err := ds.DB.AutoMigrate(
		&model.ReviewTask{},
		&model.AuditEntry{},
		&model.CheckHistoryEntry{},
		&model.User{},
		&model.TransactionRecord{},
		&model.TaskConfig{},
		&model.CommentLimitRecord{},
		&model.Device{},
		&model.DeviceNoteHistory{},
	)
	if err != nil {
		return criticalError(err, "auto_migrate", "schema migration failed")
	}
	GetLogger().Debug("schema migrated", logger.Duration("duration", time.Since(start)))
	return nil
}

// Transaction runs fn inside one transaction; nested calls reuse the outer one.
func (ds *DataStore) Transaction(ctx context.Context, fn func(tx Interface) error) error {
	if ds.inTx {
		return fn(ds)
	}
	return ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DataStore{DB: tx, configCache: ds.configCache, inTx: true})
	})
}

// Close releases the underlying connection pool.
func (ds *DataStore) Close() error {
	if ds.inTx {
		return stateError(fmt.Errorf("close called inside a transaction"), "close", "transaction")
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", "")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", "")
	}
	return nil
}

// Ping checks that the database answers.
func (ds *DataStore) Ping(ctx context.Context) error {
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "ping", "")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dbError(err, "ping", "")
	}
	return nil
}

func (ds *DataStore) db(ctx context.Context) *gorm.DB {
	return ds.DB.WithContext(ctx)
}
