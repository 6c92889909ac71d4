package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/trainwatch-backend/internal/platform/envutil"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewPostgresService connects using POSTGRES_DSN, or the POSTGRES_* parts.
// DB_DRIVER=sqlite with SQLITE_PATH opens a local file instead, for
// single-node and CLI use.
func NewPostgresService(logg *logger.Logger) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	driver := strings.ToLower(envutil.String("DB_DRIVER", "postgres", logg))
	if driver == "sqlite" {
		path := envutil.String("SQLITE_PATH", "trainwatch.db", logg)
		db, err := OpenSQLite(path, cfg)
		if err != nil {
			return nil, err
		}
		serviceLog.Info("Using sqlite store", "path", path)
		return &PostgresService{db: db, log: serviceLog}, nil
	}

	dsn := envutil.String("POSTGRES_DSN", "", logg)
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			envutil.String("POSTGRES_USER", "postgres", logg),
			envutil.String("POSTGRES_PASSWORD", "", logg),
			envutil.String("POSTGRES_HOST", "localhost", logg),
			envutil.String("POSTGRES_PORT", "5432", logg),
			envutil.String("POSTGRES_NAME", "trainwatch", logg),
		)
	}

	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(envutil.Int("POSTGRES_MAX_OPEN_CONNS", 25, logg))
	sqlDB.SetMaxIdleConns(envutil.Int("POSTGRES_MAX_IDLE_CONNS", 10, logg))
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return &PostgresService{db: db, log: serviceLog}, nil
}

// OpenSQLite opens a sqlite database with a single connection so writers
// serialize instead of failing with "database is locked".
func OpenSQLite(path string, cfg *gorm.Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)}
	}
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
