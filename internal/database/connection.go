package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thereayou/guildchat/internal/models"
)

// Connect opens the Postgres database and migrates the schema.
func Connect(dsn string) (*Database, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	d, err := Open(postgres.Open(dsn))
	if err != nil {
		return nil, err
	}

	log.Info().Str("module", "database").Msg("postgres connected")
	return d, nil
}

// Open opens any gorm dialect, applies pool settings and migrates the
// schema. The pool is closed again when migration fails.
func Open(dialector gorm.Dialector, pool ...func(*sql.DB)) (*Database, error) {
	db, err := gorm.Open(dialector, Config())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialector.Name(), err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	for _, configure := range pool {
		configure(sqlDB)
	}

	d := NewDatabase(db)
	if err := d.Migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

// Config is the gorm configuration shared by every dialect.
func Config() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}
}

func (d *Database) Migrate() error {
	if err := d.db.AutoMigrate(&models.User{}, &models.Group{}, &models.GroupMember{}, &models.Message{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
