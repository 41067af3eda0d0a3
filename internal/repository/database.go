package repository

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/axellelanca/acortador/internal/models"
)

// Open ouvre la base SQLite name (":memory:" pour une base jetable).
// Le pool est limité à une seule connexion : SQLite sérialise déjà les écritures et une
// base en mémoire n'existe que sur la connexion qui l'a créée.
func Open(name string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return db, nil
}

// Migrate crée ou met à jour les tables url_mappings et rate_limit_records.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.URLMapping{}, &models.RateLimitRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close libère le pool de connexions sous-jacent.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
