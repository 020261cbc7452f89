package db

import (
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wayfarer-travel/wayfarer/pkg/db/models"
)

type DB struct {
	DB *gorm.DB
}

func New(dsn string, logLevel logger.LogLevel) (*DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	return &DB{
		DB: db,
	}, nil
}

// UpdateSchema migrates the database to the current schema: gorm
// auto-migration for all models, then any named data migrations that have
// not run yet.
func (d *DB) UpdateSchema() error {
	if err := d.DB.AutoMigrate(
		&models.TripElement{},
		&models.InsightFeedback{},
		&models.InsightPattern{},
		&models.KnowledgeLearning{},
	); err != nil {
		return err
	}

	return d.runMigrations()
}

var migrations = map[string]func(*gorm.DB) error{}

func (d *DB) runMigrations() error {
	for name, migration := range migrations {
		log.Infof("running migration %q", name)
		if err := migration(d.DB); err != nil {
			return err
		}
	}
	return nil
}
