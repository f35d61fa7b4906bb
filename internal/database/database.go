package database

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	sqlitedriver "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database wraps two handles onto the same SQLite file: a database/sql
// handle for analytic reads and scalar writes, and a gorm handle used by
// the ingest pipeline for transactional batch upserts.
type Database struct {
	db     *sql.DB
	gdb    *gorm.DB
	logger *logrus.Logger
}

func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(sqlitedriver.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm handle: %w", err)
	}
	if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}

	return &Database{db: db, gdb: gdb, logger: logger}, nil
}

func (d *Database) DB() *sql.DB {
	return d.db
}

func (d *Database) Gorm() *gorm.DB {
	return d.gdb
}

func (d *Database) Close() error {
	if gormDB, err := d.gdb.DB(); err == nil {
		gormDB.Close()
	}
	return d.db.Close()
}
