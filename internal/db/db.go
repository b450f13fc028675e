package db

import (
	"fmt"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Handle struct {
	DB   *gorm.DB
	Path string // set for sqlite only
}

// OpenAt opens the default sqlite database inside the app data dir.
func OpenAt(dir string) (*Handle, error) {
	dbPath := filepath.Join(dir, "pricelist-sync.db")
	gdb, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return &Handle{DB: gdb, Path: dbPath}, nil
}

// Open connects using the configured driver. An empty sqlite DSN falls
// back to OpenAt with dir as the data directory.
func Open(driver, dsn, dir string) (*Handle, error) {
	switch driver {
	case "", "sqlite":
		if dsn == "" {
			return OpenAt(dir)
		}
		gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		return &Handle{DB: gdb, Path: dsn}, nil
	case "mysql":
		gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		return &Handle{DB: gdb}, nil
	case "postgres":
		gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		return &Handle{DB: gdb}, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", driver)
	}
}
