// Package repository provides the metadata store for images and their compressed derivatives
package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"path/filepath"
	"time"

	"github.com/UnendingLoop/ImageCompressor/internal/model"
	"github.com/UnendingLoop/ImageCompressor/internal/repository/imgpostgres"
	"github.com/UnendingLoop/ImageCompressor/internal/repository/jsonfile"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
)

const (
	BackendJSON     = "json"
	BackendPostgres = "postgres"

	defaultDBFile     = "./data/db.json"
	defaultMigrations = "./migrations"
)

type ImageRepo interface {
	Append(ctx context.Context, c model.Collection, rec *model.ImageRecord) error
	FindByID(ctx context.Context, c model.Collection, id string) (*model.ImageRecord, error)
	ListAll(ctx context.Context, c model.Collection) ([]model.ImageRecord, error)
}

func NewJSONImageRepo(path string) ImageRepo {
	return jsonfile.NewJSONRepo(path)
}

func NewPostgresImageRepo(dbconn *dbpg.DB) ImageRepo {
	return imgpostgres.PostgresRepo{DB: dbconn}
}

// NewFromConfig picks the backend by METADATA_BACKEND. The returned closer is nil for the json backend.
func NewFromConfig(appConfig *config.Config) (ImageRepo, func() error) {
	switch appConfig.GetString("METADATA_BACKEND") {
	case BackendPostgres:
		dbConn := ConnectWithRetries(appConfig, 5, 10*time.Second)

		migrations := appConfig.GetString("MIGRATIONS_PATH")
		if migrations == "" {
			migrations = defaultMigrations
		}
		MigrateWithRetries(dbConn.Master, migrations, 10, 15*time.Second)

		return NewPostgresImageRepo(dbConn), dbConn.Master.Close
	default:
		path := appConfig.GetString("DB_FILE")
		if path == "" {
			path = defaultDBFile
		}
		log.Printf("Using JSON metadata store at %q", path)
		return NewJSONImageRepo(path), nil
	}
}

func ConnectWithRetries(appConfig *config.Config, retryCount int, idleTime time.Duration) *dbpg.DB {
	dbOptions := dbpg.Options{
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: 10 * time.Minute,
	}
	dsnLink := appConfig.GetString("POSTGRES_DSN")
	var dbConn *dbpg.DB
	var err error

	for attempt := 0; attempt < retryCount; attempt++ {
		dbConn, err = dbpg.New(dsnLink, nil, &dbOptions)
		if err == nil {
			break
		}
		log.Printf("Failed to connect to PGDB: %s\nWaiting %v before next retry...", err, idleTime)
		time.Sleep(idleTime)
	}

	if err != nil {
		log.Fatal("Failed to connect to DB. Exiting the app...")
	}

	return dbConn
}

func MigrateWithRetries(db *sql.DB, migrationsPath string, retries int, idle time.Duration) {
	for i := 0; i < retries; i++ {
		log.Printf("Migration try #%d...", i+1)
		err := runMigrate(db, migrationsPath)
		if err == nil {
			return
		}
		log.Printf("Migration try #%d was unsuccessful: %v. Waiting %v before next try...", i+1, err, idle)
		time.Sleep(idle)
	}
	log.Fatalln("Out of migration retries. Exiting...")
}

func runMigrate(db *sql.DB, migrationsPath string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	sourceURL, err := migrationsSource(migrationsPath)
	if err != nil {
		return err
	}
	log.Println("Running migrations from:", sourceURL)

	m, err := migrate.NewWithDatabaseInstance(
		sourceURL,
		"postgres",
		driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	log.Println("image_records migrations applied")
	return nil
}

// migrationsSource turns a directory into a file:// source URL for golang-migrate
func migrationsSource(dir string) (string, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(absPath), nil
}
