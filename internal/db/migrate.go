package db

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/facadeworks/takeoff/internal/models"
)

func ConnectAndMigrate() (*gorm.DB, error) {
	dsn := GetNormalizedDSN()
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN is empty, check the environment configuration")
	}
	var db *gorm.DB
	var err error
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}
		fmt.Println("Retrying DB connection...", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	// Basic connectivity test
	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	// Always print masked DSN once for diagnostics (before migrations for visibility)
	masked := dsn
	if strings.Contains(masked, "password=") {
		re := regexp.MustCompile(`(password=)([^\s]+)`)
		masked = re.ReplaceAllString(masked, `${1}***`)
	}
	fmt.Println("[DB] Using DSN:", masked)
	// If MIGRATIONS=1 (or true) we run sql migrations via golang-migrate; otherwise keep AutoMigrate fallback (dev convenience)
	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		modelsToMigrate := []interface{}{
			&models.Job{}, &models.Page{}, &models.ElevationCalc{}, &models.JobTotals{}, &models.Takeoff{}, &models.Section{}, &models.LineItem{}, &models.PresentationGroup{}, &models.AuditLog{},
		}
		for _, m := range modelsToMigrate {
			if migErr := db.AutoMigrate(m); migErr != nil {
				fmt.Printf("[DB] AutoMigrate detailed error model=%T type=%T value=%#v\n", m, migErr, migErr)
				return nil, fmt.Errorf("automigrate %T: %w", m, migErr)
			}
		}
		// One Detection schema, three tier tables.
		for _, table := range []string{models.TableDraftDetections, models.TableValidatedDetections, models.TableAIDetections} {
			if migErr := db.Table(table).AutoMigrate(&models.Detection{}); migErr != nil {
				return nil, fmt.Errorf("automigrate %s: %w", table, migErr)
			}
		}
	}

	// sanity check: ensure required core tables exist
	for _, table := range []string{"jobs", "pages", "takeoffs", models.TableDraftDetections} {
		if !db.Migrator().HasTable(table) {
			return nil, errors.New("missing table after migration: " + table)
		}
	}
	// Seeding only when explicitly requested (e.g. development) via DB_SEED=1|true
	if v := strings.ToLower(os.Getenv("DB_SEED")); v == "1" || v == "true" || v == "yes" {
		seed(db)
	}
	return db, nil
}

func seed(db *gorm.DB) {
	// Presentation groups used to bucket line items in exports.
	baseGroups := []models.PresentationGroup{
		{Name: "siding", SortOrder: 1},
		{Name: "openings", SortOrder: 2},
		{Name: "trim", SortOrder: 3},
		{Name: "flashing", SortOrder: 4},
		{Name: "labor", SortOrder: 5},
	}
	for _, g := range baseGroups {
		var existing models.PresentationGroup
		if err := db.Where("name = ?", g.Name).First(&existing).Error; err == gorm.ErrRecordNotFound {
			db.Create(&g)
		}
	}
}

// runSQLMigrations executes migrations in ./migrations using golang-migrate file source.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", ToURLDSN(dsn))
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
