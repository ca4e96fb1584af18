package db

import (
	"log"
	"os"
)

// RunMigrations is the migrate-only entry point: with MIGRATIONS set
// it applies the SQL migrations directly, without opening the full
// gorm stack; otherwise it falls back to ConnectAndMigrate so the
// AutoMigrate path still runs. An empty DSN is a no-op.
func RunMigrations() error {
	dsn := GetNormalizedDSN()
	if dsn == "" {
		return nil
	}
	if os.Getenv("MIGRATIONS") == "" {
		log.Println("MIGRATIONS not set; running AutoMigrate path")
		_, err := ConnectAndMigrate()
		return err
	}
	log.Println("Applying SQL migrations")
	return runSQLMigrations(dsn)
}
