package main

import (
	"flag"
	"fmt"
	"log"

	"calendar-agent/internal/config"
	"calendar-agent/internal/models"
	"calendar-agent/internal/storage"

	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	action := flag.String("action", "migrate", "Action to perform (migrate, reset, status)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if !cfg.Database.Enabled {
		log.Fatalf("Database is not enabled in configuration")
	}

	if err := storage.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	db := storage.GetDB()
	if db == nil {
		log.Fatalf("Failed to get database connection")
	}

	switch *action {
	case "migrate":
		if err := migrateDatabase(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migration completed successfully")
	case "reset":
		if err := resetDatabase(db); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		log.Println("Database reset completed successfully")
	case "status":
		if err := checkStatus(db); err != nil {
			log.Fatalf("Status check failed: %v", err)
		}
	default:
		log.Fatalf("Unknown action: %s", *action)
	}
}

// migrateDatabase creates or updates the audit tables
func migrateDatabase(db *gorm.DB) error {
	fmt.Println("Migrating database...")

	if err := db.AutoMigrate(&models.QueryRecord{}); err != nil {
		return fmt.Errorf("failed to migrate QueryRecord model: %w", err)
	}
	if err := db.AutoMigrate(&models.ActionRecord{}); err != nil {
		return fmt.Errorf("failed to migrate ActionRecord model: %w", err)
	}

	return nil
}

// resetDatabase drops tables and recreates them
func resetDatabase(db *gorm.DB) error {
	fmt.Println("Resetting database...")

	fmt.Print("WARNING: This will delete all data! Are you sure? (y/N): ")
	var confirmation string
	fmt.Scanln(&confirmation)

	if confirmation != "y" && confirmation != "Y" {
		return fmt.Errorf("operation cancelled by user")
	}

	if err := db.Migrator().DropTable(&models.ActionRecord{}); err != nil {
		return fmt.Errorf("failed to drop ActionRecord table: %w", err)
	}
	if err := db.Migrator().DropTable(&models.QueryRecord{}); err != nil {
		return fmt.Errorf("failed to drop QueryRecord table: %w", err)
	}

	return migrateDatabase(db)
}

// checkStatus reports which audit tables exist and how many rows they hold
func checkStatus(db *gorm.DB) error {
	fmt.Println("Checking database status...")

	for name, model := range map[string]interface{}{
		"QueryRecord":  &models.QueryRecord{},
		"ActionRecord": &models.ActionRecord{},
	} {
		if db.Migrator().HasTable(model) {
			var count int64
			db.Model(model).Count(&count)
			fmt.Printf("%s table exists, contains %d records\n", name, count)
		} else {
			fmt.Printf("%s table does not exist\n", name)
		}
	}

	return nil
}
