// database/migrate.go - Database Migration Runner
package database

import (
	"log"

	"lifelog/models"
)

// RunMigrations runs all database migrations
func RunMigrations() {
	db := GetDB()
	log.Println("🔄 Running database migrations...")

	if err := db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Moment{},
		&models.SocialInteraction{},
		&models.AchievementDefinition{},
		&models.ProgressRecord{},
		&models.ProgressEntry{},
	); err != nil {
		log.Fatalf("❌ Failed to run migrations: %v", err)
	}

	createIndexes()

	log.Println("✅ All migrations completed successfully")
}

// createIndexes creates the lookup indexes the engine's hot paths rely on.
func createIndexes() {
	db := GetDB()

	// User indexes
	db.Exec("CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_users_total_points ON users(total_points DESC)")

	// Moment indexes
	db.Exec("CREATE INDEX IF NOT EXISTS idx_moments_user_captured ON moments(user_id, captured_at DESC)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_moments_profile ON moments(profile_id)")

	// Catalog indexes
	db.Exec("CREATE INDEX IF NOT EXISTS idx_definitions_active ON achievement_definitions(is_active)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_definitions_category ON achievement_definitions(category)")

	// Ledger indexes
	db.Exec("CREATE INDEX IF NOT EXISTS idx_records_user_status ON progress_records(user_id, status)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_records_definition_status ON progress_records(definition_id, status)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_records_achieved_at ON progress_records(achieved_at DESC)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_entries_record ON progress_entries(record_id, timestamp)")
}
