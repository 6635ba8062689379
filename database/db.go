package database

import (
	"fmt"
	"os"

	"feeledger-backend/logger"
	"feeledger-backend/models"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect() {
	if err := godotenv.Load(); err != nil {
		logger.L.Warn("no .env file found, relying on process env")
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "db"
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Africa/Lagos",
		host, os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"), port)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.L.Fatal("could not connect to database", zap.Error(err))
	}
}

// AutoMigrate covers the shared (public schema) tables only; per-school
// tables are migrated by MigrateTenantSchema at registration/login.
func AutoMigrate() {
	if err := DB.AutoMigrate(&models.User{}, &models.School{}); err != nil {
		logger.L.Fatal("public automigrate failed", zap.Error(err))
	}
}
