package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

// SetDB replaces the global handle. Used by tests and tools that open their own connection.
func SetDB(d *gorm.DB) {
	db = d
}

// ConnectDatabaseWithRetry connects and sets the global DB, installing otelgorm and
// any extra plugins (the realm plugin is passed in by main to avoid an import cycle).
// Call this from main() AFTER the HTTP server is listening.
func ConnectDatabaseWithRetry(plugins ...gorm.Plugin) {
	s := GetSettings()

	network := "tcp"
	address := fmt.Sprintf("%s:%s", s.DBHost, s.DBPort)

	// Cloud Run + Cloud SQL: when DB_HOST is "/cloudsql/<CONNECTION_NAME>",
	// connect using a Unix domain socket provided by Cloud SQL Auth Proxy.
	if strings.HasPrefix(s.DBHost, "/cloudsql/") {
		network = "unix"
		address = s.DBHost
	}

	databaseConfig := fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4",
		s.DBUser,
		s.DBPassword,
		network,
		address,
		s.DBName,
	)

	var attempt int
	for {
		attempt++
		var err error
		db, err = gorm.Open(mysql.Open(databaseConfig), initConfig())
		if err == nil {
			if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
				if s.DBMaxOpenConns > 0 {
					sqlDB.SetMaxOpenConns(s.DBMaxOpenConns)
				}
				if s.DBMaxIdleConns >= 0 {
					sqlDB.SetMaxIdleConns(s.DBMaxIdleConns)
				}
				if s.DBConnMaxLifetimeSecs > 0 {
					sqlDB.SetConnMaxLifetime(time.Duration(s.DBConnMaxLifetimeSecs) * time.Second)
				}
				if s.DBConnMaxIdleTimeSecs > 0 {
					sqlDB.SetConnMaxIdleTime(time.Duration(s.DBConnMaxIdleTimeSecs) * time.Second)
				}
			}

			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			for _, p := range plugins {
				if pluginErr := db.Use(p); pluginErr != nil {
					log.Printf("db connected but failed to install %s plugin: %v", p.Name(), pluginErr)
				}
			}
			log.Printf("connected to database (attempt=%d)", attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		TranslateError: true,
	}
}

func initLog() logger.Interface {
	level := logger.Error
	if strings.EqualFold(os.Getenv("GORM_LOG"), "info") {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      level,
			SlowThreshold: time.Second,
		},
	)
}
