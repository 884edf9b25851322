package config

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

// SetDB replaces the global handle. Used by tests and CLI tools that open their own connection.
func SetDB(d *gorm.DB) {
	db = d
}

func init() {
	// .env is optional; the DB itself is connected from main, never in init.
	_ = godotenv.Load()
}

// ConnectDatabaseWithRetry connects and sets the global DB.
// Call this from main() AFTER the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	dialector, driver := dialectorFromEnv()
	retryUntilConnected("database:"+driver, func() error {
		d, err := OpenDatabase(dialector)
		if err != nil {
			return err
		}
		if sqlDB, err := d.DB(); err == nil {
			tunePool(sqlDB)
		}
		db = d
		return nil
	})
}

// tunePool applies DB_MAX_OPEN_CONNS (50), DB_MAX_IDLE_CONNS (25) and
// DB_CONN_MAX_LIFETIME_SECONDS (300).
func tunePool(sqlDB *sql.DB) {
	if n := intFromEnv("DB_MAX_OPEN_CONNS", 50); n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := intFromEnv("DB_MAX_IDLE_CONNS", 25); n >= 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	if secs := intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300); secs > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(secs) * time.Second)
	}
}

// OpenDatabase opens a gorm handle with the shared config and plugins installed.
func OpenDatabase(dialector gorm.Dialector) (*gorm.DB, error) {
	d, err := gorm.Open(dialector, initConfig())
	if err != nil {
		return nil, err
	}
	if pluginErr := d.Use(otelgorm.NewPlugin()); pluginErr != nil {
		GetLogger().Warn("db.otelgorm.install_failed: " + pluginErr.Error())
	}
	if pluginErr := d.Use(NewTenantGuardPlugin()); pluginErr != nil {
		return nil, fmt.Errorf("install tenant guard plugin: %w", pluginErr)
	}
	return d, nil
}

// OpenSQLite opens an sqlite database (":memory:" or a file path). CGO-free.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	d, err := OpenDatabase(sqlite.Open(path))
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; a single connection keeps :memory: databases shared.
	if sqlDB, derr := d.DB(); derr == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return d, nil
}

func dialectorFromEnv() (gorm.Dialector, string) {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("DB_DRIVER")), "sqlite") {
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "bom_inventory.db"
		}
		return sqlite.Open(path), "sqlite"
	}

	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")

	network := "tcp"
	address := fmt.Sprintf("%s:%s", dbHost, dbPort)
	// Cloud SQL unix socket, e.g. DB_HOST=/cloudsql/<CONNECTION_NAME>
	if strings.HasPrefix(dbHost, "/cloudsql/") {
		network = "unix"
		address = dbHost
	}

	dsn := fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true",
		dbUser,
		dbPassword,
		network,
		address,
		dbName,
	)
	return mysql.Open(dsn), "mysql"
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
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
		NamingStrategy: &schema.NamingStrategy{},
	}
}

func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:                  false,
			LogLevel:                  logger.Error,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
}
