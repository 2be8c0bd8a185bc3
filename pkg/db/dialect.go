package db

import (
	"fmt"
	"strings"

	puresqlite "github.com/glebarez/sqlite"
	"github.com/smallbiznis/orgkeys/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
	// TypeSQLite uses the pure-Go driver; TypeSQLiteCGO links against libsqlite3.
	TypeSQLite    = "sqlite"
	TypeSQLiteCGO = "sqlite3"
)

func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBType)) {
	case TypeMySQL:
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)), nil
	case TypePostgres:
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)), nil
	case TypeSQLite:
		return puresqlite.Open(sqliteDSN(cfg.DBPath)), nil
	case TypeSQLiteCGO:
		return sqlite.Open(sqliteDSN(cfg.DBPath)), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.DBType)
	}
}

// sqliteDSN enables foreign keys and a busy timeout so concurrent writers
// queue instead of failing with SQLITE_BUSY.
func sqliteDSN(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "orgkeys.db"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func IsSQLite(cfg config.Config) bool {
	switch strings.ToLower(strings.TrimSpace(cfg.DBType)) {
	case TypeSQLite, TypeSQLiteCGO:
		return true
	default:
		return false
	}
}
