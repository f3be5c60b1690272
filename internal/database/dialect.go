package database

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sqliteMemoryDSN = "file::memory:?cache=shared&_foreign_keys=1"

func normaliseDriver(driver string) string {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "":
		return "sqlite"
	case "postgresql":
		return "postgres"
	default:
		return d
	}
}

// dialectorFor resolves cfg to a gorm dialector. An explicit DSN always wins
// over the host based fields.
func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch normaliseDriver(cfg.Driver) {
	case "sqlite":
		dsn, err := sqliteDSN(cfg)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(dsn), nil
	case "postgres":
		dsn, err := postgresDSN(cfg)
		if err != nil {
			return nil, err
		}
		return postgres.Open(dsn), nil
	case "mysql":
		dsn, err := mysqlDSN(cfg)
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func sqliteDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" || strings.EqualFold(path, ":memory:") {
		return sqliteMemoryDSN, nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	return "file:" + filepath.ToSlash(path) + "?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000", nil
}

// postgresDSN renders a postgres:// URL. sslmode defaults to disable.
func postgresDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", fmt.Errorf("postgres configuration requires user and database name")
	}

	query := url.Values{}
	for key, value := range cfg.Options {
		query.Set(key, value)
	}
	if query.Get("sslmode") == "" {
		query.Set("sslmode", "disable")
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(orDefault(cfg.Host, "localhost"), strconv.Itoa(portOrDefault(cfg.Port, 5432))),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	return u.String(), nil
}

// mysqlDSN always sets parseTime so DATETIME columns scan into time.Time.
func mysqlDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", fmt.Errorf("mysql configuration requires user and database name")
	}

	dc := mysqldriver.NewConfig()
	dc.User = cfg.User
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(orDefault(cfg.Host, "127.0.0.1"), strconv.Itoa(portOrDefault(cfg.Port, 3306)))
	dc.DBName = cfg.Name
	dc.ParseTime = true
	dc.Loc = time.UTC
	dc.Params = map[string]string{"charset": "utf8mb4"}
	for key, value := range cfg.Options {
		dc.Params[key] = value
	}
	return dc.FormatDSN(), nil
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func portOrDefault(port, fallback int) int {
	if port > 0 {
		return port
	}
	return fallback
}
