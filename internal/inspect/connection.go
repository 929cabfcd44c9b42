package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pgschema/pgdiff/internal/logger"
)

// DefaultTimeout bounds one introspection when Config.Timeout is unset.
const DefaultTimeout = 2 * time.Minute

// Config holds database connection parameters
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSL      bool
	// Schema is a LIKE pattern selecting the schemas to read; * is
	// accepted as a wildcard.
	Schema  string
	Timeout time.Duration
}

// SSLMode returns the libpq sslmode for the config.
func (c Config) SSLMode() string {
	if c.SSL {
		return "require"
	}
	return "disable"
}

// SchemaPattern returns the schema filter as a LIKE pattern.
func (c Config) SchemaPattern() string {
	if c.Schema == "" {
		return "public"
	}
	return strings.ReplaceAll(c.Schema, "*", "%")
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// DSN constructs a PostgreSQL keyword/value connection string
func (c Config) DSN() string {
	return c.buildDSN(c.Password)
}

// MaskedDSN is DSN with the password hidden, for logs and error messages.
func (c Config) MaskedDSN() string {
	if c.Password == "" {
		return c.buildDSN("")
	}
	return c.buildDSN("****")
}

func (c Config) buildDSN(password string) string {
	var parts []string
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+dsnValue(value))
		}
	}

	add("host", c.Host)
	if c.Port != 0 {
		add("port", strconv.Itoa(c.Port))
	}
	add("dbname", c.Database)
	add("user", c.User)
	add("password", password)
	add("sslmode", c.SSLMode())
	add("connect_timeout", strconv.Itoa(int(c.timeout().Seconds())))
	add("application_name", "pgdiff")
	return strings.Join(parts, " ")
}

// dsnValue quotes a connection string value when it contains spaces,
// quotes or backslashes.
func dsnValue(v string) string {
	if !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Connect opens a database handle over pgx and verifies it with a ping
func Connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	log := logger.Get()

	log.Debug("Attempting database connection",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
		"user", cfg.User,
		"sslmode", cfg.SSLMode(),
	)

	conn, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		log.Debug("Database connection failed", "error", err)
		return nil, fmt.Errorf("failed to connect to database (%s): %w", cfg.MaskedDSN(), err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		log.Debug("Database ping failed", "error", err)
		conn.Close()
		return nil, fmt.Errorf("failed to ping database (%s): %w", cfg.MaskedDSN(), err)
	}

	log.Debug("Database connection established successfully")
	return conn, nil
}
