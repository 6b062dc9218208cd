package prefs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrUnknownDriver   = errors.New("unknown preference store driver")
	ErrUnknownCategory = errors.New("unknown mention category")
)

// Config selects and configures a backend.
//
// Driver values:
//   - "memory" (or empty): in-process map, nothing survives a restart
//   - "sqlite": DSN is a file path
//   - "postgres": DSN is a lib/pq connection string or URL
//   - "mysql": DSN is a go-sql-driver/mysql DSN
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open initializes the configured store and its schema.
func Open(cfg Config, log zerolog.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	log = log.With().Str("component", "prefs").Str("driver", driver).Logger()

	var d dialect
	switch driver {
	case "", "memory":
		log.Info().Msg("no database configured, preferences are kept in memory")
		return NewMemoryStore(log), nil
	case "sqlite", "sqlite3":
		d = dialectSQLite
	case "postgres", "postgresql":
		d = dialectPostgres
	case "mysql":
		d = dialectMySQL
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
	s, err := openSQL(d, cfg, log)
	if err != nil {
		return nil, err
	}
	return s, nil
}
