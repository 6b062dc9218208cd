package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

type dialect string

const (
	dialectPostgres dialect = "postgres"
	dialectMySQL    dialect = "mysql"
	dialectSQLite   dialect = "sqlite"
)

// SQLStore persists preferences in a relational database.
// Every write is a single statement (or one transaction), so concurrent
// readers observe either the old or the new row.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	locks   *guildLocks
	log     zerolog.Logger
}

func openSQL(d dialect, cfg Config, log zerolog.Logger) (*SQLStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%s: database DSN is required", d)
	}

	switch d {
	case dialectMySQL:
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		// Report matched rows, not changed rows, so an unchanged value still
		// counts as a known guild.
		mc.ClientFoundRows = true
		mc.ParseTime = true
		dsn = mc.FormatDSN()
	case dialectSQLite:
		if dsn != ":memory:" {
			if dir := filepath.Dir(dsn); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("create sqlite dir: %w", err)
				}
			}
		}
	}

	db, err := sql.Open(string(d), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}

	if d == dialectSQLite {
		// SQLite prefers a single writer connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 25))
		db.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 5))
		lifetime := cfg.ConnMaxLifetime
		if lifetime <= 0 {
			lifetime = 5 * time.Minute
		}
		db.SetConnMaxLifetime(lifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}

	s := &SQLStore{db: db, dialect: d, locks: newGuildLocks(), log: log}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Msg("preference store ready")
	return s, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// migrate creates the tables if they do not exist yet.
func (s *SQLStore) migrate(ctx context.Context) error {
	var stmts []string
	switch s.dialect {
	case dialectPostgres:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS preferences (
				guild_id   TEXT PRIMARY KEY,
				everyone   BOOLEAN NOT NULL DEFAULT TRUE,
				roles      BOOLEAN NOT NULL DEFAULT TRUE,
				members    BOOLEAN NOT NULL DEFAULT FALSE,
				channel_id TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS guilds (
				guild_id  TEXT PRIMARY KEY,
				joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		}
	case dialectMySQL:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS preferences (
				guild_id   VARCHAR(32) PRIMARY KEY,
				everyone   BOOLEAN NOT NULL DEFAULT TRUE,
				roles      BOOLEAN NOT NULL DEFAULT TRUE,
				members    BOOLEAN NOT NULL DEFAULT FALSE,
				channel_id VARCHAR(32) NULL
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS guilds (
				guild_id  VARCHAR(32) PRIMARY KEY,
				joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	case dialectSQLite:
		stmts = []string{
			`PRAGMA journal_mode = WAL`,
			`PRAGMA synchronous = NORMAL`,
			`CREATE TABLE IF NOT EXISTS preferences (
				guild_id   TEXT PRIMARY KEY,
				everyone   INTEGER NOT NULL DEFAULT 1,
				roles      INTEGER NOT NULL DEFAULT 1,
				members    INTEGER NOT NULL DEFAULT 0,
				channel_id TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS guilds (
				guild_id  TEXT PRIMARY KEY,
				joined_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		}
	default:
		return fmt.Errorf("unsupported dialect: %s", s.dialect)
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.dialect, err)
		}
	}
	return nil
}

// ph returns the n-th (1-based) bind placeholder for the dialect.
func (s *SQLStore) ph(n int) string {
	if s.dialect == dialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (s *SQLStore) Get(ctx context.Context, guildID string) (GuildPreferences, error) {
	p := GuildPreferences{GuildID: guildID}
	var channel sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT everyone, roles, members, channel_id FROM preferences WHERE guild_id = `+s.ph(1),
		guildID,
	).Scan(&p.Everyone, &p.Roles, &p.Members, &channel)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(guildID), nil
	}
	if err != nil {
		return GuildPreferences{}, fmt.Errorf("get preferences: %w", err)
	}
	if channel.Valid {
		p.ChannelID = channel.String
	}
	return p, nil
}

func (s *SQLStore) CreateDefaults(ctx context.Context, guildID string) error {
	unlock := s.locks.lock(guildID)
	defer unlock()

	var prefsStmt, guildStmt string
	switch s.dialect {
	case dialectMySQL:
		prefsStmt = `INSERT IGNORE INTO preferences (guild_id, everyone, roles, members) VALUES (?, ?, ?, ?)`
		guildStmt = `INSERT IGNORE INTO guilds (guild_id) VALUES (?)`
	default:
		prefsStmt = fmt.Sprintf(`INSERT INTO preferences (guild_id, everyone, roles, members) VALUES (%s, %s, %s, %s)
			ON CONFLICT (guild_id) DO NOTHING`, s.ph(1), s.ph(2), s.ph(3), s.ph(4))
		guildStmt = `INSERT INTO guilds (guild_id) VALUES (` + s.ph(1) + `) ON CONFLICT (guild_id) DO NOTHING`
	}
	return s.inTx(ctx, "create defaults", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, prefsStmt, guildID, DefaultEveryone, DefaultRoles, DefaultMembers); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, guildStmt, guildID)
		return err
	})
}

func (s *SQLStore) SetMentionFlag(ctx context.Context, guildID string, c Category, on bool) error {
	col, ok := c.column()
	if !ok {
		return ErrUnknownCategory
	}
	unlock := s.locks.lock(guildID)
	defer unlock()

	stmt := fmt.Sprintf(`UPDATE preferences SET %s = %s WHERE guild_id = %s`, col, s.ph(1), s.ph(2))
	return s.update(ctx, "set "+col, stmt, on, guildID)
}

func (s *SQLStore) SetChannel(ctx context.Context, guildID, channelID string) error {
	unlock := s.locks.lock(guildID)
	defer unlock()

	var channel any
	if channelID != "" {
		channel = channelID
	}
	stmt := fmt.Sprintf(`UPDATE preferences SET channel_id = %s WHERE guild_id = %s`, s.ph(1), s.ph(2))
	return s.update(ctx, "set channel_id", stmt, channel, guildID)
}

// update runs a single-row UPDATE and treats zero matched rows as an unknown guild.
func (s *SQLStore) update(ctx context.Context, op, stmt string, value any, guildID string) error {
	res, err := s.db.ExecContext(ctx, stmt, value, guildID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.log.Warn().Str("guild_id", guildID).Str("op", op).Msg("update for unknown guild ignored")
	}
	return nil
}

func (s *SQLStore) ResetToDefaults(ctx context.Context, guildID string) error {
	unlock := s.locks.lock(guildID)
	defer unlock()

	var stmt string
	switch s.dialect {
	case dialectMySQL:
		stmt = `INSERT INTO preferences (guild_id, everyone, roles, members, channel_id) VALUES (?, ?, ?, ?, NULL)
			ON DUPLICATE KEY UPDATE everyone = VALUES(everyone), roles = VALUES(roles), members = VALUES(members), channel_id = NULL`
	default:
		stmt = fmt.Sprintf(`INSERT INTO preferences (guild_id, everyone, roles, members, channel_id) VALUES (%s, %s, %s, %s, NULL)
			ON CONFLICT (guild_id) DO UPDATE SET everyone = EXCLUDED.everyone, roles = EXCLUDED.roles,
			members = EXCLUDED.members, channel_id = NULL`, s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	}
	if _, err := s.db.ExecContext(ctx, stmt, guildID, DefaultEveryone, DefaultRoles, DefaultMembers); err != nil {
		return fmt.Errorf("reset preferences: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, guildID string) error {
	unlock := s.locks.lock(guildID)
	defer unlock()

	return s.inTx(ctx, "delete", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM preferences WHERE guild_id = `+s.ph(1), guildID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM guilds WHERE guild_id = `+s.ph(1), guildID)
		return err
	})
}

func (s *SQLStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
