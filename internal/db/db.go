package db

import (
	"fmt"
	log "log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"discord-chat/internal/config"
)

// Connect initializes the database connection and runs migrations.
func Connect(cfg config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if cfg.MaxOpen > 0 {
		db.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS servers (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            invite_code TEXT NOT NULL UNIQUE,
            profile_id TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS members (
            id BIGSERIAL PRIMARY KEY,
            role TEXT NOT NULL DEFAULT 'GUEST',
            profile_id TEXT NOT NULL,
            server_id BIGINT NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(profile_id, server_id)
        );`,
	`CREATE TABLE IF NOT EXISTS channels (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            type TEXT NOT NULL DEFAULT 'TEXT',
            profile_id TEXT NOT NULL,
            server_id BIGINT NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS conversations (
            id BIGSERIAL PRIMARY KEY,
            member_one_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
            member_two_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(member_one_id, member_two_id)
        );`,
	`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            content TEXT,
            file_url TEXT,
            member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
            channel_id BIGINT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
            deleted BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS messages_channel_id_id_idx ON messages (channel_id, id DESC);`,
	`CREATE TABLE IF NOT EXISTS direct_messages (
            id BIGSERIAL PRIMARY KEY,
            content TEXT,
            file_url TEXT,
            member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
            conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            deleted BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS direct_messages_conversation_id_id_idx ON direct_messages (conversation_id, id DESC);`,
	`ALTER TABLE servers ADD COLUMN IF NOT EXISTS image_url TEXT NOT NULL DEFAULT '';`,
}

func runMigrations(db *sqlx.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	log.Info("database migrations applied", "count", len(migrations))
	return nil
}
