// Package postgres provides a PostgreSQL-backed episode store. Every
// pipeline stage's artifact (source transcript, speaker mapping, final
// script) is persisted after the stage succeeds, so a failed run can be
// inspected and a finished episode re-synthesized without repeating model
// calls.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlEpisodes = `
CREATE TABLE IF NOT EXISTS episodes (
    id          TEXT         PRIMARY KEY,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transcript_lines (
    episode_id  TEXT         NOT NULL REFERENCES episodes (id) ON DELETE CASCADE,
    position    INT          NOT NULL,
    speaker     TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    PRIMARY KEY (episode_id, position)
);

CREATE TABLE IF NOT EXISTS speaker_mappings (
    episode_id   TEXT  NOT NULL REFERENCES episodes (id) ON DELETE CASCADE,
    chunk_number INT   NOT NULL,
    original_id  TEXT  NOT NULL,
    global_name  TEXT  NOT NULL,
    PRIMARY KEY (episode_id, chunk_number, original_id)
);

CREATE TABLE IF NOT EXISTS script_lines (
    episode_id  TEXT  NOT NULL REFERENCES episodes (id) ON DELETE CASCADE,
    position    INT   NOT NULL,
    speaker     TEXT  NOT NULL,
    text        TEXT  NOT NULL,
    PRIMARY KEY (episode_id, position)
);

CREATE INDEX IF NOT EXISTS idx_mappings_episode
    ON speaker_mappings (episode_id);
`

// Migrate creates or ensures all required tables exist. It is idempotent and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlEpisodes); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
