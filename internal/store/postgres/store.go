package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/podforge-ai/podforge/internal/pipeline"
	"github.com/podforge-ai/podforge/internal/reconcile"
	"github.com/podforge-ai/podforge/internal/transcript"
)

// Compile-time interface check.
var _ pipeline.Store = (*Store)(nil)

// Store persists episode artifacts in PostgreSQL behind a single
// [pgxpool.Pool]. All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn and runs
// [Migrate] to ensure all required tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("episode store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("episode store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("episode store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ensureEpisode upserts the episode row inside tx.
func ensureEpisode(ctx context.Context, tx pgx.Tx, episodeID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO episodes (id) VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET updated_at = now()`,
		episodeID)
	return err
}

// saveLines replaces the rows of a positional line table for one episode.
func saveLines(ctx context.Context, tx pgx.Tx, table, episodeID string, lines []transcript.Line) error {
	if _, err := tx.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE episode_id = $1`, table), episodeID); err != nil {
		return err
	}
	for i, l := range lines {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (episode_id, position, speaker, text) VALUES ($1, $2, $3, $4)`, table),
			episodeID, i, l.Speaker, l.Text); err != nil {
			return err
		}
	}
	return nil
}

// inTx runs fn inside a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SaveTranscript stores the source transcript, replacing any previous rows
// for the episode.
func (s *Store) SaveTranscript(ctx context.Context, episodeID string, lines []transcript.Line) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := ensureEpisode(ctx, tx, episodeID); err != nil {
			return err
		}
		return saveLines(ctx, tx, "transcript_lines", episodeID, lines)
	})
	if err != nil {
		return fmt.Errorf("episode store: save transcript: %w", err)
	}
	return nil
}

// SaveMappings stores the resolved speaker mapping, replacing any previous
// mapping for the episode.
func (s *Store) SaveMappings(ctx context.Context, episodeID string, mappings []reconcile.SpeakerMapping) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := ensureEpisode(ctx, tx, episodeID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM speaker_mappings WHERE episode_id = $1`, episodeID); err != nil {
			return err
		}
		for _, m := range mappings {
			if _, err := tx.Exec(ctx, `
				INSERT INTO speaker_mappings (episode_id, chunk_number, original_id, global_name)
				VALUES ($1, $2, $3, $4)`,
				episodeID, m.ChunkNumber, m.OriginalID, m.GlobalName); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("episode store: save mappings: %w", err)
	}
	return nil
}

// SaveScript stores the generated script, replacing any previous script for
// the episode.
func (s *Store) SaveScript(ctx context.Context, episodeID string, lines []transcript.Line) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := ensureEpisode(ctx, tx, episodeID); err != nil {
			return err
		}
		return saveLines(ctx, tx, "script_lines", episodeID, lines)
	})
	if err != nil {
		return fmt.Errorf("episode store: save script: %w", err)
	}
	return nil
}

// LoadScript returns the stored script for an episode in position order.
// Returns pgx.ErrNoRows via the scan when the episode has no script.
func (s *Store) LoadScript(ctx context.Context, episodeID string) ([]transcript.Line, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT speaker, text FROM script_lines
		WHERE episode_id = $1 ORDER BY position`,
		episodeID)
	if err != nil {
		return nil, fmt.Errorf("episode store: load script: %w", err)
	}
	defer rows.Close()

	var lines []transcript.Line
	for rows.Next() {
		var l transcript.Line
		if err := rows.Scan(&l.Speaker, &l.Text); err != nil {
			return nil, fmt.Errorf("episode store: scan script line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("episode store: load script: %w", err)
	}
	return lines, nil
}

// LoadMappings returns the stored speaker mapping for an episode.
func (s *Store) LoadMappings(ctx context.Context, episodeID string) ([]reconcile.SpeakerMapping, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chunk_number, original_id, global_name FROM speaker_mappings
		WHERE episode_id = $1 ORDER BY chunk_number, original_id`,
		episodeID)
	if err != nil {
		return nil, fmt.Errorf("episode store: load mappings: %w", err)
	}
	defer rows.Close()

	var mappings []reconcile.SpeakerMapping
	for rows.Next() {
		var m reconcile.SpeakerMapping
		if err := rows.Scan(&m.ChunkNumber, &m.OriginalID, &m.GlobalName); err != nil {
			return nil, fmt.Errorf("episode store: scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("episode store: load mappings: %w", err)
	}
	return mappings, nil
}
