package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/facecheck/internal/database"
)

// historyEfSearch widens the pgvector HNSW candidate list for descriptor lookups.
const historyEfSearch = 64

// HistoryRepository provides PostgreSQL-backed match history storage
type HistoryRepository struct {
	pool *Pool
}

// NewHistoryRepository creates a new PostgreSQL history repository
func NewHistoryRepository(pool *Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Record stores one match event
func (r *HistoryRepository) Record(ctx context.Context, e database.MatchEvent) error {
	var descriptor any
	if len(e.Descriptor) > 0 {
		descriptor = pgvector.NewVector(e.Descriptor)
	}

	query := `
		INSERT INTO match_events (id, at, found, label, distance, photo_faces, photo_version, descriptor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		e.ID, e.At, e.Found, e.Label, e.Distance, e.PhotoFaces, e.PhotoVersion, descriptor)
	if err != nil {
		return fmt.Errorf("insert match event: %w", err)
	}
	return nil
}

// Recent returns the newest events first
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]database.MatchEvent, error) {
	query := `
		SELECT id, at, found, label, distance, photo_faces, photo_version, descriptor
		FROM match_events
		ORDER BY at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query match events: %w", err)
	}
	defer rows.Close()

	var events []database.MatchEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match events: %w", err)
	}
	return events, nil
}

// Count returns the total number of stored events
func (r *HistoryRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM match_events").Scan(&count); err != nil {
		return 0, fmt.Errorf("count match events: %w", err)
	}
	return count, nil
}

// FindSimilar finds events whose webcam descriptor is within maxDistance (euclidean)
func (r *HistoryRepository) FindSimilar(ctx context.Context, descriptor []float32, limit int, maxDistance float64) ([]database.MatchEvent, []float64, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", historyEfSearch)); err != nil {
		return nil, nil, fmt.Errorf("set ef_search: %w", err)
	}

	query := `
		SELECT id, at, found, label, distance, photo_faces, photo_version, descriptor,
		       descriptor <-> $1::vector AS similarity
		FROM match_events
		WHERE descriptor IS NOT NULL AND descriptor <-> $1::vector < $2
		ORDER BY similarity
		LIMIT $3
	`
	rows, err := tx.QueryContext(ctx, query, pgvector.NewVector(descriptor), maxDistance, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar match events: %w", err)
	}
	defer rows.Close()

	var events []database.MatchEvent
	var distances []float64
	for rows.Next() {
		var e database.MatchEvent
		var vec *pgvector.Vector
		var dist float64
		if err := rows.Scan(&e.ID, &e.At, &e.Found, &e.Label, &e.Distance,
			&e.PhotoFaces, &e.PhotoVersion, &vec, &dist); err != nil {
			return nil, nil, fmt.Errorf("scan match event: %w", err)
		}
		if vec != nil {
			e.Descriptor = vec.Slice()
		}
		events = append(events, e)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate similar match events: %w", err)
	}
	return events, distances, nil
}

func scanEvent(rows *sql.Rows) (database.MatchEvent, error) {
	var e database.MatchEvent
	var vec *pgvector.Vector
	if err := rows.Scan(&e.ID, &e.At, &e.Found, &e.Label, &e.Distance,
		&e.PhotoFaces, &e.PhotoVersion, &vec); err != nil {
		return e, fmt.Errorf("scan match event: %w", err)
	}
	if vec != nil {
		e.Descriptor = vec.Slice()
	}
	return e, nil
}
