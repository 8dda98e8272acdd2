package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
)

const batchColumns = `id, sequence, mode, playlist_name, playlist_id, status, total, resolved, failed, final_count,
	error, started_at, finished_at, created_at, updated_at`

// BatchRepository implements models.Repository[*models.BatchRun] for batch history.
type BatchRepository struct {
	db *sql.DB
}

// NewBatchRepository creates a new BatchRepository with the given database connection
func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a batch with the next sequence number. Batches without an id get a generated one.
func (r *BatchRepository) Create(batch *models.BatchRun) error {
	if batch.ID() == "" {
		batch.SetID(shared.GenerateID())
	}
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "batches")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	batch.SetSequence(sequence)

	query := `
		INSERT INTO batches (` + batchColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		batch.ID(),
		sequence,
		batch.Mode,
		batch.PlaylistName,
		batch.PlaylistID,
		batch.Status,
		batch.Total,
		batch.Resolved,
		batch.Failed,
		batch.FinalCount,
		batch.Error,
		batch.StartedAt,
		batch.FinishedAt,
		batch.CreatedAt(),
		batch.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	return nil
}

// Get retrieves a batch by ID
func (r *BatchRepository) Get(id string) (*models.BatchRun, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = ?`
	return r.scan(r.db.QueryRow(query, id))
}

// GetBySequence retrieves a batch by its sequence number
func (r *BatchRepository) GetBySequence(sequence int) (*models.BatchRun, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE sequence = ?`
	return r.scan(r.db.QueryRow(query, sequence))
}

// Update stores the counts, status and playlist outcome of a batch
func (r *BatchRepository) Update(batch *models.BatchRun) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	batch.SetUpdatedAt(now)

	query := `
		UPDATE batches
		SET playlist_id = ?, status = ?, total = ?, resolved = ?, failed = ?, final_count = ?, error = ?,
			finished_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		batch.PlaylistID,
		batch.Status,
		batch.Total,
		batch.Resolved,
		batch.Failed,
		batch.FinalCount,
		batch.Error,
		batch.FinishedAt,
		now,
		batch.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update batch: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: batch %s", ErrNotFound, batch.ID())
	}

	return nil
}

// Delete removes a batch and, through the foreign key, its outcomes
func (r *BatchRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM batches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: batch %s", ErrNotFound, id)
	}

	return nil
}

// List retrieves batches newest first. Supported criteria: "status", "mode", "playlist_name" and "limit".
func (r *BatchRepository) List(criteria map[string]any) ([]*models.BatchRun, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE 1 = 1`
	args := []any{}

	if status, ok := criteria["status"].(models.BatchStatus); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if mode, ok := criteria["mode"].(models.BatchMode); ok && mode != "" {
		query += " AND mode = ?"
		args = append(args, mode)
	}

	if name, ok := criteria["playlist_name"].(string); ok && name != "" {
		query += " AND playlist_name = ?"
		args = append(args, name)
	}

	query += " ORDER BY sequence DESC"
	limit, args := limitClause(criteria, args)
	query += limit

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []*models.BatchRun
	for rows.Next() {
		batch, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return batches, nil
}

// scan reads one row into a [models.BatchRun]
func (r *BatchRepository) scan(row scanner) (*models.BatchRun, error) {
	var (
		id         string
		sequence   int
		mode       string
		name       string
		playlistID string
		status     string
		total      int
		resolved   int
		failed     int
		finalCount int
		errMsg     string
		startedAt  time.Time
		finishedAt sql.NullTime
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := row.Scan(&id, &sequence, &mode, &name, &playlistID, &status, &total, &resolved, &failed, &finalCount,
		&errMsg, &startedAt, &finishedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: batch", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan batch: %w", err)
	}

	batch := models.NewBatchRun(id, models.BatchMode(mode), name, startedAt)
	batch.SetSequence(sequence)
	batch.SetCreatedAt(createdAt)
	batch.SetUpdatedAt(updatedAt)
	batch.PlaylistID = playlistID
	batch.Status = models.BatchStatus(status)
	batch.Total = total
	batch.Resolved = resolved
	batch.Failed = failed
	batch.FinalCount = finalCount
	batch.Error = errMsg
	if finishedAt.Valid {
		batch.FinishedAt = &finishedAt.Time
	}

	return batch, nil
}
