package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
)

const outcomeColumns = `id, batch_id, position, title, artist, album, source_path, library_path, remote_id,
	status, error_kind, error, created_at`

// OutcomeRepository implements models.Repository[*models.TrackOutcomeRecord] for per-track history.
type OutcomeRepository struct {
	db *sql.DB
}

// NewOutcomeRepository creates a new OutcomeRepository with the given database connection
func NewOutcomeRepository(db *sql.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Create inserts one outcome
func (r *OutcomeRepository) Create(outcome *models.TrackOutcomeRecord) error {
	return r.CreateAll([]*models.TrackOutcomeRecord{outcome})
}

// CreateAll inserts outcomes in a single transaction; either all are stored or none.
func (r *OutcomeRepository) CreateAll(outcomes []*models.TrackOutcomeRecord) error {
	if len(outcomes) == 0 {
		return nil
	}

	now := time.Now()
	for _, o := range outcomes {
		if o.ID() == "" {
			o.SetID(shared.GenerateID())
		}
		if o.CreatedAt().IsZero() {
			o.SetCreatedAt(now)
		}
		if err := o.Validate(); err != nil {
			return fmt.Errorf("validation failed for position %d: %w", o.Position, err)
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO track_outcomes (` + outcomeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		_, err := stmt.Exec(
			o.ID(),
			o.BatchID,
			o.Position,
			o.Title,
			o.Artist,
			o.Album,
			o.SourcePath,
			o.LibraryPath,
			o.RemoteID,
			o.Status,
			o.ErrorKind,
			o.Error,
			o.CreatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert outcome %d: %w", o.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outcomes: %w", err)
	}
	return nil
}

// Get retrieves an outcome by ID
func (r *OutcomeRepository) Get(id string) (*models.TrackOutcomeRecord, error) {
	query := `SELECT ` + outcomeColumns + ` FROM track_outcomes WHERE id = ?`
	return r.scan(r.db.QueryRow(query, id))
}

// Update stores a changed status, e.g. after a manual fix resolved the track
func (r *OutcomeRepository) Update(outcome *models.TrackOutcomeRecord) error {
	if err := outcome.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE track_outcomes
		SET library_path = ?, remote_id = ?, status = ?, error_kind = ?, error = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		outcome.LibraryPath,
		outcome.RemoteID,
		outcome.Status,
		outcome.ErrorKind,
		outcome.Error,
		outcome.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update outcome: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: outcome %s", ErrNotFound, outcome.ID())
	}

	return nil
}

// Delete removes an outcome by ID
func (r *OutcomeRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM track_outcomes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete outcome: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: outcome %s", ErrNotFound, id)
	}

	return nil
}

// List retrieves outcomes in batch and input order. Supported criteria: "batch_id", "status",
// "error_kind" and "limit".
func (r *OutcomeRepository) List(criteria map[string]any) ([]*models.TrackOutcomeRecord, error) {
	query := `SELECT ` + outcomeColumns + ` FROM track_outcomes WHERE 1 = 1`
	args := []any{}

	if batchID, ok := criteria["batch_id"].(string); ok && batchID != "" {
		query += " AND batch_id = ?"
		args = append(args, batchID)
	}

	if status, ok := criteria["status"].(models.OutcomeStatus); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if kind, ok := criteria["error_kind"].(string); ok && kind != "" {
		query += " AND error_kind = ?"
		args = append(args, kind)
	}

	query += " ORDER BY created_at ASC, batch_id ASC, position ASC"
	limit, args := limitClause(criteria, args)
	query += limit

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*models.TrackOutcomeRecord
	for rows.Next() {
		outcome, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return outcomes, nil
}

// ListByBatch retrieves every outcome of a batch in input order
func (r *OutcomeRepository) ListByBatch(batchID string) ([]*models.TrackOutcomeRecord, error) {
	return r.List(map[string]any{"batch_id": batchID})
}

// scan reads one row into a [models.TrackOutcomeRecord]
func (r *OutcomeRepository) scan(row scanner) (*models.TrackOutcomeRecord, error) {
	var (
		id        string
		status    string
		createdAt time.Time
		o         models.TrackOutcomeRecord
	)

	err := row.Scan(&id, &o.BatchID, &o.Position, &o.Title, &o.Artist, &o.Album, &o.SourcePath, &o.LibraryPath,
		&o.RemoteID, &status, &o.ErrorKind, &o.Error, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: outcome", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan outcome: %w", err)
	}

	o.Status = models.OutcomeStatus(status)
	o.SetID(id)
	o.SetCreatedAt(createdAt)
	return &o, nil
}
