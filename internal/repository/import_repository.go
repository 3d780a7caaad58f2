package repository

import (
	"crew-import/internal/models"

	"github.com/jmoiron/sqlx"
)

const importRunsSchema = `CREATE TABLE IF NOT EXISTS import_runs (
	id INT AUTO_INCREMENT PRIMARY KEY,
	batch_id VARCHAR(64) NOT NULL,
	entity VARCHAR(32) NOT NULL,
	source VARCHAR(16) NOT NULL DEFAULT 'json',
	total_rows INT NOT NULL DEFAULT 0,
	ok_rows INT NOT NULL DEFAULT 0,
	failed_rows INT NOT NULL DEFAULT 0,
	validation_errors INT NOT NULL DEFAULT 0,
	skipped_duplicates INT NOT NULL DEFAULT 0,
	company_id BIGINT NOT NULL DEFAULT 0,
	status VARCHAR(16) NOT NULL,
	message TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE KEY uq_import_runs_batch (batch_id),
	KEY idx_import_runs_entity_created (entity, created_at)
)`

const importRunColumns = "id, batch_id, entity, source, total_rows, ok_rows, failed_rows, validation_errors, skipped_duplicates, company_id, status, message, created_at"

type ImportRepository struct {
	db *sqlx.DB
}

func NewImportRepository(db *sqlx.DB) *ImportRepository {
	return &ImportRepository{db: db}
}

// EnsureSchema creates the history table on first start.
func (r *ImportRepository) EnsureSchema() error {
	_, err := r.db.Exec(importRunsSchema)
	return err
}

func (r *ImportRepository) Create(run *models.ImportRun) error {
	query := `INSERT INTO import_runs (batch_id, entity, source, total_rows, ok_rows, failed_rows,
	          validation_errors, skipped_duplicates, company_id, status, message)
	          VALUES (:batch_id, :entity, :source, :total_rows, :ok_rows, :failed_rows,
	          :validation_errors, :skipped_duplicates, :company_id, :status, :message)`
	result, err := r.db.NamedExec(query, run)
	if err != nil {
		return err
	}
	id, _ := result.LastInsertId()
	run.ID = int(id)
	return nil
}

func (r *ImportRepository) GetByBatchID(batchID string) (*models.ImportRun, error) {
	var run models.ImportRun
	query := "SELECT " + importRunColumns + " FROM import_runs WHERE batch_id = ? LIMIT 1"
	err := r.db.Get(&run, query, batchID)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRuns lists history newest first, optionally for one entity.
func (r *ImportRepository) GetRuns(limit, offset int, entity string) ([]models.ImportRun, int, error) {
	var runs []models.ImportRun
	var total int

	whereClause := ""
	args := []interface{}{}

	if entity != "" {
		whereClause = "WHERE entity = ?"
		args = append(args, entity)
	}

	countQuery := "SELECT COUNT(*) FROM import_runs " + whereClause
	err := r.db.Get(&total, countQuery, args...)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + importRunColumns + " FROM import_runs " + whereClause + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)
	err = r.db.Select(&runs, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}
