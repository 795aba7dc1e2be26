package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/listmirror/listmirror/internal/apierror"
	"github.com/listmirror/listmirror/model"
	"github.com/sirupsen/logrus"
)

// GetArtifactByHashAndSize looks an artifact up by its dedup key.
// Returns nil without error when the content has never been seen.
func (d Datasource) GetArtifactByHashAndSize(ctx context.Context, hash string, size int64) (*model.ArtifactRecord, error) {
	record := model.ArtifactRecord{}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT artifact_id, content_hash, content_size, source_item_id, status, processing_error, row_count, attempt_id, created_at
		FROM listmirror.artifacts
		WHERE content_hash = $1 AND content_size = $2
	`, hash, size)

	var attemptID sql.NullString
	err := row.Scan(&record.ArtifactID, &record.ContentHash, &record.ContentSize, &record.SourceItemID,
		&record.Status, &record.ProcessingError, &record.RowCount, &attemptID, &record.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve artifact", err)
	}
	record.AttemptID = attemptID.String

	return &record, nil
}

// IngestArtifact writes an artifact record and every row derived from
// its tables inside one transaction. Any prior record with the same
// dedup key is deleted first, which cascades to its derived rows, so
// re-ingesting content can never duplicate output. A failure on any
// table rolls the whole step back.
func (d Datasource) IngestArtifact(ctx context.Context, record *model.ArtifactRecord, tables []model.Table) (*model.ArtifactRecord, error) {
	if record.ArtifactID == "" {
		record.ArtifactID = model.GenerateUUIDWithSuffix("art")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin ingest transaction", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logrus.Error(err)
		}
	}()

	// Clear any unfinished prior attempt at the same content. The
	// cascade on artifact_id removes its derived rows with it.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM listmirror.artifacts
		WHERE content_hash = $1 AND content_size = $2
	`, record.ContentHash, record.ContentSize)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to clear prior artifact", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO listmirror.artifacts
			(artifact_id, content_hash, content_size, source_item_id, status, row_count, attempt_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, record.ArtifactID, record.ContentHash, record.ContentSize, record.SourceItemID,
		model.ArtifactPending, 0, record.AttemptID, record.CreatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create artifact record", err)
	}

	rowCount, err := loadTables(tx, d.Registry, record.ArtifactID, tables)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE listmirror.artifacts
		SET status = $1, row_count = $2
		WHERE artifact_id = $3
	`, model.ArtifactProcessed, rowCount, record.ArtifactID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to finalize artifact record", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit ingest transaction", err)
	}

	record.Status = model.ArtifactProcessed
	record.RowCount = rowCount
	return record, nil
}
