package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/listmirror/listmirror/internal/apierror"
	"github.com/listmirror/listmirror/model"
)

// RecordSyncAttempt appends a finished attempt row to the checkpoint
// journal. The row carries its final status and counts; nothing ever
// updates it afterwards.
func (d Datasource) RecordSyncAttempt(ctx context.Context, attempt *model.SyncAttempt) (*model.SyncAttempt, error) {
	if attempt.AttemptID == "" {
		attempt.AttemptID = model.GenerateUUIDWithSuffix("atm")
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	if attempt.LastProcessedAt.IsZero() {
		attempt.LastProcessedAt = attempt.CreatedAt
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO listmirror.sync_attempts
			(attempt_id, site_id, list_id, delta_link, status, last_error, subscription_id, successful_items, failed_items, created_at, last_processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, attempt.AttemptID, attempt.SiteID, attempt.ListID, attempt.DeltaLink, attempt.Status,
		attempt.LastError, attempt.SubscriptionID, attempt.SuccessfulItems, attempt.FailedItems,
		attempt.CreatedAt, attempt.LastProcessedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Sync attempt with this ID already exists", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record sync attempt", err)
	}

	return attempt, nil
}

// CurrentWatermark resolves the effective delta cursor for a (site,
// list) pair: the delta link of the most recently created attempt that
// has one. An empty journal resolves to the bootstrap sentinel.
func (d Datasource) CurrentWatermark(ctx context.Context, siteID, listID string) (string, error) {
	var deltaLink string
	err := d.Conn.QueryRowContext(ctx, `
		SELECT delta_link
		FROM listmirror.sync_attempts
		WHERE site_id = $1 AND list_id = $2 AND delta_link IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, siteID, listID).Scan(&deltaLink)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.WatermarkLatest, nil
		}
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to resolve watermark", err)
	}
	return deltaLink, nil
}

// GetSyncAttempts returns journal rows for a (site, list) pair, newest
// first. Used for manual diagnosis of archived messages.
func (d Datasource) GetSyncAttempts(ctx context.Context, siteID, listID string, limit, offset int) ([]model.SyncAttempt, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT attempt_id, site_id, list_id, delta_link, status, last_error, subscription_id, successful_items, failed_items, created_at, last_processed_at
		FROM listmirror.sync_attempts
		WHERE site_id = $1 AND list_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, siteID, listID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve sync attempts", err)
	}
	defer rows.Close()

	attempts := []model.SyncAttempt{}

	for rows.Next() {
		attempt := model.SyncAttempt{}
		err = rows.Scan(&attempt.AttemptID, &attempt.SiteID, &attempt.ListID, &attempt.DeltaLink,
			&attempt.Status, &attempt.LastError, &attempt.SubscriptionID,
			&attempt.SuccessfulItems, &attempt.FailedItems, &attempt.CreatedAt, &attempt.LastProcessedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan sync attempt data", err)
		}
		attempts = append(attempts, attempt)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over sync attempts", err)
	}

	return attempts, nil
}
