package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/oemforge/oemforge/internal/model"
)

// MarkSkipped handles the pipeline driver's "LLM OK, 0 entries" transition
// (spec.md §4.H): taxonomy rows move to skipped (not extracted, since no
// config was ever resolved) and a flagged ingestion-log row is appended,
// atomically, with no schedule/fluid/config writes at all.
func MarkSkipped(ctx context.Context, db *sqlx.DB, taxonomyRows []model.VehicleTaxonomyEntry, requestID, engineCode, prompt, rawResponse string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: failed to begin skip transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, len(taxonomyRows))
	for i, row := range taxonomyRows {
		ids[i] = row.ID
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE vehicle_taxonomy SET schedule_status = 'skipped' WHERE id = ANY($1)
	`, pq.Array(ids)); err != nil {
		return fmt.Errorf("store: failed to mark taxonomy rows skipped: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ingestion_log (request_id, config_engine_code, prompt, raw_response, status)
		VALUES ($1,$2,$3,$4,$5)
	`, requestID, engineCode, truncate(prompt), truncate(rawResponse), model.StatusFlagged); err != nil {
		return fmt.Errorf("store: failed to append flagged ingestion log: %w", err)
	}

	return tx.Commit()
}
