package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/oemforge/oemforge/internal/model"
)

func TestMarkSkipped_UpdatesTaxonomyAndLogsFlagged(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vehicle_taxonomy SET schedule_status = 'skipped'")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ingestion_log")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rows := []model.VehicleTaxonomyEntry{{ID: 3}}
	err := MarkSkipped(context.Background(), db, rows, "req-5", "B4204T43", "prompt", `{"schedule_entries":[]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
