package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/oemforge/oemforge/internal/model"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	db := sqlx.NewDb(rawDB, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestResolveConfig_HitReturnsExistingID(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM powertrain_configs")).
		WithArgs("B4204T43", "awd", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	tx, err := db.Beginx()
	if err != nil {
		t.Fatalf("unexpected error beginning tx: %v", err)
	}

	id, existing, err := ResolveConfig(context.Background(), tx, SourceConfig{
		EngineCode: "B4204T43",
		DriveType:  "awd",
	}, model.LLMPowertrain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !existing || id != 42 {
		t.Fatalf("expected existing=true id=42, got existing=%v id=%d", existing, id)
	}
}

func TestResolveConfig_MissInsertsMergedRow(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM powertrain_configs")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO powertrain_configs")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	tx, err := db.Beginx()
	if err != nil {
		t.Fatalf("unexpected error beginning tx: %v", err)
	}

	id, existing, err := ResolveConfig(context.Background(), tx, SourceConfig{
		EngineCode: "B4204T43",
		DriveType:  "awd",
	}, model.LLMPowertrain{EngineFamily: "Modular", CylinderCount: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if existing || id != 7 {
		t.Fatalf("expected existing=false id=7, got existing=%v id=%d", existing, id)
	}
}

func TestMergeConfigFields_SourceWinsOverLLM(t *testing.T) {
	sourceFamily := "EA888"
	source := SourceConfig{EngineCode: "EA888", DriveType: "fwd", EngineFamily: &sourceFamily}
	llm := model.LLMPowertrain{EngineFamily: "Should Not Win", CylinderCount: 4}

	merged := mergeConfigFields(source, llm)
	if merged.EngineFamily == nil || *merged.EngineFamily != sourceFamily {
		t.Fatalf("expected source's engine family to win, got %v", merged.EngineFamily)
	}
	if merged.CylinderCount == nil || *merged.CylinderCount != 4 {
		t.Fatalf("expected LLM to fill the cylinder count source left nil, got %v", merged.CylinderCount)
	}
}
