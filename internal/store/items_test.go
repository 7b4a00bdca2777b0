package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestLoadValidationRules_StructScanMatchesSnakeCaseColumns(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, item_name_target, action_type_target")).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "item_name_target", "action_type_target",
			"min_interval_miles", "max_interval_miles",
			"min_interval_months", "max_interval_months", "severity",
		}).AddRow(int64(1), "oil interval sanity", "Engine Oil", "replace", 3000, 10000, nil, nil, "warning"))

	rules, err := LoadValidationRules(context.Background(), db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	rule := rules[0]
	if rule.Name != "oil interval sanity" {
		t.Fatalf("expected Name to be populated via struct-tag scan, got %q", rule.Name)
	}
	if rule.ItemNameTarget == nil || *rule.ItemNameTarget != "Engine Oil" {
		t.Fatalf("expected ItemNameTarget to scan from item_name_target, got %+v", rule.ItemNameTarget)
	}
	if rule.MinIntervalMiles == nil || *rule.MinIntervalMiles != 3000 {
		t.Fatalf("expected MinIntervalMiles to scan from min_interval_miles, got %+v", rule.MinIntervalMiles)
	}
	if rule.MaxIntervalMiles == nil || *rule.MaxIntervalMiles != 10000 {
		t.Fatalf("expected MaxIntervalMiles to scan from max_interval_miles, got %+v", rule.MaxIntervalMiles)
	}
	if rule.Severity != "warning" {
		t.Fatalf("expected Severity to scan from severity, got %q", rule.Severity)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoadMaintenanceItems_ScansAliases(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, category")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "aliases", "powertrain_dependent"}).
			AddRow(int64(1), "Engine Oil", "engine", `{"oil change","oil svc"}`, false))

	items, err := LoadMaintenanceItems(context.Background(), db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Engine Oil" {
		t.Fatalf("expected one Engine Oil row, got %+v", items)
	}
}
