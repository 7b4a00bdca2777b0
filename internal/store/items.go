package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/oemforge/oemforge/internal/model"
)

// LoadMaintenanceItems snapshots the full catalog for the canonicalizer's
// process-lifetime in-memory cache (spec.md §4.D, §9 "Global caches").
func LoadMaintenanceItems(ctx context.Context, db *sqlx.DB) ([]model.MaintenanceItem, error) {
	rows, err := db.QueryxContext(ctx, `SELECT id, name, category, aliases, powertrain_dependent FROM maintenance_items`)
	if err != nil {
		return nil, fmt.Errorf("store: failed to load maintenance items: %w", err)
	}
	defer rows.Close()

	var items []model.MaintenanceItem
	for rows.Next() {
		var item model.MaintenanceItem
		var aliases []string
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, pq.Array(&aliases), &item.PowertrainDependent); err != nil {
			return nil, fmt.Errorf("store: failed to scan maintenance item: %w", err)
		}
		item.Aliases = aliases
		items = append(items, item)
	}
	return items, rows.Err()
}

// LoadPendingTaxonomy fetches every vehicle_taxonomy row still awaiting
// extraction, optionally restricted to one make (case-insensitive), ordered
// by engine_code so the driver's per-process run order is stable (spec.md
// §4.H, §5 "processes configs in a stable order").
func LoadPendingTaxonomy(ctx context.Context, db *sqlx.DB, makeFilter string) ([]model.VehicleTaxonomyEntry, error) {
	query := `
		SELECT id, make, model, year, engine_code, displacement_liters, cylinder_count,
		       fuel_type, forced_induction, transmission_type, drive_type,
		       schedule_status, powertrain_config_id
		FROM vehicle_taxonomy
		WHERE schedule_status = 'pending'`
	args := []interface{}{}
	if makeFilter != "" {
		query += " AND make ILIKE $1"
		args = append(args, makeFilter)
	}
	query += " ORDER BY engine_code"

	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: failed to load pending taxonomy rows: %w", err)
	}
	defer rows.Close()

	var entries []model.VehicleTaxonomyEntry
	for rows.Next() {
		var e model.VehicleTaxonomyEntry
		var displacement *float64
		var cylinders *int
		var fuelType, forcedInduction, transmissionType, driveType *string
		if err := rows.Scan(&e.ID, &e.Make, &e.Model, &e.Year, &e.EngineCode, &displacement,
			&cylinders, &fuelType, &forcedInduction, &transmissionType, &driveType,
			&e.ScheduleStatus, &e.PowertrainConfigID); err != nil {
			return nil, fmt.Errorf("store: failed to scan vehicle taxonomy row: %w", err)
		}
		if displacement != nil {
			e.Displacement = *displacement
		}
		if cylinders != nil {
			e.Cylinders = *cylinders
		}
		if fuelType != nil {
			e.FuelType = *fuelType
		}
		if forcedInduction != nil {
			e.ForcedInduction = *forcedInduction
		}
		if transmissionType != nil {
			e.TransmissionType = *transmissionType
		}
		if driveType != nil {
			e.DriveType = *driveType
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LoadValidationRules snapshots the full rule set for the validator, loaded
// once at start per spec.md §4.E.
func LoadValidationRules(ctx context.Context, db *sqlx.DB) ([]model.ValidationRule, error) {
	var rules []model.ValidationRule
	err := db.SelectContext(ctx, &rules, `
		SELECT id, name, item_name_target, action_type_target,
		       min_interval_miles, max_interval_miles,
		       min_interval_months, max_interval_months, severity
		FROM validation_rules
	`)
	if err != nil {
		return nil, fmt.Errorf("store: failed to load validation rules: %w", err)
	}
	return rules, nil
}

// txItemStore adapts a single transaction to taxonomy.ItemStore so the
// canonicalizer can insert a brand-new catalog row as part of the
// Persister's single write transaction (spec.md §4.G, §I5 atomicity).
type txItemStore struct {
	tx *sqlx.Tx
}

func (s txItemStore) CreateMaintenanceItem(ctx context.Context, name, category string) (int64, error) {
	var id int64
	err := s.tx.QueryRowxContext(ctx, `
		INSERT INTO maintenance_items (name, category, aliases, powertrain_dependent)
		VALUES ($1, $2, ARRAY[$1]::text[], true)
		RETURNING id
	`, name, category).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: failed to create maintenance item %q: %w", name, err)
	}
	return id, nil
}
