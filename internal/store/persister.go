package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/oemforge/oemforge/internal/model"
	"github.com/oemforge/oemforge/internal/obslog"
	"github.com/oemforge/oemforge/internal/taxonomy"
	"github.com/oemforge/oemforge/internal/validate"
)

const maxLoggedFieldBytes = 10 * 1024

// PersistInput bundles everything one pipeline invocation's write needs.
type PersistInput struct {
	Source       SourceConfig
	TaxonomyRows []model.VehicleTaxonomyEntry
	LLM          model.LLMResponse
	RequestID    string
	Prompt       string
	RawResponse  string
	Status       model.IngestionStatus
}

// PersistResult reports what the transaction actually did.
type PersistResult struct {
	ConfigID    int64
	IsDuplicate bool
	EntryCount  int
	FluidCount  int
}

// Persist runs the six-step transactional write spec.md §4.G describes:
// resolve-or-create the config, insert normalized/canonicalized/validated
// schedule rows, upsert-merge fluid specs, insert vehicle applications,
// flip taxonomy rows to extracted, and append the ingestion log row — all
// atomically (I5). On any error in steps 1-5 the transaction is rolled
// back and a rejection record is logged in its own transaction instead.
func Persist(ctx context.Context, db *sqlx.DB, canon *taxonomy.Canonicalizer, validator *validate.Validator, input PersistInput) (PersistResult, error) {
	log := obslog.Get(obslog.CategoryStore)
	timer := obslog.StartTimer(obslog.CategoryStore, "Persist")
	defer timer.Stop()

	result, err := persistTx(ctx, db, canon, validator, input)
	if err != nil {
		log.Error("persist failed, rolling back: %v", err)
		if logErr := logRejection(ctx, db, input, err); logErr != nil {
			log.Error("failed to log rejection record: %v", logErr)
		}
		return PersistResult{}, err
	}
	return result, nil
}

func persistTx(ctx context.Context, db *sqlx.DB, canon *taxonomy.Canonicalizer, validator *validate.Validator, input PersistInput) (result PersistResult, err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return PersistResult{}, fmt.Errorf("store: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	configID, existing, err := ResolveConfig(ctx, tx, input.Source, input.LLM.Powertrain)
	if err != nil {
		return PersistResult{}, err
	}
	result.ConfigID = configID
	result.IsDuplicate = existing

	if !existing {
		itemStore := txItemStore{tx: tx}

		for _, entry := range input.LLM.ScheduleEntries {
			if err := insertScheduleEntry(ctx, tx, itemStore, canon, validator, configID, entry); err != nil {
				return PersistResult{}, err
			}
			result.EntryCount++
		}

		for _, fluid := range input.LLM.FluidSpecifications {
			if fluid.FluidType == "" {
				continue
			}
			if err := upsertFluidSpec(ctx, tx, configID, fluid); err != nil {
				return PersistResult{}, err
			}
			result.FluidCount++
		}
	}

	// Vehicle applications record which taxonomy rows point at configID and
	// are recorded even when the config already existed: two taxonomy rows
	// can share one deduplicated config without sharing one application row,
	// and insertVehicleApplications' own ON CONFLICT guard (migrations
	// 00001_init.sql) keeps this idempotent on repeat runs.
	if err := insertVehicleApplications(ctx, tx, configID, input.TaxonomyRows, input.LLM.Vehicle); err != nil {
		return PersistResult{}, err
	}

	taxonomyIDs := make([]int64, len(input.TaxonomyRows))
	for i, row := range input.TaxonomyRows {
		taxonomyIDs[i] = row.ID
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE vehicle_taxonomy SET schedule_status = 'extracted', powertrain_config_id = $1
		WHERE id = ANY($2)
	`, configID, pq.Array(taxonomyIDs)); err != nil {
		return PersistResult{}, fmt.Errorf("store: failed to update taxonomy status: %w", err)
	}

	status := input.Status
	if status == "" {
		status = model.StatusLoaded
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO ingestion_log
			(request_id, config_engine_code, prompt, raw_response, status,
			 entry_count, fluid_count, validation_notes, result_config_id, is_duplicate)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		input.RequestID, input.Source.EngineCode, truncate(input.Prompt), truncate(input.RawResponse),
		status, result.EntryCount, result.FluidCount, "", configID, result.IsDuplicate,
	); err != nil {
		return PersistResult{}, fmt.Errorf("store: failed to append ingestion log: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return PersistResult{}, fmt.Errorf("store: failed to commit: %w", err)
	}
	return result, nil
}

func insertScheduleEntry(ctx context.Context, tx *sqlx.Tx, itemStore txItemStore, canon *taxonomy.Canonicalizer, validator *validate.Validator, configID int64, entry model.LLMScheduleEntry) error {
	actionType := NormalizeActionType(entry.ActionType)

	itemID, _, err := canon.Canonicalize(ctx, itemStore, entry.ItemName)
	if err != nil {
		return fmt.Errorf("store: failed to canonicalize item %q: %w", entry.ItemName, err)
	}

	var relativeItemID *int64
	if entry.RelativeItemName != "" {
		rid, _, err := canon.Canonicalize(ctx, itemStore, entry.RelativeItemName)
		if err != nil {
			return fmt.Errorf("store: failed to resolve relative_item_name %q: %w", entry.RelativeItemName, err)
		}
		relativeItemID = &rid
	}

	validation := validator.Evaluate(validate.Entry{
		ItemName:       entry.ItemName,
		ActionType:     actionType,
		IntervalMiles:  intOrNil(entry.IntervalMiles),
		IntervalMonths: intOrNil(entry.IntervalMonths),
	})

	_, err = tx.ExecContext(ctx, `
		INSERT INTO maintenance_schedules
			(config_id, maintenance_item_id, action_type, interval_type, interval_miles, interval_months,
			 severe_interval_miles, severe_interval_months, severe_use_conditions, severe_condition_description,
			 severe_use_only, initial_miles, initial_months, relative_item_id, relative_multiplier,
			 fallback_interval_miles, fallback_interval_months, has_conditional_replacement,
			 conditional_replacement_note, requires_equipment, excludes_equipment,
			 applies_to_engine_codes, applies_to_trans_codes, applies_from_year, applies_to_year,
			 requirement_level, warranty_class, oem_description, oem_procedure_code, service_code,
			 data_source, confidence, needs_review, review_notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,'gemini_extracted',$31,$32,$33)
	`,
		configID, itemID, string(actionType), orDefault(entry.IntervalType, string(model.IntervalFixedRecurring)),
		intOrNil(entry.IntervalMiles), intOrNil(entry.IntervalMonths),
		intOrNil(entry.SevereIntervalMiles), intOrNil(entry.SevereIntervalMonths),
		pq.Array(entry.SevereUseConditions), strOrNil(entry.SevereConditionDescription),
		entry.SevereUseOnly, intOrNil(entry.InitialMiles), intOrNil(entry.InitialMonths),
		relativeItemID, floatOrNil(entry.RelativeMultiplier),
		intOrNil(entry.FallbackIntervalMiles), intOrNil(entry.FallbackIntervalMonths),
		entry.HasConditionalReplacement, strOrNil(entry.ConditionalReplacementNote),
		pq.Array(entry.RequiresEquipment), pq.Array(entry.ExcludesEquipment),
		pq.Array(entry.AppliesToEngineCodes), pq.Array(entry.AppliesToTransCodes),
		intOrNil(entry.AppliesFromYear), intOrNil(entry.AppliesToYear),
		strOrNil(entry.RequirementLevel), strOrNil(entry.WarrantyClass),
		strOrNil(entry.OEMDescription), strOrNil(entry.OEMProcedureCode), strOrNil(entry.ServiceCode),
		string(validation.Confidence), validation.NeedsReview, validation.Notes,
	)
	if err != nil {
		return fmt.Errorf("store: failed to insert schedule entry %q: %w", entry.ItemName, err)
	}
	return nil
}

func upsertFluidSpec(ctx context.Context, tx *sqlx.Tx, configID int64, fluid model.LLMFluidSpecification) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO fluid_specifications
			(config_id, fluid_type, capacity_liters, capacity_quarts, capacity_note,
			 fluid_spec, fluid_spec_alt, oem_part_number, fluid_warning)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (config_id, fluid_type) DO UPDATE SET
			capacity_liters = COALESCE(fluid_specifications.capacity_liters, EXCLUDED.capacity_liters),
			capacity_quarts = COALESCE(fluid_specifications.capacity_quarts, EXCLUDED.capacity_quarts),
			capacity_note   = COALESCE(fluid_specifications.capacity_note, EXCLUDED.capacity_note),
			fluid_spec      = COALESCE(fluid_specifications.fluid_spec, EXCLUDED.fluid_spec),
			fluid_spec_alt  = COALESCE(fluid_specifications.fluid_spec_alt, EXCLUDED.fluid_spec_alt),
			oem_part_number = COALESCE(fluid_specifications.oem_part_number, EXCLUDED.oem_part_number),
			fluid_warning   = COALESCE(fluid_specifications.fluid_warning, EXCLUDED.fluid_warning)
	`,
		configID, fluid.FluidType, floatOrNil(fluid.CapacityLiters), floatOrNil(fluid.CapacityQuarts),
		strOrNil(fluid.CapacityNote), strOrNil(fluid.FluidSpec), strOrNil(fluid.FluidSpecAlt),
		strOrNil(fluid.OEMPartNumber), strOrNil(fluid.FluidWarning),
	)
	if err != nil {
		return fmt.Errorf("store: failed to upsert fluid spec %q: %w", fluid.FluidType, err)
	}
	return nil
}

// insertVehicleApplications inserts one VehicleApplication per distinct
// (make, model) in the source taxonomy set, with year_start/year_end
// computed from that set's min/max year, deduplicating on conflict.
func insertVehicleApplications(ctx context.Context, tx *sqlx.Tx, configID int64, taxonomyRows []model.VehicleTaxonomyEntry, vehicle model.LLMVehicle) error {
	type key struct{ make, model string }
	ranges := make(map[key][2]int)

	for _, row := range taxonomyRows {
		k := key{row.Make, row.Model}
		r, ok := ranges[k]
		if !ok {
			ranges[k] = [2]int{row.Year, row.Year}
			continue
		}
		if row.Year < r[0] {
			r[0] = row.Year
		}
		if row.Year > r[1] {
			r[1] = row.Year
		}
		ranges[k] = r
	}

	for k, yearRange := range ranges {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO vehicle_applications (config_id, make, model, year_start, year_end, market, paradigm)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (config_id, make, model) DO NOTHING
		`, configID, k.make, k.model, yearRange[0], yearRange[1], vehicle.Market, vehicle.ScheduleParadigm)
		if err != nil {
			return fmt.Errorf("store: failed to insert vehicle application for %s %s: %w", k.make, k.model, err)
		}
	}
	return nil
}

// logRejection appends a rejected ingestion-log row in its own transaction,
// independent of the rolled-back write — spec.md §4.G's "log a rejection
// record in its own transaction" clause.
func logRejection(ctx context.Context, db *sqlx.DB, input PersistInput, cause error) error {
	return LogRejected(ctx, db, input.RequestID, input.Source.EngineCode, input.Prompt, input.RawResponse, cause)
}

// LogRejected appends a rejected ingestion-log row directly, for the driver
// to call when a run never reaches Persist at all — an LLM transport
// failure or an unrepairable JSON response (spec.md §7 kinds 1-3), or a
// failed MarkSkipped transaction. The
// taxonomy rows in question are left untouched (still pending).
func LogRejected(ctx context.Context, db *sqlx.DB, requestID, engineCode, prompt, rawResponse string, cause error) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO ingestion_log
			(request_id, config_engine_code, prompt, raw_response, status, validation_notes, is_duplicate)
		VALUES ($1,$2,$3,$4,$5,$6,false)
	`, requestID, engineCode, truncate(prompt), truncate(rawResponse),
		model.StatusRejected, cause.Error())
	return err
}

func truncate(s string) string {
	if len(s) <= maxLoggedFieldBytes {
		return s
	}
	return s[:maxLoggedFieldBytes]
}

func intOrNil(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func floatOrNil(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
