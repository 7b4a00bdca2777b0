package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/oemforge/oemforge/internal/model"
	"github.com/oemforge/oemforge/internal/obslog"
)

// SourceConfig carries the fields known from the vehicle_taxonomy row
// driving this run, before the LLM's powertrain block is merged in.
type SourceConfig struct {
	EngineCode       string
	TransmissionCode *string
	DriveType        string
	EngineFamily     *string
	Displacement     *float64
	CylinderCount    *int
	FuelType         *string
	ForcedInduction  *string
	TransmissionType *string
}

// ResolveConfig finds or creates the PowertrainConfig for source merged with
// llm (source fields win, llm fills only what source left nil), per spec.md
// §4.F. existing reports whether the row pre-existed.
func ResolveConfig(ctx context.Context, tx *sqlx.Tx, source SourceConfig, llm model.LLMPowertrain) (id int64, existing bool, err error) {
	log := obslog.Get(obslog.CategoryStore)

	merged := mergeConfigFields(source, llm)

	row := tx.QueryRowxContext(ctx, `
		SELECT id FROM powertrain_configs
		WHERE engine_code = $1
		  AND drive_type = $2
		  AND ((transmission_code IS NULL AND $3::text IS NULL) OR transmission_code = $3)
	`, source.EngineCode, source.DriveType, merged.TransmissionCode)

	var existingID int64
	switch scanErr := row.Scan(&existingID); scanErr {
	case nil:
		log.Debug("config lookup hit for engine_code=%s trans=%v drive=%s -> id=%d",
			source.EngineCode, merged.TransmissionCode, source.DriveType, existingID)
		return existingID, true, nil
	case sql.ErrNoRows:
		// fall through to insert
	default:
		return 0, false, fmt.Errorf("store: config lookup failed: %w", scanErr)
	}

	insertRow := tx.QueryRowxContext(ctx, `
		INSERT INTO powertrain_configs
			(engine_code, transmission_code, drive_type, engine_family, displacement_liters,
			 cylinder_count, cylinder_layout, valve_train, forced_induction, fuel_type,
			 transmission_type, transmission_speeds, has_transfer_case, horsepower_hp,
			 torque_lb_ft, redline_rpm, compression_ratio)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id
	`,
		merged.EngineCode, merged.TransmissionCode, merged.DriveType, merged.EngineFamily,
		merged.DisplacementLiters, merged.CylinderCount, merged.CylinderLayout, merged.ValveTrain,
		merged.ForcedInduction, merged.FuelType, merged.TransmissionType, merged.TransmissionSpeeds,
		merged.HasTransferCase, merged.HorsepowerHP, merged.TorqueLBFT, merged.RedlineRPM,
		merged.CompressionRatio,
	)

	var newID int64
	if err := insertRow.Scan(&newID); err != nil {
		return 0, false, fmt.Errorf("store: config insert failed: %w", err)
	}
	log.Info("created new powertrain config id=%d for engine_code=%s", newID, source.EngineCode)
	return newID, false, nil
}

// mergeConfigFields merges source (which wins on every populated field) with
// the LLM-returned powertrain block (which only fills fields source left
// nil), per spec.md §4.F.
func mergeConfigFields(source SourceConfig, llm model.LLMPowertrain) model.PowertrainConfig {
	merged := model.PowertrainConfig{
		EngineCode:       source.EngineCode,
		TransmissionCode: source.TransmissionCode,
		DriveType:        source.DriveType,
		EngineFamily:     source.EngineFamily,
		DisplacementLiters: source.Displacement,
		CylinderCount:    source.CylinderCount,
		FuelType:         source.FuelType,
		ForcedInduction:  source.ForcedInduction,
		TransmissionType: source.TransmissionType,
	}

	if merged.TransmissionCode == nil && llm.TransmissionCode != "" {
		merged.TransmissionCode = &llm.TransmissionCode
	}
	if merged.EngineFamily == nil && llm.EngineFamily != "" {
		merged.EngineFamily = &llm.EngineFamily
	}
	if merged.DisplacementLiters == nil && llm.DisplacementLiters != 0 {
		merged.DisplacementLiters = &llm.DisplacementLiters
	}
	if merged.CylinderCount == nil && llm.CylinderCount != 0 {
		merged.CylinderCount = &llm.CylinderCount
	}
	if llm.CylinderLayout != "" {
		merged.CylinderLayout = &llm.CylinderLayout
	}
	if llm.ValveTrain != "" {
		merged.ValveTrain = &llm.ValveTrain
	}
	if merged.ForcedInduction == nil && llm.ForcedInductionType != "" {
		merged.ForcedInduction = &llm.ForcedInductionType
	}
	if merged.FuelType == nil && llm.FuelType != "" {
		merged.FuelType = &llm.FuelType
	}
	if merged.TransmissionType == nil && llm.TransmissionType != "" {
		merged.TransmissionType = &llm.TransmissionType
	}
	if llm.TransmissionSpeeds != 0 {
		merged.TransmissionSpeeds = &llm.TransmissionSpeeds
	}
	hasTransferCase := llm.HasTransferCase
	merged.HasTransferCase = &hasTransferCase
	if llm.Horsepower != 0 {
		merged.HorsepowerHP = &llm.Horsepower
	}
	if llm.TorqueLBFT != 0 {
		merged.TorqueLBFT = &llm.TorqueLBFT
	}
	if llm.RedlineRPM != 0 {
		merged.RedlineRPM = &llm.RedlineRPM
	}
	if llm.CompressionRatio != 0 {
		merged.CompressionRatio = &llm.CompressionRatio
	}
	return merged
}
