// Package model holds the relational entities the pipeline reads and writes.
// Types mirror the schema in internal/store/migrations exactly; identifiers
// are opaque integers assigned by the store.
package model

import "time"

// ScheduleStatus is the closed set a VehicleTaxonomyEntry moves through.
type ScheduleStatus string

const (
	StatusPending   ScheduleStatus = "pending"
	StatusExtracted ScheduleStatus = "extracted"
	StatusSkipped   ScheduleStatus = "skipped"
)

// IngestionStatus is the terminal status written to exactly one
// IngestionLog row per pipeline invocation.
type IngestionStatus string

const (
	StatusLoaded   IngestionStatus = "loaded"
	StatusFlagged  IngestionStatus = "flagged"
	StatusRejected IngestionStatus = "rejected"
)

// IntervalType is the closed set of MaintenanceSchedule.interval_type values.
type IntervalType string

const (
	IntervalFixedRecurring IntervalType = "fixed_recurring"
	IntervalFixedOneTime   IntervalType = "fixed_one_time"
	IntervalAlgorithmic    IntervalType = "algorithm_driven"
	IntervalRelativeToItem IntervalType = "relative_to_item"
)

// ActionType is the closed set MaintenanceSchedule.action_type is normalized
// into before insertion (see internal/store.NormalizeActionType).
type ActionType string

const (
	ActionReplace       ActionType = "replace"
	ActionInspect       ActionType = "inspect"
	ActionCheck         ActionType = "check"
	ActionLubricate     ActionType = "lubricate"
	ActionRotate        ActionType = "rotate"
	ActionClean         ActionType = "clean"
	ActionReset         ActionType = "reset"
	ActionAdjust        ActionType = "adjust"
	ActionTightenTorque ActionType = "tighten_torque"
	ActionDiagnoseTest  ActionType = "diagnose_test"
)

// Confidence is the advisory confidence the validator assigns an entry.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// VehicleTaxonomyEntry is one row per distinct powertrain-bearing vehicle
// fitment known to the system. Created externally; the core only reads and
// updates ScheduleStatus and the PowertrainConfigID link.
type VehicleTaxonomyEntry struct {
	ID                int64
	Make              string
	Model             string
	Year              int
	EngineCode        string
	Displacement      float64
	Cylinders         int
	FuelType          string
	ForcedInduction   string
	TransmissionType  string
	DriveType         string
	ScheduleStatus    ScheduleStatus
	PowertrainConfigID *int64
}

// PowertrainConfig is the uniqueness anchor of the whole schema: one row per
// distinct (engine_code, transmission_code, drive_type) triple.
type PowertrainConfig struct {
	ID                 int64
	EngineCode         string
	TransmissionCode   *string // NULL is a distinct value from any string, per I1.
	DriveType          string
	EngineFamily       *string
	DisplacementLiters *float64
	CylinderCount      *int
	CylinderLayout     *string
	ValveTrain         *string
	ForcedInduction    *string
	FuelType           *string
	TransmissionType   *string
	TransmissionSpeeds *int
	HasTransferCase    *bool
	HorsepowerHP       *int
	TorqueLBFT         *int
	RedlineRPM         *int
	CompressionRatio   *float64
	CreatedAt          time.Time
}

// MaintenanceItem is the canonical, online-learned name for a maintainable
// item. Name is unique (I2); Aliases is an ordered list, first-match-wins
// during lookup.
type MaintenanceItem struct {
	ID                  int64
	Name                string
	Category            string
	Aliases             []string
	PowertrainDependent bool
}

// MaintenanceSchedule is (PowertrainConfig x MaintenanceItem x ActionType)
// with its full interval specification.
type MaintenanceSchedule struct {
	ID                         int64
	ConfigID                   int64
	MaintenanceItemID          int64
	ActionType                 ActionType
	IntervalType               IntervalType
	IntervalMiles              *int
	IntervalMonths             *int
	SevereIntervalMiles        *int
	SevereIntervalMonths       *int
	SevereUseConditions        []string
	SevereConditionDescription *string
	SevereUseOnly              bool
	InitialMiles               *int
	InitialMonths               *int
	RelativeItemID             *int64
	RelativeMultiplier         *float64
	FallbackIntervalMiles      *int
	FallbackIntervalMonths     *int
	HasConditionalReplacement  bool
	ConditionalReplacementNote *string
	RequiresEquipment          []string
	ExcludesEquipment          []string
	AppliesToEngineCodes       []string
	AppliesToTransCodes        []string
	AppliesFromYear            *int
	AppliesToYear              *int
	RequirementLevel           *string
	WarrantyClass              *string
	OEMDescription             *string
	OEMProcedureCode           *string
	ServiceCode                *string
	DataSource                 string
	Confidence                 Confidence
	NeedsReview                bool
	ReviewNotes                string
}

// FluidSpecification is (PowertrainConfig x fluid_type), unique on
// (config_id, fluid_type) per I3. Inserts upsert-merge by COALESCE.
type FluidSpecification struct {
	ID              int64
	ConfigID        int64
	FluidType       string
	CapacityLiters  *float64
	CapacityQuarts  *float64
	CapacityNote    *string
	FluidSpec       *string
	FluidSpecAlt    *string
	OEMPartNumber   *string
	FluidWarning    *string
}

// VehicleApplication lets multiple vehicle ranges share one schedule.
type VehicleApplication struct {
	ID        int64
	ConfigID  int64
	Make      string
	Model     string
	YearStart int
	YearEnd   int
	Market    string
	Paradigm  string
}

// IngestionLog is an immutable audit row per pipeline invocation.
type IngestionLog struct {
	ID                int64
	RequestID         string // uuid, correlation id for the run
	ConfigEngineCode  string
	Prompt            string // truncated to 10KB
	RawResponse       string // truncated to 10KB
	Status            IngestionStatus
	EntryCount        int
	FluidCount        int
	ValidationNotes   string
	ResultConfigID    *int64
	IsDuplicate       bool
	CreatedAt         time.Time
}

// ValidationRule is a predicate triple loaded once at start.
type ValidationRule struct {
	ID                int64   `db:"id"`
	Name              string  `db:"name"`
	ItemNameTarget    *string `db:"item_name_target"`
	ActionTypeTarget  *string `db:"action_type_target"`
	MinIntervalMiles  *int    `db:"min_interval_miles"`
	MaxIntervalMiles  *int    `db:"max_interval_miles"`
	MinIntervalMonths *int    `db:"min_interval_months"`
	MaxIntervalMonths *int    `db:"max_interval_months"`
	Severity          string  `db:"severity"`
}
