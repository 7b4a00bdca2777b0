// Package prompt builds the deterministic extraction prompt sent to the
// LLM for a given powertrain configuration. It performs no network I/O.
package prompt

import (
	"fmt"
	"strings"

	"github.com/oemforge/oemforge/internal/model"
	"github.com/oemforge/oemforge/internal/obslog"
)

// ExpectedCategories are the maintenance categories spec.md §3 names as the
// closed set. A response covering fewer than MinItemsForComplete entries is
// called out to the LLM as "likely missing" categories.
var ExpectedCategories = []string{
	"engine", "ignition", "filters", "fluids", "brakes", "cooling",
	"tires_wheels", "steering_suspension", "drivetrain", "exhaust",
	"fuel_system", "electrical", "hvac", "safety", "body",
}

// MinItemsForComplete is the threshold below which the prompt warns the LLM
// its own draft response is probably incomplete (spec.md §4.A).
const MinItemsForComplete = 12

// FluidTypes is the closed set of fluid_type values the LLM may emit.
var FluidTypes = []string{
	"engine_oil", "transmission_fluid", "transfer_case_fluid",
	"differential_fluid_front", "differential_fluid_rear", "coolant",
	"brake_fluid", "power_steering_fluid", "washer_fluid",
}

// Paradigms is the closed set of vehicle.schedule_paradigm values.
var Paradigms = []string{"fixed_interval", "algorithm_driven", "hybrid"}

// ActionTypes is the closed set the LLM's schedule_entries[].action_type
// must be drawn from (spec.md §4.G lists the normalized target set; the
// prompt asks the LLM to use these directly so normalization is rarely
// needed).
var ActionTypes = []string{
	"replace", "inspect", "check", "lubricate", "rotate", "clean",
	"reset", "adjust", "tighten_torque", "diagnose_test",
}

const jsonSkeleton = `{
  "vehicle": {"make": "", "model": "", "year": 0, "market": "", "schedule_paradigm": ""},
  "powertrain": {
    "engine_code": "", "engine_family": "", "displacement_liters": 0.0,
    "cylinder_count": 0, "cylinder_layout": "", "valve_train": "",
    "forced_induction_type": "", "fuel_type": "", "horsepower": 0,
    "torque_lb_ft": 0, "redline_rpm": 0, "compression_ratio": 0.0,
    "transmission_code": "", "transmission_type": "", "transmission_speeds": 0,
    "drive_type": "", "has_transfer_case": false
  },
  "fluid_specifications": [
    {"fluid_type": "", "capacity_liters": 0.0, "capacity_quarts": 0.0,
     "capacity_note": "", "fluid_spec": "", "fluid_spec_alt": "",
     "oem_part_number": "", "fluid_warning": ""}
  ],
  "schedule_entries": [
    {"item_name": "", "action_type": "", "interval_type": "fixed_recurring",
     "interval_miles": 0, "interval_months": 0,
     "severe_interval_miles": 0, "severe_interval_months": 0,
     "severe_use_conditions": [], "severe_condition_description": "",
     "initial_miles": 0, "initial_months": 0,
     "relative_item_name": "", "relative_multiplier": 0.0,
     "fallback_interval_miles": 0, "fallback_interval_months": 0,
     "has_conditional_replacement": false, "conditional_replacement_note": "",
     "requires_equipment": [], "excludes_equipment": [],
     "applies_to_engine_codes": [], "applies_to_trans_codes": [],
     "applies_from_year": 0, "applies_to_year": 0,
     "severe_use_only": false, "requirement_level": "", "warranty_class": "",
     "oem_description": "", "oem_procedure_code": "", "service_code": ""}
  ]
}`

// hondaAcuraAppendix and mercedesAppendix are the brand appendices Build
// selects by lowercased make. Honda/Acura use maintenance-minder codes A/B
// with sub-items 1-5; Mercedes uses "Service A"/"Service B" or numbered codes
// and additionally gets a response-size cap to reduce truncation risk.
var hondaAcuraAppendix = `
Brand note (Honda/Acura maintenance minder): this vehicle's onboard computer
uses algorithmic service codes rather than a single fixed schedule. Where
applicable, set interval_type="algorithm_driven" and populate
fallback_interval_miles/fallback_interval_months with the time/mileage the
minder falls back to absent a computed trigger. Reference the maintenance
minder code (A, B, or a combination with sub-items 1-5) in oem_procedure_code
or service_code.`

var mercedesAppendix = `
Brand note (Mercedes-Benz service system): this vehicle uses "Service A" /
"Service B" or numbered service codes (Service 1-4) rather than a single
fixed schedule. Where applicable, set interval_type="algorithm_driven",
reference the service code in service_code, and populate fallback intervals.

Keep your response as concise as possible while still complete: omit
whitespace beyond what JSON requires and do not repeat the schema comments.
This vehicle's full schedule tends to run long and is at risk of truncation.`

// Build produces a deterministic prompt string for cfg. Calling Build twice
// with an equal cfg produces an identical prompt.
func Build(cfg model.PowertrainConfig, vehicleMake string) string {
	timer := obslog.StartTimer(obslog.CategoryPrompt, "Build")
	defer timer.Stop()

	var b strings.Builder

	fmt.Fprintf(&b, "You are an automotive maintenance-schedule extraction assistant.\n")
	fmt.Fprintf(&b, "Produce the complete OEM-recommended maintenance schedule and fluid\n")
	fmt.Fprintf(&b, "specifications for the following powertrain configuration:\n\n")
	fmt.Fprintf(&b, "  engine_code:       %s\n", cfg.EngineCode)
	fmt.Fprintf(&b, "  transmission_code: %s\n", derefString(cfg.TransmissionCode))
	fmt.Fprintf(&b, "  drive_type:        %s\n", cfg.DriveType)
	if cfg.TransmissionType != nil {
		fmt.Fprintf(&b, "  transmission_type: %s\n", *cfg.TransmissionType)
	}
	if cfg.DisplacementLiters != nil {
		fmt.Fprintf(&b, "  displacement_liters: %.1f\n", *cfg.DisplacementLiters)
	}
	if cfg.CylinderCount != nil {
		fmt.Fprintf(&b, "  cylinder_count:    %d\n", *cfg.CylinderCount)
	}

	fmt.Fprintf(&b, "\nRespond with ONLY a single JSON object matching this exact shape ")
	fmt.Fprintf(&b, "(omit no top-level keys; use null or empty arrays for unknown fields):\n\n")
	fmt.Fprintf(&b, "%s\n\n", jsonSkeleton)

	fmt.Fprintf(&b, "Constraints:\n")
	fmt.Fprintf(&b, "- vehicle.schedule_paradigm must be one of: %s\n", strings.Join(Paradigms, ", "))
	fmt.Fprintf(&b, "- fluid_specifications[].fluid_type must be one of: %s\n", strings.Join(FluidTypes, ", "))
	fmt.Fprintf(&b, "- schedule_entries[].action_type must be one of: %s\n", strings.Join(ActionTypes, ", "))
	fmt.Fprintf(&b, "\nA complete schedule should cover every applicable category from this set: %s.\n",
		strings.Join(ExpectedCategories, ", "))
	fmt.Fprintf(&b, "If your schedule_entries array would have fewer than %d entries, treat the\n", MinItemsForComplete)
	fmt.Fprintf(&b, "result as likely missing categories and make another pass before responding.\n")

	switch strings.ToLower(strings.TrimSpace(vehicleMake)) {
	case "honda", "acura":
		b.WriteString(hondaAcuraAppendix)
		b.WriteString("\n")
	case "mercedes-benz", "mercedes", "mercedes benz":
		b.WriteString(mercedesAppendix)
		b.WriteString("\n")
	}

	return b.String()
}

func derefString(s *string) string {
	if s == nil {
		return "(none)"
	}
	return *s
}
