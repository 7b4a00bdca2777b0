// Package pipeline is the Pipeline Driver (spec.md §4.H): it orchestrates
// the Prompt Builder, LLM Client, JSON Extractor, Config Deduplicator, Item
// Canonicalizer, Validator, and Persister in order for every pending
// powertrain configuration, advances the per-config ingestion state
// machine, and rate-limits between successful LLM calls.
//
// Grounded on codenerd's cmd/nerd run loop (internal/_cmdref/main_ref.go):
// a cobra-driven entry point that resolves configuration once, builds its
// collaborators, then walks a work list logging progress via the category
// logger and a CLI-facing zap logger side by side. The state machine itself
// is this package's own rendering of spec.md §4.H's transition diagram;
// nothing in the pack models an LLM-ingestion state machine directly.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oemforge/oemforge/internal/config"
	"github.com/oemforge/oemforge/internal/llmclient"
	"github.com/oemforge/oemforge/internal/model"
	"github.com/oemforge/oemforge/internal/obslog"
	"github.com/oemforge/oemforge/internal/prompt"
	"github.com/oemforge/oemforge/internal/store"
	"github.com/oemforge/oemforge/internal/taxonomy"
	"github.com/oemforge/oemforge/internal/validate"
)

// Options controls one driver invocation, mirroring the CLI surface in
// spec.md §6.
type Options struct {
	Make    string // case-insensitive filter; empty means no filter
	DryRun  bool   // build prompts only; skip the LLM call and all persistence
	Limit   int    // 0 means unlimited
}

// Deps bundles every collaborator the driver calls into. Tests construct
// this directly against a sqlmock DB; production wiring happens in
// cmd/oemforge.
type Deps struct {
	DB         *sqlx.DB
	LLM        *llmclient.Client
	Canon      *taxonomy.Canonicalizer
	Validator  *validate.Validator
	Config     *config.Config
	// Sleep is the rate-limit primitive, overridable in tests so they don't
	// actually wait RateLimitInterval between configs.
	Sleep func(time.Duration)
}

// ConfigGroup is one candidate PowertrainConfig's worth of work: every
// pending vehicle_taxonomy row sharing (engine_code, drive_type,
// transmission_type), since vehicle_taxonomy itself never carries a
// transmission_code (that detail is learned from the LLM and merged in by
// the Config Deduplicator, spec.md §4.F).
type ConfigGroup struct {
	EngineCode       string
	DriveType        string
	TransmissionType string
	VehicleMake      string // first row's make, for the prompt's brand appendix
	TaxonomyRows     []model.VehicleTaxonomyEntry
}

// Summary reports what one driver invocation did, for the CLI to print.
type Summary struct {
	Processed int
	Loaded    int
	Flagged   int
	Rejected  int
}

// GroupPendingTaxonomy partitions rows into ConfigGroups, sorted by
// EngineCode to match spec.md §4.H's "processes configs in a stable order
// (here: sorted by engine_code)".
func GroupPendingTaxonomy(rows []model.VehicleTaxonomyEntry) []ConfigGroup {
	type key struct{ engine, drive, trans string }
	index := make(map[key]int)
	var groups []ConfigGroup

	for _, row := range rows {
		k := key{row.EngineCode, row.DriveType, row.TransmissionType}
		if i, ok := index[k]; ok {
			groups[i].TaxonomyRows = append(groups[i].TaxonomyRows, row)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, ConfigGroup{
			EngineCode:       row.EngineCode,
			DriveType:        row.DriveType,
			TransmissionType: row.TransmissionType,
			VehicleMake:      row.Make,
			TaxonomyRows:     []model.VehicleTaxonomyEntry{row},
		})
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].EngineCode < groups[j].EngineCode })
	return groups
}

// sourceConfig builds the 4.F SourceConfig seed from a group's
// representative row (its first member). Numeric/pointer fields are left
// nil when the representative row doesn't carry them; ResolveConfig merges
// in whatever the LLM supplies.
func sourceConfig(g ConfigGroup) store.SourceConfig {
	rep := g.TaxonomyRows[0]
	sc := store.SourceConfig{
		EngineCode: g.EngineCode,
		DriveType:  g.DriveType,
	}
	if rep.TransmissionType != "" {
		t := rep.TransmissionType
		sc.TransmissionType = &t
	}
	if rep.Displacement != 0 {
		d := rep.Displacement
		sc.Displacement = &d
	}
	if rep.Cylinders != 0 {
		c := rep.Cylinders
		sc.CylinderCount = &c
	}
	if rep.FuelType != "" {
		f := rep.FuelType
		sc.FuelType = &f
	}
	if rep.ForcedInduction != "" {
		fi := rep.ForcedInduction
		sc.ForcedInduction = &fi
	}
	return sc
}

// configForPrompt renders the minimal PowertrainConfig the Prompt Builder
// needs from a group, before any LLM round trip has happened.
func configForPrompt(g ConfigGroup) model.PowertrainConfig {
	sc := sourceConfig(g)
	return model.PowertrainConfig{
		EngineCode:         sc.EngineCode,
		DriveType:          sc.DriveType,
		TransmissionType:   sc.TransmissionType,
		DisplacementLiters: sc.Displacement,
		CylinderCount:      sc.CylinderCount,
	}
}

// Run processes every pending ConfigGroup matching opts, advancing the
// state machine spec.md §4.H describes per group, and returns a summary of
// terminal outcomes. It never returns an error for a per-config failure —
// those are logged and counted — only for setup failures that would make
// the whole run meaningless (currently: failing to load the pending
// taxonomy rows).
func Run(ctx context.Context, deps Deps, opts Options) (Summary, error) {
	log := obslog.Get(obslog.CategoryPipeline)
	sleep := deps.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	rows, err := store.LoadPendingTaxonomy(ctx, deps.DB, opts.Make)
	if err != nil {
		return Summary{}, fmt.Errorf("pipeline: failed to load pending taxonomy: %w", err)
	}
	groups := GroupPendingTaxonomy(rows)

	var summary Summary
	pendingRateLimit := false // true once a successful LLM call has happened

	for _, group := range groups {
		if opts.Limit > 0 && summary.Processed >= opts.Limit {
			log.Info("limit of %d configs reached, stopping", opts.Limit)
			break
		}

		promptText := prompt.Build(configForPrompt(group), group.VehicleMake)

		if opts.DryRun {
			log.Info("dry-run: built prompt for engine_code=%s drive_type=%s (%d bytes)",
				group.EngineCode, group.DriveType, len(promptText))
			summary.Processed++
			continue
		}

		if pendingRateLimit {
			sleep(deps.Config.RateLimitInterval)
		}

		outcome := processGroup(ctx, deps, group, promptText)
		summary.Processed++
		switch outcome {
		case outcomeLoaded:
			summary.Loaded++
			pendingRateLimit = true
		case outcomeFlagged:
			summary.Flagged++
			pendingRateLimit = true
		case outcomeRejected:
			summary.Rejected++
			// A rejected outcome on a transport-transient failure already
			// spent HTTPMaxRetries worth of backoff; don't add another
			// fixed sleep on top of it for the next config.
			pendingRateLimit = false
		}
	}

	return summary, nil
}

type outcome int

const (
	outcomeRejected outcome = iota
	outcomeFlagged
	outcomeLoaded
)

// processGroup runs one config through C (LLM) -> B (already folded into
// the LLM client) -> F/D/E/G (persist), and returns which terminal state
// spec.md §4.H's diagram landed on. Exactly one ingestion-log row results,
// whether this function returns outcomeLoaded, outcomeFlagged, or
// outcomeRejected.
func processGroup(ctx context.Context, deps Deps, group ConfigGroup, promptText string) outcome {
	log := obslog.Get(obslog.CategoryPipeline)
	requestID := uuid.NewString()

	resp, raw, err := deps.LLM.Complete(ctx, promptText, 0)
	if err != nil {
		log.Error("engine_code=%s: LLM call failed after retries: %v", group.EngineCode, err)
		if logErr := store.LogRejected(ctx, deps.DB, requestID, group.EngineCode, promptText, raw, err); logErr != nil {
			log.Error("engine_code=%s: failed to log rejection: %v", group.EngineCode, logErr)
		}
		return outcomeRejected
	}

	if len(resp.ScheduleEntries) == 0 {
		log.Info("engine_code=%s: LLM returned zero schedule entries, flagging", group.EngineCode)
		if err := store.MarkSkipped(ctx, deps.DB, group.TaxonomyRows, requestID, group.EngineCode, promptText, raw); err != nil {
			log.Error("engine_code=%s: failed to mark skipped: %v", group.EngineCode, err)
			if logErr := store.LogRejected(ctx, deps.DB, requestID, group.EngineCode, promptText, raw, err); logErr != nil {
				log.Error("engine_code=%s: failed to log rejection: %v", group.EngineCode, logErr)
			}
			return outcomeRejected
		}
		return outcomeFlagged
	}

	result, err := store.Persist(ctx, deps.DB, deps.Canon, deps.Validator, store.PersistInput{
		Source:       sourceConfig(group),
		TaxonomyRows: group.TaxonomyRows,
		LLM:          *resp,
		RequestID:    requestID,
		Prompt:       promptText,
		RawResponse:  raw,
		Status:       model.StatusLoaded,
	})
	if err != nil {
		log.Error("engine_code=%s: persist failed: %v", group.EngineCode, err)
		return outcomeRejected
	}

	log.Info("engine_code=%s: loaded config_id=%d entries=%d fluids=%d duplicate=%v",
		group.EngineCode, result.ConfigID, result.EntryCount, result.FluidCount, result.IsDuplicate)
	return outcomeLoaded
}
